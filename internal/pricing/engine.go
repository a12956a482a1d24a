package pricing

import (
	"sort"
	"time"

	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/rules"

	"github.com/shopspring/decimal"
)

// Context 定价计算所需的外部数据，由调用方预先取好，保证计算过程无副作用
type Context struct {
	Now               time.Time
	Promotions        []models.Promotion     // 候选促销规则（引擎内部按优先级排序）
	ShippingMethod    *models.ShippingMethod // 已选运费方式，nil 表示未选择
	HoldShippingPrice bool                   // 保持现有运费不重算
}

// Engine 定价/调整引擎。每次调用都从零重算全部金额，
// 以重算开销换取金额一致性，不做增量计价。
type Engine struct {
	registry *rules.Registry
}

// NewEngine 创建定价引擎
func NewEngine(registry *rules.Registry) *Engine {
	return &Engine{registry: registry}
}

// CalculatePrices 重算订单的行金额、附加费、运费与总计；只修改传入的内存副本
func (e *Engine) CalculatePrices(order *models.Order, ctx Context) error {
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}

	promotions := e.applicablePromotions(order, ctx.Promotions, now)

	subTotal := decimal.Zero
	subTotalWithTax := decimal.Zero
	for i := range order.Lines {
		line := &order.Lines[i]
		if err := e.priceLine(order, line, promotions); err != nil {
			return err
		}
		subTotal = subTotal.Add(line.LineTotal.Decimal)
		subTotalWithTax = subTotalWithTax.Add(line.LineTotalWithTax.Decimal)
	}
	order.SubTotal = models.NewMoneyFromDecimal(subTotal)
	order.SubTotalWithTax = models.NewMoneyFromDecimal(subTotalWithTax)

	surcharge := decimal.Zero
	surchargeWithTax := decimal.Zero
	for i := range order.Surcharges {
		s := &order.Surcharges[i]
		priceSurcharge(s)
		surcharge = surcharge.Add(s.Price.Decimal)
		surchargeWithTax = surchargeWithTax.Add(s.PriceWithTax.Decimal)
	}

	if err := e.priceShipping(order, ctx); err != nil {
		return err
	}

	order.Total = models.NewMoneyFromDecimal(subTotal.Add(surcharge).Add(order.Shipping.Decimal))
	order.TotalWithTax = models.NewMoneyFromDecimal(subTotalWithTax.Add(surchargeWithTax).Add(order.ShippingWithTax.Decimal))
	return nil
}

// MethodEligible 评估运费方式对当前订单是否可用
func (e *Engine) MethodEligible(order *models.Order, method *models.ShippingMethod) (bool, error) {
	if method == nil || !method.Enabled {
		return false, nil
	}
	checker, err := e.registry.Checker(method.Checker.Code)
	if err != nil {
		return false, err
	}
	if err := rules.ValidateArgs(checker, method.Checker); err != nil {
		return false, err
	}
	return checker.Check(order, method.Checker)
}

// applicablePromotions 过滤出可应用的促销并按优先级排序；
// 需优惠码的促销只有在码存在且自身条件满足时才入选
func (e *Engine) applicablePromotions(order *models.Order, candidates []models.Promotion, now time.Time) []models.Promotion {
	applicable := make([]models.Promotion, 0, len(candidates))
	for _, promotion := range candidates {
		if !promotion.ActiveAt(now) {
			continue
		}
		if promotion.CouponGated() && !order.CouponCodes.Contains(promotion.CouponCode) {
			continue
		}
		ok, err := e.registry.CheckConditions(order, promotion.Conditions)
		if err != nil || !ok {
			continue
		}
		applicable = append(applicable, promotion)
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].PriorityOrder < applicable[j].PriorityOrder
	})
	return applicable
}

func (e *Engine) priceLine(order *models.Order, line *models.OrderLine, promotions []models.Promotion) error {
	taxMultiplier := taxFactor(line.TaxRate)
	line.UnitPriceWithTax = models.NewMoneyFromDecimal(line.UnitPrice.Decimal.Mul(taxMultiplier))

	adjustments := make(models.AdjustmentList, 0, len(promotions)+1)
	discountPerUnit := decimal.Zero
	for _, promotion := range promotions {
		for _, action := range promotion.Actions {
			op, err := e.registry.Action(action.Code)
			if err != nil {
				return err
			}
			if err := rules.ValidateArgs(op, action); err != nil {
				return err
			}
			discount, err := op.PerUnitDiscount(order, line, action)
			if err != nil {
				return err
			}
			if discount.Decimal.LessThanOrEqual(decimal.Zero) {
				continue
			}
			discountPerUnit = discountPerUnit.Add(discount.Decimal)
			adjustments = append(adjustments, models.Adjustment{
				Type:        "promotion",
				Source:      promotion.Name,
				Description: op.Description(),
				Amount:      models.NewMoneyFromDecimal(discount.Decimal.Neg().Mul(decimal.NewFromInt(int64(line.Quantity)))),
			})
		}
	}

	discounted := line.UnitPrice.Decimal.Sub(discountPerUnit)
	if discounted.LessThan(decimal.Zero) {
		discounted = decimal.Zero
	}
	line.DiscountedUnitPrice = models.NewMoneyFromDecimal(discounted)

	quantity := decimal.NewFromInt(int64(line.Quantity))
	lineTotal := discounted.Mul(quantity)
	lineTotalWithTax := lineTotal.Mul(taxMultiplier).Round(2)
	line.LineTotal = models.NewMoneyFromDecimal(lineTotal)
	line.LineTotalWithTax = models.NewMoneyFromDecimal(lineTotalWithTax)

	if tax := lineTotalWithTax.Sub(lineTotal); tax.GreaterThan(decimal.Zero) {
		adjustments = append(adjustments, models.Adjustment{
			Type:   "tax",
			Source: line.TaxRate.String() + "%",
			Amount: models.NewMoneyFromDecimal(tax),
		})
	}
	line.Adjustments = adjustments
	return nil
}

func (e *Engine) priceShipping(order *models.Order, ctx Context) error {
	if ctx.HoldShippingPrice || ctx.ShippingMethod == nil {
		// 未选择运费方式且不保价时运费为零
		if ctx.ShippingMethod == nil && !ctx.HoldShippingPrice {
			order.Shipping = models.Money{}
			order.ShippingWithTax = models.Money{}
		}
		return nil
	}
	calculator, err := e.registry.Calculator(ctx.ShippingMethod.Calculator.Code)
	if err != nil {
		return err
	}
	if err := rules.ValidateArgs(calculator, ctx.ShippingMethod.Calculator); err != nil {
		return err
	}
	result, err := calculator.Calculate(order, ctx.ShippingMethod.Calculator)
	if err != nil {
		return err
	}
	order.Shipping = result.Price
	order.ShippingWithTax = models.NewMoneyFromDecimal(result.Price.Decimal.Mul(taxFactor(result.TaxRate)).Round(2))
	return nil
}

func priceSurcharge(s *models.Surcharge) {
	factor := taxFactor(s.TaxRate)
	if s.PriceIncludesTax {
		s.PriceWithTax = models.NewMoneyFromDecimal(s.Price.Decimal)
		s.Price = models.NewMoneyFromDecimal(s.PriceWithTax.Decimal.Div(factor).Round(2))
		s.PriceIncludesTax = false
		return
	}
	s.PriceWithTax = models.NewMoneyFromDecimal(s.Price.Decimal.Mul(factor).Round(2))
}

func taxFactor(rate models.Money) decimal.Decimal {
	return decimal.NewFromInt(1).Add(rate.Decimal.Div(decimal.NewFromInt(100)))
}
