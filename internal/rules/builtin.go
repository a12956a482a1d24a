package rules

import (
	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultRegistry 构建带内置操作的注册表
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// 内置 code 不会重复，注册错误在此吞掉
	_ = r.RegisterCondition(MinimumOrderAmountCondition{})
	_ = r.RegisterCondition(ContainsVariantsCondition{})
	_ = r.RegisterAction(PercentageDiscountAction{})
	_ = r.RegisterAction(FixedDiscountAction{})
	_ = r.RegisterChecker(AlwaysEligibleChecker{})
	_ = r.RegisterChecker(MinSubtotalChecker{})
	_ = r.RegisterCalculator(FlatRateCalculator{})
	_ = r.RegisterCalculator(PerItemRateCalculator{})
	return r
}

// MinimumOrderAmountCondition 不含税小计达到门槛才生效
type MinimumOrderAmountCondition struct{}

func (MinimumOrderAmountCondition) Code() string        { return "minimum_order_amount" }
func (MinimumOrderAmountCondition) Description() string { return "订单小计达到指定金额" }
func (MinimumOrderAmountCondition) ArgSpecs() []ArgSpec {
	return []ArgSpec{{Name: "amount", Type: ArgTypeDecimal, Required: true}}
}

// Check 判断不含税小计是否达标
func (c MinimumOrderAmountCondition) Check(order *models.Order, cfg models.OperationConfig) (bool, error) {
	threshold, err := DecimalArg(cfg, "amount")
	if err != nil {
		return false, err
	}
	subtotal := decimal.Zero
	for _, line := range order.Lines {
		subtotal = subtotal.Add(line.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal.GreaterThanOrEqual(threshold), nil
}

// ContainsVariantsCondition 订单包含任一指定变体才生效
type ContainsVariantsCondition struct{}

func (ContainsVariantsCondition) Code() string        { return "contains_variants" }
func (ContainsVariantsCondition) Description() string { return "订单包含指定商品变体" }
func (ContainsVariantsCondition) ArgSpecs() []ArgSpec {
	return []ArgSpec{{Name: "variant_ids", Type: ArgTypeIDList, Required: true}}
}

// Check 判断订单是否包含任一指定变体
func (c ContainsVariantsCondition) Check(order *models.Order, cfg models.OperationConfig) (bool, error) {
	ids, err := IDListArg(cfg, "variant_ids")
	if err != nil {
		return false, err
	}
	wanted := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for _, line := range order.Lines {
		if line.Quantity <= 0 {
			continue
		}
		if _, ok := wanted[line.VariantID]; ok {
			return true, nil
		}
	}
	return false, nil
}

// PercentageDiscountAction 按单价百分比折扣
type PercentageDiscountAction struct{}

func (PercentageDiscountAction) Code() string        { return constants.PromotionActionPercentage }
func (PercentageDiscountAction) Description() string { return "按百分比折扣" }
func (PercentageDiscountAction) ArgSpecs() []ArgSpec {
	return []ArgSpec{{Name: "percentage", Type: ArgTypeDecimal, Required: true}}
}

// PerUnitDiscount 计算单件折扣
func (a PercentageDiscountAction) PerUnitDiscount(order *models.Order, line *models.OrderLine, cfg models.OperationConfig) (models.Money, error) {
	percentage, err := DecimalArg(cfg, "percentage")
	if err != nil {
		return models.Money{}, err
	}
	discount := line.UnitPrice.Decimal.Mul(percentage).Div(decimal.NewFromInt(100))
	return models.NewMoneyFromDecimal(discount), nil
}

// FixedDiscountAction 固定金额折扣
type FixedDiscountAction struct{}

func (FixedDiscountAction) Code() string        { return constants.PromotionActionFixed }
func (FixedDiscountAction) Description() string { return "按固定金额折扣" }
func (FixedDiscountAction) ArgSpecs() []ArgSpec {
	return []ArgSpec{{Name: "amount", Type: ArgTypeDecimal, Required: true}}
}

// PerUnitDiscount 计算单件折扣
func (a FixedDiscountAction) PerUnitDiscount(order *models.Order, line *models.OrderLine, cfg models.OperationConfig) (models.Money, error) {
	amount, err := DecimalArg(cfg, "amount")
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoneyFromDecimal(amount), nil
}

// AlwaysEligibleChecker 永远可用的运费资格检查器
type AlwaysEligibleChecker struct{}

func (AlwaysEligibleChecker) Code() string        { return "always_eligible" }
func (AlwaysEligibleChecker) Description() string { return "无条件可用" }
func (AlwaysEligibleChecker) ArgSpecs() []ArgSpec { return nil }

// Check 永远返回 true
func (c AlwaysEligibleChecker) Check(order *models.Order, cfg models.OperationConfig) (bool, error) {
	return true, nil
}

// MinSubtotalChecker 小计达到门槛才可用
type MinSubtotalChecker struct{}

func (MinSubtotalChecker) Code() string        { return "min_subtotal" }
func (MinSubtotalChecker) Description() string { return "小计达到指定金额可用" }
func (MinSubtotalChecker) ArgSpecs() []ArgSpec {
	return []ArgSpec{{Name: "amount", Type: ArgTypeDecimal, Required: true}}
}

// Check 判断小计是否达标
func (c MinSubtotalChecker) Check(order *models.Order, cfg models.OperationConfig) (bool, error) {
	return MinimumOrderAmountCondition{}.Check(order, cfg)
}

// FlatRateCalculator 固定运费计算器
type FlatRateCalculator struct{}

func (FlatRateCalculator) Code() string        { return "flat_rate" }
func (FlatRateCalculator) Description() string { return "固定运费" }
func (FlatRateCalculator) ArgSpecs() []ArgSpec {
	return []ArgSpec{
		{Name: "rate", Type: ArgTypeDecimal, Required: true},
		{Name: "tax_rate", Type: ArgTypeDecimal, Required: false},
	}
}

// Calculate 返回固定运费
func (c FlatRateCalculator) Calculate(order *models.Order, cfg models.OperationConfig) (ShippingResult, error) {
	rate, err := DecimalArg(cfg, "rate")
	if err != nil {
		return ShippingResult{}, err
	}
	return ShippingResult{
		Price:   models.NewMoneyFromDecimal(rate),
		TaxRate: optionalDecimal(cfg, "tax_rate"),
	}, nil
}

// PerItemRateCalculator 按件计费运费计算器
type PerItemRateCalculator struct{}

func (PerItemRateCalculator) Code() string        { return "per_item_rate" }
func (PerItemRateCalculator) Description() string { return "按件数计费" }
func (PerItemRateCalculator) ArgSpecs() []ArgSpec {
	return []ArgSpec{
		{Name: "rate_per_item", Type: ArgTypeDecimal, Required: true},
		{Name: "tax_rate", Type: ArgTypeDecimal, Required: false},
	}
}

// Calculate 按订单总件数计算运费
func (c PerItemRateCalculator) Calculate(order *models.Order, cfg models.OperationConfig) (ShippingResult, error) {
	rate, err := DecimalArg(cfg, "rate_per_item")
	if err != nil {
		return ShippingResult{}, err
	}
	var count int64
	for _, line := range order.Lines {
		if line.Quantity > 0 {
			count += int64(line.Quantity)
		}
	}
	return ShippingResult{
		Price:   models.NewMoneyFromDecimal(rate.Mul(decimal.NewFromInt(count))),
		TaxRate: optionalDecimal(cfg, "tax_rate"),
	}, nil
}

func optionalDecimal(cfg models.OperationConfig, name string) models.Money {
	raw, ok := cfg.Arg(name)
	if !ok {
		return models.Money{}
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return models.Money{}
	}
	return models.NewMoneyFromDecimal(value)
}
