package service

import (
	"errors"
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/orderstate"
	"github.com/ordernext/internal/pricing"
	"github.com/ordernext/internal/queue"
	"github.com/ordernext/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ModificationService 改单服务：对已下单订单的行、附加费、优惠码与运费做原子变更
type ModificationService struct {
	orderRepo        repository.OrderRepository
	variantRepo      repository.VariantRepository
	promotionRepo    repository.PromotionRepository
	shippingRepo     repository.ShippingMethodRepository
	paymentRepo      repository.PaymentRepository
	refundRepo       repository.RefundRepository
	modificationRepo repository.ModificationRepository
	historyRepo      repository.HistoryRepository
	queueClient      *queue.Client
	engine           *pricing.Engine
	machine          *orderstate.Machine
	maxLineQuantity  int
}

// NewModificationService 创建改单服务
func NewModificationService(orderRepo repository.OrderRepository, variantRepo repository.VariantRepository, promotionRepo repository.PromotionRepository, shippingRepo repository.ShippingMethodRepository, paymentRepo repository.PaymentRepository, refundRepo repository.RefundRepository, modificationRepo repository.ModificationRepository, historyRepo repository.HistoryRepository, queueClient *queue.Client, engine *pricing.Engine, maxLineQuantity int) *ModificationService {
	if maxLineQuantity <= 0 {
		maxLineQuantity = constants.MaxLineQuantity
	}
	return &ModificationService{
		orderRepo:        orderRepo,
		variantRepo:      variantRepo,
		promotionRepo:    promotionRepo,
		shippingRepo:     shippingRepo,
		paymentRepo:      paymentRepo,
		refundRepo:       refundRepo,
		modificationRepo: modificationRepo,
		historyRepo:      historyRepo,
		queueClient:      queueClient,
		engine:           engine,
		machine:          orderstate.DefaultMachine(),
		maxLineQuantity:  maxLineQuantity,
	}
}

// AddLineSpec 改单新增行
type AddLineSpec struct {
	VariantID    uint
	Quantity     int
	CustomFields models.JSON
}

// AdjustLineSpec 改单调整已有行数量；CustomFields 非 nil 时覆盖自定义字段
type AdjustLineSpec struct {
	OrderLineID  uint
	Quantity     int
	CustomFields models.JSON
}

// SurchargeSpec 改单新增附加费
type SurchargeSpec struct {
	Description      string
	Price            models.Money
	TaxRate          models.Money
	PriceIncludesTax bool
}

// RefundSpec 改单退款指令；总价下降时必填，可按支付拆成多笔
type RefundSpec struct {
	PaymentID        uint
	Amount           models.Money // 商品部分退款金额（含税）
	ShippingAmount   models.Money // 运费部分退款金额（含税）
	AdjustmentAmount models.Money // 人工调整金额（含税）
	Reason           string
}

// ModifyOrderInput 改单输入
type ModifyOrderInput struct {
	Note                string
	DryRun              bool
	ExpectedVersion     uint // 非 0 时校验订单版本
	AddLines            []AddLineSpec
	AdjustLines         []AdjustLineSpec
	Surcharges          []SurchargeSpec
	RemoveSurchargeIDs  []uint
	SetCouponCodes      []string // 非 nil 时整组替换优惠码集合
	ApplyCouponCodes    []string
	RemoveCouponCodes   []string
	ShippingMethodID    *uint
	ShippingAddress     *models.Address
	BillingAddress      *models.Address
	RecalculateShipping bool
	Refunds             []RefundSpec
	AdminID             uint
}

// ModifyOrderResult 改单结果
type ModifyOrderResult struct {
	Order        *models.Order
	Modification *models.OrderModification
	PriceDelta   models.Money
	Refunds      []*models.Refund
}

func (input ModifyOrderInput) empty() bool {
	return len(input.AddLines) == 0 &&
		len(input.AdjustLines) == 0 &&
		len(input.Surcharges) == 0 &&
		len(input.RemoveSurchargeIDs) == 0 &&
		input.SetCouponCodes == nil &&
		len(input.ApplyCouponCodes) == 0 &&
		len(input.RemoveCouponCodes) == 0 &&
		input.ShippingMethodID == nil &&
		input.ShippingAddress == nil &&
		input.BillingAddress == nil
}

// Begin 将订单转入改单状态
func (s *ModificationService) Begin(orderID uint, adminID uint) (*models.Order, error) {
	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	from := order.State
	if err := s.machine.Transition(order, constants.OrderStateModifying); err != nil {
		var te *orderstate.TransitionError
		if errors.As(err, &te) {
			return nil, ErrOrderModificationState
		}
		return nil, err
	}
	if err := s.orderRepo.SaveWithVersion(order); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrOrderVersionConflict
		}
		return nil, err
	}
	s.appendHistory(nil, order.ID, constants.HistoryTypeStateTransition,
		models.JSON{"from": from, "to": order.State}, adminID, false)
	return order, nil
}

// Preview 试算改单结果，不落库
func (s *ModificationService) Preview(orderID uint, input ModifyOrderInput) (*ModifyOrderResult, error) {
	input.DryRun = true
	return s.Modify(orderID, input)
}

// Modify 执行改单；DryRun 时只返回试算结果
func (s *ModificationService) Modify(orderID uint, input ModifyOrderInput) (*ModifyOrderResult, error) {
	if input.empty() {
		return nil, ErrNoChangesSpecified
	}
	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != constants.OrderStateModifying {
		return nil, ErrOrderModificationState
	}
	if input.ExpectedVersion != 0 && input.ExpectedVersion != order.Version {
		return nil, ErrOrderVersionConflict
	}

	oldTotalWithTax := order.TotalWithTax
	plan, err := s.applyChanges(order, input)
	if err != nil {
		return nil, err
	}

	if err := s.recalculate(order, input); err != nil {
		return nil, err
	}
	priceDelta := order.TotalWithTax.SubMoney(oldTotalWithTax)

	result := &ModifyOrderResult{
		Order:      order,
		PriceDelta: priceDelta,
	}
	if input.DryRun {
		return result, nil
	}

	refunds, err := s.buildRefunds(order, input, priceDelta, plan.modificationLines)
	if err != nil {
		return nil, err
	}

	modification := &models.OrderModification{
		OrderID:    order.ID,
		Note:       input.Note,
		PriceDelta: priceDelta,
		Lines:      plan.modificationLines,
	}

	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		variantRepo := s.variantRepo.WithTx(tx)

		for variantID, delta := range plan.stockDeltas {
			if delta == 0 {
				continue
			}
			if err := variantRepo.AdjustStock(variantID, -delta); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return ErrInsufficientStock
				}
				return err
			}
		}

		for i := range plan.newSurcharges {
			plan.newSurcharges[i].OrderID = order.ID
			if err := orderRepo.CreateSurcharge(&plan.newSurcharges[i]); err != nil {
				return err
			}
			modification.SurchargeIDs = append(modification.SurchargeIDs, plan.newSurcharges[i].ID)
		}
		for _, surchargeID := range plan.removedSurchargeIDs {
			if err := orderRepo.DeleteSurcharge(order.ID, surchargeID); err != nil {
				return err
			}
		}

		if err := orderRepo.ReplaceLines(order.ID, order.Lines); err != nil {
			return err
		}
		for _, lineID := range plan.removedLineIDs {
			if err := orderRepo.DeleteLine(order.ID, lineID); err != nil {
				return err
			}
		}

		for _, refund := range refunds {
			if err := s.refundRepo.WithTx(tx).Create(refund); err != nil {
				return err
			}
			modification.RefundIDs = append(modification.RefundIDs, refund.ID)
		}

		// 按价差决定订单去向：补款走 arranging_additional_payment，其余回到原状态
		target := order.ReturnState
		if priceDelta.GreaterThan(decimal.Zero) {
			target = constants.OrderStateArrangingAdditionalPayment
		}
		transitionFrom := ""
		if target != "" && target != order.State {
			transitionFrom = order.State
			if err := s.machine.Transition(order, target); err != nil {
				return err
			}
		}

		if err := orderRepo.SaveWithVersion(order); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return ErrOrderVersionConflict
			}
			return err
		}

		if err := s.modificationRepo.WithTx(tx).Create(modification); err != nil {
			return err
		}

		if err := s.historyRepo.WithTx(tx).Append(&models.HistoryEntry{
			OrderID: order.ID,
			Type:    constants.HistoryTypeModification,
			Data: models.JSON{
				"modification_id": modification.ID,
				"price_delta":     priceDelta.String(),
				"note":            input.Note,
			},
			AdministratorID: input.AdminID,
			IsPublic:        true,
		}); err != nil {
			return err
		}

		if transitionFrom == "" {
			return nil
		}
		return s.historyRepo.WithTx(tx).Append(&models.HistoryEntry{
			OrderID:         order.ID,
			Type:            constants.HistoryTypeStateTransition,
			Data:            models.JSON{"from": transitionFrom, "to": order.State},
			AdministratorID: input.AdminID,
			IsPublic:        true,
		})
	})
	if err != nil {
		return nil, err
	}

	result.Modification = modification
	result.Refunds = refunds
	s.publishModified(order, modification, priceDelta)
	return result, nil
}

// changePlan 改单过程的中间产物
type changePlan struct {
	modificationLines   models.ModificationLineList
	newSurcharges       []models.Surcharge
	removedSurchargeIDs []uint
	removedLineIDs      []uint
	stockDeltas         map[uint]int // variantID -> 数量变化
}

// applyChanges 把改单输入套用到内存订单上
func (s *ModificationService) applyChanges(order *models.Order, input ModifyOrderInput) (*changePlan, error) {
	plan := &changePlan{stockDeltas: map[uint]int{}}

	for _, spec := range input.AdjustLines {
		if spec.Quantity < 0 {
			return nil, ErrNegativeQuantity
		}
		if spec.Quantity > s.maxLineQuantity {
			return nil, ErrOrderLimitExceeded
		}
		line := order.LineByID(spec.OrderLineID)
		if line == nil {
			return nil, ErrOrderLineNotFound
		}
		if spec.Quantity < line.FulfilledQuantity {
			return nil, ErrQuantityBelowFulfilled
		}
		if spec.Quantity < line.RefundedQuantity {
			return nil, ErrQuantityBelowRefunded
		}
		delta := spec.Quantity - line.Quantity
		if spec.CustomFields != nil {
			line.CustomFields = spec.CustomFields
		}
		if delta == 0 {
			// 数量未变但自定义字段改了，记一条原地修改
			if spec.CustomFields != nil {
				plan.modificationLines = append(plan.modificationLines, models.ModificationLine{
					OrderLineID:     line.ID,
					ModifiedInPlace: true,
				})
			}
			continue
		}
		plan.stockDeltas[line.VariantID] += delta
		entry := models.ModificationLine{OrderLineID: line.ID}
		if delta > 0 {
			entry.AddedQuantity = delta
		} else {
			entry.RemovedQuantity = -delta
		}
		plan.modificationLines = append(plan.modificationLines, entry)

		if spec.Quantity == 0 {
			plan.removedLineIDs = append(plan.removedLineIDs, line.ID)
			s.dropLine(order, line.ID)
			continue
		}
		line.Quantity = spec.Quantity
	}

	for _, spec := range input.AddLines {
		if spec.Quantity <= 0 {
			return nil, ErrNegativeQuantity
		}
		if spec.Quantity > s.maxLineQuantity {
			return nil, ErrOrderLimitExceeded
		}
		variant, err := s.variantRepo.GetByID(spec.VariantID)
		if err != nil {
			return nil, err
		}
		if variant == nil {
			return nil, ErrVariantNotFound
		}
		if !variant.Enabled {
			return nil, ErrVariantDisabled
		}
		order.Lines = append(order.Lines, models.OrderLine{
			OrderID:      order.ID,
			VariantID:    variant.ID,
			SKU:          variant.SKU,
			Name:         variant.Name,
			Quantity:     spec.Quantity,
			UnitPrice:    variant.Price,
			TaxRate:      variant.TaxRate,
			CustomFields: spec.CustomFields,
		})
		plan.stockDeltas[variant.ID] += spec.Quantity
		plan.modificationLines = append(plan.modificationLines, models.ModificationLine{
			AddedQuantity: spec.Quantity,
		})
	}

	for _, spec := range input.Surcharges {
		plan.newSurcharges = append(plan.newSurcharges, models.Surcharge{
			Description:      spec.Description,
			Price:            spec.Price,
			TaxRate:          spec.TaxRate,
			PriceIncludesTax: spec.PriceIncludesTax,
		})
	}
	// 新附加费先挂到内存订单上参与重算
	order.Surcharges = append(order.Surcharges, plan.newSurcharges...)

	for _, surchargeID := range input.RemoveSurchargeIDs {
		if surchargeID == 0 {
			return nil, ErrSurchargeNotFound
		}
		found := false
		kept := make([]models.Surcharge, 0, len(order.Surcharges))
		for _, sc := range order.Surcharges {
			if sc.ID == surchargeID {
				found = true
				continue
			}
			kept = append(kept, sc)
		}
		if !found {
			return nil, ErrSurchargeNotFound
		}
		order.Surcharges = kept
		plan.removedSurchargeIDs = append(plan.removedSurchargeIDs, surchargeID)
	}

	if input.SetCouponCodes != nil {
		replaced := make(models.StringArray, 0, len(input.SetCouponCodes))
		for _, code := range input.SetCouponCodes {
			if err := s.validateCoupon(code); err != nil {
				return nil, err
			}
			if !replaced.Contains(code) {
				replaced = append(replaced, code)
			}
		}
		order.CouponCodes = replaced
	}
	for _, code := range input.ApplyCouponCodes {
		if err := s.validateCoupon(code); err != nil {
			return nil, err
		}
		if !order.CouponCodes.Contains(code) {
			order.CouponCodes = append(order.CouponCodes, code)
		}
	}
	for _, code := range input.RemoveCouponCodes {
		kept := make(models.StringArray, 0, len(order.CouponCodes))
		for _, c := range order.CouponCodes {
			if c != code {
				kept = append(kept, c)
			}
		}
		order.CouponCodes = kept
	}

	if input.ShippingAddress != nil {
		order.ShippingAddress = *input.ShippingAddress
	}
	if input.BillingAddress != nil {
		order.BillingAddress = *input.BillingAddress
	}
	if input.ShippingMethodID != nil {
		method, err := s.shippingRepo.GetByID(*input.ShippingMethodID)
		if err != nil {
			return nil, err
		}
		if method == nil {
			return nil, ErrShippingMethodNotFound
		}
		eligible, err := s.engine.MethodEligible(order, method)
		if err != nil {
			return nil, err
		}
		if !eligible {
			return nil, ErrShippingMethodNotEligible
		}
		order.ShippingMethodID = &method.ID
	}
	return plan, nil
}

func (s *ModificationService) dropLine(order *models.Order, lineID uint) {
	kept := make([]models.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.ID != lineID {
			kept = append(kept, line)
		}
	}
	order.Lines = kept
}

func (s *ModificationService) validateCoupon(code string) error {
	promotion, err := s.promotionRepo.GetByCouponCode(code)
	if err != nil {
		return err
	}
	if promotion == nil || !promotion.Enabled {
		return ErrCouponInvalid
	}
	if !promotion.ActiveAt(time.Now()) {
		return ErrCouponExpired
	}
	if promotion.UsageLimit > 0 && promotion.UsedCount >= promotion.UsageLimit {
		return ErrCouponUsageLimit
	}
	return nil
}

func (s *ModificationService) recalculate(order *models.Order, input ModifyOrderInput) error {
	promotions, err := s.promotionRepo.ListEnabled()
	if err != nil {
		return err
	}
	var method *models.ShippingMethod
	if order.ShippingMethodID != nil {
		method, err = s.shippingRepo.GetByID(*order.ShippingMethodID)
		if err != nil {
			return err
		}
	}
	return s.engine.CalculatePrices(order, pricing.Context{
		Now:               time.Now(),
		Promotions:        promotions,
		ShippingMethod:    method,
		HoldShippingPrice: !input.RecalculateShipping,
	})
}

// buildRefunds 总价下降时构造退款；各笔合计必须与价差一致，且每笔支付不超过其可退额度
func (s *ModificationService) buildRefunds(order *models.Order, input ModifyOrderInput, priceDelta models.Money, modLines models.ModificationLineList) ([]*models.Refund, error) {
	if !priceDelta.IsNegative() {
		return nil, nil
	}
	if len(input.Refunds) == 0 {
		return nil, ErrRefundPaymentIDMissing
	}
	expected := models.NewMoneyFromDecimal(priceDelta.Decimal.Neg())
	total := decimal.Zero
	perPayment := map[uint]decimal.Decimal{}
	for _, spec := range input.Refunds {
		if spec.PaymentID == 0 {
			return nil, ErrRefundPaymentIDMissing
		}
		amount := spec.Amount.
			AddMoney(spec.ShippingAmount).
			AddMoney(spec.AdjustmentAmount)
		if amount.IsNegative() || amount.IsZero() {
			return nil, ErrRefundStateInvalid
		}
		total = total.Add(amount.Decimal)
		perPayment[spec.PaymentID] = perPayment[spec.PaymentID].Add(amount.Decimal)
	}
	if !total.Equal(expected.Decimal) {
		return nil, &RefundAmountMismatchError{Expected: expected, Actual: models.NewMoneyFromDecimal(total)}
	}

	for paymentID, amount := range perPayment {
		record := order.PaymentByID(paymentID)
		if record == nil {
			return nil, ErrPaymentNotFound
		}
		if record.State != constants.PaymentStateSettled {
			return nil, ErrPaymentStateInvalid
		}
		if amount.GreaterThan(record.RefundableAmount().Decimal) {
			return nil, ErrRefundExceedsSettled
		}
	}

	// 减量的行记录退货数量，挂在第一笔退款上避免重复计数
	var lines []models.RefundLine
	for _, ml := range modLines {
		if ml.RemovedQuantity > 0 && ml.OrderLineID != 0 {
			lines = append(lines, models.RefundLine{
				OrderLineID: ml.OrderLineID,
				Quantity:    ml.RemovedQuantity,
			})
		}
	}

	refunds := make([]*models.Refund, 0, len(input.Refunds))
	for i, spec := range input.Refunds {
		refund := &models.Refund{
			PaymentID:        spec.PaymentID,
			OrderID:          order.ID,
			Amount:           spec.Amount,
			ShippingAmount:   spec.ShippingAmount,
			AdjustmentAmount: spec.AdjustmentAmount,
			State:            constants.RefundStatePending,
			Reason:           spec.Reason,
		}
		if i == 0 {
			refund.Lines = lines
		}
		refunds = append(refunds, refund)
	}
	return refunds, nil
}

func (s *ModificationService) getOrder(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *ModificationService) appendHistory(tx *gorm.DB, orderID uint, entryType string, data models.JSON, adminID uint, isPublic bool) {
	repo := s.historyRepo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	err := repo.Append(&models.HistoryEntry{
		OrderID:         orderID,
		Type:            entryType,
		Data:            data,
		AdministratorID: adminID,
		IsPublic:        isPublic,
	})
	if err != nil {
		logger.Warnw("order_history_append_failed", "order_id", orderID, "type", entryType, "error", err)
	}
}

func (s *ModificationService) publishModified(order *models.Order, modification *models.OrderModification, priceDelta models.Money) {
	if s.queueClient == nil {
		return
	}
	err := s.queueClient.EnqueueOrderModified(queue.OrderModifiedPayload{
		OrderID:        order.ID,
		ModificationID: modification.ID,
		PriceDelta:     priceDelta.String(),
	})
	if err != nil {
		logger.Warnw("enqueue_order_modified_failed", "order_id", order.ID, "error", err)
	}
}
