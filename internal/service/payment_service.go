package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/orderstate"
	"github.com/ordernext/internal/payment"
	"github.com/ordernext/internal/queue"
	"github.com/ordernext/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentService 支付/退款编排服务
type PaymentService struct {
	orderRepo        repository.OrderRepository
	paymentRepo      repository.PaymentRepository
	refundRepo       repository.RefundRepository
	historyRepo      repository.HistoryRepository
	modificationRepo repository.ModificationRepository
	registry         *payment.Registry
	queueClient      *queue.Client
	machine          *orderstate.Machine
	gatewayTimeout   time.Duration
}

// NewPaymentService 创建支付服务
func NewPaymentService(orderRepo repository.OrderRepository, paymentRepo repository.PaymentRepository, refundRepo repository.RefundRepository, historyRepo repository.HistoryRepository, modificationRepo repository.ModificationRepository, registry *payment.Registry, queueClient *queue.Client, gatewayTimeoutSeconds int) *PaymentService {
	if gatewayTimeoutSeconds <= 0 {
		gatewayTimeoutSeconds = 30
	}
	return &PaymentService{
		orderRepo:        orderRepo,
		paymentRepo:      paymentRepo,
		refundRepo:       refundRepo,
		historyRepo:      historyRepo,
		modificationRepo: modificationRepo,
		registry:         registry,
		queueClient:      queueClient,
		machine:          orderstate.DefaultMachine(),
		gatewayTimeout:   time.Duration(gatewayTimeoutSeconds) * time.Second,
	}
}

// AddPaymentInput 添加支付输入
type AddPaymentInput struct {
	Method  string
	Amount  *models.Money // nil 表示支付全部未付金额
	AdminID uint
}

// AddPayment 为待付款订单创建支付；金额覆盖应付后推进订单状态
func (s *PaymentService) AddPayment(orderID uint, input AddPaymentInput) (*models.Payment, error) {
	method := strings.TrimSpace(input.Method)
	if method == "" {
		return nil, ErrPaymentMethodMissing
	}
	handler, err := s.registry.Resolve(method)
	if err != nil {
		return nil, err
	}

	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != constants.OrderStateArrangingPayment &&
		order.State != constants.OrderStateArrangingAdditionalPayment {
		return nil, ErrPaymentStateInvalid
	}

	outstanding := s.outstandingAmount(order)
	amount := outstanding
	if input.Amount != nil {
		amount = *input.Amount
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, ErrPaymentStateInvalid
	}
	if amount.GreaterThan(outstanding.Decimal) {
		return nil, ErrPaymentAmountExceedsDue
	}

	record := &models.Payment{
		OrderID:  order.ID,
		Method:   method,
		Amount:   amount,
		Currency: order.Currency,
		State:    constants.PaymentStateCreated,
	}
	if err := s.paymentRepo.Create(record); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.gatewayTimeout)
	defer cancel()
	result, err := handler.CreatePayment(ctx, payment.CreateInput{
		OrderID:   order.ID,
		OrderCode: order.Code,
		PaymentID: record.ID,
		Amount:    amount,
		Currency:  order.Currency,
	})
	if err != nil {
		msg := err.Error()
		_ = s.paymentRepo.UpdateState(record.ID, constants.PaymentStateError, map[string]interface{}{
			"error_message": msg,
		})
		record.State = constants.PaymentStateError
		record.ErrorMessage = msg
		return record, err
	}

	updates := map[string]interface{}{
		"transaction_id": result.TransactionID,
	}
	if len(result.Metadata) > 0 {
		updates["metadata"] = result.Metadata
	}
	state := result.State
	if state == "" {
		state = constants.PaymentStateCreated
	}
	var settledAt *time.Time
	if state == constants.PaymentStateSettled {
		now := time.Now()
		settledAt = &now
		updates["settled_at"] = settledAt
	}
	if err := s.paymentRepo.UpdateState(record.ID, state, updates); err != nil {
		return nil, err
	}
	record.State = state
	record.TransactionID = result.TransactionID
	record.Metadata = result.Metadata
	record.SettledAt = settledAt

	s.appendHistory(order.ID, constants.HistoryTypePaymentTransition, models.JSON{
		"payment_id": record.ID,
		"method":     method,
		"amount":     amount.String(),
		"to":         state,
	}, input.AdminID, false)

	// 补款支付回填到触发它的改单记录
	if order.State == constants.OrderStateArrangingAdditionalPayment &&
		(state == constants.PaymentStateAuthorized || state == constants.PaymentStateSettled) &&
		s.modificationRepo != nil {
		if err := s.modificationRepo.LinkPayment(order.ID, record.ID); err != nil {
			logger.Warnw("modification_link_payment_failed", "order_id", order.ID, "payment_id", record.ID, "error", err)
		}
	}

	if err := s.advanceOrderAfterPayment(order.ID); err != nil {
		return nil, err
	}
	return record, nil
}

// SettlePayment 结算支付并推进订单状态
func (s *PaymentService) SettlePayment(paymentID uint, adminID uint) (*models.Payment, error) {
	record, err := s.getPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if record.State != constants.PaymentStateCreated && record.State != constants.PaymentStateAuthorized {
		return nil, ErrPaymentStateInvalid
	}

	handler, err := s.registry.Resolve(record.Method)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.gatewayTimeout)
	defer cancel()
	if err := handler.SettlePayment(ctx, record.TransactionID); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.paymentRepo.UpdateState(record.ID, constants.PaymentStateSettled, map[string]interface{}{
		"settled_at": &now,
	}); err != nil {
		return nil, err
	}
	from := record.State
	record.State = constants.PaymentStateSettled
	record.SettledAt = &now

	s.appendHistory(record.OrderID, constants.HistoryTypePaymentTransition, models.JSON{
		"payment_id": record.ID,
		"from":       from,
		"to":         record.State,
	}, adminID, false)

	if s.queueClient != nil {
		if err := s.queueClient.EnqueuePaymentSettled(queue.PaymentSettledPayload{
			OrderID:   record.OrderID,
			PaymentID: record.ID,
		}); err != nil {
			logger.Warnw("enqueue_payment_settled_failed", "payment_id", record.ID, "error", err)
		}
	}

	if err := s.advanceOrderAfterPayment(record.OrderID); err != nil {
		return nil, err
	}
	return record, nil
}

// CancelPayment 取消未结算的支付
func (s *PaymentService) CancelPayment(paymentID uint, adminID uint) (*models.Payment, error) {
	record, err := s.getPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if record.State != constants.PaymentStateCreated && record.State != constants.PaymentStateAuthorized {
		return nil, ErrPaymentStateInvalid
	}

	handler, err := s.registry.Resolve(record.Method)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.gatewayTimeout)
	defer cancel()
	if err := handler.CancelPayment(ctx, record.TransactionID); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.UpdateState(record.ID, constants.PaymentStateCancelled, nil); err != nil {
		return nil, err
	}
	from := record.State
	record.State = constants.PaymentStateCancelled
	s.appendHistory(record.OrderID, constants.HistoryTypePaymentTransition, models.JSON{
		"payment_id": record.ID,
		"from":       from,
		"to":         record.State,
	}, adminID, false)
	return record, nil
}

// DeclinePayment 标记支付被网关拒绝
func (s *PaymentService) DeclinePayment(paymentID uint, message string, adminID uint) (*models.Payment, error) {
	record, err := s.getPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if record.State != constants.PaymentStateCreated && record.State != constants.PaymentStateAuthorized {
		return nil, ErrPaymentStateInvalid
	}
	if err := s.paymentRepo.UpdateState(record.ID, constants.PaymentStateDeclined, map[string]interface{}{
		"error_message": message,
	}); err != nil {
		return nil, err
	}
	from := record.State
	record.State = constants.PaymentStateDeclined
	record.ErrorMessage = message
	s.appendHistory(record.OrderID, constants.HistoryTypePaymentTransition, models.JSON{
		"payment_id": record.ID,
		"from":       from,
		"to":         record.State,
	}, adminID, false)
	return record, nil
}

// RefundLineSpec 退款行输入
type RefundLineSpec struct {
	OrderLineID uint
	Quantity    int
}

// CreateRefundInput 创建退款输入
type CreateRefundInput struct {
	PaymentID        uint
	Amount           models.Money
	ShippingAmount   models.Money
	AdjustmentAmount models.Money
	Lines            []RefundLineSpec
	Reason           string
	AdminID          uint
}

// CreateRefund 针对已结算支付创建退款；行数量计入已退款额度
func (s *PaymentService) CreateRefund(input CreateRefundInput) (*models.Refund, error) {
	if input.PaymentID == 0 {
		return nil, ErrRefundPaymentIDMissing
	}
	record, err := s.getPayment(input.PaymentID)
	if err != nil {
		return nil, err
	}
	if record.State != constants.PaymentStateSettled {
		return nil, ErrPaymentStateInvalid
	}

	total := input.Amount.AddMoney(input.ShippingAmount).AddMoney(input.AdjustmentAmount)
	if total.IsNegative() || total.IsZero() {
		return nil, ErrRefundStateInvalid
	}
	if total.GreaterThan(record.RefundableAmount().Decimal) {
		return nil, ErrRefundExceedsSettled
	}

	order, err := s.getOrder(record.OrderID)
	if err != nil {
		return nil, err
	}

	refund := &models.Refund{
		PaymentID:        record.ID,
		OrderID:          order.ID,
		Amount:           input.Amount,
		ShippingAmount:   input.ShippingAmount,
		AdjustmentAmount: input.AdjustmentAmount,
		State:            constants.RefundStatePending,
		Reason:           input.Reason,
	}

	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		for _, spec := range input.Lines {
			if spec.Quantity <= 0 {
				return ErrNegativeQuantity
			}
			line := order.LineByID(spec.OrderLineID)
			if line == nil {
				return ErrOrderLineNotFound
			}
			if spec.Quantity > line.RefundableQuantity() {
				return ErrRefundLineExceedsHeadroom
			}
			line.RefundedQuantity += spec.Quantity
			if err := orderRepo.SaveLine(line); err != nil {
				return err
			}
			refund.Lines = append(refund.Lines, models.RefundLine{
				OrderLineID: line.ID,
				Quantity:    spec.Quantity,
			})
		}
		return s.refundRepo.WithTx(tx).Create(refund)
	})
	if err != nil {
		return nil, err
	}

	s.appendHistory(order.ID, constants.HistoryTypeRefundTransition, models.JSON{
		"refund_id":  refund.ID,
		"payment_id": record.ID,
		"amount":     total.String(),
		"to":         refund.State,
	}, input.AdminID, false)
	return refund, nil
}

// SettleRefund 结算退款
func (s *PaymentService) SettleRefund(refundID uint, adminID uint) (*models.Refund, error) {
	refund, err := s.getRefund(refundID)
	if err != nil {
		return nil, err
	}
	if refund.State != constants.RefundStatePending {
		return nil, ErrRefundStateInvalid
	}

	record, err := s.getPayment(refund.PaymentID)
	if err != nil {
		return nil, err
	}
	handler, err := s.registry.Resolve(record.Method)
	if err != nil {
		return nil, err
	}
	total := refund.Amount.AddMoney(refund.ShippingAmount).AddMoney(refund.AdjustmentAmount)
	ctx, cancel := context.WithTimeout(context.Background(), s.gatewayTimeout)
	defer cancel()
	result, err := handler.CreateRefund(ctx, payment.RefundInput{
		PaymentID:     record.ID,
		RefundID:      refund.ID,
		TransactionID: record.TransactionID,
		Amount:        total,
		Currency:      record.Currency,
		Reason:        refund.Reason,
	})
	if err != nil {
		_ = s.refundRepo.UpdateState(refund.ID, constants.RefundStateFailed, nil)
		refund.State = constants.RefundStateFailed
		return refund, err
	}

	if err := s.refundRepo.UpdateState(refund.ID, constants.RefundStateSettled, map[string]interface{}{
		"transaction_id": result.TransactionID,
	}); err != nil {
		return nil, err
	}
	refund.State = constants.RefundStateSettled
	refund.TransactionID = result.TransactionID

	s.appendHistory(refund.OrderID, constants.HistoryTypeRefundTransition, models.JSON{
		"refund_id": refund.ID,
		"from":      constants.RefundStatePending,
		"to":        refund.State,
	}, adminID, false)

	if s.queueClient != nil {
		if err := s.queueClient.EnqueueRefundSettled(queue.RefundSettledPayload{
			OrderID:  refund.OrderID,
			RefundID: refund.ID,
		}); err != nil {
			logger.Warnw("enqueue_refund_settled_failed", "refund_id", refund.ID, "error", err)
		}
	}
	return refund, nil
}

// FailRefund 标记退款失败；失败退款不占用可退额度
func (s *PaymentService) FailRefund(refundID uint, reason string, adminID uint) (*models.Refund, error) {
	refund, err := s.getRefund(refundID)
	if err != nil {
		return nil, err
	}
	if refund.State != constants.RefundStatePending {
		return nil, ErrRefundStateInvalid
	}
	updates := map[string]interface{}{}
	if reason != "" {
		updates["reason"] = reason
	}
	if err := s.refundRepo.UpdateState(refund.ID, constants.RefundStateFailed, updates); err != nil {
		return nil, err
	}
	refund.State = constants.RefundStateFailed
	s.appendHistory(refund.OrderID, constants.HistoryTypeRefundTransition, models.JSON{
		"refund_id": refund.ID,
		"from":      constants.RefundStatePending,
		"to":        refund.State,
	}, adminID, false)
	return refund, nil
}

// ListPayments 支付列表
func (s *PaymentService) ListPayments(filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	filter.Page, filter.PageSize = repository.NormalizePagination(filter.Page, filter.PageSize)
	return s.paymentRepo.List(filter)
}

// outstandingAmount 订单尚未被支付覆盖的含税金额
func (s *PaymentService) outstandingAmount(order *models.Order) models.Money {
	covered := decimal.Zero
	for _, p := range order.Payments {
		switch p.State {
		case constants.PaymentStateAuthorized, constants.PaymentStateSettled:
			covered = covered.Add(p.Amount.Decimal)
		}
	}
	outstanding := order.TotalWithTax.Decimal.Sub(covered)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	return models.NewMoneyFromDecimal(outstanding)
}

// advanceOrderAfterPayment 支付覆盖应付后推进订单状态
func (s *PaymentService) advanceOrderAfterPayment(orderID uint) error {
	order, err := s.getOrder(orderID)
	if err != nil {
		return err
	}
	if !s.outstandingAmount(order).IsZero() {
		return nil
	}

	allSettled := true
	anyCovered := false
	for _, p := range order.Payments {
		switch p.State {
		case constants.PaymentStateSettled:
			anyCovered = true
		case constants.PaymentStateAuthorized:
			anyCovered = true
			allSettled = false
		}
	}
	if !anyCovered {
		return nil
	}

	var target string
	switch order.State {
	case constants.OrderStateArrangingPayment:
		if allSettled {
			target = constants.OrderStatePaymentSettled
		} else {
			target = constants.OrderStatePaymentAuthorized
		}
	case constants.OrderStateArrangingAdditionalPayment:
		// 补款完成回到改单前的状态
		target = order.ReturnState
		if target == "" {
			target = constants.OrderStatePaymentSettled
		}
	case constants.OrderStatePaymentAuthorized:
		if allSettled {
			target = constants.OrderStatePaymentSettled
		}
	}
	if target == "" || target == order.State {
		return nil
	}

	from := order.State
	if err := s.machine.Transition(order, target); err != nil {
		logger.Warnw("order_advance_after_payment_failed", "order_id", order.ID, "target", target, "error", err)
		return nil
	}
	if err := s.orderRepo.SaveWithVersion(order); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return ErrOrderVersionConflict
		}
		return err
	}
	s.appendHistory(order.ID, constants.HistoryTypeStateTransition, models.JSON{
		"from": from,
		"to":   target,
	}, 0, true)
	if s.queueClient != nil {
		if err := s.queueClient.EnqueueOrderStateTransition(queue.OrderStateTransitionPayload{
			OrderID:   order.ID,
			FromState: from,
			ToState:   target,
		}); err != nil {
			logger.Warnw("enqueue_order_state_transition_failed", "order_id", order.ID, "error", err)
		}
	}
	return nil
}

func (s *PaymentService) getOrder(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *PaymentService) getPayment(paymentID uint) (*models.Payment, error) {
	record, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrPaymentNotFound
	}
	return record, nil
}

func (s *PaymentService) getRefund(refundID uint) (*models.Refund, error) {
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	return refund, nil
}

func (s *PaymentService) appendHistory(orderID uint, entryType string, data models.JSON, adminID uint, isPublic bool) {
	err := s.historyRepo.Append(&models.HistoryEntry{
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
