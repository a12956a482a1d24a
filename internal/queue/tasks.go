package queue

import (
	"encoding/json"

	"github.com/ordernext/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderPlaced 下单完成任务
	TaskOrderPlaced = constants.TaskOrderPlaced
	// TaskOrderStateTransition 订单状态变更任务
	TaskOrderStateTransition = constants.TaskOrderStateTransition
	// TaskOrderModified 订单改单任务
	TaskOrderModified = constants.TaskOrderModified
	// TaskPaymentSettled 支付结算任务
	TaskPaymentSettled = constants.TaskPaymentSettled
	// TaskRefundSettled 退款结算任务
	TaskRefundSettled = constants.TaskRefundSettled
)

// OrderPlacedPayload 下单完成任务载荷
type OrderPlacedPayload struct {
	OrderID uint `json:"order_id"`
}

// OrderStateTransitionPayload 订单状态变更任务载荷
type OrderStateTransitionPayload struct {
	OrderID   uint   `json:"order_id"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
}

// OrderModifiedPayload 订单改单任务载荷
type OrderModifiedPayload struct {
	OrderID        uint   `json:"order_id"`
	ModificationID uint   `json:"modification_id"`
	PriceDelta     string `json:"price_delta"`
}

// PaymentSettledPayload 支付结算任务载荷
type PaymentSettledPayload struct {
	OrderID   uint `json:"order_id"`
	PaymentID uint `json:"payment_id"`
}

// RefundSettledPayload 退款结算任务载荷
type RefundSettledPayload struct {
	OrderID  uint `json:"order_id"`
	RefundID uint `json:"refund_id"`
}

// NewOrderPlacedTask 创建下单完成任务
func NewOrderPlacedTask(payload OrderPlacedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPlaced, body), nil
}

// NewOrderStateTransitionTask 创建订单状态变更任务
func NewOrderStateTransitionTask(payload OrderStateTransitionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderStateTransition, body), nil
}

// NewOrderModifiedTask 创建订单改单任务
func NewOrderModifiedTask(payload OrderModifiedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderModified, body), nil
}

// NewPaymentSettledTask 创建支付结算任务
func NewPaymentSettledTask(payload PaymentSettledPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentSettled, body), nil
}

// NewRefundSettledTask 创建退款结算任务
func NewRefundSettledTask(payload RefundSettledPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefundSettled, body), nil
}
