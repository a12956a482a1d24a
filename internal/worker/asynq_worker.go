package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ordernext/internal/cache"
	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/provider"
	"github.com/ordernext/internal/queue"

	"github.com/hibiken/asynq"
)

const orderSnapshotTTL = 30 * time.Minute

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderPlaced, c.handleOrderPlaced)
	mux.HandleFunc(queue.TaskOrderStateTransition, c.handleOrderStateTransition)
	mux.HandleFunc(queue.TaskOrderModified, c.handleOrderModified)
	mux.HandleFunc(queue.TaskPaymentSettled, c.handlePaymentSettled)
	mux.HandleFunc(queue.TaskRefundSettled, c.handleRefundSettled)
}

func orderSnapshotKey(orderID uint) string {
	return fmt.Sprintf("order:snapshot:%d", orderID)
}

func (c *Consumer) refreshOrderSnapshot(ctx context.Context, orderID uint) error {
	order, err := c.OrderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_snapshot_skip_not_found", "order_id", orderID)
		return nil
	}
	return cache.SetJSON(ctx, orderSnapshotKey(orderID), order, orderSnapshotTTL)
}

func (c *Consumer) handleOrderPlaced(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_placed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderPlacedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_placed_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_placed_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if err := c.refreshOrderSnapshot(ctx, payload.OrderID); err != nil {
		logger.Warnw("worker_order_placed_snapshot_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	logger.Infow("worker_order_placed", "order_id", payload.OrderID)
	return nil
}

func (c *Consumer) handleOrderStateTransition(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_state_transition_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderStateTransitionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_state_transition_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_state_transition_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	// 终态订单不再保留快照
	if payload.ToState == constants.OrderStateCancelled || payload.ToState == constants.OrderStateDelivered {
		if err := cache.Del(ctx, orderSnapshotKey(payload.OrderID)); err != nil {
			logger.Warnw("worker_order_state_transition_cache_del_failed", "order_id", payload.OrderID, "error", err)
		}
	} else if err := c.refreshOrderSnapshot(ctx, payload.OrderID); err != nil {
		logger.Warnw("worker_order_state_transition_snapshot_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	logger.Infow("worker_order_state_transition",
		"order_id", payload.OrderID,
		"from_state", payload.FromState,
		"to_state", payload.ToState,
	)
	return nil
}

func (c *Consumer) handleOrderModified(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_modified_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderModifiedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_modified_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_modified_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if err := c.refreshOrderSnapshot(ctx, payload.OrderID); err != nil {
		logger.Warnw("worker_order_modified_snapshot_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	logger.Infow("worker_order_modified",
		"order_id", payload.OrderID,
		"modification_id", payload.ModificationID,
		"price_delta", payload.PriceDelta,
	)
	return nil
}

func (c *Consumer) handlePaymentSettled(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_settled_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentSettledPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_settled_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 || payload.PaymentID == 0 {
		logger.Debugw("worker_payment_settled_skip_invalid_payload", "order_id", payload.OrderID, "payment_id", payload.PaymentID)
		return nil
	}
	payment, err := c.PaymentRepo.GetByID(payload.PaymentID)
	if err != nil {
		logger.Warnw("worker_payment_settled_fetch_failed", "payment_id", payload.PaymentID, "error", err)
		return err
	}
	if payment == nil {
		logger.Debugw("worker_payment_settled_skip_not_found", "payment_id", payload.PaymentID)
		return nil
	}
	if err := c.refreshOrderSnapshot(ctx, payload.OrderID); err != nil {
		logger.Warnw("worker_payment_settled_snapshot_failed", "order_id", payload.OrderID, "error", err)
	}
	logger.Infow("worker_payment_settled",
		"order_id", payload.OrderID,
		"payment_id", payment.ID,
		"method", payment.Method,
		"amount", payment.Amount,
	)
	return nil
}

func (c *Consumer) handleRefundSettled(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_refund_settled_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RefundSettledPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_refund_settled_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 || payload.RefundID == 0 {
		logger.Debugw("worker_refund_settled_skip_invalid_payload", "order_id", payload.OrderID, "refund_id", payload.RefundID)
		return nil
	}
	refund, err := c.RefundRepo.GetByID(payload.RefundID)
	if err != nil {
		logger.Warnw("worker_refund_settled_fetch_failed", "refund_id", payload.RefundID, "error", err)
		return err
	}
	if refund == nil {
		logger.Debugw("worker_refund_settled_skip_not_found", "refund_id", payload.RefundID)
		return nil
	}
	if err := c.refreshOrderSnapshot(ctx, payload.OrderID); err != nil {
		logger.Warnw("worker_refund_settled_snapshot_failed", "order_id", payload.OrderID, "error", err)
	}
	logger.Infow("worker_refund_settled",
		"order_id", payload.OrderID,
		"refund_id", refund.ID,
		"amount", refund.Amount,
	)
	return nil
}
