package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"

	"github.com/google/uuid"
)

// ManualHandler 线下/人工确认支付方式；下单即授权，结算由管理员触发
type ManualHandler struct {
	code string
}

// NewManualHandler 创建人工支付处理器
func NewManualHandler(code string) *ManualHandler {
	if code == "" {
		code = "manual"
	}
	return &ManualHandler{code: code}
}

// Code 支付方式编码
func (h *ManualHandler) Code() string {
	return h.code
}

// CreatePayment 人工方式直接进入已授权状态
func (h *ManualHandler) CreatePayment(ctx context.Context, input CreateInput) (*CreateResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount", ErrHandlerDeclined)
	}
	return &CreateResult{
		State:         constants.PaymentStateAuthorized,
		TransactionID: uuid.NewString(),
		Metadata: models.JSON{
			"handler":    h.code,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// SettlePayment 人工结算无外部调用
func (h *ManualHandler) SettlePayment(ctx context.Context, transactionID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_ = transactionID
	return nil
}

// CancelPayment 人工取消无外部调用
func (h *ManualHandler) CancelPayment(ctx context.Context, transactionID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_ = transactionID
	return nil
}

// CreateRefund 人工退款直接标记为待结算
func (h *ManualHandler) CreateRefund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	_ = input
	return &RefundResult{
		State:         constants.RefundStatePending,
		TransactionID: uuid.NewString(),
	}, nil
}

// DefaultRegistry 内置支付方式注册表
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.Register(NewManualHandler("manual"))
	return registry
}
