package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ordernext/internal/models"
)

var (
	// ErrHandlerNotFound 未注册的支付方式
	ErrHandlerNotFound = errors.New("payment handler not found")
	// ErrHandlerDeclined 网关拒绝支付
	ErrHandlerDeclined = errors.New("payment declined by handler")
)

// CreateInput 发起支付输入
type CreateInput struct {
	OrderID   uint
	OrderCode string
	PaymentID uint
	Amount    models.Money
	Currency  string
	Metadata  models.JSON
}

// CreateResult 发起支付结果
type CreateResult struct {
	State         string
	TransactionID string
	Metadata      models.JSON
}

// RefundInput 发起退款输入
type RefundInput struct {
	PaymentID     uint
	RefundID      uint
	TransactionID string
	Amount        models.Money
	Currency      string
	Reason        string
}

// RefundResult 发起退款结果
type RefundResult struct {
	State         string
	TransactionID string
}

// Handler 支付方式处理器；网关对接方实现该接口
type Handler interface {
	Code() string
	CreatePayment(ctx context.Context, input CreateInput) (*CreateResult, error)
	SettlePayment(ctx context.Context, transactionID string) error
	CancelPayment(ctx context.Context, transactionID string) error
	CreateRefund(ctx context.Context, input RefundInput) (*RefundResult, error)
}

// Registry 支付方式注册表
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register 注册处理器；重复注册覆盖
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return errors.New("payment handler is nil")
	}
	code := strings.TrimSpace(h.Code())
	if code == "" {
		return errors.New("payment handler code is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[code] = h
	return nil
}

// Resolve 按方式编码查找处理器
func (r *Registry) Resolve(code string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[strings.TrimSpace(code)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, code)
	}
	return h, nil
}

// Codes 已注册的支付方式编码
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.handlers))
	for code := range r.handlers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
