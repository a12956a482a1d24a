package admin

import (
	"strings"

	"github.com/ordernext/internal/http/handlers/shared"
	"github.com/ordernext/internal/http/response"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/repository"
	"github.com/ordernext/internal/service"

	"github.com/gin-gonic/gin"
)

// AddPaymentRequest 创建支付请求
type AddPaymentRequest struct {
	Method string        `json:"method" binding:"required"`
	Amount *models.Money `json:"amount"`
}

// AddPayment 为订单创建支付
func (h *Handler) AddPayment(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	payment, err := h.PaymentService.AddPayment(orderID, service.AddPaymentInput{
		Method:  req.Method,
		Amount:  req.Amount,
		AdminID: adminID,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, payment)
}

// ListPayments 支付记录列表
func (h *Handler) ListPayments(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter := repository.PaymentListFilter{
		Page:     page,
		PageSize: pageSize,
		State:    strings.TrimSpace(c.Query("state")),
		Method:   strings.TrimSpace(c.Query("method")),
	}
	if orderID := c.Query("order_id"); orderID != "" {
		id, ok := parseUintQuery(c, "order_id")
		if !ok {
			return
		}
		filter.OrderID = id
	}
	payments, total, err := h.PaymentService.ListPayments(filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, payments, response.NewPagination(page, pageSize, total))
}

// SettlePayment 结算支付
func (h *Handler) SettlePayment(c *gin.Context) {
	paymentID, ok := parseUintParam(c, "payment_id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	payment, err := h.PaymentService.SettlePayment(paymentID, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, payment)
}

// CancelPayment 取消支付
func (h *Handler) CancelPayment(c *gin.Context) {
	paymentID, ok := parseUintParam(c, "payment_id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	payment, err := h.PaymentService.CancelPayment(paymentID, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, payment)
}

// DeclinePaymentRequest 拒绝支付请求
type DeclinePaymentRequest struct {
	Message string `json:"message"`
}

// DeclinePayment 标记支付被拒绝
func (h *Handler) DeclinePayment(c *gin.Context) {
	paymentID, ok := parseUintParam(c, "payment_id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req DeclinePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	payment, err := h.PaymentService.DeclinePayment(paymentID, req.Message, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, payment)
}

// RefundLineRequest 退款行
type RefundLineRequest struct {
	OrderLineID uint `json:"order_line_id" binding:"required"`
	Quantity    int  `json:"quantity" binding:"required"`
}

// CreateRefundRequest 创建退款请求
type CreateRefundRequest struct {
	PaymentID        uint                `json:"payment_id" binding:"required"`
	Amount           models.Money        `json:"amount"`
	ShippingAmount   models.Money        `json:"shipping_amount"`
	AdjustmentAmount models.Money        `json:"adjustment_amount"`
	Lines            []RefundLineRequest `json:"lines"`
	Reason           string              `json:"reason"`
}

// CreateRefund 创建退款
func (h *Handler) CreateRefund(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	input := service.CreateRefundInput{
		PaymentID:        req.PaymentID,
		Amount:           req.Amount,
		ShippingAmount:   req.ShippingAmount,
		AdjustmentAmount: req.AdjustmentAmount,
		Reason:           req.Reason,
		AdminID:          adminID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, service.RefundLineSpec{
			OrderLineID: line.OrderLineID,
			Quantity:    line.Quantity,
		})
	}
	refund, err := h.PaymentService.CreateRefund(input)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, refund)
}

// SettleRefund 结算退款
func (h *Handler) SettleRefund(c *gin.Context) {
	refundID, ok := parseUintParam(c, "refund_id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	refund, err := h.PaymentService.SettleRefund(refundID, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, refund)
}

// FailRefundRequest 标记退款失败请求
type FailRefundRequest struct {
	Reason string `json:"reason"`
}

// FailRefund 标记退款失败
func (h *Handler) FailRefund(c *gin.Context) {
	refundID, ok := parseUintParam(c, "refund_id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req FailRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	refund, err := h.PaymentService.FailRefund(refundID, req.Reason, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, refund)
}
