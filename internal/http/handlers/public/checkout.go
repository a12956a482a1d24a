package public

import (
	"strings"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/http/handlers/shared"
	"github.com/ordernext/internal/http/response"
	"github.com/ordernext/internal/repository"
	"github.com/ordernext/internal/service"

	"github.com/gin-gonic/gin"
)

// PlaceOrder 提交购物车转为待付款订单
func (h *Handler) PlaceOrder(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	placed, err := h.OrderService.Transition(order.ID, constants.OrderStateArrangingPayment, 0)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, placed)
}

// PayOrderRequest 支付请求
type PayOrderRequest struct {
	Method string `json:"method" binding:"required"`
}

// PayOrder 为待付款订单发起支付
func (h *Handler) PayOrder(c *gin.Context) {
	token, ok := getSessionToken(c)
	if !ok {
		return
	}
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "参数 code 非法")
		return
	}
	var req PayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	order, err := h.OrderService.GetOrderByCode(code)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	if order.SessionToken != token {
		response.NotFound(c, "订单不存在")
		return
	}
	payment, err := h.PaymentService.AddPayment(order.ID, service.AddPaymentInput{Method: req.Method})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, payment)
}

// GetOrderByCode 按订单号查询订单（仅限本会话）
func (h *Handler) GetOrderByCode(c *gin.Context) {
	token, ok := getSessionToken(c)
	if !ok {
		return
	}
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "参数 code 非法")
		return
	}
	order, err := h.OrderService.GetOrderByCode(code)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	if order.SessionToken != token {
		response.NotFound(c, "订单不存在")
		return
	}
	entries, _, err := h.HistoryService.List(repository.HistoryListFilter{
		Page:       1,
		PageSize:   100,
		OrderID:    order.ID,
		PublicOnly: true,
		SortDesc:   true,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order":   order,
		"history": entries,
	})
}

// PaymentMethods 可用支付方式列表
func (h *Handler) PaymentMethods(c *gin.Context) {
	response.Success(c, gin.H{"methods": h.PaymentRegistry.Codes()})
}
