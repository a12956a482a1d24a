package public

import (
	"strings"

	"github.com/ordernext/internal/http/handlers/shared"
	"github.com/ordernext/internal/http/response"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateCartRequest 创建购物车请求
type CreateCartRequest struct {
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
}

// CreateCart 创建（或复用）会话草稿订单
func (h *Handler) CreateCart(c *gin.Context) {
	token, ok := getSessionToken(c)
	if !ok {
		return
	}
	var req CreateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "参数错误")
		return
	}
	order, err := h.OrderService.CreateDraft(service.CreateDraftInput{
		SessionToken:  token,
		Currency:      req.Currency,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// GetCart 获取会话当前的草稿订单
func (h *Handler) GetCart(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	response.Success(c, order)
}

// AddLineRequest 加购请求
type AddLineRequest struct {
	VariantID    uint        `json:"variant_id" binding:"required"`
	Quantity     int         `json:"quantity" binding:"required"`
	CustomFields models.JSON `json:"custom_fields"`
}

// AddCartLine 向购物车添加商品行
func (h *Handler) AddCartLine(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	var req AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	updated, err := h.OrderService.AddLine(order.ID, req.VariantID, req.Quantity, req.CustomFields)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// AdjustLineRequest 调整行数量请求
type AdjustLineRequest struct {
	Quantity int `json:"quantity"`
}

// AdjustCartLine 调整购物车行数量；0 表示移除
func (h *Handler) AdjustCartLine(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	lineID, ok := parseUintParam(c, "line_id")
	if !ok {
		return
	}
	var req AdjustLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	updated, err := h.OrderService.AdjustLine(order.ID, lineID, req.Quantity)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// RemoveCartLine 移除购物车行
func (h *Handler) RemoveCartLine(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	lineID, ok := parseUintParam(c, "line_id")
	if !ok {
		return
	}
	updated, err := h.OrderService.RemoveLine(order.ID, lineID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// SetCustomerRequest 设置客户信息请求
type SetCustomerRequest struct {
	Email string `json:"email" binding:"required"`
}

// SetCartCustomer 设置购物车客户信息
func (h *Handler) SetCartCustomer(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	var req SetCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	updated, err := h.OrderService.SetCustomer(order.ID, service.SetCustomerInput{Email: req.Email})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// SetCartShippingAddress 设置购物车收货地址
func (h *Handler) SetCartShippingAddress(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	var address models.Address
	if err := c.ShouldBindJSON(&address); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	updated, err := h.OrderService.SetShippingAddress(order.ID, address)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// SetCartBillingAddress 设置购物车账单地址
func (h *Handler) SetCartBillingAddress(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	var address models.Address
	if err := c.ShouldBindJSON(&address); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	updated, err := h.OrderService.SetBillingAddress(order.ID, address)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// EligibleShippingMethods 当前购物车可选的运费方式
func (h *Handler) EligibleShippingMethods(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	methods, err := h.OrderService.EligibleShippingMethods(order.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, methods)
}

// SetShippingMethodRequest 选择运费方式请求
type SetShippingMethodRequest struct {
	ShippingMethodID uint `json:"shipping_method_id" binding:"required"`
}

// SetCartShippingMethod 选择运费方式
func (h *Handler) SetCartShippingMethod(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	var req SetShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	updated, err := h.OrderService.SetShippingMethod(order.ID, req.ShippingMethodID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// CouponRequest 优惠码请求
type CouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCartCoupon 应用优惠码
func (h *Handler) ApplyCartCoupon(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	updated, err := h.OrderService.ApplyCoupon(order.ID, req.Code, 0)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// RemoveCartCoupon 移除优惠码
func (h *Handler) RemoveCartCoupon(c *gin.Context) {
	order, ok := h.activeOrder(c)
	if !ok {
		return
	}
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "参数 code 非法")
		return
	}
	updated, err := h.OrderService.RemoveCoupon(order.ID, code, 0)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

func (h *Handler) activeOrder(c *gin.Context) (*models.Order, bool) {
	token, ok := getSessionToken(c)
	if !ok {
		return nil, false
	}
	order, err := h.OrderService.GetActiveOrderBySession(token)
	if err != nil {
		shared.RespondServiceError(c, err)
		return nil, false
	}
	return order, true
}
