package admin

import (
	"strings"
	"time"

	"github.com/ordernext/internal/http/handlers/shared"
	"github.com/ordernext/internal/http/response"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/repository"
	"github.com/ordernext/internal/service"

	"github.com/gin-gonic/gin"
)

// ListOrders 管理端订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)

	filter := repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		State:    strings.TrimSpace(c.Query("state")),
		Code:     strings.TrimSpace(c.Query("code")),
	}
	if c.Query("active") == "true" {
		filter.ActiveOnly = true
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "created_from 格式错误")
			return
		}
		filter.CreatedFrom = &t
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "created_to 格式错误")
			return
		}
		filter.CreatedTo = &t
	}

	orders, total, err := h.OrderService.ListOrders(filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// GetOrder 管理端订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(orderID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// TransitionRequest 状态迁移请求
type TransitionRequest struct {
	Target string `json:"target" binding:"required"`
}

// TransitionOrder 执行订单状态迁移
func (h *Handler) TransitionOrder(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	order, err := h.OrderService.Transition(orderID, req.Target, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// AllowedTransitions 订单当前合法的后继状态
func (h *Handler) AllowedTransitions(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	states, err := h.OrderService.AllowedTransitions(orderID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"allowed": states})
}

// RecalculateOrder 重算订单金额
func (h *Handler) RecalculateOrder(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.Recalculate(orderID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// CouponRequest 优惠码请求
type CouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCoupon 管理端为订单应用优惠码
func (h *Handler) ApplyCoupon(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	order, err := h.OrderService.ApplyCoupon(orderID, req.Code, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// RemoveCoupon 管理端移除订单优惠码
func (h *Handler) RemoveCoupon(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "参数 code 非法")
		return
	}
	order, err := h.OrderService.RemoveCoupon(orderID, code, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// SurchargeRequest 附加费请求
type SurchargeRequest struct {
	Description      string       `json:"description" binding:"required"`
	Price            models.Money `json:"price"`
	TaxRate          models.Money `json:"tax_rate"`
	PriceIncludesTax bool         `json:"price_includes_tax"`
}

// AddSurcharge 为订单添加附加费
func (h *Handler) AddSurcharge(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req SurchargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	order, err := h.OrderService.AddSurcharge(orderID, service.AddSurchargeInput{
		Description:      req.Description,
		Price:            req.Price,
		TaxRate:          req.TaxRate,
		PriceIncludesTax: req.PriceIncludesTax,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// RemoveSurcharge 移除订单附加费
func (h *Handler) RemoveSurcharge(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	surchargeID, ok := parseUintParam(c, "surcharge_id")
	if !ok {
		return
	}
	order, err := h.OrderService.RemoveSurcharge(orderID, surchargeID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// SetCustomerRequest 设置客户信息请求
type SetCustomerRequest struct {
	CustomerID uint   `json:"customer_id"`
	Email      string `json:"email" binding:"required"`
}

// SetOrderCustomer 设置订单客户信息
func (h *Handler) SetOrderCustomer(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req SetCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	order, err := h.OrderService.SetCustomer(orderID, service.SetCustomerInput{
		CustomerID: req.CustomerID,
		Email:      req.Email,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// SetOrderShippingAddress 设置订单收货地址
func (h *Handler) SetOrderShippingAddress(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var address models.Address
	if err := c.ShouldBindJSON(&address); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	order, err := h.OrderService.SetShippingAddress(orderID, address)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// SetOrderBillingAddress 设置订单账单地址
func (h *Handler) SetOrderBillingAddress(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var address models.Address
	if err := c.ShouldBindJSON(&address); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	order, err := h.OrderService.SetBillingAddress(orderID, address)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// ListHistory 订单历史列表
func (h *Handler) ListHistory(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	page, pageSize := shared.ParsePagination(c)
	entries, total, err := h.HistoryService.List(repository.HistoryListFilter{
		Page:     page,
		PageSize: pageSize,
		OrderID:  orderID,
		Type:     strings.TrimSpace(c.Query("type")),
		SortDesc: c.Query("sort") == "desc",
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, entries, response.NewPagination(page, pageSize, total))
}

// NoteRequest 订单备注请求
type NoteRequest struct {
	Note     string `json:"note" binding:"required"`
	IsPublic bool   `json:"is_public"`
}

// AddNote 添加订单备注
func (h *Handler) AddNote(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	entry, err := h.HistoryService.AddNote(orderID, req.Note, req.IsPublic, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, entry)
}

// UpdateNote 更新订单备注
func (h *Handler) UpdateNote(c *gin.Context) {
	entryID, ok := parseUintParam(c, "entry_id")
	if !ok {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	entry, err := h.HistoryService.UpdateNote(entryID, req.Note, req.IsPublic)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, entry)
}

// DeleteNote 删除订单备注
func (h *Handler) DeleteNote(c *gin.Context) {
	entryID, ok := parseUintParam(c, "entry_id")
	if !ok {
		return
	}
	if err := h.HistoryService.DeleteNote(entryID); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, nil)
}
