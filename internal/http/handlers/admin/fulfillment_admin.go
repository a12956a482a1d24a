package admin

import (
	"github.com/ordernext/internal/http/handlers/shared"
	"github.com/ordernext/internal/http/response"
	"github.com/ordernext/internal/service"

	"github.com/gin-gonic/gin"
)

// FulfillmentLineRequest 履约行
type FulfillmentLineRequest struct {
	OrderLineID uint `json:"order_line_id" binding:"required"`
	Quantity    int  `json:"quantity" binding:"required"`
}

// CreateFulfillmentRequest 创建履约请求
type CreateFulfillmentRequest struct {
	Method       string                   `json:"method"`
	TrackingCode string                   `json:"tracking_code"`
	Lines        []FulfillmentLineRequest `json:"lines" binding:"required"`
}

// CreateFulfillment 为订单创建履约
func (h *Handler) CreateFulfillment(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req CreateFulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	input := service.CreateFulfillmentInput{
		Method:       req.Method,
		TrackingCode: req.TrackingCode,
		AdminID:      adminID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, service.FulfillmentLineSpec{
			OrderLineID: line.OrderLineID,
			Quantity:    line.Quantity,
		})
	}
	fulfillment, err := h.FulfillmentService.CreateFulfillment(orderID, input)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, fulfillment)
}

// ListFulfillments 订单履约列表
func (h *Handler) ListFulfillments(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	fulfillments, err := h.FulfillmentService.ListFulfillments(orderID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, fulfillments)
}

// TransitionFulfillment 执行履约状态迁移
func (h *Handler) TransitionFulfillment(c *gin.Context) {
	fulfillmentID, ok := parseUintParam(c, "fulfillment_id")
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
	fulfillment, err := h.FulfillmentService.TransitionFulfillment(fulfillmentID, req.Target, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, fulfillment)
}

// SuggestedFulfillmentState 履约建议的下一个状态
func (h *Handler) SuggestedFulfillmentState(c *gin.Context) {
	fulfillmentID, ok := parseUintParam(c, "fulfillment_id")
	if !ok {
		return
	}
	next, err := h.FulfillmentService.SuggestedNextState(fulfillmentID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"next": next})
}
