package admin

import (
	"github.com/ordernext/internal/http/handlers/shared"
	"github.com/ordernext/internal/http/response"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/service"

	"github.com/gin-gonic/gin"
)

// ModifyLineRequest 改单新增行
type ModifyLineRequest struct {
	VariantID    uint        `json:"variant_id" binding:"required"`
	Quantity     int         `json:"quantity" binding:"required"`
	CustomFields models.JSON `json:"custom_fields"`
}

// AdjustLineRequest 改单调整行数量；custom_fields 非 null 时覆盖自定义字段
type AdjustLineRequest struct {
	OrderLineID  uint        `json:"order_line_id" binding:"required"`
	Quantity     int         `json:"quantity"`
	CustomFields models.JSON `json:"custom_fields"`
}

// ModifyRefundRequest 改单退款指令
type ModifyRefundRequest struct {
	PaymentID        uint         `json:"payment_id"`
	Amount           models.Money `json:"amount"`
	ShippingAmount   models.Money `json:"shipping_amount"`
	AdjustmentAmount models.Money `json:"adjustment_amount"`
	Reason           string       `json:"reason"`
}

// ModifyOrderRequest 改单请求
type ModifyOrderRequest struct {
	Note                string                `json:"note"`
	ExpectedVersion     uint                  `json:"expected_version"`
	AddLines            []ModifyLineRequest   `json:"add_lines"`
	AdjustLines         []AdjustLineRequest   `json:"adjust_lines"`
	Surcharges          []SurchargeRequest    `json:"surcharges"`
	RemoveSurchargeIDs  []uint                `json:"remove_surcharge_ids"`
	SetCouponCodes      []string              `json:"set_coupon_codes"`
	ApplyCouponCodes    []string              `json:"apply_coupon_codes"`
	RemoveCouponCodes   []string              `json:"remove_coupon_codes"`
	ShippingMethodID    *uint                 `json:"shipping_method_id"`
	ShippingAddress     *models.Address       `json:"shipping_address"`
	BillingAddress      *models.Address       `json:"billing_address"`
	RecalculateShipping bool                  `json:"recalculate_shipping"`
	Refunds             []ModifyRefundRequest `json:"refunds"`
}

func (req ModifyOrderRequest) toInput(adminID uint) service.ModifyOrderInput {
	input := service.ModifyOrderInput{
		Note:                req.Note,
		ExpectedVersion:     req.ExpectedVersion,
		RemoveSurchargeIDs:  req.RemoveSurchargeIDs,
		SetCouponCodes:      req.SetCouponCodes,
		ApplyCouponCodes:    req.ApplyCouponCodes,
		RemoveCouponCodes:   req.RemoveCouponCodes,
		ShippingMethodID:    req.ShippingMethodID,
		ShippingAddress:     req.ShippingAddress,
		BillingAddress:      req.BillingAddress,
		RecalculateShipping: req.RecalculateShipping,
		AdminID:             adminID,
	}
	for _, line := range req.AddLines {
		input.AddLines = append(input.AddLines, service.AddLineSpec{
			VariantID:    line.VariantID,
			Quantity:     line.Quantity,
			CustomFields: line.CustomFields,
		})
	}
	for _, line := range req.AdjustLines {
		input.AdjustLines = append(input.AdjustLines, service.AdjustLineSpec{
			OrderLineID:  line.OrderLineID,
			Quantity:     line.Quantity,
			CustomFields: line.CustomFields,
		})
	}
	for _, surcharge := range req.Surcharges {
		input.Surcharges = append(input.Surcharges, service.SurchargeSpec{
			Description:      surcharge.Description,
			Price:            surcharge.Price,
			TaxRate:          surcharge.TaxRate,
			PriceIncludesTax: surcharge.PriceIncludesTax,
		})
	}
	for _, refund := range req.Refunds {
		input.Refunds = append(input.Refunds, service.RefundSpec{
			PaymentID:        refund.PaymentID,
			Amount:           refund.Amount,
			ShippingAmount:   refund.ShippingAmount,
			AdjustmentAmount: refund.AdjustmentAmount,
			Reason:           refund.Reason,
		})
	}
	return input
}

// BeginModification 将订单转入改单状态
func (h *Handler) BeginModification(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	order, err := h.ModificationService.Begin(orderID, adminID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// PreviewModification 试算改单结果，不落库
func (h *Handler) PreviewModification(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req ModifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	result, err := h.ModificationService.Preview(orderID, req.toInput(adminID))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order":       result.Order,
		"price_delta": result.PriceDelta,
	})
}

// CommitModification 提交改单
func (h *Handler) CommitModification(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req ModifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	result, err := h.ModificationService.Modify(orderID, req.toInput(adminID))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order":        result.Order,
		"modification": result.Modification,
		"price_delta":  result.PriceDelta,
		"refunds":      result.Refunds,
	})
}
