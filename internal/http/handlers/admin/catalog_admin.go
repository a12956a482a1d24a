package admin

import (
	"github.com/ordernext/internal/http/handlers/shared"
	"github.com/ordernext/internal/http/response"
	"github.com/ordernext/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateVariant 创建商品变体
func (h *Handler) CreateVariant(c *gin.Context) {
	var variant models.ProductVariant
	if err := c.ShouldBindJSON(&variant); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	if variant.SKU == "" || variant.Name == "" {
		response.BadRequest(c, "SKU 与名称不能为空")
		return
	}
	if err := h.CatalogService.CreateVariant(&variant); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, variant)
}

// GetVariant 商品变体详情
func (h *Handler) GetVariant(c *gin.Context) {
	variantID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	variant, err := h.CatalogService.GetVariant(variantID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, variant)
}

// AdjustStockRequest 调整库存请求
type AdjustStockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// AdjustVariantStock 调整商品变体库存
func (h *Handler) AdjustVariantStock(c *gin.Context) {
	variantID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	if err := h.CatalogService.AdjustStock(variantID, req.Delta); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	variant, err := h.CatalogService.GetVariant(variantID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, variant)
}

// CreatePromotion 创建促销规则
func (h *Handler) CreatePromotion(c *gin.Context) {
	var promotion models.Promotion
	if err := c.ShouldBindJSON(&promotion); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	if promotion.Name == "" {
		response.BadRequest(c, "名称不能为空")
		return
	}
	if err := h.CatalogService.CreatePromotion(&promotion); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, promotion)
}

// ListPromotions 启用中的促销规则列表
func (h *Handler) ListPromotions(c *gin.Context) {
	promotions, err := h.CatalogService.ListEnabledPromotions()
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, promotions)
}

// CreateShippingMethod 创建运费方式
func (h *Handler) CreateShippingMethod(c *gin.Context) {
	var method models.ShippingMethod
	if err := c.ShouldBindJSON(&method); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	if method.Code == "" || method.Name == "" {
		response.BadRequest(c, "code 与名称不能为空")
		return
	}
	if err := h.CatalogService.CreateShippingMethod(&method); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, method)
}

// ListShippingMethods 启用中的运费方式列表
func (h *Handler) ListShippingMethods(c *gin.Context) {
	methods, err := h.CatalogService.ListEnabledShippingMethods()
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, methods)
}
