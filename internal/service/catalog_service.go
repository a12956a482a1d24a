package service

import (
	"strings"

	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/repository"
	"github.com/ordernext/internal/rules"
)

// CatalogService 商品/促销/运费方式的管理端维护入口
type CatalogService struct {
	variantRepo   repository.VariantRepository
	promotionRepo repository.PromotionRepository
	shippingRepo  repository.ShippingMethodRepository
	registry      *rules.Registry
}

// NewCatalogService 创建目录服务
func NewCatalogService(variantRepo repository.VariantRepository, promotionRepo repository.PromotionRepository, shippingRepo repository.ShippingMethodRepository, registry *rules.Registry) *CatalogService {
	return &CatalogService{
		variantRepo:   variantRepo,
		promotionRepo: promotionRepo,
		shippingRepo:  shippingRepo,
		registry:      registry,
	}
}

// CreateVariant 创建商品变体
func (s *CatalogService) CreateVariant(variant *models.ProductVariant) error {
	variant.SKU = strings.TrimSpace(variant.SKU)
	variant.Currency = strings.ToUpper(strings.TrimSpace(variant.Currency))
	return s.variantRepo.Create(variant)
}

// GetVariant 获取商品变体
func (s *CatalogService) GetVariant(id uint) (*models.ProductVariant, error) {
	variant, err := s.variantRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	return variant, nil
}

// AdjustStock 调整变体库存
func (s *CatalogService) AdjustStock(id uint, delta int) error {
	if err := s.variantRepo.AdjustStock(id, delta); err != nil {
		if err == repository.ErrInsufficientStock {
			return ErrInsufficientStock
		}
		return err
	}
	return nil
}

// CreatePromotion 创建促销规则；条件和动作的配置必须能通过注册表校验
func (s *CatalogService) CreatePromotion(promotion *models.Promotion) error {
	for _, cfg := range promotion.Conditions {
		op, err := s.registry.Condition(cfg.Code)
		if err != nil {
			return err
		}
		if err := rules.ValidateArgs(op, cfg); err != nil {
			return err
		}
	}
	for _, cfg := range promotion.Actions {
		op, err := s.registry.Action(cfg.Code)
		if err != nil {
			return err
		}
		if err := rules.ValidateArgs(op, cfg); err != nil {
			return err
		}
	}
	promotion.CouponCode = strings.TrimSpace(promotion.CouponCode)
	return s.promotionRepo.Create(promotion)
}

// ListEnabledPromotions 启用中的促销规则
func (s *CatalogService) ListEnabledPromotions() ([]models.Promotion, error) {
	return s.promotionRepo.ListEnabled()
}

// CreateShippingMethod 创建运费方式；检查器和计算器配置必须合法
func (s *CatalogService) CreateShippingMethod(method *models.ShippingMethod) error {
	checker, err := s.registry.Checker(method.Checker.Code)
	if err != nil {
		return err
	}
	if err := rules.ValidateArgs(checker, method.Checker); err != nil {
		return err
	}
	calculator, err := s.registry.Calculator(method.Calculator.Code)
	if err != nil {
		return err
	}
	if err := rules.ValidateArgs(calculator, method.Calculator); err != nil {
		return err
	}
	method.Code = strings.TrimSpace(method.Code)
	return s.shippingRepo.Create(method)
}

// ListEnabledShippingMethods 启用中的运费方式
func (s *CatalogService) ListEnabledShippingMethods() ([]models.ShippingMethod, error) {
	return s.shippingRepo.ListEnabled()
}
