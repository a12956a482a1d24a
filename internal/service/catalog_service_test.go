package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/repository"
	"github.com/ordernext/internal/rules"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newCatalogTestService(t *testing.T) *CatalogService {
	t.Helper()
	dsn := fmt.Sprintf("file:catalog_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	return NewCatalogService(
		repository.NewVariantRepository(db),
		repository.NewPromotionRepository(db),
		repository.NewShippingMethodRepository(db),
		rules.DefaultRegistry(),
	)
}

func TestCreateVariantAndAdjustStock(t *testing.T) {
	svc := newCatalogTestService(t)
	variant := &models.ProductVariant{
		SKU:         "  sku-trim  ",
		Name:        "测试商品",
		Price:       models.NewMoneyFromInt(100),
		Currency:    "usd",
		StockOnHand: 5,
		Enabled:     true,
	}
	if err := svc.CreateVariant(variant); err != nil {
		t.Fatalf("创建变体失败: %v", err)
	}
	if variant.SKU != "sku-trim" || variant.Currency != "USD" {
		t.Fatalf("sku/currency must be normalized, got %q %q", variant.SKU, variant.Currency)
	}

	if err := svc.AdjustStock(variant.ID, -3); err != nil {
		t.Fatalf("调整库存失败: %v", err)
	}
	if err := svc.AdjustStock(variant.ID, -3); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	current, err := svc.GetVariant(variant.ID)
	if err != nil {
		t.Fatalf("获取变体失败: %v", err)
	}
	if current.StockOnHand != 2 {
		t.Fatalf("expected stock 2, got %d", current.StockOnHand)
	}

	if _, err := svc.GetVariant(9999); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected variant not found, got %v", err)
	}
}

func TestCreatePromotionValidatesOperations(t *testing.T) {
	svc := newCatalogTestService(t)

	bad := &models.Promotion{
		Name:    "未知动作",
		Enabled: true,
		Actions: models.OperationConfigList{{Code: "teleport_discount"}},
	}
	if err := svc.CreatePromotion(bad); err == nil {
		t.Fatalf("unknown action code must fail")
	}

	missingArg := &models.Promotion{
		Name:    "缺参数",
		Enabled: true,
		Actions: models.OperationConfigList{{Code: "percentage_discount"}},
	}
	if err := svc.CreatePromotion(missingArg); err == nil {
		t.Fatalf("missing required arg must fail")
	}

	good := &models.Promotion{
		Name:       "满减",
		CouponCode: " SAVE5 ",
		Enabled:    true,
		Conditions: models.OperationConfigList{
			{
				Code: "minimum_order_amount",
				Args: []models.ConfigArg{{Name: "amount", Value: "50"}},
			},
		},
		Actions: models.OperationConfigList{
			{
				Code: "fixed_discount",
				Args: []models.ConfigArg{{Name: "amount", Value: "5"}},
			},
		},
	}
	if err := svc.CreatePromotion(good); err != nil {
		t.Fatalf("创建促销失败: %v", err)
	}
	if good.CouponCode != "SAVE5" {
		t.Fatalf("coupon code must be trimmed, got %q", good.CouponCode)
	}

	enabled, err := svc.ListEnabledPromotions()
	if err != nil {
		t.Fatalf("查询促销失败: %v", err)
	}
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled promotion, got %d", len(enabled))
	}
}

func TestCreateShippingMethodValidatesOperations(t *testing.T) {
	svc := newCatalogTestService(t)

	bad := &models.ShippingMethod{
		Code:       "broken",
		Name:       "坏方式",
		Enabled:    true,
		Checker:    models.OperationConfig{Code: "always_eligible"},
		Calculator: models.OperationConfig{Code: "flat_rate"},
	}
	if err := svc.CreateShippingMethod(bad); err == nil {
		t.Fatalf("flat_rate without rate must fail")
	}

	good := &models.ShippingMethod{
		Code:    " standard ",
		Name:    "标准快递",
		Enabled: true,
		Checker: models.OperationConfig{Code: "always_eligible"},
		Calculator: models.OperationConfig{
			Code: "flat_rate",
			Args: []models.ConfigArg{
				{Name: "rate", Value: "8"},
				{Name: "tax_rate", Value: "10"},
			},
		},
	}
	if err := svc.CreateShippingMethod(good); err != nil {
		t.Fatalf("创建运费方式失败: %v", err)
	}
	if good.Code != "standard" {
		t.Fatalf("code must be trimmed, got %q", good.Code)
	}

	enabled, err := svc.ListEnabledShippingMethods()
	if err != nil {
		t.Fatalf("查询运费方式失败: %v", err)
	}
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled method, got %d", len(enabled))
	}
}
