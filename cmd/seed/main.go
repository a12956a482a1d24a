package main

import (
	"github.com/ordernext/internal/config"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 商品变体
	variants := []models.ProductVariant{
		{
			SKU:         "EARBUDS-BLK",
			Name:        "无线蓝牙耳机 黑色",
			Price:       models.NewMoneyFromDecimal(decimal.NewFromFloat(99.99)),
			Currency:    "USD",
			TaxRate:     models.NewMoneyFromInt(10),
			StockOnHand: 200,
			Enabled:     true,
		},
		{
			SKU:         "WATCH-SLV",
			Name:        "智能手表 银色",
			Price:       models.NewMoneyFromDecimal(decimal.NewFromFloat(199.00)),
			Currency:    "USD",
			TaxRate:     models.NewMoneyFromInt(10),
			StockOnHand: 80,
			Enabled:     true,
		},
		{
			SKU:         "CABLE-USBC",
			Name:        "USB-C 数据线",
			Price:       models.NewMoneyFromDecimal(decimal.NewFromFloat(9.90)),
			Currency:    "USD",
			TaxRate:     models.NewMoneyFromInt(10),
			StockOnHand: 1000,
			Enabled:     true,
		},
	}
	for _, variant := range variants {
		var existing models.ProductVariant
		if err := models.DB.Where("sku = ?", variant.SKU).First(&existing).Error; err != nil {
			if err := models.DB.Create(&variant).Error; err != nil {
				stdLog.Printf("Failed to create variant %s: %v", variant.SKU, err)
			} else {
				stdLog.Printf("Created variant: %s", variant.SKU)
			}
		} else {
			stdLog.Printf("Variant already exists: %s", variant.SKU)
		}
	}

	// 促销规则
	promotions := []models.Promotion{
		{
			Name:          "满 100 减 10",
			PriorityOrder: 10,
			Enabled:       true,
			Conditions: models.OperationConfigList{
				{
					Code: "minimum_order_amount",
					Args: []models.ConfigArg{{Name: "amount", Value: "100"}},
				},
			},
			Actions: models.OperationConfigList{
				{
					Code: "fixed_discount",
					Args: []models.ConfigArg{{Name: "amount", Value: "10"}},
				},
			},
		},
		{
			Name:          "SAVE10 九折优惠码",
			CouponCode:    "SAVE10",
			PriorityOrder: 20,
			UsageLimit:    1000,
			Enabled:       true,
			Actions: models.OperationConfigList{
				{
					Code: "percentage_discount",
					Args: []models.ConfigArg{{Name: "percentage", Value: "10"}},
				},
			},
		},
	}
	for _, promotion := range promotions {
		var existing models.Promotion
		if err := models.DB.Where("name = ?", promotion.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&promotion).Error; err != nil {
				stdLog.Printf("Failed to create promotion %s: %v", promotion.Name, err)
			} else {
				stdLog.Printf("Created promotion: %s", promotion.Name)
			}
		} else {
			stdLog.Printf("Promotion already exists: %s", promotion.Name)
		}
	}

	// 运费方式
	methods := []models.ShippingMethod{
		{
			Code:    "standard",
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
		},
		{
			Code:    "bulk",
			Name:    "大宗货运",
			Enabled: true,
			Checker: models.OperationConfig{
				Code: "min_subtotal",
				Args: []models.ConfigArg{{Name: "amount", Value: "500"}},
			},
			Calculator: models.OperationConfig{
				Code: "per_item_rate",
				Args: []models.ConfigArg{
					{Name: "rate_per_item", Value: "2"},
					{Name: "tax_rate", Value: "10"},
				},
			},
		},
	}
	for _, method := range methods {
		var existing models.ShippingMethod
		if err := models.DB.Where("code = ?", method.Code).First(&existing).Error; err != nil {
			if err := models.DB.Create(&method).Error; err != nil {
				stdLog.Printf("Failed to create shipping method %s: %v", method.Code, err)
			} else {
				stdLog.Printf("Created shipping method: %s", method.Code)
			}
		} else {
			stdLog.Printf("Shipping method already exists: %s", method.Code)
		}
	}

	stdLog.Println("Seed completed")
}
