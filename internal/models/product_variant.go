package models

import (
	"time"

	"gorm.io/gorm"
)

// ProductVariant 商品变体（目录协作方的本地投影）
type ProductVariant struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                 // 主键
	SKU         string         `gorm:"uniqueIndex;not null" json:"sku"`                      // SKU
	Name        string         `gorm:"not null" json:"name"`                                 // 名称
	Price       Money          `gorm:"type:decimal(20,2);not null" json:"price"`             // 单价（不含税）
	Currency    string         `gorm:"not null" json:"currency"`                             // 币种
	TaxRate     Money          `gorm:"type:decimal(6,2);not null;default:0" json:"tax_rate"` // 所属税类税率（百分比）
	StockOnHand int            `gorm:"not null;default:0" json:"stock_on_hand"`              // 可用库存
	Enabled     bool           `gorm:"not null;default:true" json:"enabled"`                 // 是否可售
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                              // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                       // 软删除时间
}

// TableName 指定表名
func (ProductVariant) TableName() string {
	return "product_variants"
}
