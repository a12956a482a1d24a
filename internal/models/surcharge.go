package models

import (
	"time"

	"gorm.io/gorm"
)

// Surcharge 附加费：改单时人工添加的费用/折扣，不绑定商品变体
type Surcharge struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                     // 主键
	OrderID          uint           `gorm:"index;not null" json:"order_id"`                           // 订单ID
	Description      string         `gorm:"not null" json:"description"`                              // 描述
	Price            Money          `gorm:"type:decimal(20,2);not null" json:"price"`                 // 金额（可为负）
	PriceWithTax     Money          `gorm:"type:decimal(20,2);not null" json:"price_with_tax"`        // 含税金额
	TaxRate          Money          `gorm:"type:decimal(6,2);not null;default:0" json:"tax_rate"`     // 税率（百分比）
	PriceIncludesTax bool           `gorm:"not null;default:false" json:"price_includes_tax"`         // 录入金额是否已含税
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                  // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间
}

// TableName 指定表名
func (Surcharge) TableName() string {
	return "surcharges"
}
