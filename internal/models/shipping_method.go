package models

import (
	"time"

	"gorm.io/gorm"
)

// ShippingMethod 运费方式：资格检查器 + 运费计算器
type ShippingMethod struct {
	ID         uint            `gorm:"primarykey" json:"id"`                 // 主键
	Code       string          `gorm:"uniqueIndex;not null" json:"code"`     // 方式 code
	Name       string          `gorm:"not null" json:"name"`                 // 名称
	Enabled    bool            `gorm:"not null;default:true" json:"enabled"` // 是否启用
	Checker    OperationConfig `gorm:"type:json" json:"checker"`             // 资格检查器
	Calculator OperationConfig `gorm:"type:json" json:"calculator"`          // 运费计算器
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`              // 创建时间
	UpdatedAt  time.Time       `gorm:"index" json:"updated_at"`              // 更新时间
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`                       // 软删除时间
}

// TableName 指定表名
func (ShippingMethod) TableName() string {
	return "shipping_methods"
}
