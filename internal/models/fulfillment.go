package models

import (
	"time"

	"gorm.io/gorm"
)

// Fulfillment 履约记录：覆盖部分订单行数量的一次发货
type Fulfillment struct {
	ID           uint           `gorm:"primarykey" json:"id"`                   // 主键
	OrderID      uint           `gorm:"index;not null" json:"order_id"`         // 订单ID
	State        string         `gorm:"index;not null" json:"state"`            // 履约状态
	Method       string         `gorm:"not null" json:"method"`                 // 承运方式
	TrackingCode string         `gorm:"index" json:"tracking_code,omitempty"`   // 运单号
	ShippedAt    *time.Time     `gorm:"index" json:"shipped_at,omitempty"`      // 发货时间
	DeliveredAt  *time.Time     `gorm:"index" json:"delivered_at,omitempty"`    // 送达时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                         // 软删除时间

	Lines []FulfillmentLine `gorm:"foreignKey:FulfillmentID" json:"lines,omitempty"` // 覆盖的订单行数量
}

// TableName 指定表名
func (Fulfillment) TableName() string {
	return "fulfillments"
}

// FulfillmentLine 履约与订单行数量的关联
type FulfillmentLine struct {
	ID            uint      `gorm:"primarykey" json:"id"`                // 主键
	FulfillmentID uint      `gorm:"index;not null" json:"fulfillment_id"` // 履约ID
	OrderLineID   uint      `gorm:"index;not null" json:"order_line_id"` // 订单行ID
	Quantity      int       `gorm:"not null" json:"quantity"`            // 履约数量
	CreatedAt     time.Time `gorm:"index" json:"created_at"`             // 创建时间
}

// TableName 指定表名
func (FulfillmentLine) TableName() string {
	return "fulfillment_lines"
}
