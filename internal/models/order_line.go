package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Adjustment 作用在订单行上的价格调整（促销/税/运费分摊）
type Adjustment struct {
	Type        string `json:"type"`                  // promotion / tax / shipping
	Source      string `json:"source"`                // 来源标识（促销名/税种）
	Description string `json:"description,omitempty"` // 展示描述
	Amount      Money  `json:"amount"`                // 调整金额（负数为折扣）
}

// AdjustmentList 调整记录列表，JSON 存储
type AdjustmentList []Adjustment

// Value 实现 driver.Valuer 接口
func (l AdjustmentList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *AdjustmentList) Scan(value interface{}) error {
	if value == nil {
		*l = AdjustmentList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// OrderLine 订单行：某个商品变体的一定数量
type OrderLine struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                                 // 主键
	OrderID             uint           `gorm:"index;not null" json:"order_id"`                                       // 订单ID
	VariantID           uint           `gorm:"index;not null" json:"variant_id"`                                     // 商品变体ID
	SKU                 string         `gorm:"not null" json:"sku"`                                                  // SKU 快照
	Name                string         `gorm:"not null" json:"name"`                                                 // 名称快照
	Quantity            int            `gorm:"not null" json:"quantity"`                                             // 数量
	UnitPrice           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`              // 单价（不含税）
	UnitPriceWithTax    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price_with_tax"`     // 单价（含税）
	DiscountedUnitPrice Money          `gorm:"type:decimal(20,2);not null;default:0" json:"discounted_unit_price"`   // 折后单价（不含税）
	TaxRate             Money          `gorm:"type:decimal(6,2);not null;default:0" json:"tax_rate"`                 // 税率（百分比）
	LineTotal           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"line_total"`              // 行总计（不含税）
	LineTotalWithTax    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"line_total_with_tax"`     // 行总计（含税）
	Adjustments         AdjustmentList `gorm:"type:json" json:"adjustments"`                                         // 已应用的调整
	FulfilledQuantity   int            `gorm:"not null;default:0" json:"fulfilled_quantity"`                         // 已履约数量
	RefundedQuantity    int            `gorm:"not null;default:0" json:"refunded_quantity"`                          // 已退款数量
	CancelledQuantity   int            `gorm:"not null;default:0" json:"cancelled_quantity"`                         // 已取消数量
	CustomFields        JSON           `gorm:"type:json" json:"custom_fields"`                                       // 自定义字段
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                                              // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                                              // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                                       // 软删除时间
}

// TableName 指定表名
func (OrderLine) TableName() string {
	return "order_lines"
}

// FulfillableQuantity 尚可履约的数量
func (l OrderLine) FulfillableQuantity() int {
	remaining := l.Quantity - l.FulfilledQuantity - l.CancelledQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RefundableQuantity 尚可退款的数量
func (l OrderLine) RefundableQuantity() int {
	remaining := l.Quantity - l.RefundedQuantity - l.CancelledQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}
