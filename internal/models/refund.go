package models

import (
	"time"

	"gorm.io/gorm"
)

// Refund 退款记录，必须关联一笔已结算的支付
type Refund struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                          // 主键
	PaymentID        uint           `gorm:"index;not null" json:"payment_id"`                              // 来源支付ID
	OrderID          uint           `gorm:"index;not null" json:"order_id"`                                // 订单ID
	Amount           Money          `gorm:"type:decimal(20,2);not null" json:"amount"`                     // 退款总额
	ShippingAmount   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_amount"`  // 运费退款部分
	AdjustmentAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"adjustment_amount"` // 人工调整部分
	State            string         `gorm:"index;not null" json:"state"`                                   // 退款状态
	Reason           string         `gorm:"type:text" json:"reason,omitempty"`                             // 退款原因
	TransactionID    string         `gorm:"index" json:"transaction_id,omitempty"`                         // 网关退款流水号
	SettledAt        *time.Time     `gorm:"index" json:"settled_at,omitempty"`                             // 结算时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间

	Lines []RefundLine `gorm:"foreignKey:RefundID" json:"lines,omitempty"` // 退款涉及的订单行数量
}

// TableName 指定表名
func (Refund) TableName() string {
	return "refunds"
}

// RefundLine 退款与订单行数量的关联
type RefundLine struct {
	ID          uint      `gorm:"primarykey" json:"id"`                 // 主键
	RefundID    uint      `gorm:"index;not null" json:"refund_id"`      // 退款ID
	OrderLineID uint      `gorm:"index;not null" json:"order_line_id"`  // 订单行ID
	Quantity    int       `gorm:"not null" json:"quantity"`             // 退款数量
	CreatedAt   time.Time `gorm:"index" json:"created_at"`              // 创建时间
}

// TableName 指定表名
func (RefundLine) TableName() string {
	return "refund_lines"
}
