package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment 支付记录
type Payment struct {
	ID            uint           `gorm:"primarykey" json:"id"`                      // 主键
	OrderID       uint           `gorm:"index;not null" json:"order_id"`            // 订单ID
	Method        string         `gorm:"index;not null" json:"method"`              // 支付方式 code
	Amount        Money          `gorm:"type:decimal(20,2);not null" json:"amount"` // 支付金额
	Currency      string         `gorm:"not null" json:"currency"`                  // 币种
	State         string         `gorm:"index;not null" json:"state"`               // 支付状态
	TransactionID string         `gorm:"index" json:"transaction_id,omitempty"`     // 第三方流水号
	Metadata      JSON           `gorm:"type:json" json:"metadata"`                 // 网关元数据
	ErrorMessage  string         `gorm:"type:text" json:"error_message,omitempty"`  // 失败原因
	SettledAt     *time.Time     `gorm:"index" json:"settled_at,omitempty"`         // 结算时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                   // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                            // 软删除时间

	Refunds []Refund `gorm:"foreignKey:PaymentID" json:"refunds,omitempty"` // 退款记录
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// RefundedAmount 非失败退款的累计金额
func (p Payment) RefundedAmount() Money {
	total := Money{}
	for _, refund := range p.Refunds {
		if refund.State == "failed" {
			continue
		}
		total = total.AddMoney(refund.Amount)
	}
	return total
}

// RefundableAmount 剩余可退金额
func (p Payment) RefundableAmount() Money {
	return p.Amount.SubMoney(p.RefundedAmount())
}
