package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单聚合根
type Order struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                            // 主键
	Code             string         `gorm:"uniqueIndex" json:"code,omitempty"`                               // 订单编号（下单时分配）
	State            string         `gorm:"index;not null" json:"state"`                                     // 订单状态
	Active           bool           `gorm:"index;not null;default:true" json:"active"`                       // 是否活跃（由状态派生）
	ReturnState      string         `gorm:"type:varchar(64)" json:"return_state,omitempty"`                  // 改单结束后应回到的状态
	Currency         string         `gorm:"not null" json:"currency"`                                        // 币种
	CustomerID       uint           `gorm:"index" json:"customer_id,omitempty"`                              // 客户ID（游客为 0）
	CustomerEmail    string         `gorm:"index" json:"customer_email,omitempty"`                           // 客户邮箱
	SessionToken     string         `gorm:"index" json:"-"`                                                  // 购物会话标识
	CouponCodes      StringArray    `gorm:"type:json" json:"coupon_codes"`                                   // 生效中的优惠码集合
	ShippingAddress  Address        `gorm:"type:json" json:"shipping_address"`                               // 收货地址快照
	BillingAddress   Address        `gorm:"type:json" json:"billing_address"`                                // 账单地址快照
	ShippingMethodID *uint          `gorm:"index" json:"shipping_method_id,omitempty"`                       // 运费方式ID
	SubTotal         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"sub_total"`          // 行小计（不含税）
	SubTotalWithTax  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"sub_total_with_tax"` // 行小计（含税）
	Shipping         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping"`           // 运费（不含税）
	ShippingWithTax  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_with_tax"`  // 运费（含税）
	Total            Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total"`              // 总计（不含税）
	TotalWithTax     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_with_tax"`     // 总计（含税）
	Version          uint           `gorm:"not null;default:0" json:"version"`                               // 乐观锁版本号
	PlacedAt         *time.Time     `gorm:"index" json:"placed_at,omitempty"`                                // 下单时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                         // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                         // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                                  // 软删除时间

	// 关联
	Lines         []OrderLine         `gorm:"foreignKey:OrderID" json:"lines,omitempty"`         // 订单行
	Surcharges    []Surcharge         `gorm:"foreignKey:OrderID" json:"surcharges,omitempty"`    // 附加费
	Payments      []Payment           `gorm:"foreignKey:OrderID" json:"payments,omitempty"`      // 支付记录
	Fulfillments  []Fulfillment       `gorm:"foreignKey:OrderID" json:"fulfillments,omitempty"`  // 履约记录
	Modifications []OrderModification `gorm:"foreignKey:OrderID" json:"modifications,omitempty"` // 改单记录
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// LineByID 按 ID 查找订单行
func (o *Order) LineByID(lineID uint) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i]
		}
	}
	return nil
}

// PaymentByID 按 ID 查找支付记录
func (o *Order) PaymentByID(paymentID uint) *Payment {
	for i := range o.Payments {
		if o.Payments[i].ID == paymentID {
			return &o.Payments[i]
		}
	}
	return nil
}
