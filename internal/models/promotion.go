package models

import (
	"time"

	"gorm.io/gorm"
)

// Promotion 促销规则：条件与动作均为可配置操作
type Promotion struct {
	ID               uint                `gorm:"primarykey" json:"id"`                            // 主键
	Name             string              `gorm:"not null" json:"name"`                            // 名称
	CouponCode       string              `gorm:"index" json:"coupon_code,omitempty"`              // 关联优惠码（空表示自动生效）
	Enabled          bool                `gorm:"not null;default:true" json:"enabled"`            // 是否启用
	StartsAt         *time.Time          `gorm:"index" json:"starts_at,omitempty"`                // 生效时间
	EndsAt           *time.Time          `gorm:"index" json:"ends_at,omitempty"`                  // 失效时间
	UsageLimit       int                 `gorm:"not null;default:0" json:"usage_limit"`           // 总使用上限（0 不限）
	UsedCount        int                 `gorm:"not null;default:0" json:"used_count"`            // 已使用次数
	PerCustomerLimit int                 `gorm:"not null;default:0" json:"per_customer_limit"`    // 每客户上限（0 不限）
	PriorityOrder    int                 `gorm:"not null;default:0" json:"priority_order"`        // 应用顺序（小者先）
	Conditions       OperationConfigList `gorm:"type:json" json:"conditions"`                     // 条件操作
	Actions          OperationConfigList `gorm:"type:json" json:"actions"`                        // 动作操作
	CreatedAt        time.Time           `gorm:"index" json:"created_at"`                         // 创建时间
	UpdatedAt        time.Time           `gorm:"index" json:"updated_at"`                         // 更新时间
	DeletedAt        gorm.DeletedAt      `gorm:"index" json:"-"`                                  // 软删除时间
}

// TableName 指定表名
func (Promotion) TableName() string {
	return "promotions"
}

// CouponGated 是否需要优惠码激活
func (p Promotion) CouponGated() bool {
	return p.CouponCode != ""
}

// ActiveAt 在给定时间是否处于生效窗口
func (p Promotion) ActiveAt(now time.Time) bool {
	if !p.Enabled {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return false
	}
	return true
}
