package models

import (
	"time"

	"gorm.io/gorm"
)

// HistoryEntry 订单历史，追加写入；除备注外写入后不可修改
type HistoryEntry struct {
	ID              uint           `gorm:"primarykey" json:"id"`                      // 主键
	OrderID         uint           `gorm:"index;not null" json:"order_id"`            // 订单ID
	Type            string         `gorm:"index;not null" json:"type"`                // 记录类型
	Data            JSON           `gorm:"type:json" json:"data"`                     // 结构化内容
	AdministratorID uint           `gorm:"index" json:"administrator_id,omitempty"`   // 操作管理员ID（0 表示系统/客户）
	IsPublic        bool           `gorm:"not null;default:false" json:"is_public"`   // 是否对客户可见
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt       time.Time      `gorm:"index" json:"updated_at"`                   // 更新时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                            // 软删除时间
}

// TableName 指定表名
func (HistoryEntry) TableName() string {
	return "order_history_entries"
}
