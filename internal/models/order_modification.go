package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ModificationLine 改单涉及的单行变更
type ModificationLine struct {
	OrderLineID     uint `json:"order_line_id"`
	AddedQuantity   int  `json:"added_quantity,omitempty"`
	RemovedQuantity int  `json:"removed_quantity,omitempty"`
	// ModifiedInPlace 数量未变但单价/自定义字段发生变化
	ModifiedInPlace bool `json:"modified_in_place,omitempty"`
}

// ModificationLineList 改单行变更列表，JSON 存储
type ModificationLineList []ModificationLine

// Value 实现 driver.Valuer 接口
func (l ModificationLineList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *ModificationLineList) Scan(value interface{}) error {
	if value == nil {
		*l = ModificationLineList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// OrderModification 已提交改单的审计记录
type OrderModification struct {
	ID           uint                 `gorm:"primarykey" json:"id"`                        // 主键
	OrderID      uint                 `gorm:"index;not null" json:"order_id"`              // 订单ID
	Note         string               `gorm:"type:text" json:"note,omitempty"`             // 改单说明
	PriceDelta   Money                `gorm:"type:decimal(20,2);not null" json:"price_delta"` // 含税总价变化
	Lines        ModificationLineList `gorm:"type:json" json:"lines"`                      // 行级变更
	SurchargeIDs UintArray            `gorm:"type:json" json:"surcharge_ids,omitempty"`    // 新增附加费ID集合
	PaymentID    *uint                `gorm:"index" json:"payment_id,omitempty"`           // 补款支付ID
	RefundIDs    UintArray            `gorm:"type:json" json:"refund_ids,omitempty"`       // 退款ID集合
	CreatedAt    time.Time            `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt    time.Time            `gorm:"index" json:"updated_at"`                     // 更新时间
	DeletedAt    gorm.DeletedAt       `gorm:"index" json:"-"`                              // 软删除时间
}

// TableName 指定表名
func (OrderModification) TableName() string {
	return "order_modifications"
}
