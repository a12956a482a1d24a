package repository

import (
	"errors"

	"github.com/ordernext/internal/models"

	"gorm.io/gorm"
)

// RefundRepository 退款数据访问接口
type RefundRepository interface {
	Create(refund *models.Refund) error
	GetByID(id uint) (*models.Refund, error)
	ListByOrder(orderID uint) ([]models.Refund, error)
	UpdateState(id uint, state string, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) RefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) RefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款（连带退款行）
func (r *GormRefundRepository) Create(refund *models.Refund) error {
	return r.db.Create(refund).Error
}

// GetByID 根据 ID 获取退款
func (r *GormRefundRepository) GetByID(id uint) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.Preload("Lines").First(&refund, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// ListByOrder 获取订单的全部退款
func (r *GormRefundRepository) ListByOrder(orderID uint) ([]models.Refund, error) {
	var refunds []models.Refund
	if err := r.db.Preload("Lines").
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

// UpdateState 更新退款状态
func (r *GormRefundRepository) UpdateState(id uint, state string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["state"] = state
	return r.db.Model(&models.Refund{}).Where("id = ?", id).Updates(updates).Error
}
