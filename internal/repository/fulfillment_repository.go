package repository

import (
	"errors"

	"github.com/ordernext/internal/models"

	"gorm.io/gorm"
)

// FulfillmentRepository 履约数据访问接口
type FulfillmentRepository interface {
	Create(fulfillment *models.Fulfillment) error
	GetByID(id uint) (*models.Fulfillment, error)
	ListByOrder(orderID uint) ([]models.Fulfillment, error)
	UpdateState(id uint, state string, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) FulfillmentRepository
}

// GormFulfillmentRepository GORM 实现
type GormFulfillmentRepository struct {
	db *gorm.DB
}

// NewFulfillmentRepository 创建履约仓库
func NewFulfillmentRepository(db *gorm.DB) *GormFulfillmentRepository {
	return &GormFulfillmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFulfillmentRepository) WithTx(tx *gorm.DB) FulfillmentRepository {
	if tx == nil {
		return r
	}
	return &GormFulfillmentRepository{db: tx}
}

// Create 创建履约（连带履约行）
func (r *GormFulfillmentRepository) Create(fulfillment *models.Fulfillment) error {
	return r.db.Create(fulfillment).Error
}

// GetByID 根据 ID 获取履约
func (r *GormFulfillmentRepository) GetByID(id uint) (*models.Fulfillment, error) {
	var fulfillment models.Fulfillment
	if err := r.db.Preload("Lines").First(&fulfillment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fulfillment, nil
}

// ListByOrder 获取订单的全部履约
func (r *GormFulfillmentRepository) ListByOrder(orderID uint) ([]models.Fulfillment, error) {
	var fulfillments []models.Fulfillment
	if err := r.db.Preload("Lines").
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&fulfillments).Error; err != nil {
		return nil, err
	}
	return fulfillments, nil
}

// UpdateState 更新履约状态
func (r *GormFulfillmentRepository) UpdateState(id uint, state string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["state"] = state
	return r.db.Model(&models.Fulfillment{}).Where("id = ?", id).Updates(updates).Error
}
