package repository

import (
	"errors"

	"github.com/ordernext/internal/models"

	"gorm.io/gorm"
)

// ModificationRepository 订单改单记录数据访问接口
type ModificationRepository interface {
	Create(modification *models.OrderModification) error
	GetByID(id uint) (*models.OrderModification, error)
	ListByOrder(orderID uint) ([]models.OrderModification, error)
	LinkPayment(orderID, paymentID uint) error
	WithTx(tx *gorm.DB) ModificationRepository
}

// GormModificationRepository GORM 实现
type GormModificationRepository struct {
	db *gorm.DB
}

// NewModificationRepository 创建改单记录仓库
func NewModificationRepository(db *gorm.DB) *GormModificationRepository {
	return &GormModificationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormModificationRepository) WithTx(tx *gorm.DB) ModificationRepository {
	if tx == nil {
		return r
	}
	return &GormModificationRepository{db: tx}
}

// Create 创建改单记录
func (r *GormModificationRepository) Create(modification *models.OrderModification) error {
	return r.db.Create(modification).Error
}

// GetByID 根据 ID 获取改单记录
func (r *GormModificationRepository) GetByID(id uint) (*models.OrderModification, error) {
	var modification models.OrderModification
	if err := r.db.First(&modification, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &modification, nil
}

// LinkPayment 把补款支付回填到最近一笔尚未关联支付的加价改单
func (r *GormModificationRepository) LinkPayment(orderID, paymentID uint) error {
	var modification models.OrderModification
	err := r.db.Where("order_id = ? AND payment_id IS NULL AND price_delta > 0", orderID).
		Order("id desc").
		First(&modification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.db.Model(&modification).Update("payment_id", paymentID).Error
}

// ListByOrder 获取订单的全部改单记录
func (r *GormModificationRepository) ListByOrder(orderID uint) ([]models.OrderModification, error) {
	var modifications []models.OrderModification
	if err := r.db.Where("order_id = ?", orderID).
		Order("id asc").
		Find(&modifications).Error; err != nil {
		return nil, err
	}
	return modifications, nil
}
