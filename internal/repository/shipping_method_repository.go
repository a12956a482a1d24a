package repository

import (
	"errors"

	"github.com/ordernext/internal/models"

	"gorm.io/gorm"
)

// ShippingMethodRepository 运费方式数据访问接口
type ShippingMethodRepository interface {
	GetByID(id uint) (*models.ShippingMethod, error)
	ListEnabled() ([]models.ShippingMethod, error)
	Create(method *models.ShippingMethod) error
}

// GormShippingMethodRepository GORM 实现
type GormShippingMethodRepository struct {
	db *gorm.DB
}

// NewShippingMethodRepository 创建运费方式仓库
func NewShippingMethodRepository(db *gorm.DB) *GormShippingMethodRepository {
	return &GormShippingMethodRepository{db: db}
}

// GetByID 根据 ID 获取运费方式
func (r *GormShippingMethodRepository) GetByID(id uint) (*models.ShippingMethod, error) {
	var method models.ShippingMethod
	if err := r.db.First(&method, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &method, nil
}

// ListEnabled 获取启用中的运费方式
func (r *GormShippingMethodRepository) ListEnabled() ([]models.ShippingMethod, error) {
	var methods []models.ShippingMethod
	if err := r.db.Where("enabled = ?", true).Order("id asc").Find(&methods).Error; err != nil {
		return nil, err
	}
	return methods, nil
}

// Create 创建运费方式
func (r *GormShippingMethodRepository) Create(method *models.ShippingMethod) error {
	return r.db.Create(method).Error
}
