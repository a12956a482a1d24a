package repository

import (
	"errors"
	"time"

	"github.com/ordernext/internal/models"

	"gorm.io/gorm"
)

// PromotionRepository 促销规则数据访问接口
type PromotionRepository interface {
	ListEnabled() ([]models.Promotion, error)
	GetByCouponCode(code string) (*models.Promotion, error)
	Create(promotion *models.Promotion) error
	IncrementUsage(id uint) error
	WithTx(tx *gorm.DB) PromotionRepository
}

// GormPromotionRepository GORM 实现
type GormPromotionRepository struct {
	db *gorm.DB
}

// NewPromotionRepository 创建促销仓库
func NewPromotionRepository(db *gorm.DB) *GormPromotionRepository {
	return &GormPromotionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPromotionRepository) WithTx(tx *gorm.DB) PromotionRepository {
	if tx == nil {
		return r
	}
	return &GormPromotionRepository{db: tx}
}

// ListEnabled 获取启用中的促销规则
func (r *GormPromotionRepository) ListEnabled() ([]models.Promotion, error) {
	var promotions []models.Promotion
	if err := r.db.Where("enabled = ?", true).
		Order("priority_order asc, id asc").
		Find(&promotions).Error; err != nil {
		return nil, err
	}
	return promotions, nil
}

// GetByCouponCode 根据优惠码获取促销规则
func (r *GormPromotionRepository) GetByCouponCode(code string) (*models.Promotion, error) {
	var promotion models.Promotion
	if err := r.db.Where("coupon_code = ?", code).First(&promotion).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &promotion, nil
}

// Create 创建促销规则
func (r *GormPromotionRepository) Create(promotion *models.Promotion) error {
	return r.db.Create(promotion).Error
}

// IncrementUsage 累加使用次数
func (r *GormPromotionRepository) IncrementUsage(id uint) error {
	return r.db.Model(&models.Promotion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now(),
		}).Error
}
