package repository

import (
	"errors"

	"github.com/ordernext/internal/models"

	"gorm.io/gorm"
)

// HistoryRepository 订单历史数据访问接口
type HistoryRepository interface {
	Append(entry *models.HistoryEntry) error
	GetByID(id uint) (*models.HistoryEntry, error)
	List(filter HistoryListFilter) ([]models.HistoryEntry, int64, error)
	UpdateNote(id uint, data models.JSON, isPublic bool) error
	DeleteNote(id uint) error
	WithTx(tx *gorm.DB) HistoryRepository
}

// GormHistoryRepository GORM 实现
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建订单历史仓库
func NewHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormHistoryRepository) WithTx(tx *gorm.DB) HistoryRepository {
	if tx == nil {
		return r
	}
	return &GormHistoryRepository{db: tx}
}

// Append 追加历史记录
func (r *GormHistoryRepository) Append(entry *models.HistoryEntry) error {
	return r.db.Create(entry).Error
}

// GetByID 根据 ID 获取历史记录
func (r *GormHistoryRepository) GetByID(id uint) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	if err := r.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// List 分页查询历史，可按类型过滤、按时间排序
func (r *GormHistoryRepository) List(filter HistoryListFilter) ([]models.HistoryEntry, int64, error) {
	query := r.db.Model(&models.HistoryEntry{})
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.PublicOnly {
		query = query.Where("is_public = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at asc, id asc"
	if filter.SortDesc {
		order = "created_at desc, id desc"
	}

	var entries []models.HistoryEntry
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order(order).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// UpdateNote 更新备注内容；仅备注类型可编辑
func (r *GormHistoryRepository) UpdateNote(id uint, data models.JSON, isPublic bool) error {
	return r.db.Model(&models.HistoryEntry{}).
		Where("id = ? AND type = ?", id, "note").
		Updates(map[string]interface{}{
			"data":      data,
			"is_public": isPublic,
		}).Error
}

// DeleteNote 删除备注；仅备注类型可删除
func (r *GormHistoryRepository) DeleteNote(id uint) error {
	return r.db.Where("id = ? AND type = ?", id, "note").
		Delete(&models.HistoryEntry{}).Error
}
