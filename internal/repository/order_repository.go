package repository

import (
	"errors"

	"github.com/ordernext/internal/models"

	"gorm.io/gorm"
)

// ErrVersionConflict 订单被并发修改，版本号不匹配
var ErrVersionConflict = errors.New("order was modified concurrently")

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByCode(code string) (*models.Order, error)
	GetActiveBySession(sessionToken string) (*models.Order, error)
	List(filter OrderListFilter) ([]models.Order, int64, error)
	SaveWithVersion(order *models.Order) error
	ReplaceLines(orderID uint, lines []models.OrderLine) error
	SaveLine(line *models.OrderLine) error
	DeleteLine(orderID, lineID uint) error
	CreateSurcharge(surcharge *models.Surcharge) error
	DeleteSurcharge(orderID, surchargeID uint) error
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) OrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

func (r *GormOrderRepository) withAssociations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Lines").
		Preload("Surcharges").
		Preload("Payments").
		Preload("Payments.Refunds").
		Preload("Payments.Refunds.Lines").
		Preload("Fulfillments").
		Preload("Fulfillments.Lines").
		Preload("Modifications")
}

// Create 创建订单（连带订单行）
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID 根据 ID 获取订单及全部关联
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withAssociations(r.db).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByCode 根据订单编号获取订单
func (r *GormOrderRepository) GetByCode(code string) (*models.Order, error) {
	var order models.Order
	if err := r.withAssociations(r.db).Where("code = ?", code).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetActiveBySession 获取会话当前的活跃订单；每个会话至多一个
func (r *GormOrderRepository) GetActiveBySession(sessionToken string) (*models.Order, error) {
	if sessionToken == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.withAssociations(r.db).
		Where("session_token = ? AND active = ?", sessionToken, true).
		Order("id desc").
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// List 订单列表
func (r *GormOrderRepository) List(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})

	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.Code != "" {
		query = query.Where("code = ?", filter.Code)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	query = applyPagination(query, filter.Page, filter.PageSize).Preload("Lines")
	if err := query.Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// SaveWithVersion 带乐观锁写回订单标量字段；版本不匹配返回 ErrVersionConflict
func (r *GormOrderRepository) SaveWithVersion(order *models.Order) error {
	currentVersion := order.Version
	updates := map[string]interface{}{
		"code":               order.Code,
		"state":              order.State,
		"active":             order.Active,
		"return_state":       order.ReturnState,
		"currency":           order.Currency,
		"customer_id":        order.CustomerID,
		"customer_email":     order.CustomerEmail,
		"coupon_codes":       order.CouponCodes,
		"shipping_address":   order.ShippingAddress,
		"billing_address":    order.BillingAddress,
		"shipping_method_id": order.ShippingMethodID,
		"sub_total":          order.SubTotal,
		"sub_total_with_tax": order.SubTotalWithTax,
		"shipping":           order.Shipping,
		"shipping_with_tax":  order.ShippingWithTax,
		"total":              order.Total,
		"total_with_tax":     order.TotalWithTax,
		"placed_at":          order.PlacedAt,
		"version":            currentVersion + 1,
	}
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, currentVersion).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	order.Version = currentVersion + 1
	return nil
}

// ReplaceLines 全量写回订单行：已有行更新，新行插入
func (r *GormOrderRepository) ReplaceLines(orderID uint, lines []models.OrderLine) error {
	for i := range lines {
		lines[i].OrderID = orderID
		if lines[i].ID == 0 {
			if err := r.db.Create(&lines[i]).Error; err != nil {
				return err
			}
			continue
		}
		if err := r.db.Model(&models.OrderLine{}).
			Where("id = ? AND order_id = ?", lines[i].ID, orderID).
			Updates(map[string]interface{}{
				"quantity":              lines[i].Quantity,
				"unit_price":            lines[i].UnitPrice,
				"unit_price_with_tax":   lines[i].UnitPriceWithTax,
				"discounted_unit_price": lines[i].DiscountedUnitPrice,
				"tax_rate":              lines[i].TaxRate,
				"line_total":            lines[i].LineTotal,
				"line_total_with_tax":   lines[i].LineTotalWithTax,
				"adjustments":           lines[i].Adjustments,
				"fulfilled_quantity":    lines[i].FulfilledQuantity,
				"refunded_quantity":     lines[i].RefundedQuantity,
				"cancelled_quantity":    lines[i].CancelledQuantity,
				"custom_fields":         lines[i].CustomFields,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

// SaveLine 更新单个订单行
func (r *GormOrderRepository) SaveLine(line *models.OrderLine) error {
	return r.db.Save(line).Error
}

// DeleteLine 删除订单行
func (r *GormOrderRepository) DeleteLine(orderID, lineID uint) error {
	return r.db.Where("id = ? AND order_id = ?", lineID, orderID).
		Delete(&models.OrderLine{}).Error
}

// Transaction 执行事务
func (r *GormOrderRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.Transaction(fn)
}

// CreateSurcharge 添加附加费
func (r *GormOrderRepository) CreateSurcharge(surcharge *models.Surcharge) error {
	return r.db.Create(surcharge).Error
}

// DeleteSurcharge 删除附加费
func (r *GormOrderRepository) DeleteSurcharge(orderID, surchargeID uint) error {
	return r.db.Where("id = ? AND order_id = ?", surchargeID, orderID).
		Delete(&models.Surcharge{}).Error
}
