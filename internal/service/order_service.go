package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/ordernext/internal/cache"
	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/orderstate"
	"github.com/ordernext/internal/pricing"
	"github.com/ordernext/internal/queue"
	"github.com/ordernext/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderService 订单服务：草稿编辑、状态迁移与重算入口
type OrderService struct {
	orderRepo       repository.OrderRepository
	variantRepo     repository.VariantRepository
	promotionRepo   repository.PromotionRepository
	shippingRepo    repository.ShippingMethodRepository
	historyRepo     repository.HistoryRepository
	queueClient     *queue.Client
	engine          *pricing.Engine
	machine         *orderstate.Machine
	maxLines        int
	maxLineQuantity int
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, variantRepo repository.VariantRepository, promotionRepo repository.PromotionRepository, shippingRepo repository.ShippingMethodRepository, historyRepo repository.HistoryRepository, queueClient *queue.Client, engine *pricing.Engine, maxLines, maxLineQuantity int) *OrderService {
	if maxLines <= 0 {
		maxLines = constants.MaxOrderLines
	}
	if maxLineQuantity <= 0 {
		maxLineQuantity = constants.MaxLineQuantity
	}
	return &OrderService{
		orderRepo:       orderRepo,
		variantRepo:     variantRepo,
		promotionRepo:   promotionRepo,
		shippingRepo:    shippingRepo,
		historyRepo:     historyRepo,
		queueClient:     queueClient,
		engine:          engine,
		machine:         orderstate.DefaultMachine(),
		maxLines:        maxLines,
		maxLineQuantity: maxLineQuantity,
	}
}

// CreateDraftInput 创建草稿订单输入
type CreateDraftInput struct {
	SessionToken  string
	Currency      string
	CustomerID    uint
	CustomerEmail string
}

// CreateDraft 创建购物中订单；会话已有活跃订单时直接复用
func (s *OrderService) CreateDraft(input CreateDraftInput) (*models.Order, error) {
	token := strings.TrimSpace(input.SessionToken)
	if token != "" {
		existing, err := s.orderRepo.GetActiveBySession(token)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.State == constants.OrderStateAddingItems {
			return existing, nil
		}
	}
	if token == "" {
		token = uuid.NewString()
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	order := &models.Order{
		State:         constants.OrderStateAddingItems,
		Active:        true,
		Currency:      currency,
		CustomerID:    input.CustomerID,
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		SessionToken:  token,
		CouponCodes:   models.StringArray{},
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder 根据 ID 获取订单
func (s *OrderService) GetOrder(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetOrderByCode 根据订单编号获取订单
func (s *OrderService) GetOrderByCode(code string) (*models.Order, error) {
	order, err := s.orderRepo.GetByCode(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetActiveOrderBySession 获取会话当前的活跃订单
func (s *OrderService) GetActiveOrderBySession(sessionToken string) (*models.Order, error) {
	order, err := s.orderRepo.GetActiveBySession(sessionToken)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 订单列表
func (s *OrderService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	filter.Page, filter.PageSize = repository.NormalizePagination(filter.Page, filter.PageSize)
	return s.orderRepo.List(filter)
}

// AddLine 向购物中订单添加商品；同变体合并数量
func (s *OrderService) AddLine(orderID, variantID uint, quantity int, customFields models.JSON) (*models.Order, error) {
	if quantity < 0 {
		return nil, ErrNegativeQuantity
	}
	if quantity == 0 {
		return s.GetOrder(orderID)
	}
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != constants.OrderStateAddingItems {
		return nil, ErrOrderNotEditable
	}

	variant, err := s.variantRepo.GetByID(variantID)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	if !variant.Enabled {
		return nil, ErrVariantDisabled
	}

	merged := false
	for i := range order.Lines {
		if order.Lines[i].VariantID == variantID {
			order.Lines[i].Quantity += quantity
			if order.Lines[i].Quantity > s.maxLineQuantity {
				return nil, ErrOrderLimitExceeded
			}
			if len(customFields) > 0 {
				order.Lines[i].CustomFields = customFields
			}
			merged = true
			break
		}
	}
	if !merged {
		if len(order.Lines)+1 > s.maxLines {
			return nil, ErrOrderLimitExceeded
		}
		if quantity > s.maxLineQuantity {
			return nil, ErrOrderLimitExceeded
		}
		order.Lines = append(order.Lines, models.OrderLine{
			OrderID:      order.ID,
			VariantID:    variant.ID,
			SKU:          variant.SKU,
			Name:         variant.Name,
			Quantity:     quantity,
			UnitPrice:    variant.Price,
			TaxRate:      variant.TaxRate,
			CustomFields: customFields,
		})
	}
	return s.recalculateAndSave(order)
}

// AdjustLine 调整购物中订单的行数量；数量为 0 时移除该行
func (s *OrderService) AdjustLine(orderID, lineID uint, quantity int) (*models.Order, error) {
	if quantity < 0 {
		return nil, ErrNegativeQuantity
	}
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != constants.OrderStateAddingItems {
		return nil, ErrOrderNotEditable
	}
	line := order.LineByID(lineID)
	if line == nil {
		return nil, ErrOrderLineNotFound
	}
	if quantity > s.maxLineQuantity {
		return nil, ErrOrderLimitExceeded
	}
	if quantity == 0 {
		return s.removeLine(order, lineID)
	}
	line.Quantity = quantity
	return s.recalculateAndSave(order)
}

// RemoveLine 移除购物中订单的一行
func (s *OrderService) RemoveLine(orderID, lineID uint) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != constants.OrderStateAddingItems {
		return nil, ErrOrderNotEditable
	}
	if order.LineByID(lineID) == nil {
		return nil, ErrOrderLineNotFound
	}
	return s.removeLine(order, lineID)
}

func (s *OrderService) removeLine(order *models.Order, lineID uint) (*models.Order, error) {
	kept := make([]models.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.ID != lineID {
			kept = append(kept, line)
		}
	}
	order.Lines = kept

	var result *models.Order
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		if err := repo.DeleteLine(order.ID, lineID); err != nil {
			return err
		}
		recalced, err := s.recalculateAndSaveTx(repo, order)
		if err != nil {
			return err
		}
		result = recalced
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetCustomerInput 设置客户信息输入
type SetCustomerInput struct {
	CustomerID uint
	Email      string
}

// SetCustomer 设置订单客户信息
func (s *OrderService) SetCustomer(orderID uint, input SetCustomerInput) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(input.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
	}
	order.CustomerID = input.CustomerID
	order.CustomerEmail = email
	if err := s.saveOrder(order); err != nil {
		return nil, err
	}
	s.appendHistory(order.ID, constants.HistoryTypeCustomerUpdate, models.JSON{
		"customer_id": input.CustomerID,
		"email":       email,
	}, 0, false)
	return order, nil
}

// SetShippingAddress 设置收货地址
func (s *OrderService) SetShippingAddress(orderID uint, address models.Address) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	order.ShippingAddress = address
	return s.recalculateAndSave(order)
}

// SetBillingAddress 设置账单地址
func (s *OrderService) SetBillingAddress(orderID uint, address models.Address) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	order.BillingAddress = address
	if err := s.saveOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// SetShippingMethod 设置运费方式；方式必须对当前订单可用
func (s *OrderService) SetShippingMethod(orderID, methodID uint) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	method, err := s.shippingRepo.GetByID(methodID)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, ErrShippingMethodNotFound
	}
	eligible, err := s.engine.MethodEligible(order, method)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrShippingMethodNotEligible
	}
	order.ShippingMethodID = &method.ID
	return s.recalculateAndSave(order)
}

// EligibleShippingMethods 当前订单可用的运费方式
func (s *OrderService) EligibleShippingMethods(orderID uint) ([]models.ShippingMethod, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	methods, err := s.shippingRepo.ListEnabled()
	if err != nil {
		return nil, err
	}
	eligible := make([]models.ShippingMethod, 0, len(methods))
	for i := range methods {
		ok, err := s.engine.MethodEligible(order, &methods[i])
		if err != nil {
			logger.Warnw("shipping_method_check_failed", "order_id", orderID, "method_id", methods[i].ID, "error", err)
			continue
		}
		if ok {
			eligible = append(eligible, methods[i])
		}
	}
	return eligible, nil
}

// ApplyCoupon 应用优惠码并重算
func (s *OrderService) ApplyCoupon(orderID uint, code string, adminID uint) (*models.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCouponInvalid
	}
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	promotion, err := s.promotionRepo.GetByCouponCode(code)
	if err != nil {
		return nil, err
	}
	if promotion == nil || !promotion.Enabled {
		return nil, ErrCouponInvalid
	}
	if !promotion.ActiveAt(time.Now()) {
		return nil, ErrCouponExpired
	}
	if promotion.UsageLimit > 0 && promotion.UsedCount >= promotion.UsageLimit {
		return nil, ErrCouponUsageLimit
	}
	if order.CouponCodes.Contains(code) {
		return order, nil
	}
	order.CouponCodes = append(order.CouponCodes, code)
	updated, err := s.recalculateAndSave(order)
	if err != nil {
		return nil, err
	}
	s.appendHistory(order.ID, constants.HistoryTypeCouponApplied, models.JSON{"coupon_code": code}, adminID, true)
	return updated, nil
}

// RemoveCoupon 移除优惠码并重算
func (s *OrderService) RemoveCoupon(orderID uint, code string, adminID uint) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !order.CouponCodes.Contains(code) {
		return order, nil
	}
	kept := make(models.StringArray, 0, len(order.CouponCodes))
	for _, c := range order.CouponCodes {
		if c != code {
			kept = append(kept, c)
		}
	}
	order.CouponCodes = kept
	updated, err := s.recalculateAndSave(order)
	if err != nil {
		return nil, err
	}
	s.appendHistory(order.ID, constants.HistoryTypeCouponRemoved, models.JSON{"coupon_code": code}, adminID, true)
	return updated, nil
}

// AddSurchargeInput 添加附加费输入
type AddSurchargeInput struct {
	Description      string
	Price            models.Money
	TaxRate          models.Money
	PriceIncludesTax bool
}

// AddSurcharge 为订单添加附加费并重算
func (s *OrderService) AddSurcharge(orderID uint, input AddSurchargeInput) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != constants.OrderStateAddingItems && order.State != constants.OrderStateModifying {
		return nil, ErrOrderNotEditable
	}
	surcharge := models.Surcharge{
		OrderID:          order.ID,
		Description:      strings.TrimSpace(input.Description),
		Price:            input.Price,
		TaxRate:          input.TaxRate,
		PriceIncludesTax: input.PriceIncludesTax,
	}
	if err := s.orderRepo.CreateSurcharge(&surcharge); err != nil {
		return nil, err
	}
	order.Surcharges = append(order.Surcharges, surcharge)
	return s.recalculateAndSave(order)
}

// RemoveSurcharge 移除附加费并重算
func (s *OrderService) RemoveSurcharge(orderID, surchargeID uint) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != constants.OrderStateAddingItems && order.State != constants.OrderStateModifying {
		return nil, ErrOrderNotEditable
	}
	found := false
	kept := make([]models.Surcharge, 0, len(order.Surcharges))
	for _, sc := range order.Surcharges {
		if sc.ID == surchargeID {
			found = true
			continue
		}
		kept = append(kept, sc)
	}
	if !found {
		return nil, ErrSurchargeNotFound
	}
	if err := s.orderRepo.DeleteSurcharge(order.ID, surchargeID); err != nil {
		return nil, err
	}
	order.Surcharges = kept
	return s.recalculateAndSave(order)
}

// Recalculate 按当前促销与运费方式重算订单金额
func (s *OrderService) Recalculate(orderID uint) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	return s.recalculateAndSave(order)
}

// Transition 执行订单状态迁移，记录历史并发布事件
func (s *OrderService) Transition(orderID uint, target string, adminID uint) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	from := order.State

	if err := s.machine.Transition(order, target); err != nil {
		return nil, err
	}

	placing := from == constants.OrderStateAddingItems && target == constants.OrderStateArrangingPayment
	if placing && order.Code == "" {
		order.Code = s.generateOrderCode()
	}

	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		if placing {
			if err := s.allocateStock(tx, order); err != nil {
				return err
			}
			if err := s.markCouponUsage(tx, order); err != nil {
				return err
			}
		}
		if target == constants.OrderStateCancelled {
			if err := s.releaseStock(tx, order); err != nil {
				return err
			}
		}
		if err := repo.SaveWithVersion(order); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return ErrOrderVersionConflict
			}
			return err
		}
		return s.historyRepo.WithTx(tx).Append(&models.HistoryEntry{
			OrderID:         order.ID,
			Type:            constants.HistoryTypeStateTransition,
			Data:            models.JSON{"from": from, "to": target},
			AdministratorID: adminID,
			IsPublic:        true,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishTransition(order, from, target, placing)
	return order, nil
}

// AllowedTransitions 订单当前合法的后继状态
func (s *OrderService) AllowedTransitions(orderID uint) ([]string, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	return s.machine.AllowedNext(order.State), nil
}

func (s *OrderService) publishTransition(order *models.Order, from, to string, placing bool) {
	if s.queueClient == nil {
		return
	}
	if placing {
		if err := s.queueClient.EnqueueOrderPlaced(queue.OrderPlacedPayload{OrderID: order.ID}); err != nil {
			logger.Warnw("enqueue_order_placed_failed", "order_id", order.ID, "error", err)
		}
	}
	if err := s.queueClient.EnqueueOrderStateTransition(queue.OrderStateTransitionPayload{
		OrderID:   order.ID,
		FromState: from,
		ToState:   to,
	}); err != nil {
		logger.Warnw("enqueue_order_state_transition_failed", "order_id", order.ID, "error", err)
	}
}

// allocateStock 下单时为每行扣减库存
func (s *OrderService) allocateStock(tx *gorm.DB, order *models.Order) error {
	repo := s.variantRepo.WithTx(tx)
	for _, line := range order.Lines {
		if err := repo.AdjustStock(line.VariantID, -line.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, line.SKU)
			}
			return err
		}
	}
	return nil
}

// releaseStock 取消时归还未履约部分的库存
func (s *OrderService) releaseStock(tx *gorm.DB, order *models.Order) error {
	if order.PlacedAt == nil {
		return nil
	}
	repo := s.variantRepo.WithTx(tx)
	for _, line := range order.Lines {
		remaining := line.Quantity - line.FulfilledQuantity
		if remaining <= 0 {
			continue
		}
		if err := repo.AdjustStock(line.VariantID, remaining); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) markCouponUsage(tx *gorm.DB, order *models.Order) error {
	if len(order.CouponCodes) == 0 {
		return nil
	}
	repo := s.promotionRepo.WithTx(tx)
	for _, code := range order.CouponCodes {
		promotion, err := repo.GetByCouponCode(code)
		if err != nil {
			return err
		}
		if promotion == nil {
			continue
		}
		if err := repo.IncrementUsage(promotion.ID); err != nil {
			return err
		}
	}
	return nil
}

// recalculateAndSave 重算金额并带乐观锁写回
func (s *OrderService) recalculateAndSave(order *models.Order) (*models.Order, error) {
	return s.recalculateAndSaveTx(s.orderRepo, order)
}

func (s *OrderService) recalculateAndSaveTx(repo repository.OrderRepository, order *models.Order) (*models.Order, error) {
	if err := s.recalculate(order); err != nil {
		return nil, err
	}
	if err := repo.ReplaceLines(order.ID, order.Lines); err != nil {
		return nil, err
	}
	if err := repo.SaveWithVersion(order); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrOrderVersionConflict
		}
		return nil, err
	}
	return order, nil
}

// recalculate 只修改内存中的订单
func (s *OrderService) recalculate(order *models.Order) error {
	promotions, err := s.promotionRepo.ListEnabled()
	if err != nil {
		return err
	}
	var method *models.ShippingMethod
	if order.ShippingMethodID != nil {
		method, err = s.shippingRepo.GetByID(*order.ShippingMethodID)
		if err != nil {
			return err
		}
	}
	return s.engine.CalculatePrices(order, pricing.Context{
		Now:            time.Now(),
		Promotions:     promotions,
		ShippingMethod: method,
	})
}

func (s *OrderService) saveOrder(order *models.Order) error {
	if err := s.orderRepo.SaveWithVersion(order); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return ErrOrderVersionConflict
		}
		return err
	}
	return nil
}

func (s *OrderService) appendHistory(orderID uint, entryType string, data models.JSON, adminID uint, isPublic bool) {
	err := s.historyRepo.Append(&models.HistoryEntry{
		OrderID:         orderID,
		Type:            entryType,
		Data:            data,
		AdministratorID: adminID,
		IsPublic:        isPublic,
	})
	if err != nil {
		logger.Warnw("order_history_append_failed", "order_id", orderID, "type", entryType, "error", err)
	}
}

// generateOrderCode 生成订单编号；优先使用 Redis 序列，降级为随机数
func (s *OrderService) generateOrderCode() string {
	now := time.Now().Format("20060102")
	seq, ok, err := cache.NextSequence(context.Background(), "order:code:"+now)
	if err != nil {
		logger.Warnw("order_code_sequence_failed", "error", err)
	}
	if ok {
		return fmt.Sprintf("%s%s%06d", constants.OrderCodePrefix, now, seq)
	}
	return fmt.Sprintf("%s%s%s", constants.OrderCodePrefix, now, randNumeric(8))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
