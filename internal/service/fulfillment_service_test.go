package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/payment"
	"github.com/ordernext/internal/pricing"
	"github.com/ordernext/internal/repository"
	"github.com/ordernext/internal/rules"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fulfillmentTestEnv struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	variantRepo repository.VariantRepository
	orderSvc    *OrderService
	paySvc      *PaymentService
	svc         *FulfillmentService
}

func newFulfillmentTestEnv(t *testing.T) *fulfillmentTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:fulfillment_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	orderRepo := repository.NewOrderRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	promotionRepo := repository.NewPromotionRepository(db)
	shippingRepo := repository.NewShippingMethodRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	modificationRepo := repository.NewModificationRepository(db)
	fulfillmentRepo := repository.NewFulfillmentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	engine := pricing.NewEngine(rules.DefaultRegistry())
	return &fulfillmentTestEnv{
		db:          db,
		orderRepo:   orderRepo,
		variantRepo: variantRepo,
		orderSvc:    NewOrderService(orderRepo, variantRepo, promotionRepo, shippingRepo, historyRepo, nil, engine, 0, 0),
		paySvc:      NewPaymentService(orderRepo, paymentRepo, refundRepo, historyRepo, modificationRepo, payment.DefaultRegistry(), nil, 0),
		svc:         NewFulfillmentService(orderRepo, fulfillmentRepo, historyRepo, nil),
	}
}

// settledFulfillmentOrder 构造已结算订单：两行各 2 件
func (env *fulfillmentTestEnv) settledFulfillmentOrder(t *testing.T) *models.Order {
	t.Helper()
	var variants []*models.ProductVariant
	for i := 0; i < 2; i++ {
		variant := &models.ProductVariant{
			SKU:         fmt.Sprintf("SKU-FF-%d-%d", i, time.Now().UnixNano()),
			Name:        "履约测试商品",
			Price:       models.NewMoneyFromInt(100),
			Currency:    "USD",
			TaxRate:     models.NewMoneyFromInt(10),
			StockOnHand: 100,
			Enabled:     true,
		}
		if err := env.variantRepo.Create(variant); err != nil {
			t.Fatalf("创建测试变体失败: %v", err)
		}
		variants = append(variants, variant)
	}
	order, err := env.orderSvc.CreateDraft(CreateDraftInput{Currency: "USD"})
	if err != nil {
		t.Fatalf("创建草稿失败: %v", err)
	}
	for _, variant := range variants {
		if _, err := env.orderSvc.AddLine(order.ID, variant.ID, 2, nil); err != nil {
			t.Fatalf("添加订单行失败: %v", err)
		}
	}
	if _, err := env.orderSvc.SetCustomer(order.ID, SetCustomerInput{Email: "buyer@example.com"}); err != nil {
		t.Fatalf("设置客户失败: %v", err)
	}
	address := models.Address{
		FullName:    "测试买家",
		StreetLine1: "测试路 1 号",
		City:        "上海",
		CountryCode: "CN",
	}
	if _, err := env.orderSvc.SetShippingAddress(order.ID, address); err != nil {
		t.Fatalf("设置收货地址失败: %v", err)
	}
	if _, err := env.orderSvc.Transition(order.ID, constants.OrderStateArrangingPayment, 0); err != nil {
		t.Fatalf("下单失败: %v", err)
	}
	record, err := env.paySvc.AddPayment(order.ID, AddPaymentInput{Method: "manual"})
	if err != nil {
		t.Fatalf("添加支付失败: %v", err)
	}
	if _, err := env.paySvc.SettlePayment(record.ID, 1); err != nil {
		t.Fatalf("结算支付失败: %v", err)
	}
	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStatePaymentSettled {
		t.Fatalf("unexpected order state: %s", current.State)
	}
	return current
}

func TestCreateFulfillmentValidation(t *testing.T) {
	env := newFulfillmentTestEnv(t)
	order := env.settledFulfillmentOrder(t)

	if _, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{}); !errors.Is(err, ErrFulfillmentEmptyLines) {
		t.Fatalf("expected empty lines error, got %v", err)
	}
	_, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 5}},
	})
	if !errors.Is(err, ErrFulfillmentExceedsHeadroom) {
		t.Fatalf("expected headroom error, got %v", err)
	}
	_, err = env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: 9999, Quantity: 1}},
	})
	if !errors.Is(err, ErrOrderLineNotFound) {
		t.Fatalf("expected line not found, got %v", err)
	}

	draft, err := env.orderSvc.CreateDraft(CreateDraftInput{})
	if err != nil {
		t.Fatalf("创建草稿失败: %v", err)
	}
	_, err = env.svc.CreateFulfillment(draft.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: 1, Quantity: 1}},
	})
	if !errors.Is(err, ErrFulfillmentStateInvalid) {
		t.Fatalf("expected state invalid, got %v", err)
	}
}

func TestCreateFulfillmentTracksQuantities(t *testing.T) {
	env := newFulfillmentTestEnv(t)
	order := env.settledFulfillmentOrder(t)

	fulfillment, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Method:       "快递",
		TrackingCode: "SF123456",
		Lines:        []FulfillmentLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 2}},
		AdminID:      1,
	})
	if err != nil {
		t.Fatalf("创建履约失败: %v", err)
	}
	if fulfillment.State != constants.FulfillmentStatePending {
		t.Fatalf("unexpected state: %s", fulfillment.State)
	}
	if fulfillment.TrackingCode != "SF123456" {
		t.Fatalf("unexpected tracking code: %s", fulfillment.TrackingCode)
	}

	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.Lines[0].FulfilledQuantity != 2 {
		t.Fatalf("expected fulfilled quantity 2, got %d", current.Lines[0].FulfilledQuantity)
	}

	// 同一行的额度已用尽
	_, err = env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrFulfillmentExceedsHeadroom) {
		t.Fatalf("expected headroom error, got %v", err)
	}
}

func TestFulfillmentTransitionDerivesOrderState(t *testing.T) {
	env := newFulfillmentTestEnv(t)
	order := env.settledFulfillmentOrder(t)

	first, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("创建履约失败: %v", err)
	}
	second, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: order.Lines[1].ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("创建履约失败: %v", err)
	}

	// 只有一个包裹发货时订单不动
	shipped, err := env.svc.TransitionFulfillment(first.ID, constants.FulfillmentStateShipped, 1)
	if err != nil {
		t.Fatalf("发货迁移失败: %v", err)
	}
	if shipped.ShippedAt == nil {
		t.Fatalf("expected shipped_at to be set")
	}
	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStatePaymentSettled {
		t.Fatalf("partial shipment must not advance order, got %s", current.State)
	}

	// 全部发货后订单进入 shipped
	if _, err := env.svc.TransitionFulfillment(second.ID, constants.FulfillmentStateShipped, 1); err != nil {
		t.Fatalf("发货迁移失败: %v", err)
	}
	current, err = env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStateShipped {
		t.Fatalf("expected shipped, got %s", current.State)
	}

	// 部分送达
	delivered, err := env.svc.TransitionFulfillment(first.ID, constants.FulfillmentStateDelivered, 1)
	if err != nil {
		t.Fatalf("送达迁移失败: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatalf("expected delivered_at to be set")
	}
	current, err = env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStatePartiallyDelivered {
		t.Fatalf("expected partially delivered, got %s", current.State)
	}

	// 全部送达后订单终结
	if _, err := env.svc.TransitionFulfillment(second.ID, constants.FulfillmentStateDelivered, 1); err != nil {
		t.Fatalf("送达迁移失败: %v", err)
	}
	current, err = env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStateDelivered {
		t.Fatalf("expected delivered, got %s", current.State)
	}
	if current.Active {
		t.Fatalf("delivered order must be inactive")
	}
}

func TestCancelFulfillmentReleasesHeadroom(t *testing.T) {
	env := newFulfillmentTestEnv(t)
	order := env.settledFulfillmentOrder(t)

	fulfillment, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("创建履约失败: %v", err)
	}
	cancelled, err := env.svc.TransitionFulfillment(fulfillment.ID, constants.FulfillmentStateCancelled, 1)
	if err != nil {
		t.Fatalf("取消履约失败: %v", err)
	}
	if cancelled.State != constants.FulfillmentStateCancelled {
		t.Fatalf("unexpected state: %s", cancelled.State)
	}

	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.Lines[0].FulfilledQuantity != 0 {
		t.Fatalf("expected fulfilled quantity released, got %d", current.Lines[0].FulfilledQuantity)
	}

	// 释放后可重新履约
	if _, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 2}},
	}); err != nil {
		t.Fatalf("重新履约失败: %v", err)
	}
}

func TestFulfillmentIllegalTransition(t *testing.T) {
	env := newFulfillmentTestEnv(t)
	order := env.settledFulfillmentOrder(t)

	fulfillment, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("创建履约失败: %v", err)
	}
	if _, err := env.svc.TransitionFulfillment(fulfillment.ID, constants.FulfillmentStateDelivered, 1); err == nil {
		t.Fatalf("pending cannot jump to delivered")
	}
}

func TestSuggestedNextState(t *testing.T) {
	env := newFulfillmentTestEnv(t)
	order := env.settledFulfillmentOrder(t)

	fulfillment, err := env.svc.CreateFulfillment(order.ID, CreateFulfillmentInput{
		Lines: []FulfillmentLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("创建履约失败: %v", err)
	}
	next, err := env.svc.SuggestedNextState(fulfillment.ID)
	if err != nil {
		t.Fatalf("查询推荐状态失败: %v", err)
	}
	if next != constants.FulfillmentStateShipped {
		t.Fatalf("unexpected suggested state: %s", next)
	}

	if _, err := env.svc.TransitionFulfillment(fulfillment.ID, constants.FulfillmentStateShipped, 1); err != nil {
		t.Fatalf("发货迁移失败: %v", err)
	}
	next, err = env.svc.SuggestedNextState(fulfillment.ID)
	if err != nil {
		t.Fatalf("查询推荐状态失败: %v", err)
	}
	if next != constants.FulfillmentStateDelivered {
		t.Fatalf("unexpected suggested state: %s", next)
	}
}
