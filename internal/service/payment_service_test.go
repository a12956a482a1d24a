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

type payTestEnv struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	variantRepo repository.VariantRepository
	orderSvc    *OrderService
	svc         *PaymentService
}

func newPayTestEnv(t *testing.T) *payTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	historyRepo := repository.NewHistoryRepository(db)
	engine := pricing.NewEngine(rules.DefaultRegistry())
	return &payTestEnv{
		db:          db,
		orderRepo:   orderRepo,
		variantRepo: variantRepo,
		orderSvc:    NewOrderService(orderRepo, variantRepo, promotionRepo, shippingRepo, historyRepo, nil, engine, 0, 0),
		svc:         NewPaymentService(orderRepo, paymentRepo, refundRepo, historyRepo, modificationRepo, payment.DefaultRegistry(), nil, 0),
	}
}

// placedPayOrder 构造一笔待付款订单：2 件单价 100 税率 10%，含税总额 220
func (env *payTestEnv) placedPayOrder(t *testing.T) *models.Order {
	t.Helper()
	variant := &models.ProductVariant{
		SKU:         fmt.Sprintf("SKU-PAY-%d", time.Now().UnixNano()),
		Name:        "支付测试商品",
		Price:       models.NewMoneyFromInt(100),
		Currency:    "USD",
		TaxRate:     models.NewMoneyFromInt(10),
		StockOnHand: 100,
		Enabled:     true,
	}
	if err := env.variantRepo.Create(variant); err != nil {
		t.Fatalf("创建测试变体失败: %v", err)
	}
	order, err := env.orderSvc.CreateDraft(CreateDraftInput{Currency: "USD"})
	if err != nil {
		t.Fatalf("创建草稿失败: %v", err)
	}
	if _, err := env.orderSvc.AddLine(order.ID, variant.ID, 2, nil); err != nil {
		t.Fatalf("添加订单行失败: %v", err)
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
	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	return current
}

func TestAddPaymentAuthorizesAndAdvancesOrder(t *testing.T) {
	env := newPayTestEnv(t)
	order := env.placedPayOrder(t)

	record, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual"})
	if err != nil {
		t.Fatalf("添加支付失败: %v", err)
	}
	if record.State != constants.PaymentStateAuthorized {
		t.Fatalf("unexpected payment state: %s", record.State)
	}
	if got := record.Amount.String(); got != "220.00" {
		t.Fatalf("unexpected payment amount: %s", got)
	}
	if record.TransactionID == "" {
		t.Fatalf("expected transaction id")
	}

	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStatePaymentAuthorized {
		t.Fatalf("unexpected order state: %s", current.State)
	}

	settled, err := env.svc.SettlePayment(record.ID, 1)
	if err != nil {
		t.Fatalf("结算支付失败: %v", err)
	}
	if settled.State != constants.PaymentStateSettled {
		t.Fatalf("unexpected payment state: %s", settled.State)
	}
	if settled.SettledAt == nil {
		t.Fatalf("expected settled_at to be set")
	}

	current, err = env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStatePaymentSettled {
		t.Fatalf("unexpected order state: %s", current.State)
	}
}

func TestAddPaymentValidation(t *testing.T) {
	env := newPayTestEnv(t)
	order := env.placedPayOrder(t)

	if _, err := env.svc.AddPayment(order.ID, AddPaymentInput{}); !errors.Is(err, ErrPaymentMethodMissing) {
		t.Fatalf("expected method missing, got %v", err)
	}
	if _, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "stripe"}); !errors.Is(err, payment.ErrHandlerNotFound) {
		t.Fatalf("expected handler not found, got %v", err)
	}
	over := models.NewMoneyFromInt(500)
	if _, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual", Amount: &over}); !errors.Is(err, ErrPaymentAmountExceedsDue) {
		t.Fatalf("expected exceeds due, got %v", err)
	}

	draft, err := env.orderSvc.CreateDraft(CreateDraftInput{})
	if err != nil {
		t.Fatalf("创建草稿失败: %v", err)
	}
	if _, err := env.svc.AddPayment(draft.ID, AddPaymentInput{Method: "manual"}); !errors.Is(err, ErrPaymentStateInvalid) {
		t.Fatalf("expected state invalid, got %v", err)
	}
}

func TestAddPaymentPartialKeepsArrangingPayment(t *testing.T) {
	env := newPayTestEnv(t)
	order := env.placedPayOrder(t)

	partial := models.NewMoneyFromInt(100)
	if _, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual", Amount: &partial}); err != nil {
		t.Fatalf("部分支付失败: %v", err)
	}
	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStateArrangingPayment {
		t.Fatalf("partial payment must not advance order, got %s", current.State)
	}

	// 第二笔不传金额时补齐剩余应付
	remainder, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual"})
	if err != nil {
		t.Fatalf("补齐支付失败: %v", err)
	}
	if got := remainder.Amount.String(); got != "120.00" {
		t.Fatalf("unexpected remainder amount: %s", got)
	}
	current, err = env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStatePaymentAuthorized {
		t.Fatalf("unexpected order state: %s", current.State)
	}
}

func TestAdditionalPaymentReturnsToPreviousState(t *testing.T) {
	env := newPayTestEnv(t)
	order := env.placedPayOrder(t)
	env.db.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"state":        constants.OrderStateArrangingAdditionalPayment,
		"return_state": constants.OrderStateShipped,
	})

	record, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual"})
	if err != nil {
		t.Fatalf("补款失败: %v", err)
	}
	if record.State != constants.PaymentStateAuthorized {
		t.Fatalf("unexpected payment state: %s", record.State)
	}

	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.State != constants.OrderStateShipped {
		t.Fatalf("expected return to shipped, got %s", current.State)
	}
	if current.ReturnState != "" {
		t.Fatalf("return state must be cleared, got %s", current.ReturnState)
	}
}

func TestAdditionalPaymentLinksModification(t *testing.T) {
	env := newPayTestEnv(t)
	order := env.placedPayOrder(t)
	modification := models.OrderModification{
		OrderID:    order.ID,
		PriceDelta: models.NewMoneyFromInt(220),
	}
	if err := env.db.Create(&modification).Error; err != nil {
		t.Fatalf("创建改单记录失败: %v", err)
	}
	env.db.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"state":        constants.OrderStateArrangingAdditionalPayment,
		"return_state": constants.OrderStatePaymentSettled,
	})

	record, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual"})
	if err != nil {
		t.Fatalf("补款失败: %v", err)
	}

	var linked models.OrderModification
	if err := env.db.First(&linked, modification.ID).Error; err != nil {
		t.Fatalf("获取改单记录失败: %v", err)
	}
	if linked.PaymentID == nil || *linked.PaymentID != record.ID {
		t.Fatalf("expected modification linked to payment %d, got %+v", record.ID, linked.PaymentID)
	}
}

func TestCancelAndDeclinePayment(t *testing.T) {
	env := newPayTestEnv(t)
	order := env.placedPayOrder(t)

	partial := models.NewMoneyFromInt(50)
	record, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual", Amount: &partial})
	if err != nil {
		t.Fatalf("添加支付失败: %v", err)
	}

	cancelled, err := env.svc.CancelPayment(record.ID, 1)
	if err != nil {
		t.Fatalf("取消支付失败: %v", err)
	}
	if cancelled.State != constants.PaymentStateCancelled {
		t.Fatalf("unexpected payment state: %s", cancelled.State)
	}
	if _, err := env.svc.SettlePayment(record.ID, 1); !errors.Is(err, ErrPaymentStateInvalid) {
		t.Fatalf("settle after cancel must fail, got %v", err)
	}

	second, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual", Amount: &partial})
	if err != nil {
		t.Fatalf("添加支付失败: %v", err)
	}
	declined, err := env.svc.DeclinePayment(second.ID, "风控拒绝", 1)
	if err != nil {
		t.Fatalf("拒绝支付失败: %v", err)
	}
	if declined.State != constants.PaymentStateDeclined {
		t.Fatalf("unexpected payment state: %s", declined.State)
	}
	if declined.ErrorMessage != "风控拒绝" {
		t.Fatalf("unexpected error message: %s", declined.ErrorMessage)
	}
}

// settledPayment 构造已结算支付
func (env *payTestEnv) settledPayment(t *testing.T) (*models.Order, *models.Payment) {
	t.Helper()
	order := env.placedPayOrder(t)
	record, err := env.svc.AddPayment(order.ID, AddPaymentInput{Method: "manual"})
	if err != nil {
		t.Fatalf("添加支付失败: %v", err)
	}
	settled, err := env.svc.SettlePayment(record.ID, 1)
	if err != nil {
		t.Fatalf("结算支付失败: %v", err)
	}
	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	return current, settled
}

func TestCreateRefundValidation(t *testing.T) {
	env := newPayTestEnv(t)
	order, settled := env.settledPayment(t)

	if _, err := env.svc.CreateRefund(CreateRefundInput{}); !errors.Is(err, ErrRefundPaymentIDMissing) {
		t.Fatalf("expected payment id missing, got %v", err)
	}
	if _, err := env.svc.CreateRefund(CreateRefundInput{PaymentID: settled.ID}); !errors.Is(err, ErrRefundStateInvalid) {
		t.Fatalf("zero refund must fail, got %v", err)
	}
	if _, err := env.svc.CreateRefund(CreateRefundInput{
		PaymentID: settled.ID,
		Amount:    models.NewMoneyFromInt(500),
	}); !errors.Is(err, ErrRefundExceedsSettled) {
		t.Fatalf("expected exceeds settled, got %v", err)
	}
	if _, err := env.svc.CreateRefund(CreateRefundInput{
		PaymentID: settled.ID,
		Amount:    models.NewMoneyFromInt(110),
		Lines:     []RefundLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 5}},
	}); !errors.Is(err, ErrRefundLineExceedsHeadroom) {
		t.Fatalf("expected line headroom error, got %v", err)
	}
}

func TestRefundLifecycle(t *testing.T) {
	env := newPayTestEnv(t)
	order, settled := env.settledPayment(t)

	refund, err := env.svc.CreateRefund(CreateRefundInput{
		PaymentID: settled.ID,
		Amount:    models.NewMoneyFromInt(110),
		Lines:     []RefundLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
		Reason:    "客户退货",
		AdminID:   1,
	})
	if err != nil {
		t.Fatalf("创建退款失败: %v", err)
	}
	if refund.State != constants.RefundStatePending {
		t.Fatalf("unexpected refund state: %s", refund.State)
	}

	current, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if current.Lines[0].RefundedQuantity != 1 {
		t.Fatalf("expected refunded quantity 1, got %d", current.Lines[0].RefundedQuantity)
	}

	done, err := env.svc.SettleRefund(refund.ID, 1)
	if err != nil {
		t.Fatalf("结算退款失败: %v", err)
	}
	if done.State != constants.RefundStateSettled {
		t.Fatalf("unexpected refund state: %s", done.State)
	}
	if done.TransactionID == "" {
		t.Fatalf("expected refund transaction id")
	}
	if _, err := env.svc.SettleRefund(refund.ID, 1); !errors.Is(err, ErrRefundStateInvalid) {
		t.Fatalf("double settle must fail, got %v", err)
	}

	// 再退超出剩余额度
	if _, err := env.svc.CreateRefund(CreateRefundInput{
		PaymentID: settled.ID,
		Amount:    models.NewMoneyFromInt(111),
	}); !errors.Is(err, ErrRefundExceedsSettled) {
		t.Fatalf("expected exceeds settled, got %v", err)
	}
}

func TestFailRefundReleasesNothing(t *testing.T) {
	env := newPayTestEnv(t)
	_, settled := env.settledPayment(t)

	refund, err := env.svc.CreateRefund(CreateRefundInput{
		PaymentID: settled.ID,
		Amount:    models.NewMoneyFromInt(110),
	})
	if err != nil {
		t.Fatalf("创建退款失败: %v", err)
	}
	failed, err := env.svc.FailRefund(refund.ID, "网关失败", 1)
	if err != nil {
		t.Fatalf("标记退款失败出错: %v", err)
	}
	if failed.State != constants.RefundStateFailed {
		t.Fatalf("unexpected refund state: %s", failed.State)
	}

	// 失败退款不占用可退额度，可再次全额退
	again, err := env.svc.CreateRefund(CreateRefundInput{
		PaymentID: settled.ID,
		Amount:    models.NewMoneyFromInt(220),
	})
	if err != nil {
		t.Fatalf("再次创建退款失败: %v", err)
	}
	if again.State != constants.RefundStatePending {
		t.Fatalf("unexpected refund state: %s", again.State)
	}
}
