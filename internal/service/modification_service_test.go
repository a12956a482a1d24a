package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/pricing"
	"github.com/ordernext/internal/repository"
	"github.com/ordernext/internal/rules"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type modTestEnv struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	variantRepo repository.VariantRepository
	orderSvc    *OrderService
	svc         *ModificationService
}

func newModTestEnv(t *testing.T) *modTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:modification_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	return &modTestEnv{
		db:          db,
		orderRepo:   orderRepo,
		variantRepo: variantRepo,
		orderSvc:    NewOrderService(orderRepo, variantRepo, promotionRepo, shippingRepo, historyRepo, nil, engine, 0, 0),
		svc:         NewModificationService(orderRepo, variantRepo, promotionRepo, shippingRepo, paymentRepo, refundRepo, modificationRepo, historyRepo, nil, engine, 0),
	}
}

func (env *modTestEnv) createVariant(t *testing.T, sku string, price int64, stock int) *models.ProductVariant {
	t.Helper()
	variant := &models.ProductVariant{
		SKU:         sku,
		Name:        sku,
		Price:       models.NewMoneyFromInt(price),
		Currency:    "USD",
		TaxRate:     models.NewMoneyFromInt(10),
		StockOnHand: stock,
		Enabled:     true,
	}
	if err := env.variantRepo.Create(variant); err != nil {
		t.Fatalf("创建测试变体失败: %v", err)
	}
	return variant
}

// placedModOrder 构造一笔待付款订单：3 件单价 100 税率 10%，含税总额 330
func (env *modTestEnv) placedModOrder(t *testing.T, variant *models.ProductVariant) *models.Order {
	t.Helper()
	order, err := env.orderSvc.CreateDraft(CreateDraftInput{Currency: "USD"})
	if err != nil {
		t.Fatalf("创建草稿失败: %v", err)
	}
	if _, err := env.orderSvc.AddLine(order.ID, variant.ID, 3, nil); err != nil {
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

// settleWithPayments 用若干笔已结算支付覆盖订单并迁移到已结算
func (env *modTestEnv) settleWithPayments(t *testing.T, orderID uint, amounts ...int64) *models.Order {
	t.Helper()
	now := time.Now()
	for _, amount := range amounts {
		payment := models.Payment{
			OrderID:   orderID,
			Method:    "manual",
			Amount:    models.NewMoneyFromInt(amount),
			Currency:  "USD",
			State:     constants.PaymentStateSettled,
			SettledAt: &now,
		}
		if err := env.db.Create(&payment).Error; err != nil {
			t.Fatalf("创建支付失败: %v", err)
		}
	}
	if _, err := env.orderSvc.Transition(orderID, constants.OrderStatePaymentSettled, 0); err != nil {
		t.Fatalf("结算迁移失败: %v", err)
	}
	current, err := env.orderSvc.GetOrder(orderID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	return current
}

// settledOrder 构造一笔单笔支付已结算的订单，含税总额 330
func (env *modTestEnv) settledOrder(t *testing.T, variant *models.ProductVariant) *models.Order {
	t.Helper()
	order := env.placedModOrder(t, variant)
	return env.settleWithPayments(t, order.ID, 330)
}

func TestBeginRequiresSettledLikeState(t *testing.T) {
	env := newModTestEnv(t)
	order, err := env.orderSvc.CreateDraft(CreateDraftInput{})
	if err != nil {
		t.Fatalf("创建草稿失败: %v", err)
	}
	if _, err := env.svc.Begin(order.ID, 1); !errors.Is(err, ErrOrderModificationState) {
		t.Fatalf("expected modification state error, got %v", err)
	}
}

func TestBeginEntersModifying(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-MOD", 100, 20)
	order := env.settledOrder(t, variant)

	begun, err := env.svc.Begin(order.ID, 1)
	if err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	if begun.State != constants.OrderStateModifying {
		t.Fatalf("unexpected state: %s", begun.State)
	}
	if begun.ReturnState != constants.OrderStatePaymentSettled {
		t.Fatalf("unexpected return state: %s", begun.ReturnState)
	}
}

func TestModifyRejectsEmptyInput(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-EMPTY", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	if _, err := env.svc.Modify(order.ID, ModifyOrderInput{}); !errors.Is(err, ErrNoChangesSpecified) {
		t.Fatalf("expected no changes error, got %v", err)
	}
}

func TestModifyRequiresModifyingState(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-STATE", 100, 20)
	order := env.settledOrder(t, variant)
	input := ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
	}
	if _, err := env.svc.Modify(order.ID, input); !errors.Is(err, ErrOrderModificationState) {
		t.Fatalf("expected modification state error, got %v", err)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-PREVIEW", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}

	result, err := env.svc.Preview(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("试算失败: %v", err)
	}
	if got := result.PriceDelta.String(); got != "-220.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	if result.Modification != nil || result.Refunds != nil {
		t.Fatalf("preview must not create records")
	}

	persisted, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if persisted.Lines[0].Quantity != 3 {
		t.Fatalf("preview must not change quantity, got %d", persisted.Lines[0].Quantity)
	}
	if got := persisted.TotalWithTax.String(); got != "330.00" {
		t.Fatalf("preview must not change totals, got %s", got)
	}
	if persisted.State != constants.OrderStateModifying {
		t.Fatalf("unexpected state: %s", persisted.State)
	}
}

func TestModifyIncreaseRequiresAdditionalPayment(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-INC", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}

	result, err := env.svc.Modify(order.ID, ModifyOrderInput{
		Note:        "客户加购",
		AdjustLines: []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 5}},
		AdminID:     1,
	})
	if err != nil {
		t.Fatalf("改单失败: %v", err)
	}
	if got := result.PriceDelta.String(); got != "220.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	if result.Order.State != constants.OrderStateArrangingAdditionalPayment {
		t.Fatalf("unexpected state: %s", result.Order.State)
	}
	// 补款路径保留回归状态
	if result.Order.ReturnState != constants.OrderStatePaymentSettled {
		t.Fatalf("unexpected return state: %s", result.Order.ReturnState)
	}
	if result.Modification == nil || result.Modification.ID == 0 {
		t.Fatalf("expected persisted modification record")
	}
	if len(result.Modification.Lines) != 1 || result.Modification.Lines[0].AddedQuantity != 2 {
		t.Fatalf("unexpected modification lines: %+v", result.Modification.Lines)
	}

	refreshed, err := env.variantRepo.GetByID(variant.ID)
	if err != nil {
		t.Fatalf("获取变体失败: %v", err)
	}
	// 下单扣 3，加购再扣 2
	if refreshed.StockOnHand != 15 {
		t.Fatalf("expected stock 15, got %d", refreshed.StockOnHand)
	}
}

func TestModifyDecreaseCreatesRefund(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-DEC", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	lineID := order.Lines[0].ID
	paymentID := order.Payments[0].ID

	result, err := env.svc.Modify(order.ID, ModifyOrderInput{
		Note:        "客户退货",
		AdjustLines: []AdjustLineSpec{{OrderLineID: lineID, Quantity: 1}},
		Refunds: []RefundSpec{{
			PaymentID: paymentID,
			Amount:    models.NewMoneyFromInt(220),
			Reason:    "减少数量",
		}},
		AdminID: 1,
	})
	if err != nil {
		t.Fatalf("改单失败: %v", err)
	}
	if got := result.PriceDelta.String(); got != "-220.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	if result.Order.State != constants.OrderStatePaymentSettled {
		t.Fatalf("expected return to settled, got %s", result.Order.State)
	}
	if result.Order.ReturnState != "" {
		t.Fatalf("return state must be cleared, got %s", result.Order.ReturnState)
	}
	if len(result.Refunds) != 1 || result.Refunds[0].ID == 0 {
		t.Fatalf("expected one persisted refund, got %+v", result.Refunds)
	}
	refund := result.Refunds[0]
	if refund.State != constants.RefundStatePending {
		t.Fatalf("unexpected refund state: %s", refund.State)
	}
	if len(refund.Lines) != 1 || refund.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected refund lines: %+v", refund.Lines)
	}

	refreshed, err := env.variantRepo.GetByID(variant.ID)
	if err != nil {
		t.Fatalf("获取变体失败: %v", err)
	}
	// 下单扣 3，退货释放 2
	if refreshed.StockOnHand != 19 {
		t.Fatalf("expected stock 19, got %d", refreshed.StockOnHand)
	}
}

func TestModifyDecreaseRequiresRefundSpec(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-NOREF", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	_, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrRefundPaymentIDMissing) {
		t.Fatalf("expected refund payment missing, got %v", err)
	}
}

func TestModifyRefundAmountMismatch(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-MISMATCH", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	_, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
		Refunds: []RefundSpec{{
			PaymentID: order.Payments[0].ID,
			Amount:    models.NewMoneyFromInt(100),
		}},
	})
	var mismatch *RefundAmountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}
	if got := mismatch.Expected.String(); got != "220.00" {
		t.Fatalf("unexpected expected amount: %s", got)
	}
}

func TestModifyQuantityBelowFulfilled(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-FULFILLED", 100, 20)
	order := env.settledOrder(t, variant)
	env.db.Model(&models.OrderLine{}).Where("id = ?", order.Lines[0].ID).
		Update("fulfilled_quantity", 2)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	_, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrQuantityBelowFulfilled) {
		t.Fatalf("expected below fulfilled error, got %v", err)
	}
}

func TestModifyExpectedVersionConflict(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-VERSION", 100, 20)
	order := env.settledOrder(t, variant)
	begun, err := env.svc.Begin(order.ID, 1)
	if err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	_, err = env.svc.Modify(order.ID, ModifyOrderInput{
		ExpectedVersion: begun.Version + 1,
		AdjustLines:     []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 5}},
	})
	if !errors.Is(err, ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestModifySurchargeRoundTrip(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-SURMOD", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}

	result, err := env.svc.Modify(order.ID, ModifyOrderInput{
		Surcharges: []SurchargeSpec{
			{
				Description: "加急费",
				Price:       models.NewMoneyFromInt(50),
				TaxRate:     models.NewMoneyFromInt(10),
			},
		},
	})
	if err != nil {
		t.Fatalf("添加附加费改单失败: %v", err)
	}
	// 50 + 10% 税 = 55
	if got := result.PriceDelta.String(); got != "55.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	if len(result.Modification.SurchargeIDs) != 1 {
		t.Fatalf("expected surcharge recorded on modification")
	}
	surchargeID := result.Modification.SurchargeIDs[0]

	// 模拟补款完成回到已结算
	env.db.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"state":        constants.OrderStatePaymentSettled,
		"return_state": "",
	})

	// 移除附加费需要退款指令
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("再次进入改单失败: %v", err)
	}
	removal, err := env.svc.Modify(order.ID, ModifyOrderInput{
		RemoveSurchargeIDs: []uint{surchargeID},
		Refunds: []RefundSpec{{
			PaymentID: order.Payments[0].ID,
			Amount:    models.NewMoneyFromInt(55),
		}},
	})
	if err != nil {
		t.Fatalf("移除附加费改单失败: %v", err)
	}
	if got := removal.PriceDelta.String(); got != "-55.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	if len(removal.Order.Surcharges) != 0 {
		t.Fatalf("expected surcharge removed")
	}

	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("再次进入改单失败: %v", err)
	}
	if _, err := env.svc.Modify(order.ID, ModifyOrderInput{
		RemoveSurchargeIDs: []uint{9999},
	}); !errors.Is(err, ErrSurchargeNotFound) {
		t.Fatalf("expected surcharge not found, got %v", err)
	}
}

func TestModifyRefundSplitsAcrossPayments(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-SPLIT", 100, 20)
	placed := env.placedModOrder(t, variant)
	// 330 由 150 + 180 两笔支付覆盖
	order := env.settleWithPayments(t, placed.ID, 150, 180)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	lineID := order.Lines[0].ID

	// 单笔 220 超过任一支付的可退额度
	_, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: lineID, Quantity: 1}},
		Refunds: []RefundSpec{{
			PaymentID: order.Payments[0].ID,
			Amount:    models.NewMoneyFromInt(220),
		}},
	})
	if !errors.Is(err, ErrRefundExceedsSettled) {
		t.Fatalf("expected exceeds settled, got %v", err)
	}

	// 按支付拆成两笔后可提交
	result, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: lineID, Quantity: 1}},
		Refunds: []RefundSpec{
			{PaymentID: order.Payments[0].ID, Amount: models.NewMoneyFromInt(150)},
			{PaymentID: order.Payments[1].ID, Amount: models.NewMoneyFromInt(70)},
		},
		AdminID: 1,
	})
	if err != nil {
		t.Fatalf("拆分退款改单失败: %v", err)
	}
	if got := result.PriceDelta.String(); got != "-220.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	if len(result.Refunds) != 2 {
		t.Fatalf("expected two refunds, got %d", len(result.Refunds))
	}
	if got := result.Refunds[0].Amount.String(); got != "150.00" {
		t.Fatalf("unexpected first refund amount: %s", got)
	}
	if got := result.Refunds[1].Amount.String(); got != "70.00" {
		t.Fatalf("unexpected second refund amount: %s", got)
	}
	for _, refund := range result.Refunds {
		if refund.ID == 0 || refund.State != constants.RefundStatePending {
			t.Fatalf("unexpected refund record: %+v", refund)
		}
	}
	if len(result.Modification.RefundIDs) != 2 {
		t.Fatalf("expected both refunds recorded on modification")
	}
	if result.Order.State != constants.OrderStatePaymentSettled {
		t.Fatalf("unexpected state: %s", result.Order.State)
	}
}

func TestModifyCommitRecordsStateTransition(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-HIST", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}
	_, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 1}},
		Refunds: []RefundSpec{{
			PaymentID: order.Payments[0].ID,
			Amount:    models.NewMoneyFromInt(220),
		}},
		AdminID: 1,
	})
	if err != nil {
		t.Fatalf("改单失败: %v", err)
	}

	var entries []models.HistoryEntry
	if err := env.db.Where("order_id = ? AND type = ?", order.ID, constants.HistoryTypeStateTransition).
		Order("id asc").Find(&entries).Error; err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected state transition history")
	}
	last := entries[len(entries)-1]
	if last.Data["from"] != constants.OrderStateModifying || last.Data["to"] != constants.OrderStatePaymentSettled {
		t.Fatalf("unexpected transition entry: %+v", last.Data)
	}
}

func TestModifyCustomFieldsInPlace(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-FIELDS", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}

	result, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{
			OrderLineID:  order.Lines[0].ID,
			Quantity:     3,
			CustomFields: models.JSON{"engraving": "定制刻字"},
		}},
		AdminID: 1,
	})
	if err != nil {
		t.Fatalf("改单失败: %v", err)
	}
	if got := result.PriceDelta.String(); got != "0.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	// 零价差直接回到原状态
	if result.Order.State != constants.OrderStatePaymentSettled {
		t.Fatalf("unexpected state: %s", result.Order.State)
	}
	if len(result.Modification.Lines) != 1 || !result.Modification.Lines[0].ModifiedInPlace {
		t.Fatalf("expected in-place modification line, got %+v", result.Modification.Lines)
	}
	if result.Modification.Lines[0].OrderLineID != order.Lines[0].ID {
		t.Fatalf("unexpected order line id: %d", result.Modification.Lines[0].OrderLineID)
	}

	persisted, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if persisted.Lines[0].Quantity != 3 {
		t.Fatalf("quantity must stay 3, got %d", persisted.Lines[0].Quantity)
	}
	if persisted.Lines[0].CustomFields["engraving"] != "定制刻字" {
		t.Fatalf("unexpected custom fields: %+v", persisted.Lines[0].CustomFields)
	}
}

func TestModifySetCouponCodesReplacesSet(t *testing.T) {
	env := newModTestEnv(t)
	promotion := models.Promotion{
		Name:       "SAVE10",
		CouponCode: "SAVE10",
		Enabled:    true,
		Actions: models.OperationConfigList{
			{
				Code: "percentage_discount",
				Args: []models.ConfigArg{{Name: "percentage", Value: "10"}},
			},
		},
	}
	if err := env.db.Create(&promotion).Error; err != nil {
		t.Fatalf("创建促销失败: %v", err)
	}
	variant := env.createVariant(t, "SKU-SETCOUPON", 100, 20)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}

	if _, err := env.svc.Modify(order.ID, ModifyOrderInput{
		SetCouponCodes: []string{"NOPE"},
	}); !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected invalid coupon, got %v", err)
	}

	// 九折后 300 → 270，含税 297，价差 -33
	result, err := env.svc.Modify(order.ID, ModifyOrderInput{
		SetCouponCodes: []string{"SAVE10"},
		Refunds: []RefundSpec{{
			PaymentID: order.Payments[0].ID,
			Amount:    models.NewMoneyFromInt(33),
		}},
		AdminID: 1,
	})
	if err != nil {
		t.Fatalf("替换优惠码改单失败: %v", err)
	}
	if got := result.PriceDelta.String(); got != "-33.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	if !result.Order.CouponCodes.Contains("SAVE10") {
		t.Fatalf("expected SAVE10 applied, got %+v", result.Order.CouponCodes)
	}

	// 空集合清空全部优惠码，差额转补款
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("再次进入改单失败: %v", err)
	}
	cleared, err := env.svc.Modify(order.ID, ModifyOrderInput{
		SetCouponCodes: []string{},
		AdminID:        1,
	})
	if err != nil {
		t.Fatalf("清空优惠码改单失败: %v", err)
	}
	if got := cleared.PriceDelta.String(); got != "33.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	if len(cleared.Order.CouponCodes) != 0 {
		t.Fatalf("expected coupons cleared, got %+v", cleared.Order.CouponCodes)
	}
	if cleared.Order.State != constants.OrderStateArrangingAdditionalPayment {
		t.Fatalf("unexpected state: %s", cleared.Order.State)
	}
}

func TestModifyRollbackKeepsOrderIntact(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-ATOMIC", 100, 20)
	sold := env.createVariant(t, "SKU-SOLDOUT", 50, 0)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}

	// 加量成功、新增行库存不足，整个事务回滚
	_, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AdjustLines: []AdjustLineSpec{{OrderLineID: order.Lines[0].ID, Quantity: 5}},
		AddLines:    []AddLineSpec{{VariantID: sold.ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	persisted, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if persisted.State != constants.OrderStateModifying {
		t.Fatalf("failed commit must stay modifying, got %s", persisted.State)
	}
	if len(persisted.Lines) != 1 || persisted.Lines[0].Quantity != 3 {
		t.Fatalf("failed commit must not change lines: %+v", persisted.Lines)
	}
	if got := persisted.TotalWithTax.String(); got != "330.00" {
		t.Fatalf("failed commit must not change totals, got %s", got)
	}

	refreshed, err := env.variantRepo.GetByID(variant.ID)
	if err != nil {
		t.Fatalf("获取变体失败: %v", err)
	}
	// 下单扣 3，失败的加量不得再扣
	if refreshed.StockOnHand != 17 {
		t.Fatalf("expected stock 17, got %d", refreshed.StockOnHand)
	}

	var modifications int64
	if err := env.db.Model(&models.OrderModification{}).
		Where("order_id = ?", order.ID).Count(&modifications).Error; err != nil {
		t.Fatalf("查询改单记录失败: %v", err)
	}
	if modifications != 0 {
		t.Fatalf("failed commit must not record modification, got %d", modifications)
	}
	var refunds int64
	if err := env.db.Model(&models.Refund{}).
		Where("order_id = ?", order.ID).Count(&refunds).Error; err != nil {
		t.Fatalf("查询退款失败: %v", err)
	}
	if refunds != 0 {
		t.Fatalf("failed commit must not create refunds, got %d", refunds)
	}
}

func TestModifyAddLineAllocatesStock(t *testing.T) {
	env := newModTestEnv(t)
	variant := env.createVariant(t, "SKU-BASE", 100, 20)
	extra := env.createVariant(t, "SKU-EXTRA", 50, 1)
	order := env.settledOrder(t, variant)
	if _, err := env.svc.Begin(order.ID, 1); err != nil {
		t.Fatalf("进入改单失败: %v", err)
	}

	// 库存不足时整个改单回滚
	_, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AddLines: []AddLineSpec{{VariantID: extra.ID, Quantity: 2}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	persisted, err := env.orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if len(persisted.Lines) != 1 {
		t.Fatalf("failed modification must not add lines, got %d", len(persisted.Lines))
	}

	result, err := env.svc.Modify(order.ID, ModifyOrderInput{
		AddLines: []AddLineSpec{{VariantID: extra.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("改单失败: %v", err)
	}
	if len(result.Order.Lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(result.Order.Lines))
	}
	// 新增 1 件 50 元税率 10%，含税 55
	if got := result.PriceDelta.String(); got != "55.00" {
		t.Fatalf("unexpected price delta: %s", got)
	}
	refreshed, err := env.variantRepo.GetByID(extra.ID)
	if err != nil {
		t.Fatalf("获取变体失败: %v", err)
	}
	if refreshed.StockOnHand != 0 {
		t.Fatalf("expected stock 0, got %d", refreshed.StockOnHand)
	}
}
