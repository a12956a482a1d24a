package constants

// 订单状态
const (
	OrderStateAddingItems                = "adding_items"                 // 购物中，订单行可自由编辑
	OrderStateArrangingPayment           = "arranging_payment"            // 等待支付，订单行冻结
	OrderStatePaymentAuthorized          = "payment_authorized"           // 支付已授权未结算
	OrderStatePaymentSettled             = "payment_settled"              // 支付已结算
	OrderStateShipped                    = "shipped"                      // 已发货
	OrderStatePartiallyDelivered         = "partially_delivered"          // 部分送达
	OrderStateDelivered                  = "delivered"                    // 全部送达（终态）
	OrderStateCancelled                  = "cancelled"                    // 已取消（终态）
	OrderStateModifying                  = "modifying"                    // 管理员改单中
	OrderStateArrangingAdditionalPayment = "arranging_additional_payment" // 改单后等待补款
)

// 支付状态
const (
	PaymentStateCreated    = "created"
	PaymentStateAuthorized = "authorized"
	PaymentStateSettled    = "settled"
	PaymentStateDeclined   = "declined"
	PaymentStateCancelled  = "cancelled"
	PaymentStateError      = "error"
)

// 退款状态
const (
	RefundStatePending = "pending"
	RefundStateSettled = "settled"
	RefundStateFailed  = "failed"
)

// 履约状态
const (
	FulfillmentStatePending   = "pending"
	FulfillmentStateShipped   = "shipped"
	FulfillmentStateDelivered = "delivered"
	FulfillmentStateCancelled = "cancelled"
)

// 历史记录类型
const (
	HistoryTypeStateTransition       = "state_transition"
	HistoryTypeNote                  = "note"
	HistoryTypeModification          = "modification"
	HistoryTypePaymentTransition     = "payment_transition"
	HistoryTypeRefundTransition      = "refund_transition"
	HistoryTypeFulfillment           = "fulfillment"
	HistoryTypeFulfillmentTransition = "fulfillment_transition"
	HistoryTypeCouponApplied         = "coupon_applied"
	HistoryTypeCouponRemoved         = "coupon_removed"
	HistoryTypeCustomerUpdate        = "customer_update"
)

// 促销动作/条件类型
const (
	PromotionActionPercentage = "percentage_discount"
	PromotionActionFixed      = "fixed_discount"
)

// 异步任务类型
const (
	TaskOrderPlaced          = "order:placed"
	TaskOrderStateTransition = "order:state_transition"
	TaskOrderModified        = "order:modified"
	TaskPaymentSettled       = "payment:settled"
	TaskRefundSettled        = "refund:settled"
)

// QueueDefault 默认队列名称
const QueueDefault = "default"

// 订单约束
const (
	// MaxOrderLines 单个订单允许的最大订单行数
	MaxOrderLines = 100
	// MaxLineQuantity 单行允许的最大数量
	MaxLineQuantity = 999
)

// OrderCodePrefix 订单编号前缀
const OrderCodePrefix = "ON"
