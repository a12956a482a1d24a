package service

import (
	"errors"
	"fmt"

	"github.com/ordernext/internal/models"
)

// 服务层统一错误定义；调用方通过 errors.Is 判断
var (
	ErrOrderNotFound          = errors.New("订单不存在")
	ErrOrderLineNotFound      = errors.New("订单行不存在")
	ErrVariantNotFound        = errors.New("商品规格不存在")
	ErrVariantDisabled        = errors.New("商品规格已下架")
	ErrPaymentNotFound        = errors.New("支付记录不存在")
	ErrRefundNotFound         = errors.New("退款记录不存在")
	ErrFulfillmentNotFound    = errors.New("履约记录不存在")
	ErrSurchargeNotFound      = errors.New("附加费不存在")
	ErrShippingMethodNotFound = errors.New("运费方式不存在")
	ErrHistoryEntryNotFound   = errors.New("历史记录不存在")

	ErrOrderNotEditable       = errors.New("订单当前状态不允许编辑订单行")
	ErrOrderModificationState = errors.New("订单当前状态不允许改单")
	ErrOrderVersionConflict   = errors.New("订单已被其他操作修改，请重试")
	ErrNegativeQuantity       = errors.New("数量不能为负数")
	ErrNoChangesSpecified     = errors.New("改单请求未包含任何变更")
	ErrOrderLimitExceeded     = errors.New("订单行数或数量超出限制")
	ErrQuantityBelowFulfilled = errors.New("数量不能低于已履约数量")
	ErrQuantityBelowRefunded  = errors.New("数量不能低于已退款数量")
	ErrInsufficientStock      = errors.New("库存不足")

	ErrCouponInvalid    = errors.New("优惠码无效")
	ErrCouponExpired    = errors.New("优惠码已过期")
	ErrCouponUsageLimit = errors.New("优惠码已达使用上限")

	ErrShippingMethodNotEligible = errors.New("运费方式不适用于当前订单")

	ErrPaymentMethodMissing      = errors.New("未指定支付方式")
	ErrPaymentStateInvalid       = errors.New("支付当前状态不允许该操作")
	ErrPaymentAmountExceedsDue   = errors.New("支付金额超出订单应付金额")
	ErrRefundPaymentIDMissing    = errors.New("退款必须指定支付记录")
	ErrRefundStateInvalid        = errors.New("退款当前状态不允许该操作")
	ErrRefundExceedsSettled      = errors.New("退款金额超出该支付的可退金额")
	ErrRefundLineExceedsHeadroom = errors.New("退款数量超出订单行可退数量")

	ErrFulfillmentStateInvalid    = errors.New("履约当前状态不允许该操作")
	ErrFulfillmentEmptyLines      = errors.New("履约必须包含至少一个订单行")
	ErrFulfillmentExceedsHeadroom = errors.New("履约数量超出订单行可履约数量")

	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidEmail       = errors.New("邮箱格式不正确")
)

// RefundAmountMismatchError 退款总额与明细合计不一致
type RefundAmountMismatchError struct {
	Expected models.Money
	Actual   models.Money
}

// Error 实现 error 接口
func (e *RefundAmountMismatchError) Error() string {
	return fmt.Sprintf("退款总额 %s 与明细合计 %s 不一致", e.Actual, e.Expected)
}
