package shared

import (
	"errors"

	"github.com/ordernext/internal/http/response"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/orderstate"
	"github.com/ordernext/internal/payment"
	"github.com/ordernext/internal/service"

	"github.com/gin-gonic/gin"
)

// RespondServiceError 将服务层错误映射为统一响应
func RespondServiceError(c *gin.Context, err error) {
	if err == nil {
		response.Success(c, nil)
		return
	}

	var transitionErr *orderstate.TransitionError
	if errors.As(err, &transitionErr) {
		response.ErrorWithData(c, response.CodeBadRequest, err.Error(), gin.H{
			"from":    transitionErr.From,
			"to":      transitionErr.To,
			"allowed": transitionErr.Allowed,
		})
		return
	}
	var preconditionErr *orderstate.PreconditionError
	if errors.As(err, &preconditionErr) {
		response.BadRequest(c, err.Error())
		return
	}
	var mismatchErr *service.RefundAmountMismatchError
	if errors.As(err, &mismatchErr) {
		response.ErrorWithData(c, response.CodeBadRequest, err.Error(), gin.H{
			"expected": mismatchErr.Expected.String(),
			"actual":   mismatchErr.Actual.String(),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrOrderLineNotFound),
		errors.Is(err, service.ErrVariantNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrRefundNotFound),
		errors.Is(err, service.ErrFulfillmentNotFound),
		errors.Is(err, service.ErrSurchargeNotFound),
		errors.Is(err, service.ErrShippingMethodNotFound),
		errors.Is(err, service.ErrHistoryEntryNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrOrderVersionConflict):
		response.Error(c, response.CodeConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, orderstate.ErrTransitionNoChange),
		errors.Is(err, service.ErrOrderNotEditable),
		errors.Is(err, service.ErrOrderModificationState),
		errors.Is(err, service.ErrNegativeQuantity),
		errors.Is(err, service.ErrNoChangesSpecified),
		errors.Is(err, service.ErrOrderLimitExceeded),
		errors.Is(err, service.ErrQuantityBelowFulfilled),
		errors.Is(err, service.ErrQuantityBelowRefunded),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrVariantDisabled),
		errors.Is(err, service.ErrCouponInvalid),
		errors.Is(err, service.ErrCouponExpired),
		errors.Is(err, service.ErrCouponUsageLimit),
		errors.Is(err, service.ErrShippingMethodNotEligible),
		errors.Is(err, service.ErrPaymentMethodMissing),
		errors.Is(err, service.ErrPaymentStateInvalid),
		errors.Is(err, service.ErrPaymentAmountExceedsDue),
		errors.Is(err, service.ErrRefundPaymentIDMissing),
		errors.Is(err, service.ErrRefundStateInvalid),
		errors.Is(err, service.ErrRefundExceedsSettled),
		errors.Is(err, service.ErrRefundLineExceedsHeadroom),
		errors.Is(err, service.ErrFulfillmentStateInvalid),
		errors.Is(err, service.ErrFulfillmentEmptyLines),
		errors.Is(err, service.ErrFulfillmentExceedsHeadroom),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, payment.ErrHandlerNotFound),
		errors.Is(err, payment.ErrHandlerDeclined):
		response.BadRequest(c, err.Error())
	default:
		logger.Errorw("internal_error", "error", err)
		response.Error(c, response.CodeInternal, "internal error")
	}
}
