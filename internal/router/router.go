package router

import (
	"fmt"
	"strings"

	"github.com/ordernext/internal/cache"
	"github.com/ordernext/internal/config"
	adminhandlers "github.com/ordernext/internal/http/handlers/admin"
	publichandlers "github.com/ordernext/internal/http/handlers/public"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "on"
	}
	redisClient := cache.Client()
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 店面接口：以会话标识操作购物车与订单
		cart := apiV1.Group("/cart")
		{
			cart.POST("", publicHandler.CreateCart)
			cart.GET("", publicHandler.GetCart)
			cart.POST("/lines", publicHandler.AddCartLine)
			cart.PUT("/lines/:line_id", publicHandler.AdjustCartLine)
			cart.DELETE("/lines/:line_id", publicHandler.RemoveCartLine)
			cart.PUT("/customer", publicHandler.SetCartCustomer)
			cart.PUT("/shipping-address", publicHandler.SetCartShippingAddress)
			cart.PUT("/billing-address", publicHandler.SetCartBillingAddress)
			cart.GET("/shipping-methods", publicHandler.EligibleShippingMethods)
			cart.PUT("/shipping-method", publicHandler.SetCartShippingMethod)
			cart.POST("/coupons", publicHandler.ApplyCartCoupon)
			cart.DELETE("/coupons/:code", publicHandler.RemoveCartCoupon)
			cart.POST("/place", publicHandler.PlaceOrder)
		}

		apiV1.GET("/payment-methods", publicHandler.PaymentMethods)
		apiV1.GET("/orders/:code", publicHandler.GetOrderByCode)
		apiV1.POST("/orders/:code/pay", publicHandler.PayOrder)

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.Login)

			authed := admin.Group("")
			authed.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authed.PUT("/password", adminHandler.ChangePassword)

				authed.GET("/orders", adminHandler.ListOrders)
				authed.GET("/orders/:id", adminHandler.GetOrder)
				authed.POST("/orders/:id/transition", adminHandler.TransitionOrder)
				authed.GET("/orders/:id/transitions", adminHandler.AllowedTransitions)
				authed.POST("/orders/:id/recalculate", adminHandler.RecalculateOrder)
				authed.POST("/orders/:id/coupons", adminHandler.ApplyCoupon)
				authed.DELETE("/orders/:id/coupons/:code", adminHandler.RemoveCoupon)
				authed.POST("/orders/:id/surcharges", adminHandler.AddSurcharge)
				authed.DELETE("/orders/:id/surcharges/:surcharge_id", adminHandler.RemoveSurcharge)
				authed.PUT("/orders/:id/customer", adminHandler.SetOrderCustomer)
				authed.PUT("/orders/:id/shipping-address", adminHandler.SetOrderShippingAddress)
				authed.PUT("/orders/:id/billing-address", adminHandler.SetOrderBillingAddress)

				authed.GET("/orders/:id/history", adminHandler.ListHistory)
				authed.POST("/orders/:id/notes", adminHandler.AddNote)
				authed.PUT("/notes/:entry_id", adminHandler.UpdateNote)
				authed.DELETE("/notes/:entry_id", adminHandler.DeleteNote)

				authed.POST("/orders/:id/modification/begin", adminHandler.BeginModification)
				authed.POST("/orders/:id/modification/preview", adminHandler.PreviewModification)
				authed.POST("/orders/:id/modification", adminHandler.CommitModification)

				authed.GET("/payments", adminHandler.ListPayments)
				authed.POST("/orders/:id/payments", adminHandler.AddPayment)
				authed.POST("/payments/:payment_id/settle", adminHandler.SettlePayment)
				authed.POST("/payments/:payment_id/cancel", adminHandler.CancelPayment)
				authed.POST("/payments/:payment_id/decline", adminHandler.DeclinePayment)

				authed.POST("/refunds", adminHandler.CreateRefund)
				authed.POST("/refunds/:refund_id/settle", adminHandler.SettleRefund)
				authed.POST("/refunds/:refund_id/fail", adminHandler.FailRefund)

				authed.GET("/orders/:id/fulfillments", adminHandler.ListFulfillments)
				authed.POST("/orders/:id/fulfillments", adminHandler.CreateFulfillment)
				authed.POST("/fulfillments/:fulfillment_id/transition", adminHandler.TransitionFulfillment)
				authed.GET("/fulfillments/:fulfillment_id/next-state", adminHandler.SuggestedFulfillmentState)

				authed.POST("/variants", adminHandler.CreateVariant)
				authed.GET("/variants/:id", adminHandler.GetVariant)
				authed.POST("/variants/:id/stock", adminHandler.AdjustVariantStock)
				authed.POST("/promotions", adminHandler.CreatePromotion)
				authed.GET("/promotions", adminHandler.ListPromotions)
				authed.POST("/shipping-methods", adminHandler.CreateShippingMethod)
				authed.GET("/shipping-methods", adminHandler.ListShippingMethods)
			}
		}
	}

	return r
}
