package provider

import (
	"github.com/ordernext/internal/cache"
	"github.com/ordernext/internal/config"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/payment"
	"github.com/ordernext/internal/pricing"
	"github.com/ordernext/internal/queue"
	"github.com/ordernext/internal/repository"
	"github.com/ordernext/internal/rules"
	"github.com/ordernext/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config          *config.Config
	QueueClient     *queue.Client
	RulesRegistry   *rules.Registry
	PaymentRegistry *payment.Registry
	PricingEngine   *pricing.Engine

	// Repositories
	AdminRepo          repository.AdminRepository
	OrderRepo          repository.OrderRepository
	VariantRepo        repository.VariantRepository
	PromotionRepo      repository.PromotionRepository
	ShippingMethodRepo repository.ShippingMethodRepository
	PaymentRepo        repository.PaymentRepository
	RefundRepo         repository.RefundRepository
	FulfillmentRepo    repository.FulfillmentRepository
	HistoryRepo        repository.HistoryRepository
	ModificationRepo   repository.ModificationRepository

	// Services
	AuthService         *service.AuthService
	OrderService        *service.OrderService
	ModificationService *service.ModificationService
	PaymentService      *service.PaymentService
	FulfillmentService  *service.FulfillmentService
	HistoryService      *service.HistoryService
	CatalogService      *service.CatalogService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:          cfg,
		QueueClient:     queueClient,
		RulesRegistry:   rules.DefaultRegistry(),
		PaymentRegistry: payment.DefaultRegistry(),
	}
	c.PricingEngine = pricing.NewEngine(c.RulesRegistry)

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.VariantRepo = repository.NewVariantRepository(db)
	c.PromotionRepo = repository.NewPromotionRepository(db)
	c.ShippingMethodRepo = repository.NewShippingMethodRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
	c.FulfillmentRepo = repository.NewFulfillmentRepository(db)
	c.HistoryRepo = repository.NewHistoryRepository(db)
	c.ModificationRepo = repository.NewModificationRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.OrderService = service.NewOrderService(
		c.OrderRepo, c.VariantRepo, c.PromotionRepo, c.ShippingMethodRepo, c.HistoryRepo,
		c.QueueClient, c.PricingEngine,
		c.Config.Order.MaxLines, c.Config.Order.MaxLineQuantity,
	)
	c.ModificationService = service.NewModificationService(
		c.OrderRepo, c.VariantRepo, c.PromotionRepo, c.ShippingMethodRepo,
		c.PaymentRepo, c.RefundRepo, c.ModificationRepo, c.HistoryRepo,
		c.QueueClient, c.PricingEngine, c.Config.Order.MaxLineQuantity,
	)
	c.PaymentService = service.NewPaymentService(
		c.OrderRepo, c.PaymentRepo, c.RefundRepo, c.HistoryRepo, c.ModificationRepo,
		c.PaymentRegistry, c.QueueClient, c.Config.Payment.GatewayTimeoutSeconds,
	)
	c.FulfillmentService = service.NewFulfillmentService(
		c.OrderRepo, c.FulfillmentRepo, c.HistoryRepo, c.QueueClient,
	)
	c.HistoryService = service.NewHistoryService(c.OrderRepo, c.HistoryRepo)
	c.CatalogService = service.NewCatalogService(
		c.VariantRepo, c.PromotionRepo, c.ShippingMethodRepo, c.RulesRegistry,
	)
}
