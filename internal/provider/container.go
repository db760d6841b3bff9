package provider

import (
	"errors"

	"github.com/dujiao-next/settlement/internal/authz"
	"github.com/dujiao-next/settlement/internal/cache"
	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/queue"
	"github.com/dujiao-next/settlement/internal/repository"
	"github.com/dujiao-next/settlement/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo             repository.AdminRepository
	UserRepo              repository.UserRepository
	ProductRepo           repository.ProductRepository
	OrderRepo             repository.OrderRepository
	CommissionSettingRepo repository.CommissionSettingRepository
	CommissionRepo        repository.CommissionRepository
	WalletRepo            repository.WalletRepository
	RankRepo              repository.RankRepository
	SettlementTaskRepo    repository.SettlementTaskRepository
	NotificationRepo      repository.NotificationRepository

	// Services
	AuthzService             *authz.Service
	AuthService              *service.AuthService
	UserAuthService          *service.UserAuthService
	ProductService           *service.ProductService
	OrderService             *service.OrderService
	PaymentService           *service.PaymentService
	SettlementService        *service.SettlementService
	CommissionSettingService *service.CommissionSettingService
	RankService              *service.RankService
	WalletService            *service.WalletService
	NotificationService      *service.NotificationService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，未启用时为空操作客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.CommissionSettingRepo = repository.NewCommissionSettingRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.RankRepo = repository.NewRankRepository(db)
	c.SettlementTaskRepo = repository.NewSettlementTaskRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.CommissionSettingService = service.NewCommissionSettingService(c.CommissionSettingRepo)
	c.RankService = service.NewRankService(c.RankRepo, c.UserRepo, c.OrderRepo, c.Config.Settlement)
	c.WalletService = service.NewWalletService(c.WalletRepo, c.CommissionRepo)
	c.NotificationService = service.NewNotificationService(c.NotificationRepo, c.QueueClient)
	c.SettlementService = service.NewSettlementService(
		c.OrderRepo,
		c.UserRepo,
		c.SettlementTaskRepo,
		c.CommissionRepo,
		c.CommissionSettingService,
		service.NewReferralWalker(c.UserRepo),
		service.NewLedgerWriter(c.CommissionRepo, c.WalletRepo),
		c.RankService,
		c.NotificationService,
		c.QueueClient,
		c.Config.Settlement,
	)
	c.ProductService = service.NewProductService(c.ProductRepo)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.ProductRepo, c.UserRepo, c.Config.Order)
	c.PaymentService = service.NewPaymentService(
		c.OrderRepo,
		service.NewHMACSignatureVerifier(c.Config.Payment.SigningSecret),
		c.SettlementService,
		c.Config.Payment,
	)
}

// SeedDefaults 补齐默认佣金层级与等级阶梯，不覆盖运营已调整的记录
func (c *Container) SeedDefaults() error {
	created, err := c.CommissionSettingService.EnsureDefaults()
	if err != nil {
		return err
	}
	ranks, err := c.RankService.EnsureDefaultRanks()
	if err != nil {
		return err
	}
	logger.Infow("provider_seed_defaults", "commission_levels_created", created, "ranks_created", ranks)
	return nil
}

// Close 释放队列客户端与 Redis 连接
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.QueueClient.Close(), cache.Close())
}
