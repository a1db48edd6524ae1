package provider

import (
	"time"

	"github.com/mealdash-next/internal/authz"
	"github.com/mealdash-next/internal/cache"
	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/config"
	"github.com/mealdash-next/internal/geo"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/notify"
	"github.com/mealdash-next/internal/payment/gateway"
	"github.com/mealdash-next/internal/printer"
	"github.com/mealdash-next/internal/queue"
	"github.com/mealdash-next/internal/repository"
	"github.com/mealdash-next/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Clock       clock.Clock

	// Repositories
	Transactor         repository.Transactor
	AdminRepo          repository.AdminRepository
	OrderRepo          repository.OrderRepository
	PaymentRepo        repository.PaymentRepository
	PromoCodeRepo      repository.PromoCodeRepository
	ReferrerRepo       repository.ReferrerRepository
	AttributionRepo    repository.AttributionRepository
	CommissionRepo     repository.CommissionRepository
	CourierRepo        repository.CourierRepository
	AssignmentRepo     repository.AssignmentRepository
	PrintJobRepo       repository.PrintJobRepository
	OperatingStateRepo repository.OperatingStateRepository
	SettingRepo        repository.SettingRepository
	AuditLogRepo       repository.AuditLogRepository

	// Services
	AuthzService          *authz.Service
	AuthService           *service.AuthService
	AuditService          *service.AuditService
	SettingService        *service.SettingService
	NotificationService   *service.NotificationService
	CapacityService       *service.CapacityService
	OperatingHoursService *service.OperatingHoursService
	PromoService          *service.PromoService
	AttributionService    *service.AttributionService
	PrintService          *service.PrintService
	FulfillmentDispatcher *service.FulfillmentDispatcher
	PaymentService        *service.PaymentService
	AssignmentService     *service.CourierAssignmentService
	OrderService          *service.OrderService
	ReportService         *service.ReportService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Clock:       clock.SystemClock{},
	}

	c.initRepositories(models.DB)
	c.initServices()
	return c
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.Transactor = repository.NewTransactor(db)
	c.AdminRepo = repository.NewAdminRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.PromoCodeRepo = repository.NewPromoCodeRepository(db)
	c.ReferrerRepo = repository.NewReferrerRepository(db)
	c.AttributionRepo = repository.NewAttributionRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.CourierRepo = repository.NewCourierRepository(db)
	c.AssignmentRepo = repository.NewAssignmentRepository(db)
	c.PrintJobRepo = repository.NewPrintJobRepository(db)
	c.OperatingStateRepo = repository.NewOperatingStateRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
	c.AuditLogRepo = repository.NewAuditLogRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config

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

	c.AuthService = service.NewAuthService(cfg.JWT, c.AdminRepo)
	c.AuditService = service.NewAuditService(c.AuditLogRepo, c.Clock)
	c.SettingService = service.NewSettingService(c.SettingRepo)

	c.NotificationService = service.NewNotificationService(c.QueueClient, buildWhatsAppSender(cfg), buildTelegramAlerter(cfg), service.NotificationOptions{
		RestaurantName: cfg.Restaurant.Name,
		AdminPhones:    cfg.Notification.AdminPhones,
		SendTimeout:    cfg.Notification.Timeout(),
	})

	// Redis 未启用时 NewLocker 返回 nil，需显式转成 nil 接口
	var locker cache.Locker
	if l := cache.NewLocker(); l != nil {
		locker = l
	}
	c.CapacityService = service.NewCapacityService(c.OrderRepo, c.OperatingStateRepo, c.SettingService, c.NotificationService, locker, c.Clock)
	c.OperatingHoursService = service.NewOperatingHoursService(c.SettingService, cfg.Restaurant.Timezone, c.Clock)
	c.PromoService = service.NewPromoService(c.PromoCodeRepo, c.ReferrerRepo, c.Clock)
	c.AttributionService = service.NewAttributionService(c.Transactor, c.OrderRepo, c.PromoCodeRepo, c.ReferrerRepo, c.AttributionRepo, c.CommissionRepo, c.Clock)

	var transport service.PrintTransport
	if cfg.Printer.Enabled {
		transport = printer.NewHTTPTransport(printer.Config{
			Endpoint: cfg.Printer.Endpoint,
			Timeout:  cfg.Printer.Timeout(),
		})
	}
	c.PrintService = service.NewPrintService(c.PrintJobRepo, transport, c.QueueClient, service.PrintOptions{
		MaxAttempts: cfg.Printer.MaxAttempts,
		RetryAfter:  time.Duration(cfg.Worker.PrintRetryAfterSeconds) * time.Second,
		Timeout:     cfg.Printer.Timeout(),
	}, c.Clock)
	c.FulfillmentDispatcher = service.NewFulfillmentDispatcher(c.PrintJobRepo, c.PrintService, c.NotificationService, c.Clock)

	var verifier service.PaymentVerifier
	if cfg.Payment.VerifyURL != "" {
		verifier = gateway.NewClient(gateway.Config{
			VerifyURL:     cfg.Payment.VerifyURL,
			APIKey:        cfg.Payment.VerifyAPIKey,
			WebhookSecret: cfg.Payment.WebhookSecret,
			Timeout:       cfg.Payment.VerifyTimeout(),
		})
	}
	c.PaymentService = service.NewPaymentService(
		c.Transactor,
		c.OrderRepo,
		c.PaymentRepo,
		verifier,
		c.AttributionService,
		c.FulfillmentDispatcher,
		c.QueueClient,
		c.CapacityService,
		service.PaymentOptions{WebhookSecret: cfg.Payment.WebhookSecret},
		c.Clock,
	)

	origin := geo.Point{Lat: cfg.Restaurant.OriginLat, Lng: cfg.Restaurant.OriginLng}
	c.AssignmentService = service.NewCourierAssignmentService(c.Transactor, c.OrderRepo, c.CourierRepo, c.AssignmentRepo, c.SettingService, c.QueueClient, c.CapacityService, origin, c.Clock)

	deliveryFee, err := decimal.NewFromString(cfg.Restaurant.DeliveryFee)
	if err != nil {
		logger.Warnw("provider_delivery_fee_invalid", "value", cfg.Restaurant.DeliveryFee, "error", err)
		deliveryFee = decimal.Zero
	}
	c.OrderService = service.NewOrderService(
		c.OrderRepo,
		c.PromoService,
		c.OperatingHoursService,
		c.CapacityService,
		c.AssignmentService,
		c.SettingService,
		c.NotificationService,
		c.QueueClient,
		service.OrderOptions{
			CountryCode: cfg.Restaurant.CountryCode,
			DeliveryFee: deliveryFee,
			TaxPercent:  decimal.NewFromFloat(cfg.Restaurant.TaxPercent),
		},
		c.Clock,
	)
	c.ReportService = service.NewReportService(c.CommissionRepo, c.AttributionRepo)
}

func buildWhatsAppSender(cfg *config.Config) service.MessageSender {
	if !cfg.Notification.Enabled || cfg.Notification.WhatsAppURL == "" {
		return nil
	}
	return notify.NewWhatsAppSender(notify.WhatsAppConfig{
		Endpoint: cfg.Notification.WhatsAppURL,
		Token:    cfg.Notification.WhatsAppToken,
		Timeout:  cfg.Notification.Timeout(),
	})
}

func buildTelegramAlerter(cfg *config.Config) service.AdminAlerter {
	if !cfg.Telegram.Enabled {
		return nil
	}
	alerter, err := notify.NewTelegramAlerter(notify.TelegramConfig{
		BotToken: cfg.Telegram.BotToken,
		ChatIDs:  cfg.Telegram.AdminChatIDs,
	})
	if err != nil {
		logger.Warnw("provider_init_telegram_failed", "error", err)
		return nil
	}
	return alerter
}

// Close 等待后台副作用结束并释放队列与 Redis 客户端
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.NotificationService != nil {
		c.NotificationService.Wait()
	}
	if c.PrintService != nil {
		c.PrintService.Wait()
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
