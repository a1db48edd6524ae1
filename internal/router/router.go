package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mealdash-next/internal/authz"
	"github.com/mealdash-next/internal/cache"
	"github.com/mealdash-next/internal/config"
	adminhandlers "github.com/mealdash-next/internal/http/handlers/admin"
	publichandlers "github.com/mealdash-next/internal/http/handlers/public"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "md"
	}
	redisClient := cache.Client()
	orderRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:order", redisPrefix),
		WindowSeconds: cfg.RateLimit.WindowSeconds,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		BlockSeconds:  cfg.RateLimit.BlockSeconds,
	}
	verifyRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:verify", redisPrefix),
		WindowSeconds: cfg.RateLimit.WindowSeconds,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		BlockSeconds:  cfg.RateLimit.BlockSeconds,
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.RateLimit.WindowSeconds,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		BlockSeconds:  cfg.RateLimit.BlockSeconds,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 顾客端接口
		public := apiV1.Group("/public")
		{
			public.GET("/kitchen/status", publicHandler.GetKitchenStatus)
			public.POST("/orders", RateLimitMiddleware(redisClient, orderRule, KeyByIPAndJSONField("customer_phone")), publicHandler.CreateOrder)
			public.GET("/orders/:order_no", publicHandler.GetOrderByOrderNo)
			public.POST("/promo-codes/quote", publicHandler.QuotePromo)
			public.POST("/payments/verify", RateLimitMiddleware(redisClient, verifyRule, KeyByIP), publicHandler.VerifyPayment)
			// 网关回调不限流，失败时依赖网关重投
			public.POST("/payments/webhook", publicHandler.PaymentWebhook)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
			{
				// 账号与权限
				authorized.GET("/me", adminHandler.GetAdminMe)
				authorized.GET("/admins", adminHandler.ListAdmins)
				authorized.POST("/admins", adminHandler.CreateAdmin)
				authorized.PUT("/admins/:id/role", adminHandler.UpdateAdminRole)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
				authorized.GET("/audit-logs", adminHandler.ListAuditLogs)

				// 订单管理
				authorized.GET("/orders", adminHandler.AdminListOrders)
				authorized.GET("/orders/:id", adminHandler.AdminGetOrder)
				authorized.PATCH("/orders/:id/status", adminHandler.AdminUpdateOrderStatus)
				authorized.POST("/orders/:id/assign", adminHandler.AdminAssignCourier)
				authorized.GET("/orders/:id/assignments", adminHandler.AdminListOrderAssignments)
				authorized.GET("/orders/:id/payments", adminHandler.AdminListOrderPayments)
				authorized.POST("/orders/:id/confirm-cod", adminHandler.AdminConfirmCOD)

				// 后厨产能
				authorized.GET("/kitchen/state", adminHandler.GetKitchenState)
				authorized.PUT("/kitchen/state", adminHandler.SetKitchenState)
				authorized.POST("/kitchen/evaluate", adminHandler.EvaluateCapacity)

				// 骑手调度
				authorized.GET("/couriers", adminHandler.ListCouriers)
				authorized.POST("/couriers", adminHandler.CreateCourier)
				authorized.PUT("/couriers/:id/location", adminHandler.UpdateCourierLocation)
				authorized.PUT("/couriers/:id/status", adminHandler.UpdateCourierStatus)
				authorized.PATCH("/assignments/:id/status", adminHandler.UpdateAssignmentStatus)

				// 小票打印
				authorized.GET("/print-jobs", adminHandler.ListPrintJobs)
				authorized.POST("/print-jobs/:id/retry", adminHandler.RetryPrintJob)

				// 优惠码与推荐人
				authorized.GET("/promo-codes", adminHandler.ListPromoCodes)
				authorized.POST("/promo-codes", adminHandler.CreatePromoCode)
				authorized.GET("/referrers", adminHandler.ListReferrers)
				authorized.POST("/referrers", adminHandler.CreateReferrer)

				// 佣金报表
				authorized.GET("/reports/commissions/summary", adminHandler.GetCommissionSummary)
				authorized.GET("/reports/commissions", adminHandler.ListCommissions)
				authorized.GET("/reports/commissions/export", adminHandler.ExportCommissions)
				authorized.GET("/attributions/:phone", adminHandler.GetAttributionByPhone)

				// 设置管理
				authorized.GET("/settings/operating-hours", adminHandler.GetOperatingHoursSetting)
				authorized.PUT("/settings/operating-hours", adminHandler.UpdateOperatingHoursSetting)
				authorized.GET("/settings/capacity", adminHandler.GetCapacitySetting)
				authorized.PUT("/settings/capacity", adminHandler.UpdateCapacitySetting)
				authorized.GET("/settings/dispatch", adminHandler.GetDispatchSetting)
				authorized.PUT("/settings/dispatch", adminHandler.UpdateDispatchSetting)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == "/api/v1/admin/login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
