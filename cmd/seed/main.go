package main

import (
	"context"
	_ "time/tzdata"

	"github.com/mealdash-next/internal/config"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/provider"
	"github.com/mealdash-next/internal/repository"
	"github.com/mealdash-next/internal/service"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.EnsureOperatingState(); err != nil {
		stdLog.Fatalf("Failed to init operating state: %v", err)
	}
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	container := provider.NewContainer(cfg)
	defer container.Close()
	ctx := context.Background()

	// 营业时间：沿用门店时区，每天 10:00-22:00
	hours := service.OperatingHoursDefaultSetting()
	if cfg.Restaurant.Timezone != "" {
		hours.Timezone = cfg.Restaurant.Timezone
	}
	if _, err := container.SettingService.UpdateOperatingHoursSetting(ctx, hours); err != nil {
		stdLog.Printf("Failed to seed operating hours: %v", err)
	} else {
		stdLog.Printf("Seeded operating hours (%s)", hours.Timezone)
	}
	if _, err := container.CapacityService.UpdateConfig(ctx, service.CapacityDefaultSetting()); err != nil {
		stdLog.Printf("Failed to seed capacity setting: %v", err)
	}
	if _, err := container.SettingService.UpdateDispatchSetting(ctx, service.DispatchSetting{AutoAssignOnReady: true}); err != nil {
		stdLog.Printf("Failed to seed dispatch setting: %v", err)
	}

	// 各岗位演示账号
	staff := []service.CreateAdminInput{
		{Username: "kitchen", Password: "kitchen123", Role: constants.RoleKitchen},
		{Username: "dispatcher", Password: "dispatcher123", Role: constants.RoleDispatcher},
		{Username: "finance", Password: "finance123", Role: constants.RoleFinance},
	}
	for _, input := range staff {
		existing, err := container.AdminRepo.GetByUsername(ctx, input.Username)
		if err != nil {
			stdLog.Printf("Failed to load admin %s: %v", input.Username, err)
			continue
		}
		if existing != nil {
			stdLog.Printf("Admin already exists: %s", input.Username)
			continue
		}
		admin, err := container.AuthService.CreateAdmin(ctx, input)
		if err != nil {
			stdLog.Printf("Failed to create admin %s: %v", input.Username, err)
			continue
		}
		if err := container.AuthzService.AssignBuiltinRole(admin.ID, input.Role); err != nil {
			stdLog.Printf("Failed to assign role %s to %s: %v", input.Role, input.Username, err)
			continue
		}
		stdLog.Printf("Created admin: %s (%s)", input.Username, input.Role)
	}

	// 推荐人与优惠码
	promoCode := "WELCOME10"
	if existing, err := container.PromoCodeRepo.GetByCode(ctx, promoCode); err == nil && existing != nil {
		stdLog.Printf("Promo code already exists: %s", promoCode)
	} else {
		referrer, err := container.PromoService.CreateReferrer(ctx, service.CreateReferrerInput{
			Name:            "Campus Ambassador",
			CommissionType:  constants.DiscountTypePercentage,
			CommissionValue: decimal.NewFromInt(5),
		})
		if err != nil {
			stdLog.Printf("Failed to create referrer: %v", err)
		} else {
			stdLog.Printf("Created referrer: %s", referrer.Name)
			_, err = container.PromoService.CreatePromo(ctx, service.CreatePromoInput{
				Code:           promoCode,
				DiscountType:   constants.DiscountTypePercentage,
				DiscountValue:  decimal.NewFromInt(10),
				MaxDiscount:    decimal.NewFromInt(20000),
				MinOrderAmount: decimal.NewFromInt(50000),
				ReferrerID:     &referrer.ID,
			})
			if err != nil {
				stdLog.Printf("Failed to create promo code %s: %v", promoCode, err)
			} else {
				stdLog.Printf("Created promo code: %s", promoCode)
			}
		}
	}

	// 演示骑手
	_, total, err := container.CourierRepo.List(ctx, repository.CourierListFilter{Page: 1, PageSize: 1})
	if err != nil {
		stdLog.Printf("Failed to count couriers: %v", err)
	} else if total > 0 {
		stdLog.Printf("Couriers already seeded: %d", total)
	} else {
		couriers := []service.CreateCourierInput{
			{Name: "Budi", Phone: "081234567801", VehicleType: "motorbike"},
			{Name: "Sari", Phone: "081234567802", VehicleType: "motorbike"},
			{Name: "Agus", Phone: "081234567803", VehicleType: "bicycle"},
		}
		for _, input := range couriers {
			courier, err := container.AssignmentService.CreateCourier(ctx, input, cfg.Restaurant.CountryCode)
			if err != nil {
				stdLog.Printf("Failed to create courier %s: %v", input.Name, err)
				continue
			}
			stdLog.Printf("Created courier: %s (%s)", courier.Name, courier.Phone)
		}
	}

	stdLog.Printf("Seed completed")
}
