package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"
)

func TestQuotePromoRules(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	env := newServiceTestEnv(t, now)
	ctx := context.Background()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	promos := []*models.PromoCode{
		{Code: "CAPPED", DiscountType: constants.DiscountTypePercentage, DiscountValue: models.MustMoney("50"), MaxDiscount: models.MustMoney("1000"), IsActive: true},
		{Code: "FLAT", DiscountType: constants.DiscountTypeFixedAmount, DiscountValue: models.MustMoney("5000"), IsActive: true},
		{Code: "EXPIRED", DiscountType: constants.DiscountTypePercentage, DiscountValue: models.MustMoney("10"), ExpiresAt: &past, IsActive: true},
		{Code: "LATER", DiscountType: constants.DiscountTypePercentage, DiscountValue: models.MustMoney("10"), StartsAt: &future, IsActive: true},
		{Code: "USEDUP", DiscountType: constants.DiscountTypePercentage, DiscountValue: models.MustMoney("10"), UsageLimit: 2, UsedCount: 2, IsActive: true},
		{Code: "BIGONLY", DiscountType: constants.DiscountTypePercentage, DiscountValue: models.MustMoney("10"), MinOrderAmount: models.MustMoney("10000"), IsActive: true},
		{Code: "OFF", DiscountType: constants.DiscountTypePercentage, DiscountValue: models.MustMoney("10"), IsActive: true},
	}
	for _, promo := range promos {
		if err := env.db.Create(promo).Error; err != nil {
			t.Fatalf("create promo failed: %v", err)
		}
	}
	if err := env.db.Model(&models.PromoCode{}).Where("code = ?", "OFF").Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate promo failed: %v", err)
	}

	discount, promo, err := env.promos.Quote(ctx, "capped", dec("4000"))
	if err != nil || !discount.Equal(dec("1000")) || promo.Code != "CAPPED" {
		t.Fatalf("expected capped discount 1000, got %s %v", discount, err)
	}
	discount, _, err = env.promos.Quote(ctx, "FLAT", dec("3000"))
	if err != nil || !discount.Equal(dec("3000")) {
		t.Fatalf("expected fixed discount limited to subtotal, got %s %v", discount, err)
	}

	for _, code := range []string{"EXPIRED", "LATER", "USEDUP", "BIGONLY", "OFF", ""} {
		if _, _, err := env.promos.Quote(ctx, code, dec("4000")); !errors.Is(err, ErrPromoInvalid) {
			t.Fatalf("%q: expected promo invalid, got %v", code, err)
		}
	}
	if _, _, err := env.promos.Quote(ctx, "GHOST", dec("4000")); !errors.Is(err, ErrPromoNotFound) {
		t.Fatalf("expected promo not found, got %v", err)
	}
}

func TestCreatePromoAndReferrer(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	referrer, err := env.promos.CreateReferrer(ctx, CreateReferrerInput{
		Name:            " Tunde ",
		CommissionType:  constants.DiscountTypePercentage,
		CommissionValue: dec("5"),
	})
	if err != nil {
		t.Fatalf("create referrer failed: %v", err)
	}
	if referrer.Name != "Tunde" || !referrer.IsActive {
		t.Fatalf("unexpected referrer: %+v", referrer)
	}

	promo, err := env.promos.CreatePromo(ctx, CreatePromoInput{
		Code:          " tunde5 ",
		DiscountType:  constants.DiscountTypePercentage,
		DiscountValue: dec("5"),
		ReferrerID:    &referrer.ID,
	})
	if err != nil {
		t.Fatalf("create promo failed: %v", err)
	}
	if promo.Code != "TUNDE5" {
		t.Fatalf("expected uppercased code, got %s", promo.Code)
	}

	if _, err := env.promos.CreatePromo(ctx, CreatePromoInput{Code: "Tunde5", DiscountType: constants.DiscountTypePercentage, DiscountValue: dec("5")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate code rejected, got %v", err)
	}
	if _, err := env.promos.CreatePromo(ctx, CreatePromoInput{Code: "HUGE", DiscountType: constants.DiscountTypePercentage, DiscountValue: dec("150")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected percentage over 100 rejected, got %v", err)
	}
	missing := uint(777)
	if _, err := env.promos.CreatePromo(ctx, CreatePromoInput{Code: "ORPHAN", DiscountType: constants.DiscountTypeFixedAmount, DiscountValue: dec("100"), ReferrerID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing referrer rejected, got %v", err)
	}
	if _, err := env.promos.CreateReferrer(ctx, CreateReferrerInput{Name: "X", CommissionType: "bogus"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected bad commission type rejected, got %v", err)
	}
}
