package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"

	"github.com/shopspring/decimal"
)

// PromoService 优惠码校验与推荐人管理
type PromoService struct {
	promoRepo    repository.PromoCodeRepository
	referrerRepo repository.ReferrerRepository
	clock        clock.Clock
}

// NewPromoService 创建优惠码服务
func NewPromoService(promoRepo repository.PromoCodeRepository, referrerRepo repository.ReferrerRepository, clk clock.Clock) *PromoService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &PromoService{promoRepo: promoRepo, referrerRepo: referrerRepo, clock: clk}
}

// Quote 只读校验优惠码并计算优惠金额；使用次数在支付确认后才累加
func (s *PromoService) Quote(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, *models.PromoCode, error) {
	normalized := repository.NormalizeCode(code)
	if normalized == "" {
		return decimal.Zero, nil, ErrPromoInvalid
	}
	promo, err := s.promoRepo.GetByCode(ctx, normalized)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if promo == nil {
		return decimal.Zero, nil, ErrPromoNotFound
	}
	if !promo.IsActive {
		return decimal.Zero, promo, fmt.Errorf("%w: inactive", ErrPromoInvalid)
	}
	now := s.clock.Now()
	if promo.StartsAt != nil && now.Before(*promo.StartsAt) {
		return decimal.Zero, promo, fmt.Errorf("%w: not started", ErrPromoInvalid)
	}
	if promo.ExpiresAt != nil && !now.Before(*promo.ExpiresAt) {
		return decimal.Zero, promo, fmt.Errorf("%w: expired", ErrPromoInvalid)
	}
	if promo.UsageLimit > 0 && promo.UsedCount >= promo.UsageLimit {
		return decimal.Zero, promo, fmt.Errorf("%w: usage limit reached", ErrPromoInvalid)
	}
	if subtotal.LessThan(promo.MinOrderAmount.Decimal) {
		return decimal.Zero, promo, fmt.Errorf("%w: minimum order amount is %s", ErrPromoInvalid, promo.MinOrderAmount.String())
	}
	discount, err := CalculatePromoDiscount(promo, subtotal)
	if err != nil {
		return decimal.Zero, promo, err
	}
	return discount, promo, nil
}

// CalculatePromoDiscount 按优惠规则计算折扣，封顶并且不超过小计
func CalculatePromoDiscount(promo *models.PromoCode, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if promo.DiscountValue.Decimal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: discount value", ErrPromoInvalid)
	}
	var discount decimal.Decimal
	switch promo.DiscountType {
	case constants.DiscountTypePercentage:
		discount = subtotal.Mul(promo.DiscountValue.Decimal).Div(hundred).Round(2)
	case constants.DiscountTypeFixedAmount:
		discount = promo.DiscountValue.Decimal.Round(2)
	default:
		return decimal.Zero, fmt.Errorf("%w: discount type %q", ErrPromoInvalid, promo.DiscountType)
	}
	if promo.MaxDiscount.Decimal.GreaterThan(decimal.Zero) && discount.GreaterThan(promo.MaxDiscount.Decimal) {
		discount = promo.MaxDiscount.Decimal
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount, nil
}

// CreatePromoInput 创建优惠码
type CreatePromoInput struct {
	Code           string
	DiscountType   string
	DiscountValue  decimal.Decimal
	MaxDiscount    decimal.Decimal
	MinOrderAmount decimal.Decimal
	UsageLimit     int
	ReferrerID     *uint
	StartsAt       *time.Time
	ExpiresAt      *time.Time
}

func isRuleTypeValid(ruleType string) bool {
	return ruleType == constants.DiscountTypePercentage || ruleType == constants.DiscountTypeFixedAmount
}

// CreatePromo 创建优惠码，可绑定推荐人
func (s *PromoService) CreatePromo(ctx context.Context, input CreatePromoInput) (*models.PromoCode, error) {
	code := repository.NormalizeCode(input.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	if !isRuleTypeValid(input.DiscountType) {
		return nil, fmt.Errorf("%w: discount type", ErrValidation)
	}
	if input.DiscountValue.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: discount value must be positive", ErrValidation)
	}
	if input.DiscountType == constants.DiscountTypePercentage && input.DiscountValue.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: percentage cannot exceed 100", ErrValidation)
	}
	if input.StartsAt != nil && input.ExpiresAt != nil && !input.ExpiresAt.After(*input.StartsAt) {
		return nil, fmt.Errorf("%w: expires_at must be after starts_at", ErrValidation)
	}
	if input.ReferrerID != nil {
		referrer, err := s.referrerRepo.GetByID(ctx, *input.ReferrerID)
		if err != nil {
			return nil, err
		}
		if referrer == nil {
			return nil, fmt.Errorf("%w: referrer", ErrNotFound)
		}
	}
	existing, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: code already exists", ErrValidation)
	}
	promo := &models.PromoCode{
		Code:           code,
		DiscountType:   input.DiscountType,
		DiscountValue:  models.NewMoneyFromDecimal(input.DiscountValue),
		MaxDiscount:    models.NewMoneyFromDecimal(input.MaxDiscount),
		MinOrderAmount: models.NewMoneyFromDecimal(input.MinOrderAmount),
		UsageLimit:     input.UsageLimit,
		ReferrerID:     input.ReferrerID,
		IsActive:       true,
		StartsAt:       input.StartsAt,
		ExpiresAt:      input.ExpiresAt,
	}
	if err := s.promoRepo.Create(ctx, promo); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: code already exists", ErrValidation)
		}
		return nil, err
	}
	return promo, nil
}

// ListPromos 优惠码列表
func (s *PromoService) ListPromos(ctx context.Context, page, pageSize int) ([]models.PromoCode, int64, error) {
	return s.promoRepo.List(ctx, page, pageSize)
}

// CreateReferrerInput 创建推荐人
type CreateReferrerInput struct {
	Name            string
	Phone           string
	CommissionType  string
	CommissionValue decimal.Decimal
}

// CreateReferrer 创建推荐人
func (s *PromoService) CreateReferrer(ctx context.Context, input CreateReferrerInput) (*models.Referrer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !isRuleTypeValid(input.CommissionType) {
		return nil, fmt.Errorf("%w: commission type", ErrValidation)
	}
	if input.CommissionValue.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: commission value cannot be negative", ErrValidation)
	}
	referrer := &models.Referrer{
		Name:            name,
		Phone:           strings.TrimSpace(input.Phone),
		CommissionType:  input.CommissionType,
		CommissionValue: models.NewMoneyFromDecimal(input.CommissionValue),
		IsActive:        true,
		TotalCommission: models.ZeroMoney(),
	}
	if err := s.referrerRepo.Create(ctx, referrer); err != nil {
		return nil, err
	}
	return referrer, nil
}

// ListReferrers 推荐人列表
func (s *PromoService) ListReferrers(ctx context.Context, page, pageSize int) ([]models.Referrer, int64, error) {
	return s.referrerRepo.List(ctx, page, pageSize)
}
