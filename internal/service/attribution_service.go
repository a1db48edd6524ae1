package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// AttributionOutcome 一次确认支付在台账中的处理结果
type AttributionOutcome struct {
	Record       *models.CommissionRecord
	Attribution  *models.CustomerAttribution
	PromoApplied bool
}

// AttributionService 顾客归因与佣金台账
type AttributionService struct {
	tx              repository.Transactor
	orderRepo       repository.OrderRepository
	promoRepo       repository.PromoCodeRepository
	referrerRepo    repository.ReferrerRepository
	attributionRepo repository.AttributionRepository
	commissionRepo  repository.CommissionRepository
	clock           clock.Clock
}

// NewAttributionService 创建归因台账服务
func NewAttributionService(
	tx repository.Transactor,
	orderRepo repository.OrderRepository,
	promoRepo repository.PromoCodeRepository,
	referrerRepo repository.ReferrerRepository,
	attributionRepo repository.AttributionRepository,
	commissionRepo repository.CommissionRepository,
	clk clock.Clock,
) *AttributionService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &AttributionService{
		tx:              tx,
		orderRepo:       orderRepo,
		promoRepo:       promoRepo,
		referrerRepo:    referrerRepo,
		attributionRepo: attributionRepo,
		commissionRepo:  commissionRepo,
		clock:           clk,
	}
}

// CalculateCommission 按推荐人规则计算佣金；非有效推荐人返回 0
func CalculateCommission(referrer *models.Referrer, orderTotal decimal.Decimal) decimal.Decimal {
	if referrer == nil || !referrer.IsActive {
		return decimal.Zero
	}
	switch referrer.CommissionType {
	case constants.DiscountTypePercentage:
		return orderTotal.Mul(referrer.CommissionValue.Decimal).Div(hundred).Round(2)
	case constants.DiscountTypeFixedAmount:
		return referrer.CommissionValue.Decimal.Round(2)
	default:
		return decimal.Zero
	}
}

// ProcessConfirmedPayment 处理一笔确认支付：首单判定、优惠码计数、首次归因绑定、累计消费与佣金记录。
// 同一订单重复投递返回 ErrAlreadyProcessed，且不会留下任何写入。
func (s *AttributionService) ProcessConfirmedPayment(ctx context.Context, order *models.Order) (*AttributionOutcome, error) {
	if order == nil || order.ID == 0 {
		return nil, fmt.Errorf("%w: order is required", ErrValidation)
	}
	ctx, span := tracer.Start(ctx, "attribution.process_confirmed_payment")
	defer span.End()
	log := logger.WithContext(ctx, "order_id", order.ID, "customer_phone", order.CustomerPhone)

	existing, err := s.commissionRepo.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Infow("attribution_already_processed", "commission_record_id", existing.ID)
		return &AttributionOutcome{Record: existing}, ErrAlreadyProcessed
	}

	outcome := &AttributionOutcome{}
	now := s.clock.Now()
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		promoRepo := s.promoRepo.WithTx(tx)
		referrerRepo := s.referrerRepo.WithTx(tx)
		attributionRepo := s.attributionRepo.WithTx(tx)
		commissionRepo := s.commissionRepo.WithTx(tx)

		prior, err := orderRepo.CountPriorConfirmedByPhone(ctx, order.CustomerPhone, order.ID)
		if err != nil {
			return err
		}
		isFirstOrder := prior == 0

		attribution, err := attributionRepo.GetByPhone(ctx, order.CustomerPhone)
		if err != nil {
			return err
		}

		isNewCustomer := false
		promoCode := order.PromoCodeValue()
		if promoCode != "" {
			promo, err := promoRepo.GetByCode(ctx, promoCode)
			if err != nil {
				return err
			}
			if promo != nil {
				if err := promoRepo.IncrementUsage(ctx, promo.ID); err != nil {
					return err
				}
				outcome.PromoApplied = true
				if promo.ReferrerID != nil && attribution == nil {
					created, err := s.bindFirstTouch(ctx, tx, order, promo, now)
					if err != nil {
						return err
					}
					if created != nil {
						attribution = created
						isNewCustomer = true
					} else {
						attribution, err = attributionRepo.GetByPhone(ctx, order.CustomerPhone)
						if err != nil {
							return err
						}
					}
				}
			} else {
				log.Warnw("attribution_promo_not_found", "promo_code", promoCode)
			}
		}

		var referrer *models.Referrer
		if attribution != nil {
			if err := attributionRepo.IncrementTotals(ctx, attribution.ID, order.Total.Decimal); err != nil {
				return err
			}
			referrer, err = referrerRepo.GetByID(ctx, attribution.ReferrerID)
			if err != nil {
				return err
			}
		}

		amount := CalculateCommission(referrer, order.Total.Decimal)
		record := &models.CommissionRecord{
			OrderID:          order.ID,
			CustomerPhone:    order.CustomerPhone,
			OrderTotal:       models.NewMoneyFromDecimal(order.Total.Decimal),
			CommissionAmount: models.NewMoneyFromDecimal(amount),
			IsFirstOrder:     isFirstOrder,
			IsNewCustomer:    isNewCustomer,
			CreatedAt:        now,
		}
		if promoCode != "" {
			normalized := repository.NormalizeCode(promoCode)
			record.PromoCode = &normalized
		}
		if referrer != nil && referrer.IsActive {
			referrerID := referrer.ID
			record.ReferrerID = &referrerID
		}
		if err := commissionRepo.Create(ctx, record); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrAlreadyProcessed
			}
			return err
		}
		if record.ReferrerID != nil && amount.GreaterThan(decimal.Zero) {
			if err := referrerRepo.AddCommission(ctx, *record.ReferrerID, amount); err != nil {
				return err
			}
		}

		outcome.Record = record
		outcome.Attribution = attribution
		return nil
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		log.Infow("attribution_duplicate_delivery")
		return nil, ErrAlreadyProcessed
	}
	if err != nil {
		log.Errorw("attribution_failed", "error", err)
		return nil, err
	}

	fields := []interface{}{
		"commission_record_id", outcome.Record.ID,
		"commission_amount", outcome.Record.CommissionAmount.String(),
		"is_first_order", outcome.Record.IsFirstOrder,
		"is_new_customer", outcome.Record.IsNewCustomer,
	}
	if outcome.Record.ReferrerID != nil {
		fields = append(fields, "referrer_id", *outcome.Record.ReferrerID)
	}
	log.Infow("attribution_recorded", fields...)
	return outcome, nil
}

// bindFirstTouch 首次归因绑定；手机号已被并发绑定时返回 nil 由调用方重新读取
func (s *AttributionService) bindFirstTouch(ctx context.Context, tx *gorm.DB, order *models.Order, promo *models.PromoCode, now time.Time) (*models.CustomerAttribution, error) {
	attribution := &models.CustomerAttribution{
		CustomerPhone:   order.CustomerPhone,
		ReferrerID:      *promo.ReferrerID,
		FirstPromoCode:  promo.Code,
		FirstOrderID:    order.ID,
		FirstOrderTotal: models.NewMoneyFromDecimal(order.Total.Decimal),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	// 嵌套事务即 SAVEPOINT，唯一冲突只回滚这一步
	err := tx.Transaction(func(sp *gorm.DB) error {
		return s.attributionRepo.WithTx(sp).Create(ctx, attribution)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			logger.WithContext(ctx).Infow("attribution_bind_conflict", "order_id", order.ID, "customer_phone", order.CustomerPhone)
			return nil, nil
		}
		return nil, err
	}
	return attribution, nil
}
