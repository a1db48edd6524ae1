package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/payment/gateway"
	"github.com/mealdash-next/internal/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var amountTolerance = decimal.New(1, -2)

// PaymentVerifier 支付核验网关
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (*gateway.Transaction, error)
}

// PaymentOptions 支付服务参数
type PaymentOptions struct {
	WebhookSecret string
}

// PaymentConfirmedInput 支付确认事件（verify 与 webhook 共用）
type PaymentConfirmedInput struct {
	OrderID     uint
	OrderNo     string
	ProviderRef string
	Source      string
	Status      string
	Amount      decimal.Decimal
	Payload     models.JSON
}

// PaymentResult 支付确认处理结果
type PaymentResult struct {
	Order      *models.Order
	Status     string
	Commission *models.CommissionRecord
	PrintJob   *models.PrintJob
}

// PaymentService 支付确认管线：verify 与 webhook 收敛到同一幂等处理
type PaymentService struct {
	tx          repository.Transactor
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	verifier    PaymentVerifier
	attribution *AttributionService
	dispatcher  *FulfillmentDispatcher
	capacity    capacityTrigger
	opts        PaymentOptions
	clock       clock.Clock
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	tx repository.Transactor,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	verifier PaymentVerifier,
	attribution *AttributionService,
	dispatcher *FulfillmentDispatcher,
	queueClient TaskEnqueuer,
	capacity *CapacityService,
	opts PaymentOptions,
	clk clock.Clock,
) *PaymentService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &PaymentService{
		tx:          tx,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		verifier:    verifier,
		attribution: attribution,
		dispatcher:  dispatcher,
		capacity:    capacityTrigger{queue: queueClient, capacity: capacity},
		opts:        opts,
		clock:       clk,
	}
}

func normalizePaymentSource(source string) string {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case constants.PaymentSourceVerify:
		return constants.PaymentSourceVerify
	case constants.PaymentSourceWebhook:
		return constants.PaymentSourceWebhook
	case constants.PaymentSourceManual:
		return constants.PaymentSourceManual
	default:
		return ""
	}
}

// HandlePaymentConfirmed 支付确认事件的唯一收敛点。
// 已处理过的订单返回 ErrAlreadyProcessed，调用方按成功处理且不会重复触发副作用。
func (s *PaymentService) HandlePaymentConfirmed(ctx context.Context, input PaymentConfirmedInput) (*PaymentResult, error) {
	input.OrderNo = strings.TrimSpace(input.OrderNo)
	input.ProviderRef = strings.TrimSpace(input.ProviderRef)
	input.Source = normalizePaymentSource(input.Source)
	input.Status = gateway.NormalizeStatus(input.Status)
	if input.OrderID == 0 && input.OrderNo == "" {
		return nil, fmt.Errorf("%w: order is required", ErrValidation)
	}
	if input.ProviderRef == "" {
		return nil, fmt.Errorf("%w: provider reference is required", ErrValidation)
	}
	if input.Source == "" {
		return nil, fmt.Errorf("%w: unknown payment source", ErrValidation)
	}

	ctx, span := tracer.Start(ctx, "payment.handle_confirmed")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.source", input.Source),
		attribute.String("payment.status", input.Status),
	)

	log := logger.WithContext(ctx,
		"provider_ref", input.ProviderRef,
		"source", input.Source,
		"status", input.Status,
		"amount", input.Amount.String(),
	)
	log.Infow("payment_confirmed_received", "order_id", input.OrderID, "order_no", input.OrderNo)

	order, err := s.loadOrder(ctx, input.OrderID, input.OrderNo)
	if err != nil {
		log.Errorw("payment_confirmed_order_fetch_failed", "order_id", input.OrderID, "order_no", input.OrderNo, "error", err)
		return nil, err
	}
	if order == nil {
		log.Warnw("payment_confirmed_order_not_found", "order_id", input.OrderID, "order_no", input.OrderNo)
		return nil, ErrOrderNotFound
	}
	span.SetAttributes(attribute.Int64("order.id", int64(order.ID)))
	log = log.With("order_id", order.ID, "order_no", order.OrderNo)
	result := &PaymentResult{Order: order, Status: input.Status}

	if input.OrderNo != "" && input.OrderNo != order.OrderNo {
		log.Warnw("payment_confirmed_order_no_mismatch", "requested_order_no", input.OrderNo)
		return nil, fmt.Errorf("%w: order number mismatch", ErrValidation)
	}

	s.recordEvent(ctx, order.ID, input)

	if order.PaymentStatus == constants.OrderPaymentStatusPaid {
		log.Infow("payment_confirmed_idempotent_paid", "current_status", order.Status)
		// 首次投递的副作用可能因瞬时故障未落库；台账与打印各自按 order_id 幂等，重放只补缺
		if IsActiveStatus(order.Status) {
			s.runSideEffects(ctx, order, result)
			if result.Commission != nil || result.PrintJob != nil {
				log.Warnw("payment_confirmed_side_effects_repaired",
					"commission_repaired", result.Commission != nil,
					"print_job_repaired", result.PrintJob != nil,
				)
			}
		}
		return result, ErrAlreadyProcessed
	}
	if order.Status != constants.OrderStatusPending && order.Status != constants.OrderStatusScheduled {
		log.Infow("payment_confirmed_idempotent_status", "current_status", order.Status)
		return result, ErrAlreadyProcessed
	}

	switch input.Status {
	case constants.PaymentStatusPending:
		log.Infow("payment_confirmed_still_pending")
		return result, nil
	case constants.PaymentStatusFailed:
		return s.applyFailure(ctx, order, input, result, log)
	}

	if input.Amount.Sub(order.Total.Decimal).Abs().GreaterThan(amountTolerance) {
		log.Warnw("payment_confirmed_amount_mismatch", "stored_amount", order.Total.String())
		return nil, ErrAmountMismatch
	}

	now := s.clock.Now()
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		affected, err := s.orderRepo.WithTx(tx).MarkPaid(ctx, order.ID, input.ProviderRef, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrAlreadyProcessed
		}
		return nil
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		log.Infow("payment_confirmed_concurrent_delivery")
		return result, ErrAlreadyProcessed
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark paid failed")
		log.Errorw("payment_confirmed_mark_paid_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDownstreamUnavailable, err)
	}

	confirmed, err := s.orderRepo.GetByID(ctx, order.ID)
	if err != nil || confirmed == nil {
		log.Warnw("payment_confirmed_order_reload_failed", "error", err)
		order.Status = constants.OrderStatusConfirmed
		order.PaymentStatus = constants.OrderPaymentStatusPaid
		order.PaymentReference = input.ProviderRef
		order.ConfirmedAt = &now
		confirmed = order
	}
	result.Order = confirmed

	s.runSideEffects(ctx, confirmed, result)
	s.capacity.fire(ctx, "payment_confirmed")

	log.Infow("payment_confirmed_processed",
		"previous_status", order.Status,
		"new_status", confirmed.Status,
	)
	return result, nil
}

// runSideEffects 归因台账与履约副作用，失败只记录日志
func (s *PaymentService) runSideEffects(ctx context.Context, order *models.Order, result *PaymentResult) {
	if s.attribution != nil {
		outcome, err := s.attribution.ProcessConfirmedPayment(ctx, order)
		switch {
		case err == nil:
			result.Commission = outcome.Record
		case errors.Is(err, ErrAlreadyProcessed):
		default:
			logger.WithContext(ctx).Errorw("payment_confirmed_attribution_failed", "order_id", order.ID, "error", err)
		}
	}
	if s.dispatcher != nil {
		job, err := s.dispatcher.OnConfirmed(ctx, order)
		switch {
		case err == nil:
			result.PrintJob = job
		case errors.Is(err, ErrAlreadyProcessed):
		default:
			logger.WithContext(ctx).Errorw("payment_confirmed_dispatch_failed", "order_id", order.ID, "error", err)
		}
	}
}

func (s *PaymentService) applyFailure(ctx context.Context, order *models.Order, input PaymentConfirmedInput, result *PaymentResult, log *zap.SugaredLogger) (*PaymentResult, error) {
	affected, err := s.orderRepo.MarkPaymentFailed(ctx, order.ID, input.ProviderRef)
	if err != nil {
		log.Errorw("payment_failed_mark_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDownstreamUnavailable, err)
	}
	if affected == 0 {
		log.Infow("payment_failed_idempotent")
		return result, ErrAlreadyProcessed
	}
	order.Status = constants.OrderStatusPaymentFailed
	order.PaymentStatus = constants.OrderPaymentStatusFailed
	order.PaymentReference = input.ProviderRef
	log.Infow("payment_failed_processed")
	return result, nil
}

func (s *PaymentService) recordEvent(ctx context.Context, orderID uint, input PaymentConfirmedInput) {
	if s.paymentRepo == nil {
		return
	}
	event := &models.Payment{
		OrderID:     orderID,
		ProviderRef: input.ProviderRef,
		Source:      input.Source,
		Status:      input.Status,
		Amount:      models.NewMoneyFromDecimal(input.Amount),
		Payload:     input.Payload,
		CreatedAt:   s.clock.Now(),
	}
	inserted, err := s.paymentRepo.Record(ctx, event)
	if err != nil {
		logger.WithContext(ctx).Warnw("payment_event_record_failed", "order_id", orderID, "error", err)
		return
	}
	if !inserted {
		logger.WithContext(ctx).Debugw("payment_event_duplicate", "order_id", orderID, "provider_ref", input.ProviderRef)
	}
}

func (s *PaymentService) loadOrder(ctx context.Context, id uint, orderNo string) (*models.Order, error) {
	if id != 0 {
		return s.orderRepo.GetByID(ctx, id)
	}
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

// VerifyPayment 顾客支付后主动核验：向网关查询交易后进入同一处理管线
func (s *PaymentService) VerifyPayment(ctx context.Context, orderNo, reference string) (*PaymentResult, error) {
	orderNo = strings.TrimSpace(orderNo)
	reference = strings.TrimSpace(reference)
	if orderNo == "" || reference == "" {
		return nil, fmt.Errorf("%w: order number and reference are required", ErrValidation)
	}
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: payment verification is not configured", ErrDownstreamUnavailable)
	}
	txn, err := s.verifier.Verify(ctx, reference)
	if err != nil {
		logger.WithContext(ctx).Warnw("payment_verify_request_failed", "order_no", orderNo, "provider_ref", reference, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDownstreamUnavailable, err)
	}
	if txn.OrderNo != "" && txn.OrderNo != orderNo {
		logger.WithContext(ctx).Warnw("payment_verify_order_no_mismatch", "order_no", orderNo, "gateway_order_no", txn.OrderNo)
		return nil, fmt.Errorf("%w: transaction belongs to another order", ErrValidation)
	}
	return s.HandlePaymentConfirmed(ctx, PaymentConfirmedInput{
		OrderNo:     orderNo,
		ProviderRef: txn.Reference,
		Source:      constants.PaymentSourceVerify,
		Status:      txn.Status,
		Amount:      transactionAmount(txn),
		Payload:     models.JSON(txn.Metadata),
	})
}

// HandleWebhook 校验签名后解析网关回调并进入处理管线
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*PaymentResult, error) {
	if err := gateway.VerifySignature(s.opts.WebhookSecret, body, signature); err != nil {
		if errors.Is(err, gateway.ErrConfigInvalid) {
			logger.WithContext(ctx).Errorw("payment_webhook_secret_missing")
		} else {
			logger.WithContext(ctx).Warnw("payment_webhook_signature_invalid")
		}
		return nil, ErrWebhookSignatureInvalid
	}
	event, err := gateway.ParseWebhook(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	logger.WithContext(ctx).Infow("payment_webhook_received", "event", event.Event, "order_no", event.Data.OrderNo, "provider_ref", event.Data.Reference)
	return s.HandlePaymentConfirmed(ctx, PaymentConfirmedInput{
		OrderNo:     event.Data.OrderNo,
		ProviderRef: event.Data.Reference,
		Source:      constants.PaymentSourceWebhook,
		Status:      event.Data.Status,
		Amount:      transactionAmount(&event.Data),
		Payload:     models.JSON(event.Raw),
	})
}

// ConfirmCashOnDelivery 管理端确认货到付款订单，走与在线支付相同的管线
func (s *PaymentService) ConfirmCashOnDelivery(ctx context.Context, orderID uint, adminID uint) (*PaymentResult, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !order.IsCOD() {
		return nil, fmt.Errorf("%w: order is not cash on delivery", ErrValidation)
	}
	return s.HandlePaymentConfirmed(ctx, PaymentConfirmedInput{
		OrderID:     order.ID,
		ProviderRef: "cod-" + order.OrderNo,
		Source:      constants.PaymentSourceManual,
		Status:      constants.PaymentStatusSuccess,
		Amount:      order.Total.Decimal,
		Payload:     models.JSON{"confirmed_by": AssignedByAdmin(adminID)},
	})
}

// ListEvents 订单的支付事件流水
func (s *PaymentService) ListEvents(ctx context.Context, orderID uint) ([]models.Payment, error) {
	return s.paymentRepo.ListByOrder(ctx, orderID)
}

func transactionAmount(txn *gateway.Transaction) decimal.Decimal {
	amount, err := txn.AmountDecimal()
	if err != nil {
		return decimal.Zero
	}
	return amount
}
