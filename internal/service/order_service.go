package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/queue"
	"github.com/mealdash-next/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
	"go.opentelemetry.io/otel/attribute"
)

const maxOrderItems = 50

var (
	// ErrKitchenClosed 负载门控已关店，暂停接单
	ErrKitchenClosed = fmt.Errorf("%w: kitchen is not accepting orders", ErrValidation)
	// ErrOrderTotalsInvalid 金额不满足 total = subtotal - discount + delivery_fee + tax
	ErrOrderTotalsInvalid = fmt.Errorf("%w: order totals do not add up", ErrValidation)
)

// OrderOptions 下单计价参数
type OrderOptions struct {
	CountryCode string
	DeliveryFee decimal.Decimal
	TaxPercent  decimal.Decimal
}

// CreateOrderItem 下单菜品
type CreateOrderItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// CreateOrderInput 下单参数
type CreateOrderInput struct {
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	DeliveryLat     *float64
	DeliveryLng     *float64
	Note            string
	PaymentMethod   string
	PromoCode       string
	Items           []CreateOrderItem
}

// OrderService 订单创建与状态机
type OrderService struct {
	orderRepo     repository.OrderRepository
	promos        *PromoService
	hours         *OperatingHoursService
	capacity      *CapacityService
	trigger       capacityTrigger
	assignments   *CourierAssignmentService
	settings      *SettingService
	notifications *NotificationService
	queue         TaskEnqueuer
	opts          OrderOptions
	clock         clock.Clock
}

// NewOrderService 创建订单服务
func NewOrderService(
	orderRepo repository.OrderRepository,
	promos *PromoService,
	hours *OperatingHoursService,
	capacity *CapacityService,
	assignments *CourierAssignmentService,
	settings *SettingService,
	notifications *NotificationService,
	queueClient TaskEnqueuer,
	opts OrderOptions,
	clk clock.Clock,
) *OrderService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	opts.CountryCode = strings.ToUpper(strings.TrimSpace(opts.CountryCode))
	return &OrderService{
		orderRepo:     orderRepo,
		promos:        promos,
		hours:         hours,
		capacity:      capacity,
		trigger:       capacityTrigger{queue: queueClient, capacity: capacity},
		assignments:   assignments,
		settings:      settings,
		notifications: notifications,
		queue:         queueClient,
		opts:          opts,
		clock:         clk,
	}
}

// NormalizePhone 把手机号规范为 E.164，无国家码前缀时按默认国家解析
func NormalizePhone(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: phone is required", ErrPhoneInvalid)
	}
	num, err := libphonenumber.Parse(raw, strings.ToUpper(strings.TrimSpace(defaultRegion)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPhoneInvalid, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %s", ErrPhoneInvalid, raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// OrderTotals 订单金额
type OrderTotals struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// ComputeTotals 计算订单金额，税费按折后小计计算
func ComputeTotals(subtotal, discount, deliveryFee, taxPercent decimal.Decimal) OrderTotals {
	taxable := subtotal.Sub(discount)
	if taxable.LessThan(decimal.Zero) {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(taxPercent).Div(hundred).Round(2)
	return OrderTotals{
		Subtotal:    subtotal.Round(2),
		Discount:    discount.Round(2),
		DeliveryFee: deliveryFee.Round(2),
		Tax:         tax,
		Total:       subtotal.Sub(discount).Add(deliveryFee).Add(tax).Round(2),
	}
}

// CheckTotals 校验 total == subtotal - discount + delivery_fee + tax，允许 0.01 的历史舍入误差
func CheckTotals(order *models.Order) error {
	expected := order.Subtotal.Decimal.Sub(order.Discount.Decimal).Add(order.DeliveryFee.Decimal).Add(order.Tax.Decimal)
	if expected.Sub(order.Total.Decimal).Abs().GreaterThan(amountTolerance) {
		return ErrOrderTotalsInvalid
	}
	return nil
}

func generateOrderNo(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("MD%s%s", now.UTC().Format("060102150405"), suffix)
}

func normalizePaymentMethod(method string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", constants.PaymentMethodOnline:
		return constants.PaymentMethodOnline, nil
	case constants.PaymentMethodCOD:
		return constants.PaymentMethodCOD, nil
	default:
		return "", fmt.Errorf("%w: payment method %q", ErrValidation, method)
	}
}

func buildOrderItems(inputs []CreateOrderItem, now time.Time) ([]models.OrderItem, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: order has no items", ErrValidation)
	}
	if len(inputs) > maxOrderItems {
		return nil, decimal.Zero, fmt.Errorf("%w: too many items", ErrValidation)
	}
	items := make([]models.OrderItem, 0, len(inputs))
	subtotal := decimal.Zero
	for i, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d has no name", ErrValidation, i+1)
		}
		if input.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i+1)
		}
		if input.UnitPrice.LessThan(decimal.Zero) {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d price cannot be negative", ErrValidation, i+1)
		}
		lineTotal := input.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			Name:      name,
			UnitPrice: models.NewMoneyFromDecimal(input.UnitPrice),
			Quantity:  input.Quantity,
			LineTotal: models.NewMoneyFromDecimal(lineTotal),
			CreatedAt: now,
		})
	}
	return items, subtotal, nil
}

// Create 创建订单：校验手机号与菜品、计价、校验优惠码（只读）、按营业时间决定 pending 或 scheduled
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.create")
	defer span.End()

	phone, err := NormalizePhone(input.CustomerPhone, s.opts.CountryCode)
	if err != nil {
		return nil, err
	}
	paymentMethod, err := normalizePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if (input.DeliveryLat == nil) != (input.DeliveryLng == nil) {
		return nil, fmt.Errorf("%w: delivery coordinates must be provided together", ErrValidation)
	}
	now := s.clock.Now()
	items, subtotal, err := buildOrderItems(input.Items, now)
	if err != nil {
		return nil, err
	}

	if s.capacity != nil {
		state, err := s.capacity.GetCachedState(ctx)
		if err != nil {
			return nil, err
		}
		if !state.IsOpen {
			return nil, ErrKitchenClosed
		}
	}

	discount := decimal.Zero
	var promoCode *string
	if code := repository.NormalizeCode(input.PromoCode); code != "" {
		amount, promo, err := s.promos.Quote(ctx, code, subtotal)
		if err != nil {
			return nil, err
		}
		discount = amount
		promoCode = &promo.Code
	}
	totals := ComputeTotals(subtotal, discount, s.opts.DeliveryFee, s.opts.TaxPercent)

	status, scheduledFor, decision, err := s.hours.DecideOrderStatus(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNo:         generateOrderNo(now),
		Status:          status,
		PaymentStatus:   constants.OrderPaymentStatusUnpaid,
		PaymentMethod:   paymentMethod,
		Subtotal:        models.NewMoneyFromDecimal(totals.Subtotal),
		DeliveryFee:     models.NewMoneyFromDecimal(totals.DeliveryFee),
		Tax:             models.NewMoneyFromDecimal(totals.Tax),
		Discount:        models.NewMoneyFromDecimal(totals.Discount),
		Total:           models.NewMoneyFromDecimal(totals.Total),
		PromoCode:       promoCode,
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerPhone:   phone,
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		DeliveryLat:     input.DeliveryLat,
		DeliveryLng:     input.DeliveryLng,
		Note:            strings.TrimSpace(input.Note),
		ScheduledFor:    scheduledFor,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           items,
	}
	if err := CheckTotals(order); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", int64(order.ID)), attribute.String("order.status", order.Status))

	log := logger.WithContext(ctx, "order_id", order.ID, "order_no", order.OrderNo, "status", order.Status)
	if order.Status == constants.OrderStatusScheduled {
		log.Infow("order_created_scheduled", "scheduled_for", scheduledFor, "hours_reason", decision.Reason)
		if s.notifications != nil {
			err := s.notifications.Enqueue(ctx, NotificationEnqueueInput{
				Event:    constants.NotificationEventOrderScheduled,
				Audience: constants.NotificationAudienceCustomer,
				OrderID:  order.ID,
				Phone:    order.CustomerPhone,
				Data:     notificationOrderData(order),
			})
			if err != nil {
				log.Warnw("order_scheduled_notification_failed", "error", err)
			}
		}
	} else {
		log.Infow("order_created")
	}
	return order, nil
}

var orderTransitions = map[string]map[string]bool{
	constants.OrderStatusPending: {
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusScheduled: {
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusConfirmed: {
		constants.OrderStatusPreparing: true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusPreparing: {
		constants.OrderStatusReady:     true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusReady: {
		constants.OrderStatusOutForDelivery: true,
		constants.OrderStatusCancelled:      true,
	},
	constants.OrderStatusOutForDelivery: {
		constants.OrderStatusCompleted: true,
		constants.OrderStatusCancelled: true,
	},
}

// isTransitionAllowed 人工推进的状态流转；confirmed 只能由支付确认产生
func isTransitionAllowed(from, to string) bool {
	nexts, ok := orderTransitions[from]
	if !ok {
		return false
	}
	return nexts[to]
}

// IsActiveStatus 是否计入后厨负载
func IsActiveStatus(status string) bool {
	for _, active := range constants.ActiveOrderStatuses {
		if active == status {
			return true
		}
	}
	return false
}

// UpdateStatus 推进订单状态；取消或完成时一并收尾配送，进出活跃状态时触发负载评估，出餐后按配置自动派单
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, target string) (*models.Order, error) {
	target = strings.TrimSpace(target)
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	from := order.Status
	if !isTransitionAllowed(from, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrOrderStatusInvalid, from, target)
	}

	now := s.clock.Now()
	updates := map[string]interface{}{}
	switch target {
	case constants.OrderStatusReady:
		updates["ready_at"] = now
	case constants.OrderStatusCompleted:
		updates["completed_at"] = now
	case constants.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}
	var affected int64
	if s.assignments != nil {
		affected, err = s.assignments.TransitionOrder(ctx, order, target, updates)
	} else {
		affected, err = s.orderRepo.TransitionStatus(ctx, order.ID, from, target, updates)
	}
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: order status changed concurrently", ErrOrderStatusInvalid)
	}
	log := logger.WithContext(ctx, "order_id", order.ID, "order_no", order.OrderNo)
	log.Infow("order_status_updated", "from", from, "to", target)

	if IsActiveStatus(from) != IsActiveStatus(target) {
		s.trigger.fire(ctx, "order_"+target)
	}
	if target == constants.OrderStatusReady {
		s.scheduleAutoAssign(ctx, order.ID)
	}

	updated, err := s.orderRepo.GetByID(ctx, order.ID)
	if err != nil || updated == nil {
		order.Status = target
		return order, nil
	}
	return updated, nil
}

func (s *OrderService) scheduleAutoAssign(ctx context.Context, orderID uint) {
	if s.settings == nil {
		return
	}
	setting, err := s.settings.GetDispatchSetting(ctx)
	if err != nil {
		logger.WithContext(ctx).Warnw("order_auto_assign_setting_failed", "order_id", orderID, "error", err)
		return
	}
	if !setting.AutoAssignOnReady {
		return
	}
	if queueEnabled(s.queue) {
		if err := s.queue.EnqueueCourierAutoAssign(queue.CourierAutoAssignPayload{OrderID: orderID}); err != nil {
			logger.WithContext(ctx).Warnw("order_auto_assign_enqueue_failed", "order_id", orderID, "error", err)
		}
		return
	}
	if s.assignments == nil {
		return
	}
	if err := s.assignments.AutoAssign(ctx, orderID); err != nil {
		logger.WithContext(ctx).Warnw("order_auto_assign_failed", "order_id", orderID, "error", err)
	}
}

// Get 根据 ID 查询订单
func (s *OrderService) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetByOrderNo 顾客凭订单号与手机号查询订单
func (s *OrderService) GetByOrderNo(ctx context.Context, orderNo, phone string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if phone != "" {
		normalized, err := NormalizePhone(phone, s.opts.CountryCode)
		if err != nil || normalized != order.CustomerPhone {
			return nil, ErrOrderNotFound
		}
	}
	return order, nil
}

// List 管理端订单列表
func (s *OrderService) List(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if strings.TrimSpace(filter.CustomerPhone) != "" {
		if normalized, err := NormalizePhone(filter.CustomerPhone, s.opts.CountryCode); err == nil {
			filter.CustomerPhone = normalized
		}
	}
	return s.orderRepo.ListAdmin(ctx, filter)
}
