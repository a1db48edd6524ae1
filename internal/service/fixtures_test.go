package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/geo"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/queue"
	"github.com/mealdash-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type mockSettingRepo struct {
	store map[string]models.JSON
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{store: map[string]models.JSON{}}
}

func (m *mockSettingRepo) GetByKey(_ context.Context, key string) (*models.Setting, error) {
	value, ok := m.store[key]
	if !ok {
		return nil, nil
	}
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func (m *mockSettingRepo) Upsert(_ context.Context, key string, value models.JSON) (*models.Setting, error) {
	m.store[key] = value
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

// recordingQueue 记录入队内容的队列替身
type recordingQueue struct {
	mu            sync.Mutex
	enabled       bool
	notifications []queue.NotificationDispatchPayload
	prints        []queue.PrintJobPayload
	printTaskIDs  []string
	capacity      []queue.CapacityEvaluatePayload
	autoAssign    []queue.CourierAutoAssignPayload
}

func (q *recordingQueue) Enabled() bool { return q.enabled }

func (q *recordingQueue) EnqueueNotificationDispatch(payload queue.NotificationDispatchPayload, _ ...asynq.Option) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notifications = append(q.notifications, payload)
	return nil
}

func (q *recordingQueue) EnqueuePrintJob(payload queue.PrintJobPayload, opts ...asynq.Option) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prints = append(q.prints, payload)
	for _, opt := range opts {
		if opt.Type() == asynq.TaskIDOpt {
			q.printTaskIDs = append(q.printTaskIDs, opt.Value().(string))
		}
	}
	return nil
}

func (q *recordingQueue) EnqueueCapacityEvaluate(payload queue.CapacityEvaluatePayload, _ ...asynq.Option) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.capacity = append(q.capacity, payload)
	return nil
}

func (q *recordingQueue) EnqueueCourierAutoAssign(payload queue.CourierAutoAssignPayload, _ ...asynq.Option) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.autoAssign = append(q.autoAssign, payload)
	return nil
}

func (q *recordingQueue) notificationEvents() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := make([]string, 0, len(q.notifications))
	for _, payload := range q.notifications {
		events = append(events, payload.Event)
	}
	return events
}

func (q *recordingQueue) countEvent(event string) int {
	count := 0
	for _, got := range q.notificationEvents() {
		if got == event {
			count++
		}
	}
	return count
}

// stubPrinter 可控结果的打印通道
type stubPrinter struct {
	mu    sync.Mutex
	err   error
	calls []uint
}

func (p *stubPrinter) Print(_ context.Context, jobID uint, _ map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, jobID)
	return p.err
}

type serviceTestEnv struct {
	db            *gorm.DB
	queue         *recordingQueue
	printer       *stubPrinter
	clock         clock.Fixed
	settings      *SettingService
	notifications *NotificationService
	capacity      *CapacityService
	hours         *OperatingHoursService
	promos        *PromoService
	attribution   *AttributionService
	prints        *PrintService
	dispatcher    *FulfillmentDispatcher
	payments      *PaymentService
	assignments   *CourierAssignmentService
	orders        *OrderService
}

var (
	testOrigin   = geo.Point{Lat: 6.5244, Lng: 3.3792}
	testSequence atomic.Int64
)

func newServiceTestEnv(t *testing.T, now time.Time) *serviceTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:service_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), testSequence.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	env := &serviceTestEnv{
		db:      db,
		queue:   &recordingQueue{enabled: true},
		printer: &stubPrinter{},
		clock:   clock.Fixed(now),
	}
	tx := repository.NewTransactor(db)
	orderRepo := repository.NewOrderRepository(db)
	promoRepo := repository.NewPromoCodeRepository(db)
	referrerRepo := repository.NewReferrerRepository(db)
	attributionRepo := repository.NewAttributionRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	courierRepo := repository.NewCourierRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	printRepo := repository.NewPrintJobRepository(db)

	env.settings = NewSettingService(repository.NewSettingRepository(db))
	env.notifications = NewNotificationService(env.queue, nil, nil, NotificationOptions{RestaurantName: "Test Kitchen"})
	env.capacity = NewCapacityService(orderRepo, repository.NewOperatingStateRepository(db), env.settings, env.notifications, nil, env.clock)
	env.hours = NewOperatingHoursService(env.settings, "UTC", env.clock)
	env.promos = NewPromoService(promoRepo, referrerRepo, env.clock)
	env.attribution = NewAttributionService(tx, orderRepo, promoRepo, referrerRepo, attributionRepo, commissionRepo, env.clock)
	env.prints = NewPrintService(printRepo, env.printer, env.queue, PrintOptions{MaxAttempts: 3}, env.clock)
	env.dispatcher = NewFulfillmentDispatcher(printRepo, env.prints, env.notifications, env.clock)
	env.payments = NewPaymentService(tx, orderRepo, repository.NewPaymentRepository(db), nil, env.attribution, env.dispatcher, env.queue, env.capacity, PaymentOptions{WebhookSecret: "whsec-test"}, env.clock)
	env.assignments = NewCourierAssignmentService(tx, orderRepo, courierRepo, assignmentRepo, env.settings, env.queue, env.capacity, testOrigin, env.clock)
	env.orders = NewOrderService(orderRepo, env.promos, env.hours, env.capacity, env.assignments, env.settings, env.notifications, env.queue, OrderOptions{
		CountryCode: "NG",
		DeliveryFee: decimal.NewFromInt(500),
		TaxPercent:  decimal.Zero,
	}, env.clock)
	return env
}

func createServiceTestReferrer(t *testing.T, db *gorm.DB, name string, rate string, active bool) *models.Referrer {
	t.Helper()
	referrer := &models.Referrer{
		Name:            name,
		CommissionType:  constants.DiscountTypePercentage,
		CommissionValue: models.MustMoney(rate),
		IsActive:        true,
	}
	if err := db.Create(referrer).Error; err != nil {
		t.Fatalf("create referrer failed: %v", err)
	}
	if !active {
		if err := db.Model(referrer).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate referrer failed: %v", err)
		}
		referrer.IsActive = false
	}
	return referrer
}

func createServiceTestPromo(t *testing.T, db *gorm.DB, code string, percent string, referrerID *uint) *models.PromoCode {
	t.Helper()
	promo := &models.PromoCode{
		Code:          code,
		DiscountType:  constants.DiscountTypePercentage,
		DiscountValue: models.MustMoney(percent),
		ReferrerID:    referrerID,
		IsActive:      true,
	}
	if err := db.Create(promo).Error; err != nil {
		t.Fatalf("create promo failed: %v", err)
	}
	return promo
}

// createServiceTestOrder 直接落库一张待支付订单
func createServiceTestOrder(t *testing.T, db *gorm.DB, phone, total string, promo *string, method string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:       fmt.Sprintf("T%06d", testSequence.Add(1)),
		Status:        constants.OrderStatusPending,
		PaymentStatus: constants.OrderPaymentStatusUnpaid,
		PaymentMethod: method,
		Subtotal:      models.MustMoney(total),
		Total:         models.MustMoney(total),
		PromoCode:     promo,
		CustomerPhone: phone,
		Items: []models.OrderItem{
			{Name: "Jollof Rice", UnitPrice: models.MustMoney(total), Quantity: 1, LineTotal: models.MustMoney(total)},
		},
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func createServiceTestOrderWithStatus(t *testing.T, db *gorm.DB, status string) *models.Order {
	t.Helper()
	order := createServiceTestOrder(t, db, "+2348012345678", "1000", nil, constants.PaymentMethodOnline)
	if err := db.Model(order).Update("status", status).Error; err != nil {
		t.Fatalf("update order status failed: %v", err)
	}
	order.Status = status
	return order
}

func createServiceTestCourier(t *testing.T, db *gorm.DB, name string, lat, lng *float64, cod string) *models.Courier {
	t.Helper()
	courier := &models.Courier{
		Name:        name,
		Phone:       fmt.Sprintf("+23480%08d", testSequence.Add(1)),
		Status:      constants.CourierStatusAvailable,
		IsActive:    true,
		VehicleType: "motorbike",
		Lat:         lat,
		Lng:         lng,
		CODBalance:  models.MustMoney(cod),
	}
	if err := db.Create(courier).Error; err != nil {
		t.Fatalf("create courier failed: %v", err)
	}
	return courier
}

func float64Ptr(v float64) *float64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}
