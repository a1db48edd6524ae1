package service

import (
	"context"
	"testing"
	"time"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"

	"gorm.io/gorm"
)

func seedOperatingState(t *testing.T, db *gorm.DB, isOpen bool, maxActive int) {
	t.Helper()
	state := models.OperatingState{
		ID:               models.OperatingStateID,
		IsOpen:           isOpen,
		AutoCloseEnabled: true,
		MaxActiveOrders:  maxActive,
	}
	if err := db.Create(&state).Error; err != nil {
		t.Fatalf("seed operating state failed: %v", err)
	}
}

func seedActiveOrders(t *testing.T, db *gorm.DB, count int) []*models.Order {
	t.Helper()
	orders := make([]*models.Order, 0, count)
	for i := 0; i < count; i++ {
		orders = append(orders, createServiceTestOrderWithStatus(t, db, constants.OrderStatusPreparing))
	}
	return orders
}

func TestDecideCapacityActionHysteresis(t *testing.T) {
	cases := []struct {
		name      string
		isOpen    bool
		autoClose bool
		active    int64
		want      string
	}{
		{name: "open below limit", isOpen: true, autoClose: true, active: 9, want: constants.CapacityActionNone},
		{name: "open at limit", isOpen: true, autoClose: true, active: 10, want: constants.CapacityActionClosed},
		{name: "closed inside band", isOpen: false, autoClose: true, active: 9, want: constants.CapacityActionNone},
		{name: "closed at reopen threshold", isOpen: false, autoClose: true, active: 8, want: constants.CapacityActionNone},
		{name: "closed below reopen threshold", isOpen: false, autoClose: true, active: 7, want: constants.CapacityActionOpened},
		{name: "auto close disabled", isOpen: true, autoClose: false, active: 50, want: constants.CapacityActionNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecideCapacityAction(tc.isOpen, tc.autoClose, 10, tc.active)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestReopenThresholdFloor(t *testing.T) {
	if got := ReopenThreshold(10); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
	if got := ReopenThreshold(2); got != 1 {
		t.Fatalf("expected floor 1, got %d", got)
	}
	if got := ReopenThreshold(1); got != 1 {
		t.Fatalf("expected floor 1, got %d", got)
	}
}

func TestCapacityEvaluateClosesOnceAndAlertsOnce(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	seedOperatingState(t, env.db, true, 10)
	seedActiveOrders(t, env.db, 10)
	ctx := context.Background()

	result, err := env.capacity.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Action != constants.CapacityActionClosed {
		t.Fatalf("expected closed, got %s", result.Action)
	}
	if result.ActiveOrders != 10 || result.Threshold != 10 || result.ReopenBelow != 8 {
		t.Fatalf("unexpected result: %+v", result)
	}

	again, err := env.capacity.Evaluate(ctx)
	if err != nil {
		t.Fatalf("second evaluate failed: %v", err)
	}
	if again.Action != constants.CapacityActionNone {
		t.Fatalf("expected none on repeat, got %s", again.Action)
	}
	if got := env.queue.countEvent(constants.NotificationEventCapacityClosed); got != 1 {
		t.Fatalf("expected exactly one close alert, got %d", got)
	}

	state, err := env.capacity.GetState(ctx)
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}
	if state.IsOpen {
		t.Fatalf("expected kitchen closed")
	}
	if state.Version != 1 {
		t.Fatalf("expected version 1, got %d", state.Version)
	}
	if state.LastChangeReason == "" || state.LastChangedAt == nil {
		t.Fatalf("expected change reason and time recorded: %+v", state)
	}
}

func TestCapacityEvaluateReopensBelowBand(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	seedOperatingState(t, env.db, false, 10)
	orders := seedActiveOrders(t, env.db, 8)
	ctx := context.Background()

	result, err := env.capacity.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Action != constants.CapacityActionNone {
		t.Fatalf("expected none at 8 active, got %s", result.Action)
	}

	if err := env.db.Model(orders[0]).Update("status", constants.OrderStatusOutForDelivery).Error; err != nil {
		t.Fatalf("move order out of active failed: %v", err)
	}
	result, err = env.capacity.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Action != constants.CapacityActionOpened || !result.IsOpen {
		t.Fatalf("expected reopen at 7 active, got %+v", result)
	}
	if got := env.queue.countEvent(constants.NotificationEventCapacityOpened); got != 1 {
		t.Fatalf("expected one reopen alert, got %d", got)
	}
}

func TestCapacityEvaluateIgnoresNonActiveStatuses(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	seedOperatingState(t, env.db, true, 2)
	createServiceTestOrderWithStatus(t, env.db, constants.OrderStatusPending)
	createServiceTestOrderWithStatus(t, env.db, constants.OrderStatusScheduled)
	createServiceTestOrderWithStatus(t, env.db, constants.OrderStatusOutForDelivery)
	createServiceTestOrderWithStatus(t, env.db, constants.OrderStatusConfirmed)

	result, err := env.capacity.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.ActiveOrders != 1 {
		t.Fatalf("expected 1 active order, got %d", result.ActiveOrders)
	}
	if result.Action != constants.CapacityActionNone {
		t.Fatalf("expected none, got %s", result.Action)
	}
}

func TestCapacityCompareAndSwapConflict(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	seedOperatingState(t, env.db, true, 10)
	ctx := context.Background()

	stateRepo := env.capacity.stateRepo
	swapped, err := stateRepo.CompareAndSwapOpen(ctx, 0, true, false, false, "first writer", env.clock.Now())
	if err != nil || !swapped {
		t.Fatalf("expected first swap to win, swapped=%v err=%v", swapped, err)
	}
	swapped, err = stateRepo.CompareAndSwapOpen(ctx, 0, true, false, false, "stale writer", env.clock.Now())
	if err != nil {
		t.Fatalf("stale swap failed: %v", err)
	}
	if swapped {
		t.Fatalf("expected stale swap to miss")
	}
	state, err := stateRepo.Get(ctx)
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}
	if state.LastChangeReason != "first writer" || state.Version != 1 {
		t.Fatalf("unexpected state after conflict: %+v", state)
	}
}

func TestCapacityEvaluateDisabledAutoClose(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	seedOperatingState(t, env.db, true, 1)
	if err := env.db.Model(&models.OperatingState{}).Where("id = ?", models.OperatingStateID).
		Update("auto_close_enabled", false).Error; err != nil {
		t.Fatalf("disable auto close failed: %v", err)
	}
	seedActiveOrders(t, env.db, 5)

	result, err := env.capacity.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Action != constants.CapacityActionNone {
		t.Fatalf("expected none with auto close disabled, got %s", result.Action)
	}
	if len(env.queue.notificationEvents()) != 0 {
		t.Fatalf("expected no alerts")
	}
}

func TestCapacitySetOpenManualOverride(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	seedOperatingState(t, env.db, true, 10)
	ctx := context.Background()

	state, err := env.capacity.SetOpen(ctx, false, "kitchen fire drill")
	if err != nil {
		t.Fatalf("set open failed: %v", err)
	}
	if state.IsOpen || state.LastChangeReason != "kitchen fire drill" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if _, err := env.capacity.SetOpen(ctx, false, "again"); err != nil {
		t.Fatalf("repeat set open failed: %v", err)
	}
	if got := env.queue.countEvent(constants.NotificationEventCapacityClosed); got != 1 {
		t.Fatalf("expected one alert for manual close, got %d", got)
	}
}

func TestCapacityUpdateConfigMirrorsSetting(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	state, err := env.capacity.UpdateConfig(ctx, CapacitySetting{AutoCloseEnabled: true, MaxActiveOrders: 15})
	if err != nil {
		t.Fatalf("update config failed: %v", err)
	}
	if state.MaxActiveOrders != 15 {
		t.Fatalf("expected max 15, got %d", state.MaxActiveOrders)
	}
	setting, err := env.settings.GetCapacitySetting(ctx)
	if err != nil {
		t.Fatalf("get capacity setting failed: %v", err)
	}
	if setting.MaxActiveOrders != 15 || !setting.AutoCloseEnabled {
		t.Fatalf("expected mirrored setting, got %+v", setting)
	}

	if _, err := env.capacity.UpdateConfig(ctx, CapacitySetting{AutoCloseEnabled: true, MaxActiveOrders: -1}); err == nil {
		t.Fatalf("expected invalid max to be rejected")
	}
}

func TestCapacityManualCloseHoldsAgainstAutoReopen(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	seedOperatingState(t, env.db, true, 3)
	ctx := context.Background()

	state, err := env.capacity.SetOpen(ctx, false, "walk-in freezer down")
	if err != nil {
		t.Fatalf("manual close failed: %v", err)
	}
	if state.IsOpen || !state.ManualHold {
		t.Fatalf("manual close should hold the kitchen closed: %+v", state)
	}

	result, err := env.capacity.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Action != constants.CapacityActionNone || result.IsOpen || !result.ManualHold {
		t.Fatalf("auto evaluation must not reopen a held kitchen: %+v", result)
	}

	state, err = env.capacity.SetOpen(ctx, true, "freezer fixed")
	if err != nil {
		t.Fatalf("manual open failed: %v", err)
	}
	if !state.IsOpen || state.ManualHold {
		t.Fatalf("manual open should clear the hold: %+v", state)
	}

	seedActiveOrders(t, env.db, 3)
	result, err = env.capacity.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Action != constants.CapacityActionClosed {
		t.Fatalf("auto close should resume after manual open, got %s", result.Action)
	}
	stored, err := env.capacity.GetState(ctx)
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}
	if stored.ManualHold {
		t.Fatalf("auto close must not set the manual hold")
	}
}

func TestCapacityManualCloseOnAutoClosedKitchenSetsHoldSilently(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	seedOperatingState(t, env.db, false, 10)
	ctx := context.Background()

	state, err := env.capacity.SetOpen(ctx, false, "closing early")
	if err != nil {
		t.Fatalf("manual close failed: %v", err)
	}
	if state.IsOpen || !state.ManualHold {
		t.Fatalf("expected held closed state, got %+v", state)
	}
	if got := len(env.queue.notificationEvents()); got != 0 {
		t.Fatalf("no flip means no alert, got %d", got)
	}
	result, err := env.capacity.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Action != constants.CapacityActionNone || result.IsOpen {
		t.Fatalf("held kitchen must stay closed with zero load: %+v", result)
	}
}
