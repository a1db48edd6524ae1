package service

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/mealdash-next/internal/constants"
)

func lagosSchedule() OperatingHoursSetting {
	schedule := OperatingHoursDefaultSetting()
	schedule.Timezone = "Africa/Lagos"
	schedule.Days[time.Sunday] = DayHours{Closed: true}
	schedule.Days[time.Monday] = DayHours{Open: "09:00", Close: "17:00"}
	return schedule
}

func TestEvaluateHoursReasons(t *testing.T) {
	schedule := lagosSchedule()
	cases := []struct {
		name   string
		now    time.Time
		open   bool
		reason string
	}{
		{name: "before opening", now: time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC), open: false, reason: "opens at 09:00"},
		{name: "exactly at opening", now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), open: true, reason: "open"},
		{name: "one minute before close", now: time.Date(2026, 3, 2, 15, 59, 0, 0, time.UTC), open: true, reason: "open"},
		{name: "exactly at close", now: time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC), open: false, reason: "closed at 17:00"},
		{name: "closed day", now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), open: false, reason: "closed today"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := EvaluateHours(schedule, tc.now)
			if decision.ShouldBeOpen != tc.open {
				t.Fatalf("expected open=%v, got %v (%s)", tc.open, decision.ShouldBeOpen, decision.Reason)
			}
			if decision.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, decision.Reason)
			}
			if decision.TodayHours == nil {
				t.Fatalf("expected today hours in decision")
			}
		})
	}
}

func TestEvaluateHoursUsesRestaurantTimezone(t *testing.T) {
	schedule := lagosSchedule()
	// 23:30 UTC on Sunday is 00:30 Monday in Lagos
	decision := EvaluateHours(schedule, time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC))
	if decision.Reason != "opens at 09:00" {
		t.Fatalf("expected Monday window to apply, got %q", decision.Reason)
	}
	if decision.Timezone != "Africa/Lagos" {
		t.Fatalf("unexpected timezone %s", decision.Timezone)
	}
}

func TestNextOpening(t *testing.T) {
	schedule := lagosSchedule()

	next, ok := NextOpening(schedule, time.Date(2026, 3, 2, 16, 30, 0, 0, time.UTC))
	if !ok {
		t.Fatalf("expected an upcoming opening")
	}
	if want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("expected Tuesday 10:00 Lagos (%s), got %s", want, next.UTC())
	}

	next, ok = NextOpening(schedule, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatalf("expected an upcoming opening")
	}
	if want := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("expected Monday 09:00 Lagos (%s), got %s", want, next.UTC())
	}

	next, ok = NextOpening(schedule, time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC))
	if !ok || !next.Equal(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected same-day opening, got %s ok=%v", next, ok)
	}

	allClosed := lagosSchedule()
	for i := range allClosed.Days {
		allClosed.Days[i] = DayHours{Closed: true}
	}
	if _, ok := NextOpening(allClosed, time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)); ok {
		t.Fatalf("expected no opening for a fully closed week")
	}
}

func TestDecideOrderStatusSchedulesOutsideHours(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 16, 30, 0, 0, time.UTC))
	ctx := context.Background()
	if _, err := env.settings.UpdateOperatingHoursSetting(ctx, lagosSchedule()); err != nil {
		t.Fatalf("update hours failed: %v", err)
	}

	status, scheduledFor, decision, err := env.hours.DecideOrderStatus(ctx)
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if status != constants.OrderStatusScheduled {
		t.Fatalf("expected scheduled, got %s", status)
	}
	if scheduledFor == nil || !scheduledFor.Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected scheduled_for %v", scheduledFor)
	}
	if decision.Reason != "closed at 17:00" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestDecideOrderStatusPendingInsideHours(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if _, err := env.settings.UpdateOperatingHoursSetting(ctx, lagosSchedule()); err != nil {
		t.Fatalf("update hours failed: %v", err)
	}
	status, scheduledFor, _, err := env.hours.DecideOrderStatus(ctx)
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if status != constants.OrderStatusPending || scheduledFor != nil {
		t.Fatalf("expected pending without schedule, got %s %v", status, scheduledFor)
	}
}

func TestOperatingHoursSettingValidation(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	inverted := lagosSchedule()
	inverted.Days[time.Friday] = DayHours{Open: "18:00", Close: "09:00"}
	if _, err := env.settings.UpdateOperatingHoursSetting(ctx, inverted); !errors.Is(err, ErrSettingInvalid) {
		t.Fatalf("expected inverted window rejected, got %v", err)
	}

	badTime := lagosSchedule()
	badTime.Days[time.Friday] = DayHours{Open: "25:00", Close: "26:00"}
	if _, err := env.settings.UpdateOperatingHoursSetting(ctx, badTime); !errors.Is(err, ErrSettingInvalid) {
		t.Fatalf("expected bad time rejected, got %v", err)
	}

	badZone := lagosSchedule()
	badZone.Timezone = "Mars/Olympus"
	if _, err := env.settings.UpdateOperatingHoursSetting(ctx, badZone); !errors.Is(err, ErrSettingInvalid) {
		t.Fatalf("expected bad timezone rejected, got %v", err)
	}

	saved, err := env.settings.UpdateOperatingHoursSetting(ctx, lagosSchedule())
	if err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	loaded, err := env.settings.GetOperatingHoursSetting(ctx, "UTC")
	if err != nil {
		t.Fatalf("get hours failed: %v", err)
	}
	if loaded != saved {
		t.Fatalf("expected stored schedule, got %+v", loaded)
	}
}

func TestDispatchSettingValidation(t *testing.T) {
	lat, lng := 100.0, 3.0
	if err := ValidateDispatchSetting(DispatchSetting{OriginLat: &lat, OriginLng: &lng}); !errors.Is(err, ErrSettingInvalid) {
		t.Fatalf("expected out of range latitude rejected, got %v", err)
	}
	lat = 6.5
	normalized := NormalizeDispatchSetting(DispatchSetting{OriginLat: &lat})
	if normalized.OriginLat != nil || normalized.OriginLng != nil {
		t.Fatalf("expected unpaired coordinate dropped")
	}
	if err := ValidateDispatchSetting(DispatchSetting{AutoAssignOnReady: true, OriginLat: &lat, OriginLng: &lng}); err != nil {
		t.Fatalf("expected valid dispatch setting, got %v", err)
	}
}

func TestCapacitySettingNormalize(t *testing.T) {
	normalized := NormalizeCapacitySetting(CapacitySetting{AutoCloseEnabled: true})
	if normalized.MaxActiveOrders != CapacityDefaultSetting().MaxActiveOrders {
		t.Fatalf("expected default max, got %d", normalized.MaxActiveOrders)
	}
	if err := ValidateCapacitySetting(CapacitySetting{MaxActiveOrders: 5000}); !errors.Is(err, ErrSettingInvalid) {
		t.Fatalf("expected too large max rejected, got %v", err)
	}
}
