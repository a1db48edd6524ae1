package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
)

// HoursDecision 营业时间判定结果
type HoursDecision struct {
	ShouldBeOpen bool      `json:"should_be_open"`
	Reason       string    `json:"reason"`
	TodayHours   *DayHours `json:"today_hours,omitempty"`
	Timezone     string    `json:"timezone"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// EvaluateHours 按门店时区判断 now 是否处于当日营业窗口 [open, close)
func EvaluateHours(schedule OperatingHoursSetting, now time.Time) HoursDecision {
	loc := scheduleLocation(schedule)
	local := clock.In(now, loc)
	today := schedule.Day(local.Weekday())
	decision := HoursDecision{
		Timezone:    loc.String(),
		EvaluatedAt: local,
		TodayHours:  &today,
	}

	open, closeAt, ok := today.Window()
	if !ok {
		decision.Reason = "closed today"
		return decision
	}
	minute := clock.MinuteOfDay(now, loc)
	switch {
	case minute < open:
		decision.Reason = "opens at " + clock.FormatMinute(open)
	case minute >= closeAt:
		decision.Reason = "closed at " + clock.FormatMinute(closeAt)
	default:
		decision.ShouldBeOpen = true
		decision.Reason = "open"
	}
	return decision
}

// NextOpening 查找 now 之后最近的开门时间；一周内都不营业时返回 false
func NextOpening(schedule OperatingHoursSetting, now time.Time) (time.Time, bool) {
	loc := scheduleLocation(schedule)
	local := clock.In(now, loc)
	for offset := 0; offset <= 7; offset++ {
		day := local.AddDate(0, 0, offset)
		open, _, ok := schedule.Day(day.Weekday()).Window()
		if !ok {
			continue
		}
		candidate := clock.AtMinute(day, open, loc)
		if candidate.After(now) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func scheduleLocation(schedule OperatingHoursSetting) *time.Location {
	loc, err := clock.LoadLocation(schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OperatingHoursService 营业时间门控
type OperatingHoursService struct {
	settings        *SettingService
	defaultTimezone string
	clock           clock.Clock
}

// NewOperatingHoursService 创建营业时间服务
func NewOperatingHoursService(settings *SettingService, defaultTimezone string, clk clock.Clock) *OperatingHoursService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &OperatingHoursService{
		settings:        settings,
		defaultTimezone: defaultTimezone,
		clock:           clk,
	}
}

// Schedule 读取当前营业时间配置
func (s *OperatingHoursService) Schedule(ctx context.Context) (OperatingHoursSetting, error) {
	return s.settings.GetOperatingHoursSetting(ctx, s.defaultTimezone)
}

// ShouldBeOpenNow 判断当前是否处于营业时间
func (s *OperatingHoursService) ShouldBeOpenNow(ctx context.Context) (*HoursDecision, error) {
	schedule, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	decision := EvaluateHours(schedule, s.clock.Now())
	return &decision, nil
}

// DecideOrderStatus 下单时一次性决定订单初始状态：营业中为 pending，否则 scheduled 并给出开始时间
func (s *OperatingHoursService) DecideOrderStatus(ctx context.Context) (string, *time.Time, *HoursDecision, error) {
	schedule, err := s.Schedule(ctx)
	if err != nil {
		return "", nil, nil, err
	}
	now := s.clock.Now()
	decision := EvaluateHours(schedule, now)
	if decision.ShouldBeOpen {
		return constants.OrderStatusPending, nil, &decision, nil
	}
	next, ok := NextOpening(schedule, now)
	if !ok {
		return "", nil, &decision, fmt.Errorf("%w: restaurant has no upcoming opening hours", ErrValidation)
	}
	return constants.OrderStatusScheduled, &next, &decision, nil
}
