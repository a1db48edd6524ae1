package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mealdash-next/internal/cache"
	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	capacityHysteresis   = 2
	capacityLockKey      = "capacity:evaluate"
	capacityLockTTL      = 10 * time.Second
	capacitySwapAttempts = 3
)

// CapacityResult 负载评估结果
type CapacityResult struct {
	Action           string `json:"action"`
	ActiveOrders     int64  `json:"active_orders"`
	Threshold        int    `json:"threshold"`
	ReopenBelow      int    `json:"reopen_below"`
	IsOpen           bool   `json:"is_open"`
	AutoCloseEnabled bool   `json:"auto_close_enabled"`
	ManualHold       bool   `json:"manual_hold"`
}

// ReopenThreshold 活跃订单低于该值时自动恢复接单
func ReopenThreshold(maxActiveOrders int) int {
	if maxActiveOrders-capacityHysteresis < 1 {
		return 1
	}
	return maxActiveOrders - capacityHysteresis
}

// DecideCapacityAction 带 2 单缓冲区的开关店判定
func DecideCapacityAction(isOpen, autoCloseEnabled bool, maxActiveOrders int, active int64) string {
	if !autoCloseEnabled {
		return constants.CapacityActionNone
	}
	switch {
	case isOpen && active >= int64(maxActiveOrders):
		return constants.CapacityActionClosed
	case !isOpen && active < int64(ReopenThreshold(maxActiveOrders)):
		return constants.CapacityActionOpened
	default:
		return constants.CapacityActionNone
	}
}

// CapacityService 负载开关店门控
type CapacityService struct {
	orderRepo     repository.OrderRepository
	stateRepo     repository.OperatingStateRepository
	settings      *SettingService
	notifications *NotificationService
	locker        cache.Locker
	clock         clock.Clock
}

// NewCapacityService 创建负载门控服务，locker 可为 nil
func NewCapacityService(
	orderRepo repository.OrderRepository,
	stateRepo repository.OperatingStateRepository,
	settings *SettingService,
	notifications *NotificationService,
	locker cache.Locker,
	clk clock.Clock,
) *CapacityService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &CapacityService{
		orderRepo:     orderRepo,
		stateRepo:     stateRepo,
		settings:      settings,
		notifications: notifications,
		locker:        locker,
		clock:         clk,
	}
}

// GetState 读取营业状态，单例缺失时按负载配置初始化
func (s *CapacityService) GetState(ctx context.Context) (*models.OperatingState, error) {
	state, err := s.stateRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}
	setting, err := s.settings.GetCapacitySetting(ctx)
	if err != nil {
		return nil, err
	}
	return s.stateRepo.EnsureDefault(ctx, models.OperatingState{
		IsOpen:           true,
		AutoCloseEnabled: setting.AutoCloseEnabled,
		MaxActiveOrders:  setting.MaxActiveOrders,
	})
}

// GetCachedState 公共接口读取营业状态，优先 Redis
func (s *CapacityService) GetCachedState(ctx context.Context) (*models.OperatingState, error) {
	if cached, hit, err := cache.GetOperatingState(ctx); err == nil && hit && cached != nil {
		return cached, nil
	}
	state, err := s.GetState(ctx)
	if err != nil {
		return nil, err
	}
	_ = cache.SetOperatingState(ctx, state)
	return state, nil
}

// Evaluate 统计活跃订单并按阈值开关店；CAS 未命中说明其他实例已切换，视为 none
func (s *CapacityService) Evaluate(ctx context.Context) (*CapacityResult, error) {
	ctx, span := tracer.Start(ctx, "capacity.evaluate")
	defer span.End()
	log := logger.WithContext(ctx)

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, capacityLockKey, capacityLockTTL)
		switch {
		case err == nil:
			defer func() {
				if releaseErr := lock.Release(context.Background()); releaseErr != nil {
					log.Debugw("capacity_gate_lock_release_failed", "error", releaseErr)
				}
			}()
		case errors.Is(err, cache.ErrLockNotObtained):
			log.Debugw("capacity_gate_lock_busy")
		default:
			log.Warnw("capacity_gate_lock_failed", "error", err)
		}
	}

	state, err := s.GetState(ctx)
	if err != nil {
		log.Errorw("capacity_gate_state_fetch_failed", "error", err)
		return nil, err
	}
	active, err := s.orderRepo.CountByStatuses(ctx, constants.ActiveOrderStatuses)
	if err != nil {
		log.Errorw("capacity_gate_count_failed", "error", err)
		return nil, err
	}

	result := &CapacityResult{
		Action:           DecideCapacityAction(state.IsOpen, state.AutoCloseEnabled, state.MaxActiveOrders, active),
		ActiveOrders:     active,
		Threshold:        state.MaxActiveOrders,
		ReopenBelow:      ReopenThreshold(state.MaxActiveOrders),
		IsOpen:           state.IsOpen,
		AutoCloseEnabled: state.AutoCloseEnabled,
		ManualHold:       state.ManualHold,
	}
	if state.ManualHold {
		result.Action = constants.CapacityActionNone
	}
	span.SetAttributes(
		attribute.Int64("capacity.active_orders", active),
		attribute.Int("capacity.threshold", state.MaxActiveOrders),
	)
	if result.Action == constants.CapacityActionNone {
		return result, nil
	}

	nextOpen := result.Action == constants.CapacityActionOpened
	reason := capacityReason(result)
	swapped, err := s.stateRepo.CompareAndSwapOpen(ctx, state.Version, state.IsOpen, nextOpen, false, reason, s.clock.Now())
	if err != nil {
		log.Errorw("capacity_gate_write_failed", "action", result.Action, "error", err)
		return nil, err
	}
	if !swapped {
		log.Infow("capacity_gate_swap_conflict", "action", result.Action, "version", state.Version)
		result.Action = constants.CapacityActionNone
		return result, nil
	}

	result.IsOpen = nextOpen
	span.SetAttributes(attribute.String("capacity.action", result.Action))
	_ = cache.InvalidateOperatingState(ctx)
	log.Infow("capacity_gate_"+result.Action,
		"active_orders", active,
		"threshold", result.Threshold,
		"reopen_below", result.ReopenBelow,
	)
	s.alert(ctx, result)
	return result, nil
}

// SetOpen 手动开关店。手动关店会一直保持，自动评估不再开店；手动开店解除保持并恢复自动评估。
// 已是目标状态时不产生告警。
func (s *CapacityService) SetOpen(ctx context.Context, isOpen bool, reason string) (*models.OperatingState, error) {
	if reason == "" {
		reason = "manual override"
	}
	hold := !isOpen
	for attempt := 0; attempt < capacitySwapAttempts; attempt++ {
		state, err := s.GetState(ctx)
		if err != nil {
			return nil, err
		}
		if state.IsOpen == isOpen && state.ManualHold == hold {
			return state, nil
		}
		swapped, err := s.stateRepo.CompareAndSwapOpen(ctx, state.Version, state.IsOpen, isOpen, hold, reason, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if !swapped {
			continue
		}
		_ = cache.InvalidateOperatingState(ctx)
		log := logger.WithContext(ctx, "reason", reason, "manual_hold", hold)
		if state.IsOpen == isOpen {
			log.Infow("capacity_gate_manual_hold_updated", "is_open", isOpen)
			return s.stateRepo.Get(ctx)
		}
		action := constants.CapacityActionClosed
		if isOpen {
			action = constants.CapacityActionOpened
		}
		active, countErr := s.orderRepo.CountByStatuses(ctx, constants.ActiveOrderStatuses)
		if countErr != nil {
			active = -1
		}
		log.Infow("capacity_gate_manual_" + action)
		s.alert(ctx, &CapacityResult{
			Action:       action,
			ActiveOrders: active,
			Threshold:    state.MaxActiveOrders,
			ReopenBelow:  ReopenThreshold(state.MaxActiveOrders),
			IsOpen:       isOpen,
			ManualHold:   hold,
		})
		return s.stateRepo.Get(ctx)
	}
	return nil, fmt.Errorf("%w: operating state changed concurrently", ErrAlreadyProcessed)
}

// UpdateConfig 更新自动开关与阈值，并同步到 capacity 设置
func (s *CapacityService) UpdateConfig(ctx context.Context, setting CapacitySetting) (*models.OperatingState, error) {
	normalized := NormalizeCapacitySetting(setting)
	if err := ValidateCapacitySetting(normalized); err != nil {
		return nil, err
	}
	if _, err := s.GetState(ctx); err != nil {
		return nil, err
	}
	state, err := s.stateRepo.UpdateConfig(ctx, normalized.AutoCloseEnabled, normalized.MaxActiveOrders)
	if err != nil {
		return nil, err
	}
	if _, err := s.settings.UpdateCapacitySetting(ctx, normalized); err != nil {
		logger.WithContext(ctx).Warnw("capacity_setting_mirror_failed", "error", err)
	}
	_ = cache.InvalidateOperatingState(ctx)
	return state, nil
}

func (s *CapacityService) alert(ctx context.Context, result *CapacityResult) {
	event := constants.NotificationEventCapacityClosed
	if result.Action == constants.CapacityActionOpened {
		event = constants.NotificationEventCapacityOpened
	}
	err := s.notifications.Enqueue(ctx, NotificationEnqueueInput{
		Event:    event,
		Audience: constants.NotificationAudienceAdmin,
		Data: map[string]interface{}{
			"active_orders": result.ActiveOrders,
			"threshold":     result.Threshold,
			"reopen_below":  result.ReopenBelow,
		},
	})
	if err != nil {
		logger.WithContext(ctx).Warnw("capacity_gate_alert_enqueue_failed", "event", event, "error", err)
	}
}

func capacityReason(result *CapacityResult) string {
	if result.Action == constants.CapacityActionClosed {
		return fmt.Sprintf("auto: %d active orders >= %d", result.ActiveOrders, result.Threshold)
	}
	return fmt.Sprintf("auto: %d active orders < %d", result.ActiveOrders, result.ReopenBelow)
}
