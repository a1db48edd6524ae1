package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mealdash-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OperatingStateRepository 营业状态单例访问接口
type OperatingStateRepository interface {
	Get(ctx context.Context) (*models.OperatingState, error)
	EnsureDefault(ctx context.Context, state models.OperatingState) (*models.OperatingState, error)
	CompareAndSwapOpen(ctx context.Context, expectedVersion uint64, expectedOpen, nextOpen, manualHold bool, reason string, at time.Time) (bool, error)
	UpdateConfig(ctx context.Context, autoCloseEnabled bool, maxActiveOrders int) (*models.OperatingState, error)
}

// GormOperatingStateRepository GORM 实现
type GormOperatingStateRepository struct {
	db *gorm.DB
}

// NewOperatingStateRepository 创建营业状态仓库
func NewOperatingStateRepository(db *gorm.DB) *GormOperatingStateRepository {
	return &GormOperatingStateRepository{db: db}
}

// Get 读取营业状态单例
func (r *GormOperatingStateRepository) Get(ctx context.Context) (*models.OperatingState, error) {
	var state models.OperatingState
	if err := r.db.WithContext(ctx).First(&state, models.OperatingStateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// EnsureDefault 单例不存在时写入默认值并返回当前行
func (r *GormOperatingStateRepository) EnsureDefault(ctx context.Context, state models.OperatingState) (*models.OperatingState, error) {
	state.ID = models.OperatingStateID
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&state).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx)
}

// CompareAndSwapOpen 以版本号与当前开关为条件切换营业状态，同时写入人工保持标记
func (r *GormOperatingStateRepository) CompareAndSwapOpen(ctx context.Context, expectedVersion uint64, expectedOpen, nextOpen, manualHold bool, reason string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.OperatingState{}).
		Where("id = ? AND version = ? AND is_open = ?", models.OperatingStateID, expectedVersion, expectedOpen).
		Updates(map[string]interface{}{
			"is_open":            nextOpen,
			"manual_hold":        manualHold,
			"version":            gorm.Expr("version + ?", 1),
			"last_changed_at":    at,
			"last_change_reason": reason,
			"updated_at":         at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateConfig 更新自动开关与阈值（版本号同步递增，使并发中的评估失效）
func (r *GormOperatingStateRepository) UpdateConfig(ctx context.Context, autoCloseEnabled bool, maxActiveOrders int) (*models.OperatingState, error) {
	err := r.db.WithContext(ctx).Model(&models.OperatingState{}).
		Where("id = ?", models.OperatingStateID).
		Updates(map[string]interface{}{
			"auto_close_enabled": autoCloseEnabled,
			"max_active_orders":  maxActiveOrders,
			"version":            gorm.Expr("version + ?", 1),
			"updated_at":         time.Now(),
		}).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx)
}
