package cache

import (
	"context"
	"time"

	"github.com/mealdash-next/internal/models"
)

const operatingStateKey = "operating_state"

// operatingStateTTL 开关店状态在公共接口的缓存时长
const operatingStateTTL = 15 * time.Second

// GetOperatingState 读取缓存的营业状态
func GetOperatingState(ctx context.Context) (*models.OperatingState, bool, error) {
	var state models.OperatingState
	hit, err := GetJSON(ctx, operatingStateKey, &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetOperatingState 缓存营业状态
func SetOperatingState(ctx context.Context, state *models.OperatingState) error {
	if state == nil {
		return nil
	}
	return SetJSON(ctx, operatingStateKey, state, operatingStateTTL)
}

// InvalidateOperatingState 状态变化后清理缓存
func InvalidateOperatingState(ctx context.Context) error {
	return Del(ctx, operatingStateKey)
}
