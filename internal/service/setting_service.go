package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mealdash-next/internal/cache"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"
)

// SettingService 类型化设置的存取入口（营业时间、负载闸门、派单），读路径走 Redis 缓存
type SettingService struct {
	repo repository.SettingRepository
}

// NewSettingService 创建设置服务
func NewSettingService(repo repository.SettingRepository) *SettingService {
	return &SettingService{repo: repo}
}

// GetByKey 获取设置，未配置时返回 nil
// 下单与闸门评估都会读取设置，命中缓存时不访问数据库。
func (s *SettingService) GetByKey(ctx context.Context, key string) (models.JSON, error) {
	if cached, hit, err := cache.GetSetting(ctx, key); err == nil && hit {
		return cached, nil
	}
	setting, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	if err := cache.SetSetting(ctx, key, setting.ValueJSON); err != nil {
		logger.WithContext(ctx).Debugw("setting_cache_write_failed", "key", key, "error", err)
	}
	return setting.ValueJSON, nil
}

// Update 按 key 归一化后写入，并失效缓存
func (s *SettingService) Update(ctx context.Context, key string, value map[string]interface{}) (models.JSON, error) {
	normalized, err := normalizeSettingValueByKey(key, value)
	if err != nil {
		return nil, err
	}

	setting, err := s.repo.Upsert(ctx, key, normalized)
	if err != nil {
		return nil, err
	}
	if err := cache.InvalidateSetting(ctx, key); err != nil {
		logger.WithContext(ctx).Warnw("setting_cache_invalidate_failed", "key", key, "error", err)
	}
	return setting.ValueJSON, nil
}

func parseSettingInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := v.Float64(); err == nil {
			return int(f), nil
		}
		return 0, fmt.Errorf("invalid json number")
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, fmt.Errorf("empty string")
		}
		return strconv.Atoi(trimmed)
	default:
		return 0, fmt.Errorf("unsupported value type")
	}
}

func parseSettingFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, fmt.Errorf("empty string")
		}
		return strconv.ParseFloat(trimmed, 64)
	default:
		return 0, fmt.Errorf("unsupported value type")
	}
}

func parseSettingBool(raw interface{}) bool {
	switch value := raw.(type) {
	case bool:
		return value
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case string:
		normalized := strings.ToLower(strings.TrimSpace(value))
		return normalized == "1" || normalized == "true" || normalized == "yes" || normalized == "on"
	default:
		return false
	}
}

func normalizeSettingText(raw interface{}) string {
	if raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", raw))
}
