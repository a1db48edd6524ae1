package service

import (
	"context"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"
)

// CapacitySetting 负载自动开关店配置
type CapacitySetting struct {
	AutoCloseEnabled bool `json:"auto_close_enabled"`
	MaxActiveOrders  int  `json:"max_active_orders" validate:"min=1,max=1000"`
}

// CapacityDefaultSetting 默认负载配置
func CapacityDefaultSetting() CapacitySetting {
	return CapacitySetting{
		AutoCloseEnabled: true,
		MaxActiveOrders:  models.DefaultMaxActiveOrders,
	}
}

// NormalizeCapacitySetting 归一化负载配置
func NormalizeCapacitySetting(setting CapacitySetting) CapacitySetting {
	if setting.MaxActiveOrders == 0 {
		setting.MaxActiveOrders = models.DefaultMaxActiveOrders
	}
	return setting
}

// ValidateCapacitySetting 校验负载配置
func ValidateCapacitySetting(setting CapacitySetting) error {
	return validateSetting(NormalizeCapacitySetting(setting))
}

// CapacitySettingToMap 将负载配置转换为 settings 存储结构
func CapacitySettingToMap(setting CapacitySetting) map[string]interface{} {
	normalized := NormalizeCapacitySetting(setting)
	return map[string]interface{}{
		"auto_close_enabled": normalized.AutoCloseEnabled,
		"max_active_orders":  normalized.MaxActiveOrders,
	}
}

func capacitySettingFromJSON(raw models.JSON, fallback CapacitySetting) CapacitySetting {
	result := fallback
	if enabledRaw, ok := raw["auto_close_enabled"]; ok {
		result.AutoCloseEnabled = parseSettingBool(enabledRaw)
	}
	if maxRaw, ok := raw["max_active_orders"]; ok {
		if parsed, err := parseSettingInt(maxRaw); err == nil {
			result.MaxActiveOrders = parsed
		}
	}
	return NormalizeCapacitySetting(result)
}

// GetCapacitySetting 获取负载配置
func (s *SettingService) GetCapacitySetting(ctx context.Context) (CapacitySetting, error) {
	fallback := CapacityDefaultSetting()
	if s == nil {
		return fallback, nil
	}
	value, err := s.GetByKey(ctx, constants.SettingKeyCapacity)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return capacitySettingFromJSON(value, fallback), nil
}

// UpdateCapacitySetting 更新负载配置
func (s *SettingService) UpdateCapacitySetting(ctx context.Context, setting CapacitySetting) (CapacitySetting, error) {
	normalized := NormalizeCapacitySetting(setting)
	if err := ValidateCapacitySetting(normalized); err != nil {
		return CapacityDefaultSetting(), err
	}
	if _, err := s.Update(ctx, constants.SettingKeyCapacity, CapacitySettingToMap(normalized)); err != nil {
		return CapacityDefaultSetting(), err
	}
	return normalized, nil
}
