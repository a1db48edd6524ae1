package service

import (
	"context"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/geo"
	"github.com/mealdash-next/internal/models"
)

// DispatchSetting 配送调度配置；门店坐标为空时使用 restaurant 配置
type DispatchSetting struct {
	AutoAssignOnReady bool     `json:"auto_assign_on_ready"`
	OriginLat         *float64 `json:"origin_lat,omitempty" validate:"omitempty,latitude"`
	OriginLng         *float64 `json:"origin_lng,omitempty" validate:"omitempty,longitude"`
}

// Origin 返回配置的门店坐标
func (s DispatchSetting) Origin() (geo.Point, bool) {
	return geo.PointFromPtr(s.OriginLat, s.OriginLng)
}

// DispatchDefaultSetting 默认调度配置
func DispatchDefaultSetting() DispatchSetting {
	return DispatchSetting{AutoAssignOnReady: false}
}

// NormalizeDispatchSetting 归一化调度配置：坐标需成对出现
func NormalizeDispatchSetting(setting DispatchSetting) DispatchSetting {
	if setting.OriginLat == nil || setting.OriginLng == nil {
		setting.OriginLat = nil
		setting.OriginLng = nil
	}
	return setting
}

// ValidateDispatchSetting 校验调度配置
func ValidateDispatchSetting(setting DispatchSetting) error {
	return validateSetting(NormalizeDispatchSetting(setting))
}

// DispatchSettingToMap 将调度配置转换为 settings 存储结构
func DispatchSettingToMap(setting DispatchSetting) map[string]interface{} {
	normalized := NormalizeDispatchSetting(setting)
	result := map[string]interface{}{
		"auto_assign_on_ready": normalized.AutoAssignOnReady,
	}
	if normalized.OriginLat != nil {
		result["origin_lat"] = *normalized.OriginLat
		result["origin_lng"] = *normalized.OriginLng
	}
	return result
}

func dispatchSettingFromJSON(raw models.JSON, fallback DispatchSetting) DispatchSetting {
	result := fallback
	if autoRaw, ok := raw["auto_assign_on_ready"]; ok {
		result.AutoAssignOnReady = parseSettingBool(autoRaw)
	}
	if latRaw, ok := raw["origin_lat"]; ok {
		if parsed, err := parseSettingFloat(latRaw); err == nil {
			result.OriginLat = &parsed
		}
	}
	if lngRaw, ok := raw["origin_lng"]; ok {
		if parsed, err := parseSettingFloat(lngRaw); err == nil {
			result.OriginLng = &parsed
		}
	}
	return NormalizeDispatchSetting(result)
}

// GetDispatchSetting 获取调度配置
func (s *SettingService) GetDispatchSetting(ctx context.Context) (DispatchSetting, error) {
	fallback := DispatchDefaultSetting()
	if s == nil {
		return fallback, nil
	}
	value, err := s.GetByKey(ctx, constants.SettingKeyDispatch)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return dispatchSettingFromJSON(value, fallback), nil
}

// UpdateDispatchSetting 更新调度配置
func (s *SettingService) UpdateDispatchSetting(ctx context.Context, setting DispatchSetting) (DispatchSetting, error) {
	normalized := NormalizeDispatchSetting(setting)
	if err := ValidateDispatchSetting(normalized); err != nil {
		return DispatchDefaultSetting(), err
	}
	if _, err := s.Update(ctx, constants.SettingKeyDispatch, DispatchSettingToMap(normalized)); err != nil {
		return DispatchDefaultSetting(), err
	}
	return normalized, nil
}
