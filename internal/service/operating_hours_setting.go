package service

import (
	"context"
	"strings"
	"time"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"

	"github.com/go-playground/validator/v10"
)

var weekdayKeys = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayHours 单日营业窗口，Open/Close 为门店时区下的 "HH:MM"
type DayHours struct {
	Closed bool   `json:"closed"`
	Open   string `json:"open" validate:"omitempty,hhmm"`
	Close  string `json:"close" validate:"omitempty,hhmm"`
}

// Window 返回营业窗口的分钟数区间 [open, close)
func (d DayHours) Window() (int, int, bool) {
	if d.Closed {
		return 0, 0, false
	}
	open, err := clock.ParseHHMM(d.Open)
	if err != nil {
		return 0, 0, false
	}
	closeAt, err := clock.ParseHHMM(d.Close)
	if err != nil || closeAt <= open {
		return 0, 0, false
	}
	return open, closeAt, true
}

// OperatingHoursSetting 每周营业时间配置，Days 以 time.Weekday 为下标
type OperatingHoursSetting struct {
	Timezone string      `json:"timezone" validate:"required,timezone"`
	Days     [7]DayHours `json:"days" validate:"dive"`
}

// Day 获取某一天的营业窗口
func (s OperatingHoursSetting) Day(weekday time.Weekday) DayHours {
	return s.Days[int(weekday)%7]
}

// OperatingHoursDefaultSetting 默认营业时间：每天 10:00-22:00
func OperatingHoursDefaultSetting() OperatingHoursSetting {
	setting := OperatingHoursSetting{Timezone: "UTC"}
	for i := range setting.Days {
		setting.Days[i] = DayHours{Open: "10:00", Close: "22:00"}
	}
	return setting
}

// NormalizeOperatingHoursSetting 归一化营业时间配置
func NormalizeOperatingHoursSetting(setting OperatingHoursSetting) OperatingHoursSetting {
	setting.Timezone = strings.TrimSpace(setting.Timezone)
	for i, day := range setting.Days {
		day.Open = strings.TrimSpace(day.Open)
		day.Close = strings.TrimSpace(day.Close)
		if day.Closed {
			day.Open = ""
			day.Close = ""
		}
		setting.Days[i] = day
	}
	return setting
}

// ValidateOperatingHoursSetting 校验营业时间配置
func ValidateOperatingHoursSetting(setting OperatingHoursSetting) error {
	return validateSetting(NormalizeOperatingHoursSetting(setting))
}

func dayHoursStructLevel(sl validator.StructLevel) {
	day := sl.Current().Interface().(DayHours)
	if day.Closed {
		return
	}
	open, err := clock.ParseHHMM(day.Open)
	if err != nil {
		sl.ReportError(day.Open, "open", "Open", "required_hhmm", "")
		return
	}
	closeAt, err := clock.ParseHHMM(day.Close)
	if err != nil {
		sl.ReportError(day.Close, "close", "Close", "required_hhmm", "")
		return
	}
	if open >= clock.MinutesPerDay {
		sl.ReportError(day.Open, "open", "Open", "lt_day_end", "")
		return
	}
	if closeAt <= open {
		sl.ReportError(day.Close, "close", "Close", "gtfield", "Open")
	}
}

// OperatingHoursSettingToMap 将营业时间配置转换为 settings 存储结构
func OperatingHoursSettingToMap(setting OperatingHoursSetting) map[string]interface{} {
	normalized := NormalizeOperatingHoursSetting(setting)
	days := make(map[string]interface{}, len(weekdayKeys))
	for i, key := range weekdayKeys {
		day := normalized.Days[i]
		days[key] = map[string]interface{}{
			"closed": day.Closed,
			"open":   day.Open,
			"close":  day.Close,
		}
	}
	return map[string]interface{}{
		"timezone": normalized.Timezone,
		"days":     days,
	}
}

func operatingHoursSettingFromJSON(raw models.JSON, fallback OperatingHoursSetting) OperatingHoursSetting {
	result := fallback

	if tzRaw, ok := raw["timezone"]; ok {
		if tz := normalizeSettingText(tzRaw); tz != "" {
			result.Timezone = tz
		}
	}
	daysRaw, ok := raw["days"].(map[string]interface{})
	if ok {
		for i, key := range weekdayKeys {
			dayRaw, exists := daysRaw[key].(map[string]interface{})
			if !exists {
				continue
			}
			day := result.Days[i]
			if closedRaw, has := dayRaw["closed"]; has {
				day.Closed = parseSettingBool(closedRaw)
			}
			if openRaw, has := dayRaw["open"]; has {
				day.Open = normalizeSettingText(openRaw)
			}
			if closeRaw, has := dayRaw["close"]; has {
				day.Close = normalizeSettingText(closeRaw)
			}
			result.Days[i] = day
		}
	}
	return NormalizeOperatingHoursSetting(result)
}

// GetOperatingHoursSetting 获取营业时间设置（未配置时回退默认，时区取门店配置）
func (s *SettingService) GetOperatingHoursSetting(ctx context.Context, defaultTimezone string) (OperatingHoursSetting, error) {
	fallback := OperatingHoursDefaultSetting()
	if tz := strings.TrimSpace(defaultTimezone); tz != "" {
		fallback.Timezone = tz
	}
	if s == nil {
		return fallback, nil
	}
	value, err := s.GetByKey(ctx, constants.SettingKeyOperatingHours)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return operatingHoursSettingFromJSON(value, fallback), nil
}

// UpdateOperatingHoursSetting 更新营业时间设置
func (s *SettingService) UpdateOperatingHoursSetting(ctx context.Context, setting OperatingHoursSetting) (OperatingHoursSetting, error) {
	normalized := NormalizeOperatingHoursSetting(setting)
	if err := ValidateOperatingHoursSetting(normalized); err != nil {
		return OperatingHoursDefaultSetting(), err
	}
	if _, err := s.Update(ctx, constants.SettingKeyOperatingHours, OperatingHoursSettingToMap(normalized)); err != nil {
		return OperatingHoursDefaultSetting(), err
	}
	return normalized, nil
}
