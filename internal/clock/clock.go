package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay 一天的分钟数
const MinutesPerDay = 24 * 60

// Clock 可替换的时间源
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

// Now 当前时间
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Fixed 固定时间的时钟（测试与命令行回放用）
type Fixed time.Time

// Now 返回固定时间
func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// LoadLocation 加载时区，名称为空时使用 UTC
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// MinuteOfDay 换算到指定时区后的当日分钟数
func MinuteOfDay(t time.Time, loc *time.Location) int {
	local := In(t, loc)
	return local.Hour()*60 + local.Minute()
}

// In 把时间换算到指定时区（nil 视为 UTC）
func In(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// AtMinute 指定时区当天第 minute 分钟对应的墙上时间，夏令时切换日同样按本地钟面取值
func AtMinute(day time.Time, minute int, loc *time.Location) time.Time {
	local := In(day, loc)
	return time.Date(local.Year(), local.Month(), local.Day(), minute/60, minute%60, 0, 0, local.Location())
}

// ParseHHMM 解析 "HH:MM"，允许 "24:00" 表示当日结束
func ParseHHMM(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	if hour == 24 && minute == 0 {
		return MinutesPerDay, nil
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", value)
	}
	return hour*60 + minute, nil
}

// FormatMinute 把分钟数格式化为 "HH:MM"
func FormatMinute(minute int) string {
	if minute < 0 {
		minute = 0
	}
	if minute > MinutesPerDay {
		minute = MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
