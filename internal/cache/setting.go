package cache

import (
	"context"
	"strings"
	"time"

	"github.com/mealdash-next/internal/models"
)

// settingTTL 设置缓存时长；写入时主动失效，TTL 只兜底多实例间的漏删
const settingTTL = 5 * time.Minute

func settingKey(key string) string {
	return "setting:" + strings.TrimSpace(key)
}

// GetSetting 读取缓存的设置值
func GetSetting(ctx context.Context, key string) (models.JSON, bool, error) {
	var value models.JSON
	hit, err := GetJSON(ctx, settingKey(key), &value)
	if err != nil || !hit {
		return nil, hit, err
	}
	return value, true, nil
}

// SetSetting 缓存设置值，空值不缓存
func SetSetting(ctx context.Context, key string, value models.JSON) error {
	if value == nil {
		return nil
	}
	return SetJSON(ctx, settingKey(key), value, settingTTL)
}

// InvalidateSetting 设置更新后清理缓存
func InvalidateSetting(ctx context.Context, key string) error {
	return Del(ctx, settingKey(key))
}
