package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// ErrLockNotObtained 锁已被其他实例持有
var ErrLockNotObtained = errors.New("lock not obtained")

// Lock 已获取的分布式锁
type Lock interface {
	Release(ctx context.Context) error
}

// Locker 分布式锁
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker 基于 redislock 的实现；Redis 未启用时返回 nil
type RedisLocker struct {
	client *redislock.Client
}

// NewLocker 创建分布式锁客户端
func NewLocker() *RedisLocker {
	if !Enabled() {
		return nil
	}
	return &RedisLocker{client: redislock.New(redisClient)}
}

// Obtain 尝试获取锁，不重试
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockNotObtained
	}
	lock, err := l.client.Obtain(ctx, buildKey("lock:"+key), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}
