package service

import (
	"context"
	"sync"
	"time"

	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/queue"

	"github.com/hibiken/asynq"
)

// TaskEnqueuer 异步任务投递，*queue.Client 为默认实现
type TaskEnqueuer interface {
	Enabled() bool
	EnqueueNotificationDispatch(payload queue.NotificationDispatchPayload, opts ...asynq.Option) error
	EnqueuePrintJob(payload queue.PrintJobPayload, opts ...asynq.Option) error
	EnqueueCapacityEvaluate(payload queue.CapacityEvaluatePayload, opts ...asynq.Option) error
	EnqueueCourierAutoAssign(payload queue.CourierAutoAssignPayload, opts ...asynq.Option) error
}

func queueEnabled(q TaskEnqueuer) bool {
	return q != nil && q.Enabled()
}

// backgroundRunner 队列未启用时执行副作用的有界协程池，满载时直接丢弃
type backgroundRunner struct {
	slots   chan struct{}
	timeout time.Duration
	wg      sync.WaitGroup
}

func newBackgroundRunner(limit int, timeout time.Duration) *backgroundRunner {
	if limit <= 0 {
		limit = 8
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &backgroundRunner{
		slots:   make(chan struct{}, limit),
		timeout: timeout,
	}
}

// Go 提交后台任务；返回 false 表示已满载被丢弃
func (r *backgroundRunner) Go(name string, fn func(ctx context.Context) error) bool {
	select {
	case r.slots <- struct{}{}:
	default:
		logger.Warnw("background_task_dropped", "task", name)
		return false
	}
	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.slots
			r.wg.Done()
		}()
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Errorw("background_task_panic", "task", name, "panic", recovered)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warnw("background_task_failed", "task", name, "error", err)
		}
	}()
	return true
}

// Wait 等待所有后台任务结束
func (r *backgroundRunner) Wait() {
	r.wg.Wait()
}
