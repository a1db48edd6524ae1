package service

import (
	"context"

	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/queue"
)

// capacityTrigger 订单进出活跃状态后触发负载评估：优先入队，队列未启用时同步评估
type capacityTrigger struct {
	queue    TaskEnqueuer
	capacity *CapacityService
}

func (t capacityTrigger) fire(ctx context.Context, reason string) {
	if queueEnabled(t.queue) {
		if err := t.queue.EnqueueCapacityEvaluate(queue.CapacityEvaluatePayload{Reason: reason}); err != nil {
			logger.WithContext(ctx).Warnw("capacity_evaluate_enqueue_failed", "reason", reason, "error", err)
		}
		return
	}
	if t.capacity == nil {
		return
	}
	if _, err := t.capacity.Evaluate(ctx); err != nil {
		logger.WithContext(ctx).Warnw("capacity_evaluate_inline_failed", "reason", reason, "error", err)
	}
}
