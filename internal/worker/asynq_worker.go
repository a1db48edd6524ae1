package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/provider"
	"github.com/mealdash-next/internal/queue"
	"github.com/mealdash-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNotificationDispatch, c.handleNotificationDispatch)
	mux.HandleFunc(queue.TaskPrintJob, c.handlePrintJob)
	mux.HandleFunc(queue.TaskCapacityEvaluate, c.handleCapacityEvaluate)
	mux.HandleFunc(queue.TaskCourierAutoAssign, c.handleCourierAutoAssign)
}

func (c *Consumer) handleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notification_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_unmarshal_failed", "error", err)
		return err
	}
	if payload.Event == "" {
		logger.Debugw("worker_notification_skip_invalid_payload")
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_notification_skip_service_nil", "event", payload.Event)
		return nil
	}
	if err := c.NotificationService.Dispatch(ctx, payload); err != nil {
		if errors.Is(err, service.ErrValidation) {
			logger.Warnw("worker_notification_skip_invalid_event", "event", payload.Event, "error", err)
			return nil
		}
		logger.Warnw("worker_notification_dispatch_failed",
			"event", payload.Event,
			"audience", payload.Audience,
			"order_id", payload.OrderID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handlePrintJob(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_print_job_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PrintJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_print_job_unmarshal_failed", "error", err)
		return err
	}
	if payload.JobID == 0 {
		logger.Debugw("worker_print_job_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.PrintService == nil {
		logger.Warnw("worker_print_job_skip_service_nil", "job_id", payload.JobID)
		return nil
	}
	err := c.PrintService.ProcessJob(ctx, payload.JobID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrNotFound):
		logger.Debugw("worker_print_job_skip_not_found", "job_id", payload.JobID)
		return nil
	case errors.Is(err, service.ErrDownstreamUnavailable):
		// 失败次数已落库，由定时扫描重新提交
		logger.Warnw("worker_print_job_printer_unavailable", "job_id", payload.JobID, "order_id", payload.OrderID, "error", err)
		return nil
	default:
		logger.Warnw("worker_print_job_failed", "job_id", payload.JobID, "order_id", payload.OrderID, "error", err)
		return err
	}
}

func (c *Consumer) handleCapacityEvaluate(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_capacity_evaluate_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CapacityEvaluatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_capacity_evaluate_unmarshal_failed", "error", err)
		return err
	}
	if c.CapacityService == nil {
		logger.Warnw("worker_capacity_evaluate_skip_service_nil", "reason", payload.Reason)
		return nil
	}
	result, err := c.CapacityService.Evaluate(ctx)
	if err != nil {
		logger.Warnw("worker_capacity_evaluate_failed", "reason", payload.Reason, "error", err)
		return err
	}
	logger.Debugw("worker_capacity_evaluated",
		"reason", payload.Reason,
		"action", result.Action,
		"is_open", result.IsOpen,
		"active_orders", result.ActiveOrders,
	)
	return nil
}

func (c *Consumer) handleCourierAutoAssign(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_courier_auto_assign_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CourierAutoAssignPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_courier_auto_assign_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_courier_auto_assign_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.AssignmentService == nil {
		logger.Warnw("worker_courier_auto_assign_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.AssignmentService.AutoAssign(ctx, payload.OrderID); err != nil {
		logger.Warnw("worker_courier_auto_assign_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	return nil
}
