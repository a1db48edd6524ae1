package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mealdash-next/internal/config"

	"github.com/hibiken/asynq"
)

func TestDisabledClientSkipsEnqueue(t *testing.T) {
	client, err := NewClient(nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("nil config should produce a disabled client")
	}
	if err := client.EnqueuePrintJob(PrintJobPayload{JobID: 1, OrderID: 2}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op, got %v", err)
	}
	if err := client.EnqueueCapacityEvaluate(CapacityEvaluatePayload{Reason: "test"}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close disabled client failed: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatalf("nil client must report disabled")
	}
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewNotificationDispatchTask(NotificationDispatchPayload{
		Event:    "order_confirmed",
		Audience: "customer",
		OrderID:  9,
		Phone:    "+251911000001",
	})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskNotificationDispatch {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var payload NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.OrderID != 9 || payload.Phone != "+251911000001" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{Host: " redis ", Port: 6380, DB: 2})
	if opt.Addr != "redis:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt: %+v", opt)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("unexpected concurrency: %d", cfg.Concurrency)
	}
	if cfg.Queues[CriticalQueue] <= cfg.Queues[DefaultQueue] {
		t.Fatalf("critical queue should outrank default: %v", cfg.Queues)
	}
}

func TestIsDuplicateEnqueue(t *testing.T) {
	if !isDuplicateEnqueue(asynq.ErrTaskIDConflict) {
		t.Fatalf("task id conflict should count as already queued")
	}
	if !isDuplicateEnqueue(fmt.Errorf("enqueue: %w", asynq.ErrDuplicateTask)) {
		t.Fatalf("wrapped unique conflict should count as already queued")
	}
	if isDuplicateEnqueue(nil) || isDuplicateEnqueue(errors.New("redis down")) {
		t.Fatalf("other errors must surface")
	}
}
