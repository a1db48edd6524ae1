package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"
)

func loadPrintJob(t *testing.T, env *serviceTestEnv, id uint) models.PrintJob {
	t.Helper()
	var job models.PrintJob
	if err := env.db.First(&job, id).Error; err != nil {
		t.Fatalf("load print job failed: %v", err)
	}
	return job
}

func TestFulfillmentDispatcherCreatesSingleJob(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	order := createServiceTestOrder(t, env.db, "+2348012345678", "3200", nil, constants.PaymentMethodOnline)
	order.CustomerName = "Ada"

	job, err := env.dispatcher.OnConfirmed(ctx, order)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if job.Status != constants.PrintJobStatusPending || job.Payload["order_no"] != order.OrderNo {
		t.Fatalf("unexpected print job: %+v", job)
	}
	if _, err := env.dispatcher.OnConfirmed(ctx, order); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected second dispatch skipped, got %v", err)
	}
	if got := countRows(t, env, &models.PrintJob{}, "order_id = ?", order.ID); got != 1 {
		t.Fatalf("expected one print job, got %d", got)
	}
	if len(env.queue.prints) != 1 || env.queue.prints[0].JobID != job.ID {
		t.Fatalf("expected one print enqueue for job %d, got %+v", job.ID, env.queue.prints)
	}
	if env.queue.countEvent(constants.NotificationEventOrderConfirmed) != 1 || env.queue.countEvent(constants.NotificationEventNewOrder) != 1 {
		t.Fatalf("expected one customer and one admin notification, got %v", env.queue.notificationEvents())
	}
	for _, payload := range env.queue.notifications {
		if payload.Event == constants.NotificationEventOrderConfirmed && payload.Phone != order.CustomerPhone {
			t.Fatalf("expected customer notification addressed to %s, got %s", order.CustomerPhone, payload.Phone)
		}
	}
}

func TestBuildReceiptSnapshot(t *testing.T) {
	scheduled := time.Date(2026, 3, 3, 18, 30, 0, 0, time.UTC)
	order := &models.Order{
		OrderNo:         "MD-1",
		CustomerName:    "Ada",
		DeliveryAddress: "12 Marina Road",
		Subtotal:        models.MustMoney("2000"),
		Discount:        models.MustMoney("200"),
		DeliveryFee:     models.MustMoney("500"),
		Total:           models.MustMoney("2300"),
		ScheduledFor:    &scheduled,
		Items: []models.OrderItem{
			{Name: "Suya", Quantity: 2, UnitPrice: models.MustMoney("1000"), LineTotal: models.MustMoney("2000")},
		},
	}
	receipt := BuildReceipt(order)
	if receipt["total"] != "2300.00" || receipt["discount"] != "200.00" {
		t.Fatalf("unexpected totals in receipt: %v", receipt)
	}
	if receipt["scheduled_for"] != "2026-03-03T18:30:00Z" {
		t.Fatalf("unexpected scheduled_for: %v", receipt["scheduled_for"])
	}
	items, ok := receipt["items"].([]map[string]interface{})
	if !ok || len(items) != 1 || items[0]["quantity"] != 2 {
		t.Fatalf("unexpected items: %v", receipt["items"])
	}
}

func TestProcessJobRetriesThenFails(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	order := createServiceTestOrder(t, env.db, "+2348012345678", "1000", nil, constants.PaymentMethodOnline)
	job, err := env.dispatcher.OnConfirmed(ctx, order)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	env.printer.err = errors.New("printer offline")
	for attempt := 1; attempt <= 3; attempt++ {
		if err := env.prints.ProcessJob(ctx, job.ID); !errors.Is(err, ErrDownstreamUnavailable) {
			t.Fatalf("attempt %d: expected downstream error, got %v", attempt, err)
		}
		stored := loadPrintJob(t, env, job.ID)
		if stored.Attempts != attempt {
			t.Fatalf("attempt %d: expected attempts %d, got %d", attempt, attempt, stored.Attempts)
		}
		wantStatus := constants.PrintJobStatusPending
		if attempt == 3 {
			wantStatus = constants.PrintJobStatusFailed
		}
		if stored.Status != wantStatus {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, wantStatus, stored.Status)
		}
		if stored.LastError != "printer offline" {
			t.Fatalf("expected last error recorded, got %q", stored.LastError)
		}
	}

	if err := env.prints.ProcessJob(ctx, job.ID); err != nil {
		t.Fatalf("expected failed job skipped, got %v", err)
	}
	if len(env.printer.calls) != 3 {
		t.Fatalf("expected three printer calls, got %d", len(env.printer.calls))
	}

	env.printer.err = nil
	retried, err := env.prints.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.Status != constants.PrintJobStatusPending || retried.Attempts != 0 {
		t.Fatalf("unexpected retried job: %+v", retried)
	}
	if len(env.queue.prints) != 2 {
		t.Fatalf("expected retry to resubmit, got %d enqueues", len(env.queue.prints))
	}
	if err := env.prints.ProcessJob(ctx, job.ID); err != nil {
		t.Fatalf("process after retry failed: %v", err)
	}
	stored := loadPrintJob(t, env, job.ID)
	if stored.Status != constants.PrintJobStatusPrinted || stored.PrintedAt == nil || stored.LastError != "" {
		t.Fatalf("expected printed job, got %+v", stored)
	}
	if _, err := env.prints.Retry(ctx, job.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected printed job not retryable, got %v", err)
	}
}

func TestProcessJobErrors(t *testing.T) {
	env := newServiceTestEnv(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if err := env.prints.ProcessJob(ctx, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := env.prints.ProcessJob(ctx, 4242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.prints.Retry(ctx, 4242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on retry, got %v", err)
	}
}

func TestSweepRetryableResubmitsStalePending(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	env := newServiceTestEnv(t, now)
	ctx := context.Background()

	stale := &models.PrintJob{OrderID: 1, Status: constants.PrintJobStatusPending, CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-10 * time.Minute)}
	fresh := &models.PrintJob{OrderID: 2, Status: constants.PrintJobStatusPending, CreatedAt: now, UpdatedAt: now}
	done := &models.PrintJob{OrderID: 3, Status: constants.PrintJobStatusPrinted, CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)}
	for _, job := range []*models.PrintJob{stale, fresh, done} {
		if err := env.db.Create(job).Error; err != nil {
			t.Fatalf("create print job failed: %v", err)
		}
	}

	count, err := env.prints.SweepRetryable(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stale job resubmitted, got %d", count)
	}
	if len(env.queue.prints) != 1 || env.queue.prints[0].JobID != stale.ID {
		t.Fatalf("expected stale job enqueued, got %+v", env.queue.prints)
	}
}

func TestRetryFailedBatch(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	env := newServiceTestEnv(t, now)
	for i := uint(1); i <= 3; i++ {
		status := constants.PrintJobStatusFailed
		if i == 3 {
			status = constants.PrintJobStatusPrinted
		}
		job := &models.PrintJob{OrderID: i, Status: status, Attempts: 3, CreatedAt: now, UpdatedAt: now}
		if err := env.db.Create(job).Error; err != nil {
			t.Fatalf("create print job failed: %v", err)
		}
	}
	count, err := env.prints.RetryFailed(context.Background(), 10)
	if err != nil {
		t.Fatalf("retry failed batch: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two jobs retried, got %d", count)
	}
	if got := countRows(t, env, &models.PrintJob{}, "status = ?", constants.PrintJobStatusPending); got != 2 {
		t.Fatalf("expected two pending jobs, got %d", got)
	}
}

func TestSweepRetryableReusesTaskIDWithinAttempt(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	env := newServiceTestEnv(t, now)
	ctx := context.Background()

	stale := &models.PrintJob{OrderID: 1, Status: constants.PrintJobStatusPending, CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-10 * time.Minute)}
	if err := env.db.Create(stale).Error; err != nil {
		t.Fatalf("create print job failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := env.prints.SweepRetryable(ctx); err != nil {
			t.Fatalf("sweep %d failed: %v", i, err)
		}
	}
	if len(env.queue.printTaskIDs) != 2 {
		t.Fatalf("expected a task id on every enqueue, got %v", env.queue.printTaskIDs)
	}
	if env.queue.printTaskIDs[0] != env.queue.printTaskIDs[1] {
		t.Fatalf("overlapping sweeps must share a task id so the queue keeps one: %v", env.queue.printTaskIDs)
	}

	env.printer.err = errors.New("paper jam")
	if err := env.prints.ProcessJob(ctx, stale.ID); err == nil {
		t.Fatalf("expected print failure")
	}
	failed := loadPrintJob(t, env, stale.ID)
	if printTaskID(&failed) == env.queue.printTaskIDs[0] {
		t.Fatalf("a new attempt must get a new task id, got %s", printTaskID(&failed))
	}
}
