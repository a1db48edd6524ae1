package service

import (
	"context"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"
)

// FulfillmentDispatcher 支付确认后的履约副作用：打印任务与通知
type FulfillmentDispatcher struct {
	printRepo     repository.PrintJobRepository
	prints        *PrintService
	notifications *NotificationService
	clock         clock.Clock
}

// NewFulfillmentDispatcher 创建履约副作用分发器
func NewFulfillmentDispatcher(printRepo repository.PrintJobRepository, prints *PrintService, notifications *NotificationService, clk clock.Clock) *FulfillmentDispatcher {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &FulfillmentDispatcher{
		printRepo:     printRepo,
		prints:        prints,
		notifications: notifications,
		clock:         clk,
	}
}

// OnConfirmed 每个订单只创建一次打印任务；已存在时整体跳过。
// 打印与通知都是尽力而为，失败只写日志。
func (d *FulfillmentDispatcher) OnConfirmed(ctx context.Context, order *models.Order) (*models.PrintJob, error) {
	if order == nil || order.ID == 0 {
		return nil, ErrOrderNotFound
	}
	ctx, span := tracer.Start(ctx, "fulfillment.on_confirmed")
	defer span.End()
	log := logger.WithContext(ctx, "order_id", order.ID, "order_no", order.OrderNo)

	existing, err := d.printRepo.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Infow("fulfillment_print_job_exists", "print_job_id", existing.ID)
		return nil, ErrAlreadyProcessed
	}

	now := d.clock.Now()
	job := &models.PrintJob{
		OrderID:   order.ID,
		Payload:   BuildReceipt(order),
		Status:    constants.PrintJobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.printRepo.Create(ctx, job); err != nil {
		if repository.IsUniqueViolation(err) {
			log.Infow("fulfillment_print_job_conflict")
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}
	log.Infow("fulfillment_print_job_created", "print_job_id", job.ID)
	d.prints.Submit(ctx, job)

	d.notify(ctx, NotificationEnqueueInput{
		Event:    constants.NotificationEventOrderConfirmed,
		Audience: constants.NotificationAudienceCustomer,
		OrderID:  order.ID,
		Phone:    order.CustomerPhone,
		Data:     notificationOrderData(order),
	})
	d.notify(ctx, NotificationEnqueueInput{
		Event:    constants.NotificationEventNewOrder,
		Audience: constants.NotificationAudienceAdmin,
		OrderID:  order.ID,
		Data:     notificationOrderData(order),
	})
	return job, nil
}

func (d *FulfillmentDispatcher) notify(ctx context.Context, input NotificationEnqueueInput) {
	if d.notifications == nil {
		return
	}
	if err := d.notifications.Enqueue(ctx, input); err != nil {
		logger.WithContext(ctx).Warnw("fulfillment_notification_enqueue_failed", "event", input.Event, "order_id", input.OrderID, "error", err)
	}
}

func notificationOrderData(order *models.Order) map[string]interface{} {
	data := map[string]interface{}{
		"order_no":       order.OrderNo,
		"total":          order.Total.String(),
		"customer_name":  order.CustomerName,
		"customer_phone": order.CustomerPhone,
		"payment_method": order.PaymentMethod,
	}
	if order.ScheduledFor != nil {
		data["scheduled_for"] = order.ScheduledFor.Format("2006-01-02 15:04")
	}
	return data
}

// BuildReceipt 生成小票内容快照
func BuildReceipt(order *models.Order) models.JSON {
	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"name":       item.Name,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice.String(),
			"line_total": item.LineTotal.String(),
		})
	}
	receipt := models.JSON{
		"order_no":         order.OrderNo,
		"customer_name":    order.CustomerName,
		"customer_phone":   order.CustomerPhone,
		"delivery_address": order.DeliveryAddress,
		"note":             order.Note,
		"payment_method":   order.PaymentMethod,
		"items":            items,
		"subtotal":         order.Subtotal.String(),
		"discount":         order.Discount.String(),
		"delivery_fee":     order.DeliveryFee.String(),
		"tax":              order.Tax.String(),
		"total":            order.Total.String(),
	}
	if order.ScheduledFor != nil {
		receipt["scheduled_for"] = order.ScheduledFor.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return receipt
}
