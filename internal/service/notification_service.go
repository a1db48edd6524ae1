package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/queue"

	"github.com/hibiken/asynq"
)

// MessageSender 顾客消息通道（WhatsApp）
type MessageSender interface {
	Send(ctx context.Context, to, text string) error
}

// AdminAlerter 管理员告警通道（Telegram）
type AdminAlerter interface {
	Alert(ctx context.Context, text string) error
}

// NotificationOptions 通知服务参数
type NotificationOptions struct {
	RestaurantName string
	AdminPhones    []string
	SendTimeout    time.Duration
}

// NotificationEnqueueInput 通知事件入队参数
type NotificationEnqueueInput struct {
	Event    string
	Audience string
	OrderID  uint
	Phone    string
	Data     map[string]interface{}
}

// NotificationService 通知服务：事件入队，worker 中按受众分发
type NotificationService struct {
	queue    TaskEnqueuer
	whatsapp MessageSender
	alerter  AdminAlerter
	opts     NotificationOptions
	runner   *backgroundRunner
}

// NewNotificationService 创建通知服务，whatsapp / alerter 可为 nil
func NewNotificationService(queueClient TaskEnqueuer, whatsapp MessageSender, alerter AdminAlerter, opts NotificationOptions) *NotificationService {
	opts.RestaurantName = strings.TrimSpace(opts.RestaurantName)
	return &NotificationService{
		queue:    queueClient,
		whatsapp: whatsapp,
		alerter:  alerter,
		opts:     opts,
		runner:   newBackgroundRunner(8, opts.SendTimeout),
	}
}

var supportedNotificationEvents = map[string]struct{}{
	constants.NotificationEventOrderConfirmed: {},
	constants.NotificationEventNewOrder:       {},
	constants.NotificationEventCapacityClosed: {},
	constants.NotificationEventCapacityOpened: {},
	constants.NotificationEventOrderScheduled: {},
}

func isNotificationEventSupported(event string) bool {
	_, ok := supportedNotificationEvents[event]
	return ok
}

// Enqueue 入队通知任务；队列未启用时在后台协程中直接发送
func (s *NotificationService) Enqueue(ctx context.Context, input NotificationEnqueueInput) error {
	if s == nil {
		return nil
	}
	event := strings.ToLower(strings.TrimSpace(input.Event))
	if !isNotificationEventSupported(event) {
		return fmt.Errorf("%w: unsupported notification event %q", ErrValidation, input.Event)
	}
	payload := queue.NotificationDispatchPayload{
		Event:    event,
		Audience: strings.TrimSpace(input.Audience),
		OrderID:  input.OrderID,
		Phone:    strings.TrimSpace(input.Phone),
		Data:     input.Data,
	}
	if queueEnabled(s.queue) {
		return s.queue.EnqueueNotificationDispatch(payload, asynq.MaxRetry(5))
	}
	s.runner.Go("notification:"+event, func(bgCtx context.Context) error {
		return s.Dispatch(bgCtx, payload)
	})
	return nil
}

// Dispatch 处理通知分发任务，返回错误时由队列重试
func (s *NotificationService) Dispatch(ctx context.Context, payload queue.NotificationDispatchPayload) error {
	if s == nil {
		return nil
	}
	if !isNotificationEventSupported(payload.Event) {
		return fmt.Errorf("%w: unsupported notification event %q", ErrValidation, payload.Event)
	}
	text := renderNotification(s.opts.RestaurantName, payload)
	log := logger.WithContext(ctx, "event", payload.Event, "audience", payload.Audience, "order_id", payload.OrderID)

	var errs []error
	switch payload.Audience {
	case constants.NotificationAudienceCustomer:
		if s.whatsapp == nil || payload.Phone == "" {
			log.Debugw("notification_customer_channel_skipped")
			return nil
		}
		if err := s.whatsapp.Send(ctx, payload.Phone, text); err != nil {
			errs = append(errs, err)
		}
	case constants.NotificationAudienceAdmin:
		if s.alerter != nil {
			if err := s.alerter.Alert(ctx, text); err != nil {
				errs = append(errs, err)
			}
		}
		if s.whatsapp != nil {
			for _, phone := range s.opts.AdminPhones {
				if strings.TrimSpace(phone) == "" {
					continue
				}
				if err := s.whatsapp.Send(ctx, phone, text); err != nil {
					errs = append(errs, err)
				}
			}
		}
	default:
		return fmt.Errorf("%w: unsupported notification audience %q", ErrValidation, payload.Audience)
	}

	if len(errs) > 0 {
		log.Warnw("notification_dispatch_failed", "error", errors.Join(errs...))
		return fmt.Errorf("%w: %v", ErrDownstreamUnavailable, errors.Join(errs...))
	}
	log.Infow("notification_dispatched")
	return nil
}

// Wait 等待后台发送结束（队列未启用时使用）
func (s *NotificationService) Wait() {
	if s != nil && s.runner != nil {
		s.runner.Wait()
	}
}

func renderNotification(restaurant string, payload queue.NotificationDispatchPayload) string {
	data := payload.Data
	orderNo := notificationField(data, "order_no")
	prefix := ""
	if restaurant != "" {
		prefix = restaurant + ": "
	}
	switch payload.Event {
	case constants.NotificationEventOrderConfirmed:
		return fmt.Sprintf("%sorder %s is confirmed, total %s. We will let you know when it is on the way.",
			prefix, orderNo, notificationField(data, "total"))
	case constants.NotificationEventOrderScheduled:
		return fmt.Sprintf("%sorder %s was received while we are closed and will be prepared from %s.",
			prefix, orderNo, notificationField(data, "scheduled_for"))
	case constants.NotificationEventNewOrder:
		return fmt.Sprintf("New order %s (%s) total %s, payment %s.",
			orderNo, notificationField(data, "customer_phone"), notificationField(data, "total"), notificationField(data, "payment_method"))
	case constants.NotificationEventCapacityClosed:
		return fmt.Sprintf("Kitchen auto-closed: %s active orders reached the limit of %s.",
			notificationField(data, "active_orders"), notificationField(data, "threshold"))
	case constants.NotificationEventCapacityOpened:
		return fmt.Sprintf("Kitchen reopened: %s active orders, below %s.",
			notificationField(data, "active_orders"), notificationField(data, "reopen_below"))
	default:
		return payload.Event
	}
}

func notificationField(data map[string]interface{}, key string) string {
	if data == nil {
		return "-"
	}
	value, ok := data[key]
	if !ok || value == nil {
		return "-"
	}
	text := strings.TrimSpace(fmt.Sprintf("%v", value))
	if text == "" {
		return "-"
	}
	return text
}
