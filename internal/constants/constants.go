package constants

// 订单状态常量
const (
	OrderStatusPending        = "pending"
	OrderStatusScheduled      = "scheduled"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPreparing      = "preparing"
	OrderStatusReady          = "ready"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
	OrderStatusPaymentFailed  = "payment_failed"
)

// ActiveOrderStatuses 计入后厨负载的订单状态
var ActiveOrderStatuses = []string{
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
}

// 订单支付状态常量
const (
	OrderPaymentStatusUnpaid = "unpaid"
	OrderPaymentStatusPaid   = "paid"
	OrderPaymentStatusFailed = "failed"
)

// 支付方式常量
const (
	PaymentMethodOnline = "online"
	PaymentMethodCOD    = "cod"
)

// 支付事件来源与状态常量
const (
	PaymentSourceVerify  = "verify"
	PaymentSourceWebhook = "webhook"
	PaymentSourceManual  = "manual"

	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
	PaymentStatusPending = "pending"
)

// 优惠与佣金规则类型常量
const (
	DiscountTypePercentage  = "percentage"
	DiscountTypeFixedAmount = "fixed_amount"
)

// 骑手状态常量
const (
	CourierStatusAvailable = "available"
	CourierStatusBusy      = "busy"
	CourierStatusOffline   = "offline"
)

// 配送指派状态常量
const (
	AssignmentStatusPending   = "pending"
	AssignmentStatusAccepted  = "accepted"
	AssignmentStatusPickedUp  = "picked_up"
	AssignmentStatusDelivered = "delivered"
	AssignmentStatusRejected  = "rejected"
	AssignmentStatusCancelled = "cancelled"
)

// OpenAssignmentStatuses 计入骑手工作量的指派状态
var OpenAssignmentStatuses = []string{
	AssignmentStatusPending,
	AssignmentStatusAccepted,
	AssignmentStatusPickedUp,
}

// 指派来源常量
const (
	AssignedByAuto = "auto"
	AssignedByCLI  = "cli"
)

// 打印任务状态常量
const (
	PrintJobStatusPending = "pending"
	PrintJobStatusPrinted = "printed"
	PrintJobStatusFailed  = "failed"
)

// 营业闸门动作常量
const (
	CapacityActionNone   = "none"
	CapacityActionClosed = "closed"
	CapacityActionOpened = "opened"
)

// 通知事件常量
const (
	NotificationEventOrderConfirmed = "order_confirmed"
	NotificationEventNewOrder       = "new_order"
	NotificationEventCapacityClosed = "capacity_closed"
	NotificationEventCapacityOpened = "capacity_opened"
	NotificationEventOrderScheduled = "order_scheduled"
)

// 通知接收方常量
const (
	NotificationAudienceCustomer = "customer"
	NotificationAudienceAdmin    = "admin"
)

// 队列常量
const (
	QueueDefault             = "default"
	QueueCritical            = "critical"
	TaskNotificationDispatch = "notification:dispatch"
	TaskPrintJob             = "print:job"
	TaskCapacityEvaluate     = "capacity:evaluate"
	TaskCourierAutoAssign    = "courier:auto_assign"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "md"
)

// 设置键常量
const (
	SettingKeyOperatingHours = "operating_hours"
	SettingKeyCapacity       = "capacity"
	SettingKeyDispatch       = "dispatch"
)

// 后台角色常量
const (
	RoleManager    = "manager"
	RoleDispatcher = "dispatcher"
	RoleKitchen    = "kitchen"
	RoleFinance    = "finance"
)
