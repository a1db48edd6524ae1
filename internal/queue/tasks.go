package queue

import (
	"encoding/json"

	"github.com/mealdash-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotificationDispatch 通知分发任务
	TaskNotificationDispatch = constants.TaskNotificationDispatch
	// TaskPrintJob 小票打印任务
	TaskPrintJob = constants.TaskPrintJob
	// TaskCapacityEvaluate 负载开关店评估任务
	TaskCapacityEvaluate = constants.TaskCapacityEvaluate
	// TaskCourierAutoAssign 出餐后自动派单任务
	TaskCourierAutoAssign = constants.TaskCourierAutoAssign
)

// NotificationDispatchPayload 通知分发任务载荷
type NotificationDispatchPayload struct {
	Event    string                 `json:"event"`
	Audience string                 `json:"audience"`
	OrderID  uint                   `json:"order_id,omitempty"`
	Phone    string                 `json:"phone,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// PrintJobPayload 打印任务载荷
type PrintJobPayload struct {
	JobID   uint `json:"job_id"`
	OrderID uint `json:"order_id"`
}

// CapacityEvaluatePayload 负载评估任务载荷
type CapacityEvaluatePayload struct {
	Reason string `json:"reason"`
}

// CourierAutoAssignPayload 自动派单任务载荷
type CourierAutoAssignPayload struct {
	OrderID uint `json:"order_id"`
}

// NewNotificationDispatchTask 创建通知分发任务
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	return newJSONTask(TaskNotificationDispatch, payload)
}

// NewPrintJobTask 创建打印任务
func NewPrintJobTask(payload PrintJobPayload) (*asynq.Task, error) {
	return newJSONTask(TaskPrintJob, payload)
}

// NewCapacityEvaluateTask 创建负载评估任务
func NewCapacityEvaluateTask(payload CapacityEvaluatePayload) (*asynq.Task, error) {
	return newJSONTask(TaskCapacityEvaluate, payload)
}

// NewCourierAutoAssignTask 创建自动派单任务
func NewCourierAutoAssignTask(payload CourierAutoAssignPayload) (*asynq.Task, error) {
	return newJSONTask(TaskCourierAutoAssign, payload)
}

func newJSONTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
