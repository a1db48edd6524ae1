package models

import "time"

// PrintJob 小票打印任务（order_id 唯一）
type PrintJob struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	OrderID   uint       `gorm:"uniqueIndex;not null" json:"order_id"`          // 订单ID（幂等键）
	Payload   JSON       `gorm:"type:json" json:"payload"`                      // 打印内容快照
	Status    string     `gorm:"type:varchar(20);index;not null" json:"status"` // 状态（pending/printed/failed）
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`            // 尝试次数
	LastError string     `gorm:"type:varchar(500)" json:"last_error,omitempty"` // 最近错误
	PrintedAt *time.Time `json:"printed_at,omitempty"`                          // 打印完成时间
	CreatedAt time.Time  `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt time.Time  `json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (PrintJob) TableName() string {
	return "print_jobs"
}
