package models

import "time"

// AuditLog 后台人工操作审计日志
// 说明：记录手动开关店、改单状态、人工派单、货到付款确认与账号变更，支持按操作人、对象与时间检索。
type AuditLog struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	AdminID       uint      `gorm:"index;not null" json:"admin_id"`
	AdminUsername string    `gorm:"type:varchar(100);index;not null;default:''" json:"admin_username"`
	Action        string    `gorm:"type:varchar(64);index;not null" json:"action"`
	TargetType    string    `gorm:"type:varchar(32);index;not null;default:''" json:"target_type"`
	TargetID      uint      `gorm:"index;not null;default:0" json:"target_id"`
	RequestID     string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON    JSON      `gorm:"type:json" json:"detail"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (AuditLog) TableName() string {
	return "audit_logs"
}
