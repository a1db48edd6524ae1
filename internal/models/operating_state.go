package models

import "time"

// OperatingStateID 营业状态单例行主键
const OperatingStateID uint = 1

// OperatingState 门店营业状态（单例行，version 用于 CAS 更新）
type OperatingState struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	IsOpen           bool       `gorm:"not null" json:"is_open"`                      // 是否接单
	AutoCloseEnabled bool       `gorm:"not null" json:"auto_close_enabled"`           // 是否按负载自动开关
	MaxActiveOrders  int        `gorm:"not null;default:10" json:"max_active_orders"` // 活跃订单上限
	Version          uint64     `gorm:"not null;default:0" json:"version"`            // 乐观锁版本
	LastChangedAt    *time.Time `json:"last_changed_at,omitempty"`                    // 最近切换时间
	LastChangeReason string     `gorm:"type:varchar(255)" json:"last_change_reason"`  // 最近切换原因
	ManualHold       bool       `gorm:"not null;default:false" json:"manual_hold"`    // 人工关店保持，自动评估不会重新开店
	UpdatedAt        time.Time  `json:"updated_at"`                                   // 更新时间
}

// TableName 指定表名
func (OperatingState) TableName() string {
	return "operating_states"
}
