package models

import (
	"time"

	"gorm.io/gorm"
)

// Referrer 推荐人（达人/合作方）
type Referrer struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	Name            string         `gorm:"type:varchar(120);not null" json:"name"`                        // 名称
	Phone           string         `gorm:"type:varchar(32);index" json:"phone"`                           // 联系电话
	CommissionType  string         `gorm:"type:varchar(20);not null" json:"commission_type"`              // 佣金类型（percentage/fixed_amount）
	CommissionValue Money          `gorm:"type:decimal(20,2);not null;default:0" json:"commission_value"` // 佣金比例或固定金额
	IsActive        bool           `gorm:"not null;index" json:"is_active"`                               // 是否有效
	TotalCommission Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_commission"` // 累计佣金
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt       time.Time      `json:"updated_at"`                                                    // 更新时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间
}

// TableName 指定表名
func (Referrer) TableName() string {
	return "referrers"
}
