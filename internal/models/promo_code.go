package models

import (
	"time"

	"gorm.io/gorm"
)

// PromoCode 优惠码表
type PromoCode struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	Code           string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`             // 优惠码（统一大写存储）
	DiscountType   string         `gorm:"type:varchar(20);not null" json:"discount_type"`                // 优惠类型（percentage/fixed_amount）
	DiscountValue  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"discount_value"`   // 优惠值
	MaxDiscount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"max_discount"`     // 最大优惠（0 不限）
	MinOrderAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"min_order_amount"` // 最低订单金额
	UsageLimit     int            `gorm:"not null;default:0" json:"usage_limit"`                         // 使用上限（0 不限）
	UsedCount      int            `gorm:"not null;default:0" json:"used_count"`                          // 已使用次数
	ReferrerID     *uint          `gorm:"index" json:"referrer_id,omitempty"`                            // 归属推荐人
	IsActive       bool           `gorm:"not null;index" json:"is_active"`                               // 是否启用
	StartsAt       *time.Time     `json:"starts_at,omitempty"`                                           // 生效时间
	ExpiresAt      *time.Time     `gorm:"index" json:"expires_at,omitempty"`                             // 过期时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt      time.Time      `json:"updated_at"`                                                    // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间

	Referrer *Referrer `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
}

// TableName 指定表名
func (PromoCode) TableName() string {
	return "promo_codes"
}
