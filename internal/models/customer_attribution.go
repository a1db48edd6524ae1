package models

import "time"

// CustomerAttribution 顾客归因绑定（按手机号首次触达永久绑定推荐人）
type CustomerAttribution struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	CustomerPhone   string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"customer_phone"`              // 顾客手机号
	ReferrerID      uint      `gorm:"index;not null;<-:create" json:"referrer_id"`                              // 绑定推荐人（创建后不可修改）
	FirstPromoCode  string    `gorm:"type:varchar(64);<-:create" json:"first_promo_code"`                       // 首次使用的优惠码
	FirstOrderID    uint      `gorm:"index;<-:create" json:"first_order_id"`                                    // 首单ID
	FirstOrderTotal Money     `gorm:"type:decimal(20,2);not null;default:0;<-:create" json:"first_order_total"` // 首单金额
	TotalOrders     int       `gorm:"not null;default:0" json:"total_orders"`                                   // 累计订单数
	TotalSpent      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_spent"`                 // 累计消费
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                                                  // 绑定时间
	UpdatedAt       time.Time `json:"updated_at"`                                                               // 更新时间

	Referrer *Referrer `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
}

// TableName 指定表名
func (CustomerAttribution) TableName() string {
	return "customer_attributions"
}
