package models

import "time"

// CommissionRecord 订单佣金台账（order_id 唯一，写入后不再修改）
type CommissionRecord struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	OrderID          uint      `gorm:"uniqueIndex;not null" json:"order_id"`                           // 订单ID（幂等键）
	ReferrerID       *uint     `gorm:"index" json:"referrer_id,omitempty"`                             // 归属推荐人
	PromoCode        *string   `gorm:"type:varchar(64)" json:"promo_code,omitempty"`                   // 订单优惠码
	CustomerPhone    string    `gorm:"type:varchar(32);index;not null" json:"customer_phone"`          // 顾客手机号
	OrderTotal       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"order_total"`       // 订单金额
	CommissionAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"` // 佣金金额
	IsFirstOrder     bool      `gorm:"not null;default:false" json:"is_first_order"`                   // 是否首单
	IsNewCustomer    bool      `gorm:"not null;default:false" json:"is_new_customer"`                  // 是否本单新绑定
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                        // 创建时间

	Referrer *Referrer `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
}

// TableName 指定表名
func (CommissionRecord) TableName() string {
	return "commission_records"
}
