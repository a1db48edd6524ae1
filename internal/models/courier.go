package models

import (
	"time"

	"gorm.io/gorm"
)

// Courier 骑手
type Courier struct {
	ID                uint           `gorm:"primarykey" json:"id"`
	Name              string         `gorm:"type:varchar(120);not null" json:"name"`                                      // 姓名
	Phone             string         `gorm:"type:varchar(32);uniqueIndex" json:"phone"`                                   // 手机号
	Status            string         `gorm:"type:varchar(20);index;not null;default:'offline'" json:"status"`             // 状态（available/busy/offline）
	IsActive          bool           `gorm:"not null;default:false;index" json:"is_active"`                               // 是否在班
	VehicleType       string         `gorm:"type:varchar(32)" json:"vehicle_type"`                                        // 交通工具（空表示无）
	Lat               *float64       `json:"lat,omitempty"`                                                               // 最近纬度
	Lng               *float64       `json:"lng,omitempty"`                                                               // 最近经度
	LocationUpdatedAt *time.Time     `json:"location_updated_at,omitempty"`                                               // 位置上报时间
	CODBalance        Money          `gorm:"column:cod_balance;type:decimal(20,2);not null;default:0" json:"cod_balance"` // 未交回现金
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                                     // 创建时间
	UpdatedAt         time.Time      `json:"updated_at"`                                                                  // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                              // 软删除时间
}

// TableName 指定表名
func (Courier) TableName() string {
	return "couriers"
}

// HasLocation 是否有位置数据
func (c *Courier) HasLocation() bool {
	return c != nil && c.Lat != nil && c.Lng != nil
}
