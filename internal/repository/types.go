package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page          int
	PageSize      int
	Status        string
	CustomerPhone string
	OrderNo       string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// CourierListFilter 查询骑手列表的过滤条件
type CourierListFilter struct {
	Page     int
	PageSize int
	Status   string
	Search   string
}

// CommissionListFilter 佣金台账查询条件
type CommissionListFilter struct {
	Page        int
	PageSize    int
	ReferrerID  uint
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ReferrerCommissionSummary 按推荐人汇总的佣金
type ReferrerCommissionSummary struct {
	ReferrerID      uint
	ReferrerName    string
	OrderCount      int64
	FirstOrderCount int64
	NewCustomers    int64
	OrderTotal      string
	CommissionTotal string
}

// PrintJobListFilter 打印任务查询条件
type PrintJobListFilter struct {
	Page     int
	PageSize int
	Status   string
}
