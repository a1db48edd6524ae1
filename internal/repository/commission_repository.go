package repository

import (
	"context"
	"errors"

	"github.com/mealdash-next/internal/models"

	"gorm.io/gorm"
)

// CommissionRepository 佣金台账数据访问接口
type CommissionRepository interface {
	GetByOrderID(ctx context.Context, orderID uint) (*models.CommissionRecord, error)
	Create(ctx context.Context, record *models.CommissionRecord) error
	List(ctx context.Context, filter CommissionListFilter) ([]models.CommissionRecord, int64, error)
	SummarizeByReferrer(ctx context.Context, filter CommissionListFilter) ([]ReferrerCommissionSummary, error)
	WithTx(tx *gorm.DB) CommissionRepository
}

// GormCommissionRepository GORM 实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金台账仓库
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// GetByOrderID 按订单查询佣金记录
func (r *GormCommissionRepository) GetByOrderID(ctx context.Context, orderID uint) (*models.CommissionRecord, error) {
	var record models.CommissionRecord
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create 写入佣金记录；order_id 唯一
func (r *GormCommissionRepository) Create(ctx context.Context, record *models.CommissionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *GormCommissionRepository) filtered(ctx context.Context, filter CommissionListFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.CommissionRecord{})
	if filter.ReferrerID > 0 {
		query = query.Where("commission_records.referrer_id = ?", filter.ReferrerID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("commission_records.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("commission_records.created_at <= ?", *filter.CreatedTo)
	}
	return query
}

// List 佣金台账列表
func (r *GormCommissionRepository) List(ctx context.Context, filter CommissionListFilter) ([]models.CommissionRecord, int64, error) {
	query := r.filtered(ctx, filter)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []models.CommissionRecord
	query = applyPagination(query.Preload("Referrer").Order("commission_records.id DESC"), filter.Page, filter.PageSize)
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// SummarizeByReferrer 按推荐人汇总订单数与佣金（仅统计有推荐人的记录）
func (r *GormCommissionRepository) SummarizeByReferrer(ctx context.Context, filter CommissionListFilter) ([]ReferrerCommissionSummary, error) {
	type row struct {
		ReferrerID      uint
		ReferrerName    string
		OrderCount      int64
		FirstOrderCount int64
		NewCustomers    int64
		OrderTotal      models.Money
		CommissionTotal models.Money
	}
	var rows []row
	err := r.filtered(ctx, filter).
		Select(`commission_records.referrer_id AS referrer_id,
			referrers.name AS referrer_name,
			COUNT(*) AS order_count,
			SUM(CASE WHEN commission_records.is_first_order THEN 1 ELSE 0 END) AS first_order_count,
			SUM(CASE WHEN commission_records.is_new_customer THEN 1 ELSE 0 END) AS new_customers,
			COALESCE(SUM(commission_records.order_total), 0) AS order_total,
			COALESCE(SUM(commission_records.commission_amount), 0) AS commission_total`).
		Joins("JOIN referrers ON referrers.id = commission_records.referrer_id").
		Where("commission_records.referrer_id IS NOT NULL").
		Group("commission_records.referrer_id, referrers.name").
		Order("commission_records.referrer_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	summaries := make([]ReferrerCommissionSummary, 0, len(rows))
	for _, item := range rows {
		summaries = append(summaries, ReferrerCommissionSummary{
			ReferrerID:      item.ReferrerID,
			ReferrerName:    item.ReferrerName,
			OrderCount:      item.OrderCount,
			FirstOrderCount: item.FirstOrderCount,
			NewCustomers:    item.NewCustomers,
			OrderTotal:      item.OrderTotal.String(),
			CommissionTotal: item.CommissionTotal.String(),
		})
	}
	return summaries, nil
}
