package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"

	"gorm.io/gorm"
)

// PrintJobRepository 打印任务数据访问接口
type PrintJobRepository interface {
	GetByOrderID(ctx context.Context, orderID uint) (*models.PrintJob, error)
	GetByID(ctx context.Context, id uint) (*models.PrintJob, error)
	Create(ctx context.Context, job *models.PrintJob) error
	List(ctx context.Context, filter PrintJobListFilter) ([]models.PrintJob, int64, error)
	ListRetryable(ctx context.Context, updatedBefore time.Time, limit int) ([]models.PrintJob, error)
	MarkPrinted(ctx context.Context, id uint, at time.Time) (int64, error)
	RecordFailure(ctx context.Context, id uint, message string, maxAttempts int) error
	Requeue(ctx context.Context, id uint) (int64, error)
}

// GormPrintJobRepository GORM 实现
type GormPrintJobRepository struct {
	db *gorm.DB
}

// NewPrintJobRepository 创建打印任务仓库
func NewPrintJobRepository(db *gorm.DB) *GormPrintJobRepository {
	return &GormPrintJobRepository{db: db}
}

// GetByOrderID 按订单查询打印任务
func (r *GormPrintJobRepository) GetByOrderID(ctx context.Context, orderID uint) (*models.PrintJob, error) {
	var job models.PrintJob
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// GetByID 根据 ID 获取打印任务
func (r *GormPrintJobRepository) GetByID(ctx context.Context, id uint) (*models.PrintJob, error) {
	var job models.PrintJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Create 创建打印任务；order_id 唯一
func (r *GormPrintJobRepository) Create(ctx context.Context, job *models.PrintJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// List 打印任务列表
func (r *GormPrintJobRepository) List(ctx context.Context, filter PrintJobListFilter) ([]models.PrintJob, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PrintJob{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var jobs []models.PrintJob
	if err := applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// ListRetryable 列出长时间未打印成功的待打印任务
func (r *GormPrintJobRepository) ListRetryable(ctx context.Context, updatedBefore time.Time, limit int) ([]models.PrintJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []models.PrintJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", constants.PrintJobStatusPending, updatedBefore).
		Order("id ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// MarkPrinted 标记打印成功（仅待打印状态生效）
func (r *GormPrintJobRepository) MarkPrinted(ctx context.Context, id uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.PrintJob{}).
		Where("id = ? AND status = ?", id, constants.PrintJobStatusPending).
		Updates(map[string]interface{}{
			"status":     constants.PrintJobStatusPrinted,
			"attempts":   gorm.Expr("attempts + ?", 1),
			"last_error": "",
			"printed_at": at,
			"updated_at": at,
		})
	return result.RowsAffected, result.Error
}

// RecordFailure 记录一次打印失败，达到上限后转为失败状态
func (r *GormPrintJobRepository) RecordFailure(ctx context.Context, id uint, message string, maxAttempts int) error {
	if len(message) > 500 {
		message = message[:500]
	}
	status := gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END",
		maxAttempts, constants.PrintJobStatusFailed, constants.PrintJobStatusPending)
	return r.db.WithContext(ctx).Model(&models.PrintJob{}).
		Where("id = ? AND status = ?", id, constants.PrintJobStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"attempts":   gorm.Expr("attempts + ?", 1),
			"last_error": message,
			"updated_at": time.Now(),
		}).Error
}

// Requeue 把失败任务重置为待打印
func (r *GormPrintJobRepository) Requeue(ctx context.Context, id uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.PrintJob{}).
		Where("id = ? AND status = ?", id, constants.PrintJobStatusFailed).
		Updates(map[string]interface{}{
			"status":     constants.PrintJobStatusPending,
			"attempts":   0,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
