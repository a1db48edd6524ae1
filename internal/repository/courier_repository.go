package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CourierRepository 骑手数据访问接口
type CourierRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Courier, error)
	Create(ctx context.Context, courier *models.Courier) error
	List(ctx context.Context, filter CourierListFilter) ([]models.Courier, int64, error)
	ListCandidates(ctx context.Context) ([]models.Courier, error)
	CountOpenAssignments(ctx context.Context, courierIDs []uint) (map[uint]int64, error)
	ClaimAvailable(ctx context.Context, id uint) (int64, error)
	SetStatus(ctx context.Context, id uint, status string) error
	UpdateLocation(ctx context.Context, id uint, lat, lng float64, at time.Time) error
	AddCODBalance(ctx context.Context, id uint, amount decimal.Decimal) error
	WithTx(tx *gorm.DB) CourierRepository
}

// GormCourierRepository GORM 实现
type GormCourierRepository struct {
	db *gorm.DB
}

// NewCourierRepository 创建骑手仓库
func NewCourierRepository(db *gorm.DB) *GormCourierRepository {
	return &GormCourierRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCourierRepository) WithTx(tx *gorm.DB) CourierRepository {
	if tx == nil {
		return r
	}
	return &GormCourierRepository{db: tx}
}

// GetByID 根据 ID 获取骑手
func (r *GormCourierRepository) GetByID(ctx context.Context, id uint) (*models.Courier, error) {
	var courier models.Courier
	if err := r.db.WithContext(ctx).First(&courier, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &courier, nil
}

// Create 创建骑手
func (r *GormCourierRepository) Create(ctx context.Context, courier *models.Courier) error {
	return r.db.WithContext(ctx).Create(courier).Error
}

// List 骑手列表
func (r *GormCourierRepository) List(ctx context.Context, filter CourierListFilter) ([]models.Courier, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Courier{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		operator := likeOperatorByDialect(dbDialectName(r.db))
		like := "%" + search + "%"
		query = query.Where("name "+operator+" ? OR phone "+operator+" ?", like, like)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var couriers []models.Courier
	if err := applyPagination(query.Order("id ASC"), filter.Page, filter.PageSize).Find(&couriers).Error; err != nil {
		return nil, 0, err
	}
	return couriers, total, nil
}

// ListCandidates 可接单骑手：空闲、在班且有交通工具，按 ID 升序
func (r *GormCourierRepository) ListCandidates(ctx context.Context) ([]models.Courier, error) {
	var couriers []models.Courier
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_active = ?", constants.CourierStatusAvailable, true).
		Where("vehicle_type IS NOT NULL AND vehicle_type <> ''").
		Order("id ASC").
		Find(&couriers).Error
	return couriers, err
}

// CountOpenAssignments 统计骑手未完成的配送数
func (r *GormCourierRepository) CountOpenAssignments(ctx context.Context, courierIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(courierIDs))
	if len(courierIDs) == 0 {
		return counts, nil
	}
	type row struct {
		CourierID uint
		Total     int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.DeliveryAssignment{}).
		Select("courier_id, COUNT(*) AS total").
		Where("courier_id IN ? AND status IN ?", courierIDs, constants.OpenAssignmentStatuses).
		Group("courier_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, item := range rows {
		counts[item.CourierID] = item.Total
	}
	return counts, nil
}

// ClaimAvailable 条件把空闲骑手置为忙碌；返回 0 表示骑手已被其他请求占用
func (r *GormCourierRepository) ClaimAvailable(ctx context.Context, id uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Courier{}).
		Where("id = ? AND status = ?", id, constants.CourierStatusAvailable).
		Updates(map[string]interface{}{
			"status":     constants.CourierStatusBusy,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// SetStatus 更新骑手状态
func (r *GormCourierRepository) SetStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Courier{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// UpdateLocation 更新骑手位置
func (r *GormCourierRepository) UpdateLocation(ctx context.Context, id uint, lat, lng float64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Courier{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"lat":                 lat,
			"lng":                 lng,
			"location_updated_at": at,
			"updated_at":          at,
		}).Error
}

// AddCODBalance 累加骑手手持现金（送达货到付款订单时）
func (r *GormCourierRepository) AddCODBalance(ctx context.Context, id uint, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Courier{}).
		Where("id = ?", id).
		UpdateColumn("cod_balance", gorm.Expr("cod_balance + ?", amount.StringFixed(2))).Error
}
