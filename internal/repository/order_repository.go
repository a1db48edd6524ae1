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

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	ListAdmin(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error)
	CountByStatuses(ctx context.Context, statuses []string) (int64, error)
	CountPriorConfirmedByPhone(ctx context.Context, phone string, excludeOrderID uint) (int64, error)
	MarkPaid(ctx context.Context, id uint, reference string, confirmedAt time.Time) (int64, error)
	MarkPaymentFailed(ctx context.Context, id uint, reference string) (int64, error)
	TransitionStatus(ctx context.Context, id uint, from, to string, updates map[string]interface{}) (int64, error)
	AssignCourier(ctx context.Context, id uint, courierID uint) (int64, error)
	ReleaseCourier(ctx context.Context, id uint, courierID uint) (int64, error)
	WithTx(tx *gorm.DB) OrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("order_no = ?", strings.TrimSpace(orderNo)).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListAdmin 后台订单列表
func (r *GormOrderRepository) ListAdmin(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if phone := strings.TrimSpace(filter.CustomerPhone); phone != "" {
		query = query.Where("customer_phone = ?", phone)
	}
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		query = query.Where("order_no "+likeOperatorByDialect(dbDialectName(r.db))+" ?", "%"+orderNo+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	query = applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize)
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CountByStatuses 统计指定状态的订单数
func (r *GormOrderRepository) CountByStatuses(ctx context.Context, statuses []string) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ?", statuses).
		Count(&count).Error
	return count, err
}

// CountPriorConfirmedByPhone 统计顾客此前已确认支付的订单数（不含当前订单）
func (r *GormOrderRepository) CountPriorConfirmedByPhone(ctx context.Context, phone string, excludeOrderID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("customer_phone = ? AND id <> ?", phone, excludeOrderID).
		Where("payment_status = ?", constants.OrderPaymentStatusPaid).
		Where("confirmed_at IS NOT NULL").
		Count(&count).Error
	return count, err
}

// MarkPaid 条件更新为已支付并确认；返回受影响行数，0 表示已被其他投递处理
func (r *GormOrderRepository) MarkPaid(ctx context.Context, id uint, reference string, confirmedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", id, constants.OrderPaymentStatusPaid).
		Where("status IN ?", []string{constants.OrderStatusPending, constants.OrderStatusScheduled}).
		Updates(map[string]interface{}{
			"status":            constants.OrderStatusConfirmed,
			"payment_status":    constants.OrderPaymentStatusPaid,
			"payment_reference": reference,
			"confirmed_at":      confirmedAt,
			"updated_at":        confirmedAt,
		})
	return result.RowsAffected, result.Error
}

// MarkPaymentFailed 支付失败直接进入终态
func (r *GormOrderRepository) MarkPaymentFailed(ctx context.Context, id uint, reference string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, constants.OrderPaymentStatusUnpaid).
		Where("status IN ?", []string{constants.OrderStatusPending, constants.OrderStatusScheduled}).
		Updates(map[string]interface{}{
			"status":            constants.OrderStatusPaymentFailed,
			"payment_status":    constants.OrderPaymentStatusFailed,
			"payment_reference": reference,
			"updated_at":        time.Now(),
		})
	return result.RowsAffected, result.Error
}

// TransitionStatus 以当前状态为条件推进订单状态
func (r *GormOrderRepository) TransitionStatus(ctx context.Context, id uint, from, to string, updates map[string]interface{}) (int64, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for key, value := range updates {
		values[key] = value
	}
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	return result.RowsAffected, result.Error
}

// AssignCourier 为尚未指派骑手的订单写入骑手
func (r *GormOrderRepository) AssignCourier(ctx context.Context, id uint, courierID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND courier_id IS NULL", id).
		Updates(map[string]interface{}{
			"courier_id": courierID,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// ReleaseCourier 骑手拒单或取消后清空订单上的骑手，便于重新派单
func (r *GormOrderRepository) ReleaseCourier(ctx context.Context, id uint, courierID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND courier_id = ?", id, courierID).
		Updates(map[string]interface{}{
			"courier_id": nil,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
