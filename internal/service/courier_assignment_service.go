package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/geo"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	distanceScorePerKM   = 5.0
	distanceScoreCap     = 50.0
	distanceScoreUnknown = 25.0
	workloadScorePerJob  = 15.0
	cashScoreDivisor     = 1000.0
	cashScoreCap         = 20.0
)

var errOrderCourierTaken = errors.New("order already has a courier")

// CandidateScore 单个骑手的得分明细（越低越优）
type CandidateScore struct {
	CourierID       uint     `json:"courier_id"`
	CourierName     string   `json:"courier_name"`
	DistanceKM      *float64 `json:"distance_km,omitempty"`
	DistanceScore   float64  `json:"distance_score"`
	OpenAssignments int64    `json:"open_assignments"`
	WorkloadScore   float64  `json:"workload_score"`
	CashScore       float64  `json:"cash_score"`
	Total           float64  `json:"total"`

	courier models.Courier
}

// AssignmentResult 派单结果
type AssignmentResult struct {
	Courier             *models.Courier            `json:"courier"`
	Assignment          *models.DeliveryAssignment `json:"assignment"`
	Score               float64                    `json:"score"`
	CandidatesEvaluated int                        `json:"candidates_evaluated"`
	Breakdown           []CandidateScore           `json:"breakdown"`
}

// ScoreCandidates 按距离、工作量与货到付款现金计算每个候选骑手的得分，保持输入顺序
func ScoreCandidates(order *models.Order, origin geo.Point, candidates []models.Courier, workloads map[uint]int64) []CandidateScore {
	scores := make([]CandidateScore, 0, len(candidates))
	cod := order.IsCOD()
	for _, courier := range candidates {
		score := CandidateScore{
			CourierID:   courier.ID,
			CourierName: courier.Name,
			courier:     courier,
		}
		if location, ok := geo.PointFromPtr(courier.Lat, courier.Lng); ok {
			km := geo.HaversineKM(origin, location)
			score.DistanceKM = &km
			score.DistanceScore = math.Min(km*distanceScorePerKM, distanceScoreCap)
		} else {
			score.DistanceScore = distanceScoreUnknown
		}
		score.OpenAssignments = workloads[courier.ID]
		score.WorkloadScore = workloadScorePerJob * float64(score.OpenAssignments)
		if cod {
			balance := courier.CODBalance.Decimal.InexactFloat64()
			score.CashScore = math.Min(balance/cashScoreDivisor, cashScoreCap)
		}
		score.Total = score.DistanceScore + score.WorkloadScore + score.CashScore
		scores = append(scores, score)
	}
	return scores
}

// pickBest 返回得分最低的下标，并列时取先出现者；空集合返回 -1
func pickBest(scores []CandidateScore) int {
	best := -1
	for i := range scores {
		if best < 0 || scores[i].Total < scores[best].Total {
			best = i
		}
	}
	return best
}

// rankCandidates 按得分升序排列，并列保持原顺序，首位与 pickBest 一致
func rankCandidates(scores []CandidateScore) []CandidateScore {
	ranked := append([]CandidateScore(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total < ranked[j].Total
	})
	return ranked
}

// CourierAssignmentService 骑手派单服务
type CourierAssignmentService struct {
	tx             repository.Transactor
	orderRepo      repository.OrderRepository
	courierRepo    repository.CourierRepository
	assignmentRepo repository.AssignmentRepository
	settings       *SettingService
	capacity       capacityTrigger
	defaultOrigin  geo.Point
	clock          clock.Clock
}

// NewCourierAssignmentService 创建派单服务
func NewCourierAssignmentService(
	tx repository.Transactor,
	orderRepo repository.OrderRepository,
	courierRepo repository.CourierRepository,
	assignmentRepo repository.AssignmentRepository,
	settings *SettingService,
	queueClient TaskEnqueuer,
	capacity *CapacityService,
	defaultOrigin geo.Point,
	clk clock.Clock,
) *CourierAssignmentService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &CourierAssignmentService{
		tx:             tx,
		orderRepo:      orderRepo,
		courierRepo:    courierRepo,
		assignmentRepo: assignmentRepo,
		settings:       settings,
		capacity:       capacityTrigger{queue: queueClient, capacity: capacity},
		defaultOrigin:  defaultOrigin,
		clock:          clk,
	}
}

// Origin 派单距离原点：调度设置优先，其次门店配置
func (s *CourierAssignmentService) Origin(ctx context.Context) geo.Point {
	setting, err := s.settings.GetDispatchSetting(ctx)
	if err != nil {
		logger.WithContext(ctx).Warnw("dispatch_setting_fetch_failed", "error", err)
		return s.defaultOrigin
	}
	if origin, ok := setting.Origin(); ok {
		return origin
	}
	return s.defaultOrigin
}

// Assign 为订单挑选并锁定骑手；被并发抢走的骑手会跳过并尝试下一位
func (s *CourierAssignmentService) Assign(ctx context.Context, orderID uint, assignedBy string) (*AssignmentResult, error) {
	ctx, span := tracer.Start(ctx, "courier.assign")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", int64(orderID)))

	assignedBy = strings.TrimSpace(assignedBy)
	if assignedBy == "" {
		assignedBy = constants.AssignedByAuto
	}
	log := logger.WithContext(ctx, "order_id", orderID, "assigned_by", assignedBy)

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusReady && order.Status != constants.OrderStatusPreparing {
		return nil, fmt.Errorf("%w: order status %s cannot be assigned", ErrValidation, order.Status)
	}
	if order.CourierID != nil {
		return nil, fmt.Errorf("%w: order already has courier %d", ErrValidation, *order.CourierID)
	}

	candidates, err := s.courierRepo.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		log.Infow("courier_assign_no_candidates")
		return nil, &NoAvailableCourierError{Evaluated: 0}
	}
	ids := make([]uint, 0, len(candidates))
	for _, courier := range candidates {
		ids = append(ids, courier.ID)
	}
	workloads, err := s.courierRepo.CountOpenAssignments(ctx, ids)
	if err != nil {
		return nil, err
	}

	scores := ScoreCandidates(order, s.Origin(ctx), candidates, workloads)
	ranked := rankCandidates(scores)
	span.SetAttributes(attribute.Int("courier.candidates", len(scores)))

	var chosen *CandidateScore
	var assignment *models.DeliveryAssignment
	now := s.clock.Now()
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		courierRepo := s.courierRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)
		assignmentRepo := s.assignmentRepo.WithTx(tx)

		for i := range ranked {
			candidate := ranked[i]
			claimed, err := courierRepo.ClaimAvailable(ctx, candidate.CourierID)
			if err != nil {
				return err
			}
			if claimed == 0 {
				log.Infow("courier_assign_candidate_taken", "courier_id", candidate.CourierID)
				continue
			}
			stamped, err := orderRepo.AssignCourier(ctx, order.ID, candidate.CourierID)
			if err != nil {
				return err
			}
			if stamped == 0 {
				return errOrderCourierTaken
			}
			record := &models.DeliveryAssignment{
				OrderID:    order.ID,
				CourierID:  candidate.CourierID,
				Status:     constants.AssignmentStatusPending,
				Score:      candidate.Total,
				DistanceKM: candidate.DistanceKM,
				AssignedBy: assignedBy,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := assignmentRepo.Create(ctx, record); err != nil {
				return err
			}
			chosen = &candidate
			assignment = record
			return nil
		}
		return nil
	})
	if errors.Is(err, errOrderCourierTaken) {
		return nil, fmt.Errorf("%w: order already has a courier", ErrAlreadyProcessed)
	}
	if err != nil {
		log.Errorw("courier_assign_failed", "error", err)
		return nil, err
	}
	if chosen == nil {
		log.Infow("courier_assign_all_candidates_taken", "candidates", len(scores))
		return nil, &NoAvailableCourierError{Evaluated: len(scores)}
	}

	courier := chosen.courier
	courier.Status = constants.CourierStatusBusy
	log.Infow("courier_assigned",
		"courier_id", courier.ID,
		"score", chosen.Total,
		"candidates", len(scores),
	)
	return &AssignmentResult{
		Courier:             &courier,
		Assignment:          assignment,
		Score:               chosen.Total,
		CandidatesEvaluated: len(scores),
		Breakdown:           scores,
	}, nil
}

var assignmentTransitions = map[string][]string{
	constants.AssignmentStatusPending:  {constants.AssignmentStatusAccepted, constants.AssignmentStatusRejected, constants.AssignmentStatusCancelled},
	constants.AssignmentStatusAccepted: {constants.AssignmentStatusPickedUp, constants.AssignmentStatusRejected, constants.AssignmentStatusCancelled},
	constants.AssignmentStatusPickedUp: {constants.AssignmentStatusDelivered},
}

func isAssignmentTransitionAllowed(from, to string) bool {
	for _, next := range assignmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateAssignmentStatus 推进配送状态，并同步订单与骑手状态
func (s *CourierAssignmentService) UpdateAssignmentStatus(ctx context.Context, assignmentID uint, status string) (*models.DeliveryAssignment, error) {
	status = strings.TrimSpace(status)
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if !isAssignmentTransitionAllowed(assignment.Status, status) {
		return nil, fmt.Errorf("%w: assignment %s -> %s", ErrValidation, assignment.Status, status)
	}

	now := s.clock.Now()
	orderLeftActive := false
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		assignmentRepo := s.assignmentRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)
		courierRepo := s.courierRepo.WithTx(tx)

		updates := map[string]interface{}{"updated_at": now}
		switch status {
		case constants.AssignmentStatusAccepted:
			updates["accepted_at"] = now
		case constants.AssignmentStatusPickedUp:
			updates["picked_up_at"] = now
		case constants.AssignmentStatusDelivered:
			updates["delivered_at"] = now
		}
		rows, err := assignmentRepo.TransitionStatus(ctx, assignment.ID, assignment.Status, status, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: assignment status changed concurrently", ErrAlreadyProcessed)
		}

		switch status {
		case constants.AssignmentStatusPickedUp:
			moved, err := orderRepo.TransitionStatus(ctx, assignment.OrderID, constants.OrderStatusReady, constants.OrderStatusOutForDelivery, nil)
			if err != nil {
				return err
			}
			if moved == 0 {
				// 后台已人工推进为配送中时只补记取餐
				order, err := orderRepo.GetByID(ctx, assignment.OrderID)
				if err != nil {
					return err
				}
				if order == nil || order.Status != constants.OrderStatusOutForDelivery {
					return fmt.Errorf("%w: order is not ready for pickup", ErrOrderStatusInvalid)
				}
				return nil
			}
			orderLeftActive = true
		case constants.AssignmentStatusDelivered:
			moved, err := orderRepo.TransitionStatus(ctx, assignment.OrderID, constants.OrderStatusOutForDelivery, constants.OrderStatusCompleted,
				map[string]interface{}{"completed_at": now})
			if err != nil {
				return err
			}
			if moved == 0 {
				return fmt.Errorf("%w: order is not out for delivery", ErrOrderStatusInvalid)
			}
			order, err := orderRepo.GetByID(ctx, assignment.OrderID)
			if err != nil {
				return err
			}
			if order != nil && order.IsCOD() {
				if err := courierRepo.AddCODBalance(ctx, assignment.CourierID, order.Total.Decimal); err != nil {
					return err
				}
			}
			return courierRepo.SetStatus(ctx, assignment.CourierID, constants.CourierStatusAvailable)
		case constants.AssignmentStatusRejected, constants.AssignmentStatusCancelled:
			if _, err := orderRepo.ReleaseCourier(ctx, assignment.OrderID, assignment.CourierID); err != nil {
				return err
			}
			return courierRepo.SetStatus(ctx, assignment.CourierID, constants.CourierStatusAvailable)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Infow("delivery_assignment_status_updated",
		"assignment_id", assignment.ID,
		"order_id", assignment.OrderID,
		"courier_id", assignment.CourierID,
		"from", assignment.Status,
		"to", status,
	)
	if orderLeftActive {
		s.capacity.fire(ctx, "order_picked_up")
	}
	return s.assignmentRepo.GetByID(ctx, assignment.ID)
}

// TransitionOrder 人工推进订单状态。取消或完成时在同一事务内收尾该订单未结束的配送，
// 完成记为 delivered（货到付款计入骑手现金），取消记为 cancelled 并解除订单上的骑手；
// 骑手没有其他未结束配送时恢复空闲。返回 0 表示订单状态已被并发修改。
func (s *CourierAssignmentService) TransitionOrder(ctx context.Context, order *models.Order, target string, updates map[string]interface{}) (int64, error) {
	var closing string
	switch target {
	case constants.OrderStatusCancelled:
		closing = constants.AssignmentStatusCancelled
	case constants.OrderStatusCompleted:
		closing = constants.AssignmentStatusDelivered
	}

	now := s.clock.Now()
	var affected int64
	var closed []models.DeliveryAssignment
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		moved, err := orderRepo.TransitionStatus(ctx, order.ID, order.Status, target, updates)
		if err != nil {
			return err
		}
		affected = moved
		if moved == 0 || closing == "" {
			return nil
		}

		assignmentRepo := s.assignmentRepo.WithTx(tx)
		courierRepo := s.courierRepo.WithTx(tx)
		open, err := assignmentRepo.ListOpenByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		cashCredited := false
		for _, assignment := range open {
			fields := map[string]interface{}{"updated_at": now}
			if closing == constants.AssignmentStatusDelivered {
				fields["delivered_at"] = now
			}
			rows, err := assignmentRepo.TransitionStatus(ctx, assignment.ID, assignment.Status, closing, fields)
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("%w: assignment status changed concurrently", ErrAlreadyProcessed)
			}
			switch closing {
			case constants.AssignmentStatusDelivered:
				if order.IsCOD() && !cashCredited {
					if err := courierRepo.AddCODBalance(ctx, assignment.CourierID, order.Total.Decimal); err != nil {
						return err
					}
					cashCredited = true
				}
			case constants.AssignmentStatusCancelled:
				if _, err := orderRepo.ReleaseCourier(ctx, order.ID, assignment.CourierID); err != nil {
					return err
				}
			}
			remaining, err := courierRepo.CountOpenAssignments(ctx, []uint{assignment.CourierID})
			if err != nil {
				return err
			}
			if remaining[assignment.CourierID] == 0 {
				if err := courierRepo.SetStatus(ctx, assignment.CourierID, constants.CourierStatusAvailable); err != nil {
					return err
				}
			}
			closed = append(closed, assignment)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, assignment := range closed {
		logger.WithContext(ctx).Infow("delivery_assignment_closed_by_order",
			"assignment_id", assignment.ID,
			"order_id", order.ID,
			"courier_id", assignment.CourierID,
			"from", assignment.Status,
			"to", closing,
		)
	}
	return affected, nil
}

// UpdateCourierLocation 骑手上报位置
func (s *CourierAssignmentService) UpdateCourierLocation(ctx context.Context, courierID uint, lat, lng float64) error {
	if !(geo.Point{Lat: lat, Lng: lng}).Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	courier, err := s.courierRepo.GetByID(ctx, courierID)
	if err != nil {
		return err
	}
	if courier == nil {
		return ErrCourierNotFound
	}
	return s.courierRepo.UpdateLocation(ctx, courierID, lat, lng, s.clock.Now())
}

// SetCourierStatus 骑手上下线；忙碌状态只能由派单流程写入，配送未结束前不能手动切换
func (s *CourierAssignmentService) SetCourierStatus(ctx context.Context, courierID uint, status string) error {
	status = strings.TrimSpace(status)
	if status != constants.CourierStatusAvailable && status != constants.CourierStatusOffline {
		return fmt.Errorf("%w: courier status %q", ErrValidation, status)
	}
	courier, err := s.courierRepo.GetByID(ctx, courierID)
	if err != nil {
		return err
	}
	if courier == nil {
		return ErrCourierNotFound
	}
	open, err := s.courierRepo.CountOpenAssignments(ctx, []uint{courierID})
	if err != nil {
		return err
	}
	if open[courierID] > 0 {
		return fmt.Errorf("%w: courier has %d open deliveries", ErrValidation, open[courierID])
	}
	return s.courierRepo.SetStatus(ctx, courierID, status)
}

// AutoAssign 出餐后自动派单（队列任务入口）；无骑手时不视为失败
func (s *CourierAssignmentService) AutoAssign(ctx context.Context, orderID uint) error {
	setting, err := s.settings.GetDispatchSetting(ctx)
	if err != nil {
		return err
	}
	if !setting.AutoAssignOnReady {
		return nil
	}
	_, err = s.Assign(ctx, orderID, constants.AssignedByAuto)
	var noCourier *NoAvailableCourierError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &noCourier):
		logger.WithContext(ctx).Warnw("courier_auto_assign_no_courier", "order_id", orderID, "evaluated", noCourier.Evaluated)
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrNotFound):
		logger.WithContext(ctx).Infow("courier_auto_assign_skipped", "order_id", orderID, "reason", err.Error())
		return nil
	default:
		return err
	}
}

// AssignmentsForOrder 订单的派单历史
func (s *CourierAssignmentService) AssignmentsForOrder(ctx context.Context, orderID uint) ([]models.DeliveryAssignment, error) {
	return s.assignmentRepo.ListByOrder(ctx, orderID)
}

// AssignedByAdmin 管理员手动派单的来源标识
func AssignedByAdmin(adminID uint) string {
	return fmt.Sprintf("admin:%d", adminID)
}

// CreateCourierInput 新增骑手
type CreateCourierInput struct {
	Name        string
	Phone       string
	VehicleType string
}

// CreateCourier 新增骑手，默认离线且在职
func (s *CourierAssignmentService) CreateCourier(ctx context.Context, input CreateCourierInput, countryCode string) (*models.Courier, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: courier name is required", ErrValidation)
	}
	phone, err := NormalizePhone(input.Phone, countryCode)
	if err != nil {
		return nil, err
	}
	courier := &models.Courier{
		Name:        name,
		Phone:       phone,
		Status:      constants.CourierStatusOffline,
		IsActive:    true,
		VehicleType: strings.TrimSpace(input.VehicleType),
		CODBalance:  models.ZeroMoney(),
	}
	if err := s.courierRepo.Create(ctx, courier); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: courier phone already exists", ErrValidation)
		}
		return nil, err
	}
	return courier, nil
}

// ListCouriers 骑手列表
func (s *CourierAssignmentService) ListCouriers(ctx context.Context, filter repository.CourierListFilter) ([]models.Courier, int64, error) {
	return s.courierRepo.List(ctx, filter)
}
