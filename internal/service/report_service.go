package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mealdash-next/internal/cache"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"

	"github.com/xuri/excelize/v2"
)

const (
	reportSummaryCacheTTL = 45 * time.Second
	reportMaxRangeDays    = 366
	sheetCommissions      = "Commissions"
	sheetReferrers        = "Referrers"
)

// CommissionReportInput 佣金报表查询条件
type CommissionReportInput struct {
	ReferrerID uint
	From       *time.Time
	To         *time.Time
}

// CommissionReport 佣金报表
type CommissionReport struct {
	From      *time.Time                             `json:"from,omitempty"`
	To        *time.Time                             `json:"to,omitempty"`
	Referrers []repository.ReferrerCommissionSummary `json:"referrers"`
}

// ReportService 佣金与归因报表（只读）
type ReportService struct {
	commissionRepo  repository.CommissionRepository
	attributionRepo repository.AttributionRepository
}

// NewReportService 创建报表服务
func NewReportService(commissionRepo repository.CommissionRepository, attributionRepo repository.AttributionRepository) *ReportService {
	return &ReportService{commissionRepo: commissionRepo, attributionRepo: attributionRepo}
}

func (in CommissionReportInput) filter() (repository.CommissionListFilter, error) {
	if in.From != nil && in.To != nil {
		if in.To.Before(*in.From) {
			return repository.CommissionListFilter{}, fmt.Errorf("%w: to must not be before from", ErrValidation)
		}
		if in.To.Sub(*in.From) > reportMaxRangeDays*24*time.Hour {
			return repository.CommissionListFilter{}, fmt.Errorf("%w: range exceeds %d days", ErrValidation, reportMaxRangeDays)
		}
	}
	return repository.CommissionListFilter{
		ReferrerID:  in.ReferrerID,
		CreatedFrom: in.From,
		CreatedTo:   in.To,
	}, nil
}

func (in CommissionReportInput) cacheKey() string {
	key := fmt.Sprintf("report:commission:%d", in.ReferrerID)
	if in.From != nil {
		key += ":" + in.From.UTC().Format(time.RFC3339)
	}
	if in.To != nil {
		key += ":" + in.To.UTC().Format(time.RFC3339)
	}
	return key
}

// Summary 按推荐人汇总佣金，短时缓存
func (s *ReportService) Summary(ctx context.Context, input CommissionReportInput) (*CommissionReport, error) {
	filter, err := input.filter()
	if err != nil {
		return nil, err
	}
	var cached CommissionReport
	if hit, err := cache.GetJSON(ctx, input.cacheKey(), &cached); err == nil && hit {
		return &cached, nil
	}
	summaries, err := s.commissionRepo.SummarizeByReferrer(ctx, filter)
	if err != nil {
		return nil, err
	}
	report := &CommissionReport{From: input.From, To: input.To, Referrers: summaries}
	_ = cache.SetJSON(ctx, input.cacheKey(), report, reportSummaryCacheTTL)
	return report, nil
}

// ListCommissions 佣金台账明细
func (s *ReportService) ListCommissions(ctx context.Context, input CommissionReportInput, page, pageSize int) ([]models.CommissionRecord, int64, error) {
	filter, err := input.filter()
	if err != nil {
		return nil, 0, err
	}
	filter.Page = page
	filter.PageSize = pageSize
	return s.commissionRepo.List(ctx, filter)
}

// ExportCommissions 导出佣金明细与推荐人汇总为 xlsx
func (s *ReportService) ExportCommissions(ctx context.Context, input CommissionReportInput, w io.Writer) error {
	filter, err := input.filter()
	if err != nil {
		return err
	}
	records, _, err := s.commissionRepo.List(ctx, filter)
	if err != nil {
		return err
	}
	summaries, err := s.commissionRepo.SummarizeByReferrer(ctx, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetCommissions); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetReferrers); err != nil {
		return err
	}

	headers := []interface{}{"Order ID", "Referrer", "Promo Code", "Customer Phone", "Order Total", "Commission", "First Order", "New Customer", "Created At"}
	if err := f.SetSheetRow(sheetCommissions, "A1", &headers); err != nil {
		return err
	}
	for i, record := range records {
		referrer := ""
		if record.Referrer != nil {
			referrer = record.Referrer.Name
		}
		promo := ""
		if record.PromoCode != nil {
			promo = *record.PromoCode
		}
		orderTotal, _ := record.OrderTotal.Float64()
		commission, _ := record.CommissionAmount.Float64()
		row := []interface{}{
			record.OrderID,
			referrer,
			promo,
			record.CustomerPhone,
			orderTotal,
			commission,
			record.IsFirstOrder,
			record.IsNewCustomer,
			record.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetCommissions, cell, &row); err != nil {
			return err
		}
	}

	summaryHeaders := []interface{}{"Referrer ID", "Referrer", "Orders", "First Orders", "New Customers", "Order Total", "Commission Total"}
	if err := f.SetSheetRow(sheetReferrers, "A1", &summaryHeaders); err != nil {
		return err
	}
	for i, summary := range summaries {
		row := []interface{}{
			summary.ReferrerID,
			summary.ReferrerName,
			summary.OrderCount,
			summary.FirstOrderCount,
			summary.NewCustomers,
			summary.OrderTotal,
			summary.CommissionTotal,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetReferrers, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// AttributionByPhone 按手机号查询归因
func (s *ReportService) AttributionByPhone(ctx context.Context, phone string) (*models.CustomerAttribution, error) {
	attribution, err := s.attributionRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if attribution == nil {
		return nil, ErrAttributionNotFound
	}
	return attribution, nil
}
