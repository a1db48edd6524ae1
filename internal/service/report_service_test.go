package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"

	"github.com/xuri/excelize/v2"
)

func TestCommissionReportSummaryAndExport(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	env := newServiceTestEnv(t, now)
	ctx := context.Background()
	referrer := createServiceTestReferrer(t, env.db, "Influencer", "10", true)
	createServiceTestPromo(t, env.db, "WELCOME10", "10", &referrer.ID)

	first := createServiceTestOrder(t, env.db, "+2348012345678", "4000", stringPtr("WELCOME10"), constants.PaymentMethodOnline)
	second := createServiceTestOrder(t, env.db, "+2348012345678", "2000", nil, constants.PaymentMethodOnline)
	other := createServiceTestOrder(t, env.db, "+2348012345670", "1000", stringPtr("WELCOME10"), constants.PaymentMethodOnline)
	for _, order := range []*models.Order{first, second, other} {
		confirmServiceTestOrder(t, env, order)
	}

	reports := NewReportService(repository.NewCommissionRepository(env.db), repository.NewAttributionRepository(env.db))
	report, err := reports.Summary(ctx, CommissionReportInput{})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	var found bool
	for _, summary := range report.Referrers {
		if summary.ReferrerID != referrer.ID {
			continue
		}
		found = true
		if summary.OrderCount != 3 || summary.FirstOrderCount != 2 || summary.NewCustomers != 2 {
			t.Fatalf("unexpected counts: %+v", summary)
		}
		if summary.CommissionTotal != "700.00" || summary.OrderTotal != "7000.00" {
			t.Fatalf("unexpected totals: %+v", summary)
		}
	}
	if !found {
		t.Fatalf("expected summary for referrer %d, got %+v", referrer.ID, report.Referrers)
	}

	records, total, err := reports.ListCommissions(ctx, CommissionReportInput{ReferrerID: referrer.ID}, 1, 20)
	if err != nil || total != 3 || len(records) != 3 {
		t.Fatalf("expected three commission records, got %d/%d %v", len(records), total, err)
	}

	var buf bytes.Buffer
	if err := reports.ExportCommissions(ctx, CommissionReportInput{}, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open export failed: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows(sheetCommissions)
	if err != nil {
		t.Fatalf("read commissions sheet failed: %v", err)
	}
	if len(rows) != 4 || rows[0][0] != "Order ID" {
		t.Fatalf("expected header plus three rows, got %v", rows)
	}
	summaryRows, err := book.GetRows(sheetReferrers)
	if err != nil || len(summaryRows) < 2 {
		t.Fatalf("expected referrer summary rows, got %v %v", summaryRows, err)
	}

	attribution, err := reports.AttributionByPhone(ctx, "+2348012345678")
	if err != nil || attribution.TotalOrders != 2 {
		t.Fatalf("expected attribution with two orders, got %+v %v", attribution, err)
	}
	if _, err := reports.AttributionByPhone(ctx, "+2348099999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected attribution not found, got %v", err)
	}
}

func TestCommissionReportRangeValidation(t *testing.T) {
	reports := NewReportService(nil, nil)
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	before := from.Add(-time.Hour)
	if _, err := reports.Summary(context.Background(), CommissionReportInput{From: &from, To: &before}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected inverted range rejected, got %v", err)
	}
	tooFar := from.AddDate(2, 0, 0)
	if _, _, err := reports.ListCommissions(context.Background(), CommissionReportInput{From: &from, To: &tooFar}, 1, 20); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected oversized range rejected, got %v", err)
	}
}
