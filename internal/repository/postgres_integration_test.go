//go:build integration
// +build integration

package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}
	all := models.AllModels()
	if err := db.Migrator().DropTable(all...); err != nil {
		t.Fatalf("drop tables failed: %v", err)
	}
	if err := db.AutoMigrate(all...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func TestPostgresUniqueViolationDetected(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewCommissionRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &models.CommissionRecord{OrderID: 42, CustomerPhone: "+251911000009"}); err != nil {
		t.Fatalf("create commission failed: %v", err)
	}
	err := repo.Create(ctx, &models.CommissionRecord{OrderID: 42, CustomerPhone: "+251911000009"})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation from postgres, got %v", err)
	}
}

func TestPostgresOperatingStateCAS(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewOperatingStateRepository(db)
	ctx := context.Background()

	state, err := repo.EnsureDefault(ctx, models.OperatingState{IsOpen: true, AutoCloseEnabled: true, MaxActiveOrders: 10})
	if err != nil {
		t.Fatalf("ensure default failed: %v", err)
	}
	ok, err := repo.CompareAndSwapOpen(ctx, state.Version, true, false, false, "integration", time.Now())
	if err != nil || !ok {
		t.Fatalf("swap failed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.CompareAndSwapOpen(ctx, state.Version, true, false, false, "integration", time.Now())
	if err != nil || ok {
		t.Fatalf("stale swap should not apply: ok=%v err=%v", ok, err)
	}
}

func TestPostgresPrintJobFailureCase(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewPrintJobRepository(db)
	ctx := context.Background()

	job := &models.PrintJob{OrderID: 1, Status: constants.PrintJobStatusPending}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create print job failed: %v", err)
	}
	if err := repo.RecordFailure(ctx, job.ID, "paper out", 1); err != nil {
		t.Fatalf("record failure failed: %v", err)
	}
	current, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get print job failed: %v", err)
	}
	if current.Status != constants.PrintJobStatusFailed {
		t.Fatalf("expected failed status, got %s", current.Status)
	}
}
