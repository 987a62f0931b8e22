// Package testutil opens throwaway databases and seeds ledger rows for tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/richardliu001/funding-ledger/internal/money"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// OpenSQLite returns a migrated in-memory database private to the test, with
// foreign keys enforced.
// A single connection is used so concurrent transactions queue instead of
// failing with SQLITE_BUSY.
func OpenSQLite(tb testing.TB) *gorm.DB {
	tb.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

func SeedBeneficiary(tb testing.TB, ctx context.Context, db *gorm.DB, name string) *model.Beneficiary {
	tb.Helper()
	b := &model.Beneficiary{ID: uuid.New(), DisplayName: name}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed beneficiary: %v", err)
	}
	return b
}

func SeedTarget(tb testing.TB, ctx context.Context, db *gorm.DB, estimated string) *model.Target {
	tb.Helper()
	t := &model.Target{
		ID:             uuid.New(),
		Description:    "class trip",
		Summary:        "bus and tickets",
		DueDate:        time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC),
		EstimatedValue: money.MustParse(estimated),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed target: %v", err)
	}
	return t
}

func SeedAssignment(tb testing.TB, ctx context.Context, db *gorm.DB, targetID, beneficiaryID uuid.UUID) *model.Assignment {
	tb.Helper()
	a := &model.Assignment{TargetID: targetID, BeneficiaryID: beneficiaryID}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assignment: %v", err)
	}
	return a
}

// OutboxRows returns every outbox row in id order.
func OutboxRows(tb testing.TB, db *gorm.DB) []model.OutboxEvent {
	tb.Helper()
	var rows []model.OutboxEvent
	if err := db.Order("id").Find(&rows).Error; err != nil {
		tb.Fatalf("read outbox: %v", err)
	}
	return rows
}
