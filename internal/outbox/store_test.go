package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"github.com/richardliu001/funding-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func appendN(t *testing.T, db *gorm.DB, targetID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			_, err := outbox.Append(context.Background(), tx, outbox.TargetCreated{TargetID: targetID})
			return err
		}))
	}
}

func TestStore_ClaimPending_LocksRows(t *testing.T) {
	db, mock := setupMockDB(t)
	store := outbox.NewStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "outbox_events" WHERE .*aggregate_id NOT IN \(SELECT "aggregate_id" FROM "outbox_events" WHERE status = \$2\) ORDER BY id LIMIT \$3 FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(7, "PENDING"))
	mock.ExpectCommit()

	var claimed []model.OutboxEvent
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		claimed, err = store.ClaimPending(context.Background(), tx, 10)
		return err
	})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, uint64(7), claimed[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_StatusTransitions(t *testing.T) {
	db := testutil.OpenSQLite(t)
	store := outbox.NewStore(db)
	ctx := context.Background()
	t1, t2 := uuid.New(), uuid.New()
	appendN(t, db, t1, 2)
	appendN(t, db, t2, 1)

	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	var claimed []model.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		claimed, err = store.ClaimPending(ctx, tx, 10)
		if err != nil {
			return err
		}
		// first event of t1 fails, t2 goes through
		if err := store.MarkFailed(ctx, tx, claimed[0].ID, "broker down", now.Add(time.Second)); err != nil {
			return err
		}
		return store.MarkDispatched(ctx, tx, claimed[2].ID, now)
	}))
	require.Len(t, claimed, 3)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.OutboxFailed])
	assert.Equal(t, int64(1), counts[model.OutboxDispatched])
	assert.Equal(t, int64(1), counts[model.OutboxPending])

	// t1's second event is held back while its first one is FAILED
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		claimed, err = store.ClaimPending(ctx, tx, 10)
		return err
	}))
	assert.Empty(t, claimed)

	n, err := store.Requeue(ctx, now, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "not due yet")

	n, err = store.Requeue(ctx, now.Add(time.Minute), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		claimed, err = store.ClaimPending(ctx, tx, 10)
		return err
	}))
	require.Len(t, claimed, 2)
	assert.Equal(t, 1, claimed[0].Attempts)
	assert.Equal(t, "broker down", claimed[0].LastError)
	assert.Less(t, claimed[0].ID, claimed[1].ID)

	var dispatched model.OutboxEvent
	require.NoError(t, db.Where("status = ?", model.OutboxDispatched).First(&dispatched).Error)
	require.NotNil(t, dispatched.DispatchedAt)
	assert.Equal(t, t2, dispatched.AggregateID)
}

func TestStore_RequeueRespectsMaxAttempts(t *testing.T) {
	db := testutil.OpenSQLite(t)
	store := outbox.NewStore(db)
	ctx := context.Background()
	appendN(t, db, uuid.New(), 1)

	rows := testutil.OutboxRows(t, db)
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Model(&model.OutboxEvent{}).Where("id = ?", rows[0].ID).
		Updates(map[string]interface{}{"status": model.OutboxFailed, "attempts": 3, "next_attempt_at": past}).Error)

	n, err := store.Requeue(ctx, past.Add(time.Hour), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "parked rows stay FAILED")
}

func TestStore_RequeueParked(t *testing.T) {
	db := testutil.OpenSQLite(t)
	store := outbox.NewStore(db)
	ctx := context.Background()
	target := uuid.New()
	appendN(t, db, target, 2)

	rows := testutil.OutboxRows(t, db)
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Model(&model.OutboxEvent{}).Where("id = ?", rows[0].ID).
		Updates(map[string]interface{}{"status": model.OutboxFailed, "attempts": 3, "next_attempt_at": past, "last_error": "broker down"}).Error)

	// pending rows and unknown ids are left alone
	ok, err := store.RequeueParked(ctx, rows[1].EventID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.RequeueParked(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.RequeueParked(ctx, rows[0].EventID)
	require.NoError(t, err)
	assert.True(t, ok)

	rows = testutil.OutboxRows(t, db)
	assert.Equal(t, model.OutboxPending, rows[0].Status)
	assert.Zero(t, rows[0].Attempts)
	assert.Nil(t, rows[0].NextAttemptAt)
	assert.Equal(t, "broker down", rows[0].LastError)

	var claimed []model.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		claimed, err = store.ClaimPending(ctx, tx, 10)
		return err
	}))
	require.Len(t, claimed, 2)
	assert.Equal(t, rows[0].ID, claimed[0].ID)
}
