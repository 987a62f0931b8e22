package outbox_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/richardliu001/funding-ledger/internal/money"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"github.com/richardliu001/funding-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestAppend_UsesCallerTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectRollback()

	tx := db.Begin()
	require.NoError(t, tx.Error)
	row, err := outbox.Append(ctx, tx, outbox.CollectionOpened{
		TargetID:          uuid.New(),
		FeePerBeneficiary: money.MustParse("33.33"),
		BeneficiaryCount:  3,
		OpenedAt:          time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutboxPending, row.Status)
	require.NoError(t, tx.Rollback().Error)

	// no second BEGIN/COMMIT: the append rode on the caller's transaction
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_RequiresTx(t *testing.T) {
	_, err := outbox.Append(context.Background(), nil, outbox.TargetCreated{TargetID: uuid.New()})
	assert.ErrorIs(t, err, outbox.ErrNoTx)
}

func TestAppend_RollsBackWithLedgerWrite(t *testing.T) {
	db := testutil.OpenSQLite(t)
	ctx := context.Background()
	targetID := uuid.New()

	errBoom := errors.New("ledger write failed")
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := outbox.Append(ctx, tx, outbox.TargetCreated{TargetID: targetID}); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, testutil.OutboxRows(t, db))

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := outbox.Append(ctx, tx, outbox.TargetCreated{TargetID: targetID})
		return err
	})
	require.NoError(t, err)
	rows := testutil.OutboxRows(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, targetID, rows[0].AggregateID)
	assert.Equal(t, outbox.AggregateTarget, rows[0].Aggregate)
	assert.Equal(t, outbox.TypeTargetCreated, rows[0].EventType)
	assert.Nil(t, rows[0].DispatchedAt)
}

func TestDecode_RoundTripsPayload(t *testing.T) {
	db := testutil.OpenSQLite(t)
	ctx := context.Background()
	in := outbox.ContributionRecorded{
		ContributionID: uuid.New(),
		TargetID:       uuid.New(),
		BeneficiaryID:  uuid.New(),
		Value:          money.MustParse("33.33"),
		Commission:     money.MustParse("1.67"),
		OperatorFee:    money.MustParse("0.33"),
		RecordedAt:     time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := outbox.Append(ctx, tx, in)
		return err
	}))

	rows := testutil.OutboxRows(t, db)
	require.Len(t, rows, 1)
	evt, err := outbox.Decode(rows[0])
	require.NoError(t, err)
	got, ok := evt.(*outbox.ContributionRecorded)
	require.True(t, ok)
	assert.Equal(t, in.ContributionID, got.ContributionID)
	assert.True(t, in.Value.Equal(got.Value))
	assert.True(t, in.Commission.Equal(got.Commission))
	assert.True(t, in.OperatorFee.Equal(got.OperatorFee))
	assert.True(t, in.RecordedAt.Equal(got.RecordedAt))

	_, err = outbox.Decode(model.OutboxEvent{EventType: "Nope", Payload: []byte(`{}`)})
	assert.Error(t, err)
}
