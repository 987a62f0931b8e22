package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleRow() model.OutboxEvent {
	return model.OutboxEvent{
		ID:          3,
		EventID:     uuid.New(),
		Aggregate:   "Target",
		AggregateID: uuid.New(),
		EventType:   "CollectionOpened",
		Payload:     datatypes.JSON(`{"fee_per_beneficiary":"33.33"}`),
		Status:      model.OutboxPending,
		CreatedAt:   time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
}

func TestToMessage_KeysByTarget(t *testing.T) {
	row := sampleRow()
	msg := toMessage(row)

	assert.Equal(t, row.AggregateID.String(), string(msg.Key))
	assert.JSONEq(t, `{"fee_per_beneficiary":"33.33"}`, string(msg.Value))
	assert.Equal(t, row.CreatedAt, msg.Time)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{
		HeaderEventID:   row.EventID.String(),
		HeaderEventType: "CollectionOpened",
		HeaderAggregate: "Target",
	}, headers)
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	require.NoError(t, p.Publish(context.Background(), sampleRow()))
	assert.Len(t, w.msgs, 1)

	w.err = errors.New("leader not available")
	assert.Error(t, p.Publish(context.Background(), sampleRow()))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestLogPublisher_NeverFails(t *testing.T) {
	p := NewLogPublisher(zap.NewNop().Sugar())
	assert.NoError(t, p.Publish(context.Background(), sampleRow()))
	assert.NoError(t, p.Close())
}
