// Package outbox is the transactional event journal.
//
// Append only ever writes PENDING rows through the caller's transaction. The
// delivery columns belong to the relay, which uses Store.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoTx is returned when Append is called without an open transaction.
var ErrNoTx = errors.New("outbox: append requires a transaction")

// Append writes one PENDING row using tx. It never opens a transaction of its
// own, so the row commits or rolls back with the caller's ledger change.
func Append(ctx context.Context, tx *gorm.DB, evt Event) (*model.OutboxEvent, error) {
	if tx == nil {
		return nil, ErrNoTx
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("outbox: encode %s: %w", evt.EventType(), err)
	}
	row := &model.OutboxEvent{
		EventID:     uuid.New(),
		Aggregate:   AggregateTarget,
		AggregateID: evt.TargetKey(),
		EventType:   evt.EventType(),
		Payload:     datatypes.JSON(payload),
		Status:      model.OutboxPending,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("outbox: append %s: %w", evt.EventType(), err)
	}
	return row, nil
}

// Decode turns a stored row back into its typed payload.
func Decode(row model.OutboxEvent) (Event, error) {
	var evt Event
	switch row.EventType {
	case TypeTargetCreated:
		evt = &TargetCreated{}
	case TypeBeneficiariesAssigned:
		evt = &BeneficiariesAssigned{}
	case TypeCollectionOpened:
		evt = &CollectionOpened{}
	case TypeContributionRecorded:
		evt = &ContributionRecorded{}
	default:
		return nil, fmt.Errorf("outbox: unknown event type %q", row.EventType)
	}
	if err := json.Unmarshal(row.Payload, evt); err != nil {
		return nil, fmt.Errorf("outbox: decode %s: %w", row.EventType, err)
	}
	return evt, nil
}
