package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxDispatched OutboxStatus = "DISPATCHED"
	OutboxFailed     OutboxStatus = "FAILED"
)

// OutboxEvent is a journal row written in the same transaction as the ledger change.
// Only the relay updates Status and the delivery columns.
type OutboxEvent struct {
	ID            uint64         `gorm:"primaryKey"`
	EventID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex"`
	Aggregate     string         `gorm:"size:64;not null"`
	AggregateID   uuid.UUID      `gorm:"type:uuid;not null;index"`
	EventType     string         `gorm:"size:64;not null"`
	Payload       datatypes.JSON `gorm:"not null"`
	Status        OutboxStatus   `gorm:"size:16;not null;index"`
	Attempts      int            `gorm:"not null"`
	LastError     string         `gorm:"type:text"`
	NextAttemptAt *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	DispatchedAt  *time.Time
}

func (OutboxEvent) TableName() string { return "outbox_events" }
