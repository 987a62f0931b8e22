package outbox

import (
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/money"
)

// AggregateTarget is the aggregate name of every ledger event; the aggregate id is the target id.
const AggregateTarget = "Target"

const (
	TypeTargetCreated         = "TargetCreated"
	TypeBeneficiariesAssigned = "BeneficiariesAssigned"
	TypeCollectionOpened      = "CollectionOpened"
	TypeContributionRecorded  = "ContributionRecorded"
)

// Event is a payload that can be appended to the outbox.
type Event interface {
	EventType() string
	TargetKey() uuid.UUID
}

type TargetCreated struct {
	TargetID       uuid.UUID   `json:"target_id"`
	EstimatedValue money.Money `json:"estimated_value"`
	DueDate        string      `json:"due_date"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (TargetCreated) EventType() string      { return TypeTargetCreated }
func (e TargetCreated) TargetKey() uuid.UUID { return e.TargetID }

type BeneficiariesAssigned struct {
	TargetID       uuid.UUID   `json:"target_id"`
	BeneficiaryIDs []uuid.UUID `json:"beneficiary_ids"`
	Count          int         `json:"count"`
	AssignedAt     time.Time   `json:"assigned_at"`
}

func (BeneficiariesAssigned) EventType() string      { return TypeBeneficiariesAssigned }
func (e BeneficiariesAssigned) TargetKey() uuid.UUID { return e.TargetID }

type CollectionOpened struct {
	TargetID          uuid.UUID   `json:"target_id"`
	FeePerBeneficiary money.Money `json:"fee_per_beneficiary"`
	BeneficiaryCount  int         `json:"beneficiary_count"`
	OpenedAt          time.Time   `json:"opened_at"`
}

func (CollectionOpened) EventType() string      { return TypeCollectionOpened }
func (e CollectionOpened) TargetKey() uuid.UUID { return e.TargetID }

type ContributionRecorded struct {
	ContributionID uuid.UUID   `json:"contribution_id"`
	TargetID       uuid.UUID   `json:"target_id"`
	BeneficiaryID  uuid.UUID   `json:"beneficiary_id"`
	Value          money.Money `json:"value"`
	Commission     money.Money `json:"commission"`
	OperatorFee    money.Money `json:"operator_fee"`
	RecordedAt     time.Time   `json:"recorded_at"`
}

func (ContributionRecorded) EventType() string      { return TypeContributionRecorded }
func (e ContributionRecorded) TargetKey() uuid.UUID { return e.TargetID }
