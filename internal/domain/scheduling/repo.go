package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScheduleRepository stores weekly working patterns. Configs are upserted per
// (practitioner, weekday) and never deleted.
type ScheduleRepository interface {
	// GetConfig returns ErrNotFound when the weekday has no config.
	GetConfig(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) (*ScheduleConfig, error)
	ListConfigs(ctx context.Context, practitionerID uuid.UUID) ([]*ScheduleConfig, error)
	UpsertConfig(ctx context.Context, cfg *ScheduleConfig) error
}

type BlockRepository interface {
	CreateBlock(ctx context.Context, b *Block) error
	DeleteBlock(ctx context.Context, id uuid.UUID) error
	// ListBlocks returns the practitioner's blocks sharing an instant with window.
	ListBlocks(ctx context.Context, practitionerID uuid.UUID, window TimeRange) ([]*Block, error)
}

// HoldOptions tunes the checks a ledger applies when inserting a hold.
type HoldOptions struct {
	GuardSpecialty bool
}

// ReservationLedger owns every reservation. Hold runs its conflict checks and
// the insert as one atomic unit.
type ReservationLedger interface {
	// Hold inserts r, failing with ErrSlotTaken, ErrPatientDoubleBooked or
	// ErrDuplicateSpecialtyBooking when a non-cancelled reservation conflicts.
	Hold(ctx context.Context, r *Reservation, opts HoldOptions) error
	Get(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// TransitionStatus moves id from one status to another only if it is still
	// in from. It reports whether the row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (bool, error)
	// ReservedStarts lists start instants of the practitioner's non-cancelled
	// reservations within window.
	ReservedStarts(ctx context.Context, practitionerID uuid.UUID, window TimeRange) ([]time.Time, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reservation, int, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Reservation, int, error)
	// DeleteExpiredHolds hard-deletes HOLD reservations created before cutoff.
	DeleteExpiredHolds(ctx context.Context, cutoff time.Time) (int64, error)
}

// PractitionerProfile is the slice of a practitioner record the scheduler needs.
type PractitionerProfile struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Specialty   string          `json:"specialty"`
	PrivateRate decimal.Decimal `json:"private_rate"`
	Active      bool            `json:"active"`
}

type InsurancePlan struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	ReimbursementRate decimal.Decimal `json:"reimbursement_rate"`
}

// PatientProfile is the slice of a patient record the scheduler needs. Plan is
// nil for patients without insurance.
type PatientProfile struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	PrivatePay bool           `json:"private_pay"`
	Plan       *InsurancePlan `json:"plan,omitempty"`
}

// PractitionerDirectory returns ErrNotFound for unknown practitioners.
type PractitionerDirectory interface {
	GetPractitioner(ctx context.Context, id uuid.UUID) (*PractitionerProfile, error)
}

// PatientDirectory returns ErrNotFound for unknown patients.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*PatientProfile, error)
}
