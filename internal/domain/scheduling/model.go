package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusHold      Status = "HOLD"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusHold, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Open reports whether the reservation still occupies the patient's agenda
// for the duplicate-specialty guard.
func (s Status) Open() bool {
	switch s {
	case StatusHold, StatusConfirmed:
		return true
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusHold:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

// PaymentBasis records how a reservation is billed.
type PaymentBasis string

const (
	PaymentPrivate   PaymentBasis = "PRIVATE"
	PaymentInsurance PaymentBasis = "INSURANCE"
)

func (p PaymentBasis) Valid() bool {
	switch p {
	case PaymentPrivate, PaymentInsurance:
		return true
	}
	return false
}

// TimeOfDay is a wall-clock time in minutes since midnight, encoded as "HH:MM".
type TimeOfDay int

const minutesPerDay = 24 * 60

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On returns the instant at which the wall clock in loc reads t on the given
// calendar day.
func (t TimeOfDay) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, int(t), 0, 0, loc)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ScheduleConfig is a practitioner's working pattern for one weekday.
type ScheduleConfig struct {
	PractitionerID uuid.UUID    `db:"practitioner_id" json:"practitioner_id"`
	Weekday        time.Weekday `db:"weekday" json:"weekday"`
	StartTime      TimeOfDay    `db:"start_minute" json:"start_time"`
	EndTime        TimeOfDay    `db:"end_minute" json:"end_time"`
	SlotMinutes    int          `db:"slot_minutes" json:"slot_minutes"`
	Active         bool         `db:"active" json:"active"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// Validate checks the invariants enforced on write.
func (c *ScheduleConfig) Validate() error {
	if c.PractitionerID == uuid.Nil {
		return fmt.Errorf("%w: practitioner_id is required", ErrInvalidInput)
	}
	if c.Weekday < time.Sunday || c.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday must be 0 (Sunday) to 6 (Saturday)", ErrInvalidInput)
	}
	if !c.StartTime.Valid() || !c.EndTime.Valid() {
		return fmt.Errorf("%w: start_time and end_time must be within the day", ErrInvalidInput)
	}
	if c.StartTime >= c.EndTime {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidInput)
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot_minutes must be positive", ErrInvalidInput)
	}
	return nil
}

// Block is a practitioner's time off.
type Block struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PractitionerID uuid.UUID `db:"practitioner_id" json:"practitioner_id"`
	Start          time.Time `db:"start_at" json:"start"`
	End            time.Time `db:"end_at" json:"end"`
	Reason         string    `db:"reason" json:"reason,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func (b *Block) Range() TimeRange {
	return TimeRange{Start: b.Start, End: b.End}
}

func (b *Block) Validate() error {
	if b.PractitionerID == uuid.Nil {
		return fmt.Errorf("%w: practitioner_id is required", ErrInvalidInput)
	}
	if b.Start.IsZero() || b.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidInput)
	}
	if !b.Start.Before(b.End) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidInput)
	}
	return nil
}

// Reservation is a booked or pending slot in the ledger.
type Reservation struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	PractitionerID  uuid.UUID       `db:"practitioner_id" json:"practitioner_id"`
	PatientID       uuid.UUID       `db:"patient_id" json:"patient_id"`
	Start           time.Time       `db:"start_at" json:"start"`
	Status          Status          `db:"status" json:"status"`
	PaymentBasis    PaymentBasis    `db:"payment_basis" json:"payment_basis"`
	Price           decimal.Decimal `db:"price" json:"price"`
	Specialty       string          `db:"specialty" json:"specialty"`
	InsurancePlanID *uuid.UUID      `db:"insurance_plan_id" json:"insurance_plan_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// HoldRequest asks for a practitioner's slot on behalf of a patient.
type HoldRequest struct {
	PractitionerID uuid.UUID `json:"practitioner_id" validate:"required"`
	PatientID      uuid.UUID `json:"patient_id" validate:"required"`
	Start          time.Time `json:"start" validate:"required"`
}
