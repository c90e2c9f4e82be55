package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxTransitionAttempts bounds the compare-and-set retry loop. A reservation
// changes status at most twice, so a third miss means something is wrong.
const maxTransitionAttempts = 3

type ServiceConfig struct {
	// SpecialtyGuard rejects a hold while the patient has another open
	// reservation with a practitioner of the same specialty.
	SpecialtyGuard bool
}

// Service is the reservation state machine and the only writer to the
// ledger. It also fronts the schedule and block stores for practitioner
// administration.
type Service struct {
	engine   *Engine
	patients PatientDirectory
	cfg      ServiceConfig
	logger   zerolog.Logger
}

func NewService(engine *Engine, patients PatientDirectory, cfg ServiceConfig, logger zerolog.Logger) *Service {
	return &Service{
		engine:   engine,
		patients: patients,
		cfg:      cfg,
		logger:   logger.With().Str("component", "reservations").Logger(),
	}
}

func (s *Service) Engine() *Engine { return s.engine }

func (s *Service) ledger() ReservationLedger { return s.engine.stores.Ledger }

// Hold places a HOLD reservation on a practitioner's slot for a patient and
// stamps its payment basis and price.
func (s *Service) Hold(ctx context.Context, req HoldRequest) (*Reservation, error) {
	prac, err := s.engine.activePractitioner(ctx, req.PractitionerID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.GetPatient(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: patient %s", ErrNotFound, req.PatientID)
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	now := s.engine.clock.Now()
	if !req.Start.After(now) {
		return nil, fmt.Errorf("%w: %s is not in the future", ErrInvalidTime, req.Start.Format(time.RFC3339))
	}
	if err := s.engine.checkSlot(ctx, prac.ID, req.Start); err != nil {
		return nil, err
	}

	basis, price, planID, err := quote(prac, patient)
	if err != nil {
		return nil, err
	}

	r := &Reservation{
		ID:              uuid.New(),
		PractitionerID:  prac.ID,
		PatientID:       patient.ID,
		Start:           req.Start.In(s.engine.loc),
		Status:          StatusHold,
		PaymentBasis:    basis,
		Price:           price,
		Specialty:       prac.Specialty,
		InsurancePlanID: planID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.ledger().Hold(ctx, r, HoldOptions{GuardSpecialty: s.cfg.SpecialtyGuard}); err != nil {
		if isHoldConflict(err) {
			s.logger.Debug().Err(err).
				Str("practitioner_id", r.PractitionerID.String()).
				Str("patient_id", r.PatientID.String()).
				Time("start", r.Start).
				Msg("hold rejected")
		}
		return nil, err
	}
	return r, nil
}

// quote picks the payment basis and price for a patient seeing prac.
func quote(prac *PractitionerProfile, patient *PatientProfile) (PaymentBasis, decimal.Decimal, *uuid.UUID, error) {
	if patient.PrivatePay {
		if prac.PrivateRate.IsNegative() {
			return "", decimal.Zero, nil, fmt.Errorf("%w: practitioner %s has a negative private rate", ErrConfiguration, prac.ID)
		}
		return PaymentPrivate, prac.PrivateRate, nil, nil
	}
	if patient.Plan == nil {
		return "", decimal.Zero, nil, fmt.Errorf("%w: patient %s is insured but has no insurance plan", ErrConfiguration, patient.ID)
	}
	if !patient.Plan.ReimbursementRate.IsPositive() {
		return "", decimal.Zero, nil, fmt.Errorf("%w: insurance plan %s has no reimbursement rate", ErrConfiguration, patient.Plan.ID)
	}
	planID := patient.Plan.ID
	return PaymentInsurance, patient.Plan.ReimbursementRate, &planID, nil
}

func isHoldConflict(err error) bool {
	return errors.Is(err, ErrSlotTaken) ||
		errors.Is(err, ErrPatientDoubleBooked) ||
		errors.Is(err, ErrDuplicateSpecialtyBooking)
}

// Confirm moves a HOLD to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.transition(ctx, id, func(cur Status) (Status, error) {
		if cur != StatusHold {
			return cur, fmt.Errorf("%w: cannot confirm a %s reservation", ErrInvalidTransition, cur)
		}
		return StatusConfirmed, nil
	})
}

// Cancel moves a HOLD or CONFIRMED reservation to CANCELLED. Cancelling a
// cancelled reservation is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.transition(ctx, id, func(cur Status) (Status, error) {
		switch cur {
		case StatusCancelled:
			return cur, nil
		case StatusHold, StatusConfirmed:
			return StatusCancelled, nil
		case StatusCompleted:
			return cur, fmt.Errorf("%w: cannot cancel a completed reservation", ErrInvalidTransition)
		}
		return cur, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, cur)
	})
}

// Complete records that the visit took place.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.transition(ctx, id, func(cur Status) (Status, error) {
		if cur != StatusConfirmed {
			return cur, fmt.Errorf("%w: cannot complete a %s reservation", ErrInvalidTransition, cur)
		}
		return StatusCompleted, nil
	})
}

// transition re-reads the reservation and applies next until the
// compare-and-set lands. next returning the current status means no change.
func (s *Service) transition(ctx context.Context, id uuid.UUID, next func(Status) (Status, error)) (*Reservation, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		r, err := s.ledger().Get(ctx, id)
		if err != nil {
			return nil, err
		}
		to, err := next(r.Status)
		if err != nil {
			return nil, err
		}
		if to == r.Status {
			return r, nil
		}
		if !r.Status.CanTransition(to) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, r.Status, to)
		}

		now := s.engine.clock.Now()
		ok, err := s.ledger().TransitionStatus(ctx, id, r.Status, to, now)
		if err != nil {
			return nil, fmt.Errorf("update reservation status: %w", err)
		}
		if ok {
			s.logger.Info().
				Str("reservation_id", id.String()).
				Str("from", string(r.Status)).
				Str("to", string(to)).
				Msg("reservation status changed")
			r.Status = to
			r.UpdatedAt = now
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: reservation %s changed concurrently", ErrInvalidTransition, id)
}

func (s *Service) GetReservation(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.ledger().Get(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reservation, int, error) {
	return s.ledger().ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Reservation, int, error) {
	return s.ledger().ListByPractitioner(ctx, practitionerID, limit, offset)
}

// SweepResult reports one pass of hold expiry.
type SweepResult struct {
	Cutoff  time.Time
	Deleted int64
}

// ExpireHolds deletes every HOLD created more than grace ago.
func (s *Service) ExpireHolds(ctx context.Context, grace time.Duration) (SweepResult, error) {
	cutoff := s.engine.clock.Now().Add(-grace)
	n, err := s.ledger().DeleteExpiredHolds(ctx, cutoff)
	if err != nil {
		return SweepResult{Cutoff: cutoff}, fmt.Errorf("delete expired holds: %w", err)
	}
	return SweepResult{Cutoff: cutoff, Deleted: n}, nil
}

// -- Schedule administration --

func (s *Service) ListSchedule(ctx context.Context, practitionerID uuid.UUID) ([]*ScheduleConfig, error) {
	if _, err := s.practitioner(ctx, practitionerID); err != nil {
		return nil, err
	}
	return s.engine.stores.Schedules.ListConfigs(ctx, practitionerID)
}

func (s *Service) UpsertSchedule(ctx context.Context, cfg *ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := s.practitioner(ctx, cfg.PractitionerID); err != nil {
		return err
	}
	return s.engine.stores.Schedules.UpsertConfig(ctx, cfg)
}

func (s *Service) ListBlocks(ctx context.Context, practitionerID uuid.UUID, window TimeRange) ([]*Block, error) {
	if _, err := s.practitioner(ctx, practitionerID); err != nil {
		return nil, err
	}
	return s.engine.stores.Blocks.ListBlocks(ctx, practitionerID, window)
}

func (s *Service) CreateBlock(ctx context.Context, b *Block) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if _, err := s.practitioner(ctx, b.PractitionerID); err != nil {
		return err
	}
	return s.engine.stores.Blocks.CreateBlock(ctx, b)
}

func (s *Service) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	return s.engine.stores.Blocks.DeleteBlock(ctx, id)
}

// practitioner loads a practitioner regardless of active flag, so inactive
// practitioners can still manage their calendar.
func (s *Service) practitioner(ctx context.Context, id uuid.UUID) (*PractitionerProfile, error) {
	p, err := s.engine.practitioners.GetPractitioner(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: practitioner %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}
	return p, nil
}
