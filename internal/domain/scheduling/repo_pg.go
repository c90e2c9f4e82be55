package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbook/clinicbook/internal/platform/db"
)

// Unique indexes guarding the ledger. Violations are reported by name.
const (
	practitionerSlotIndex = "reservation_practitioner_slot_uq"
	patientSlotIndex      = "reservation_patient_slot_uq"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGStores returns Postgres-backed stores sharing pool.
func PGStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Schedules: NewScheduleRepoPG(pool),
		Blocks:    NewBlockRepoPG(pool),
		Ledger:    NewLedgerPG(pool),
	}
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

const configCols = `practitioner_id, weekday, start_minute, end_minute, slot_minutes, active, updated_at`

func scanConfig(row pgx.Row) (*ScheduleConfig, error) {
	var c ScheduleConfig
	err := row.Scan(&c.PractitionerID, &c.Weekday, &c.StartTime, &c.EndTime, &c.SlotMinutes, &c.Active, &c.UpdatedAt)
	return &c, err
}

func (r *scheduleRepoPG) GetConfig(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) (*ScheduleConfig, error) {
	c, err := scanConfig(r.pool.QueryRow(ctx,
		`SELECT `+configCols+` FROM schedule_config WHERE practitioner_id = $1 AND weekday = $2`,
		practitionerID, int(weekday)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule config: %w", err)
	}
	return c, nil
}

func (r *scheduleRepoPG) ListConfigs(ctx context.Context, practitionerID uuid.UUID) ([]*ScheduleConfig, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+configCols+` FROM schedule_config WHERE practitioner_id = $1 ORDER BY weekday`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list schedule configs: %w", err)
	}
	defer rows.Close()
	var items []*ScheduleConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *scheduleRepoPG) UpsertConfig(ctx context.Context, c *ScheduleConfig) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_config (practitioner_id, weekday, start_minute, end_minute, slot_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (practitioner_id, weekday) DO UPDATE SET
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			slot_minutes = EXCLUDED.slot_minutes,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING updated_at`,
		c.PractitionerID, int(c.Weekday), int(c.StartTime), int(c.EndTime), c.SlotMinutes, c.Active,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert schedule config: %w", err)
	}
	return nil
}

// =========== Block Repository ===========

type blockRepoPG struct{ pool *pgxpool.Pool }

func NewBlockRepoPG(pool *pgxpool.Pool) BlockRepository { return &blockRepoPG{pool: pool} }

const blockCols = `id, practitioner_id, start_at, end_at, reason, created_at`

func (r *blockRepoPG) CreateBlock(ctx context.Context, b *Block) error {
	b.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_block (id, practitioner_id, start_at, end_at, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		b.ID, b.PractitionerID, b.Start, b.End, b.Reason,
	).Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

func (r *blockRepoPG) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_block WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: block %s", ErrNotFound, id)
	}
	return nil
}

func (r *blockRepoPG) ListBlocks(ctx context.Context, practitionerID uuid.UUID, window TimeRange) ([]*Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockCols+` FROM schedule_block
		WHERE practitioner_id = $1 AND start_at <= $3 AND end_at >= $2
		ORDER BY start_at`,
		practitionerID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	var items []*Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.PractitionerID, &b.Start, &b.End, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &b)
	}
	return items, rows.Err()
}

// =========== Reservation Ledger ===========

type ledgerPG struct{ pool *pgxpool.Pool }

func NewLedgerPG(pool *pgxpool.Pool) ReservationLedger { return &ledgerPG{pool: pool} }

const reservationCols = `id, practitioner_id, patient_id, start_at, status, payment_basis, price,
	specialty, insurance_plan_id, created_at, updated_at`

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	err := row.Scan(&r.ID, &r.PractitionerID, &r.PatientID, &r.Start, &r.Status, &r.PaymentBasis, &r.Price,
		&r.Specialty, &r.InsurancePlanID, &r.CreatedAt, &r.UpdatedAt)
	return &r, err
}

// holdConflictSQL names the first rule a new hold would break, or is empty.
const holdConflictSQL = `
	SELECT CASE
		WHEN EXISTS (SELECT 1 FROM reservation
			WHERE practitioner_id = $1 AND start_at = $3 AND status <> 'CANCELLED') THEN 'practitioner'
		WHEN EXISTS (SELECT 1 FROM reservation
			WHERE patient_id = $2 AND start_at = $3 AND status <> 'CANCELLED') THEN 'patient'
		WHEN $4::boolean AND $5::text <> '' AND EXISTS (SELECT 1 FROM reservation
			WHERE patient_id = $2 AND specialty = $5 AND status IN ('HOLD', 'CONFIRMED')) THEN 'specialty'
		ELSE ''
	END`

// Hold serialises holds per patient with a transaction-scoped advisory lock,
// so the specialty check cannot race. Slot uniqueness across patients is left
// to the partial unique indexes.
func (l *ledgerPG) Hold(ctx context.Context, r *Reservation, opts HoldOptions) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin hold: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, r.PatientID.String()); err != nil {
		return fmt.Errorf("lock patient: %w", err)
	}

	var conflict string
	if err := tx.QueryRow(ctx, holdConflictSQL,
		r.PractitionerID, r.PatientID, r.Start, opts.GuardSpecialty, r.Specialty,
	).Scan(&conflict); err != nil {
		return fmt.Errorf("check hold conflicts: %w", err)
	}
	switch conflict {
	case "practitioner":
		return ErrSlotTaken
	case "patient":
		return ErrPatientDoubleBooked
	case "specialty":
		return ErrDuplicateSpecialtyBooking
	}

	if err := insertReservation(ctx, tx, r); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapUniqueViolation(fmt.Errorf("commit hold: %w", err))
	}
	return nil
}

func insertReservation(ctx context.Context, q queryable, r *Reservation) error {
	_, err := q.Exec(ctx, `
		INSERT INTO reservation (id, practitioner_id, patient_id, start_at, status, payment_basis, price,
			specialty, insurance_plan_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.PractitionerID, r.PatientID, r.Start, string(r.Status), string(r.PaymentBasis), r.Price,
		r.Specialty, r.InsurancePlanID, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(fmt.Errorf("insert reservation: %w", err))
	}
	return nil
}

// mapUniqueViolation turns a lost race on a slot index into the matching
// domain error.
func mapUniqueViolation(err error) error {
	name, ok := db.UniqueViolation(err)
	if !ok {
		return err
	}
	switch name {
	case practitionerSlotIndex:
		return ErrSlotTaken
	case patientSlotIndex:
		return ErrPatientDoubleBooked
	}
	return err
}

func (l *ledgerPG) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	r, err := scanReservation(l.pool.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservation WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

func (l *ledgerPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`UPDATE reservation SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (l *ledgerPG) ReservedStarts(ctx context.Context, practitionerID uuid.UUID, window TimeRange) ([]time.Time, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT start_at FROM reservation
		WHERE practitioner_id = $1 AND status <> 'CANCELLED' AND start_at BETWEEN $2 AND $3
		ORDER BY start_at`,
		practitionerID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("list reserved starts: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

func (l *ledgerPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reservation, int, error) {
	return l.list(ctx, l.pool, "patient_id", patientID, limit, offset)
}

func (l *ledgerPG) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Reservation, int, error) {
	return l.list(ctx, l.pool, "practitioner_id", practitionerID, limit, offset)
}

// list pages through reservations filtered on column, which must be a
// trusted column name.
func (l *ledgerPG) list(ctx context.Context, q queryable, column string, id uuid.UUID, limit, offset int) ([]*Reservation, int, error) {
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM reservation WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	rows, err := q.Query(ctx,
		`SELECT `+reservationCols+` FROM reservation WHERE `+column+` = $1 ORDER BY start_at DESC LIMIT $2 OFFSET $3`,
		id, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	items := []*Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

func (l *ledgerPG) DeleteExpiredHolds(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := l.pool.Exec(ctx, `DELETE FROM reservation WHERE status = 'HOLD' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
