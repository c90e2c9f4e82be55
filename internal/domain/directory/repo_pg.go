// Package directory reads practitioner and patient records on behalf of the
// scheduler. Profile management lives outside this service.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
)

// =========== Practitioners ===========

type practitionerRepoPG struct{ pool *pgxpool.Pool }

func NewPractitionerRepoPG(pool *pgxpool.Pool) scheduling.PractitionerDirectory {
	return &practitionerRepoPG{pool: pool}
}

func (r *practitionerRepoPG) GetPractitioner(ctx context.Context, id uuid.UUID) (*scheduling.PractitionerProfile, error) {
	var p scheduling.PractitionerProfile
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, specialty, private_rate, active FROM practitioner WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Specialty, &p.PrivateRate, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scheduling.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get practitioner: %w", err)
	}
	return &p, nil
}

// =========== Patients ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) scheduling.PatientDirectory {
	return &patientRepoPG{pool: pool}
}

// patientRow is a patient joined with its optional insurance plan.
type patientRow struct {
	ID         uuid.UUID
	Name       string
	PrivatePay bool
	PlanID     *uuid.UUID
	PlanName   *string
	PlanRate   decimal.NullDecimal
}

func (row patientRow) profile() *scheduling.PatientProfile {
	p := &scheduling.PatientProfile{ID: row.ID, Name: row.Name, PrivatePay: row.PrivatePay}
	if row.PlanID == nil {
		return p
	}
	plan := &scheduling.InsurancePlan{ID: *row.PlanID}
	if row.PlanName != nil {
		plan.Name = *row.PlanName
	}
	if row.PlanRate.Valid {
		plan.ReimbursementRate = row.PlanRate.Decimal
	}
	p.Plan = plan
	return p
}

func (r *patientRepoPG) GetPatient(ctx context.Context, id uuid.UUID) (*scheduling.PatientProfile, error) {
	var row patientRow
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.private_pay, ip.id, ip.name, ip.reimbursement_rate
		FROM patient p
		LEFT JOIN insurance_plan ip ON ip.id = p.insurance_plan_id
		WHERE p.id = $1`, id,
	).Scan(&row.ID, &row.Name, &row.PrivatePay, &row.PlanID, &row.PlanName, &row.PlanRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scheduling.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return row.profile(), nil
}
