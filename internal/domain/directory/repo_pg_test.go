package directory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPatientRow_PrivatePay(t *testing.T) {
	row := patientRow{ID: uuid.New(), Name: "Ana", PrivatePay: true}
	p := row.profile()
	if !p.PrivatePay || p.Plan != nil {
		t.Errorf("expected private patient without plan, got %+v", p)
	}
	if p.ID != row.ID || p.Name != "Ana" {
		t.Errorf("identity not copied: %+v", p)
	}
}

func TestPatientRow_WithPlan(t *testing.T) {
	planID := uuid.New()
	name := "Unimed"
	row := patientRow{
		ID:       uuid.New(),
		PlanID:   &planID,
		PlanName: &name,
		PlanRate: decimal.NewNullDecimal(decimal.RequireFromString("87.25")),
	}
	p := row.profile()
	if p.Plan == nil {
		t.Fatal("expected plan")
	}
	if p.Plan.ID != planID || p.Plan.Name != "Unimed" {
		t.Errorf("unexpected plan %+v", p.Plan)
	}
	if !p.Plan.ReimbursementRate.Equal(decimal.RequireFromString("87.25")) {
		t.Errorf("expected rate 87.25, got %s", p.Plan.ReimbursementRate)
	}
}

func TestPatientRow_InsuredWithoutPlan(t *testing.T) {
	p := patientRow{ID: uuid.New(), PrivatePay: false}.profile()
	if p.PrivatePay || p.Plan != nil {
		t.Errorf("expected insured patient with nil plan, got %+v", p)
	}
}

func TestPatientRow_PlanWithoutRate(t *testing.T) {
	planID := uuid.New()
	p := patientRow{ID: uuid.New(), PlanID: &planID}.profile()
	if p.Plan == nil || !p.Plan.ReimbursementRate.IsZero() {
		t.Errorf("expected plan with zero rate, got %+v", p.Plan)
	}
}
