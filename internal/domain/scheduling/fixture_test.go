package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinicbook/clinicbook/internal/platform/clock"
)

// -- Mock Directories --

type mockPractitioners struct {
	profiles map[uuid.UUID]*PractitionerProfile
	err      error
}

func (m *mockPractitioners) GetPractitioner(_ context.Context, id uuid.UUID) (*PractitionerProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type mockPatients struct {
	profiles map[uuid.UUID]*PatientProfile
}

func (m *mockPatients) GetPatient(_ context.Context, id uuid.UUID) (*PatientProfile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// -- Fixture --

// The clinic calendar used throughout: "now" is Friday 2030-01-04 10:00 and
// the booked day is the following Monday.
var (
	testNow    = time.Date(2030, time.January, 4, 10, 0, 0, 0, time.UTC)
	testMonday = time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)
)

func monday(h, m int) time.Time {
	return time.Date(2030, time.January, 7, h, m, 0, 0, time.UTC)
}

type fixture struct {
	store         *MemoryStore
	clock         *clock.Manual
	practitioners *mockPractitioners
	patients      *mockPatients
	engine        *Engine
	svc           *Service

	cardiologist  *PractitionerProfile
	cardiologist2 *PractitionerProfile
	dermatologist *PractitionerProfile

	privatePatient  *PatientProfile
	insuredPatient  *PatientProfile
	planlessPatient *PatientProfile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, ServiceConfig{SpecialtyGuard: true}, nil)
}

// newFixtureWith builds a fixture; wrap, when set, may replace the ledger.
func newFixtureWith(t *testing.T, cfg ServiceConfig, wrap func(ReservationLedger) ReservationLedger) *fixture {
	t.Helper()
	f := &fixture{
		store:         NewMemoryStore(),
		clock:         clock.NewManual(testNow),
		practitioners: &mockPractitioners{profiles: map[uuid.UUID]*PractitionerProfile{}},
		patients:      &mockPatients{profiles: map[uuid.UUID]*PatientProfile{}},
	}

	f.cardiologist = f.addPractitioner("cardiology", "200.00")
	f.cardiologist2 = f.addPractitioner("cardiology", "180.00")
	f.dermatologist = f.addPractitioner("dermatology", "150.00")
	for _, p := range []*PractitionerProfile{f.cardiologist, f.cardiologist2, f.dermatologist} {
		f.workMonday(t, p.ID, 8*60, 9*60, 15)
	}

	f.privatePatient = f.addPatient(true, nil)
	f.insuredPatient = f.addPatient(false, &InsurancePlan{
		ID: uuid.New(), Name: "Unimed", ReimbursementRate: decimal.RequireFromString("95.50"),
	})
	f.planlessPatient = f.addPatient(false, nil)

	stores := f.store.Stores()
	if wrap != nil {
		stores.Ledger = wrap(stores.Ledger)
	}
	f.engine = NewEngine(stores, f.practitioners, f.clock, EngineConfig{Location: time.UTC})
	f.svc = NewService(f.engine, f.patients, cfg, zerolog.Nop())
	return f
}

func (f *fixture) addPractitioner(specialty, rate string) *PractitionerProfile {
	p := &PractitionerProfile{
		ID:          uuid.New(),
		Name:        "Dr. " + specialty,
		Specialty:   specialty,
		PrivateRate: decimal.RequireFromString(rate),
		Active:      true,
	}
	f.practitioners.profiles[p.ID] = p
	return p
}

func (f *fixture) addPatient(privatePay bool, plan *InsurancePlan) *PatientProfile {
	p := &PatientProfile{ID: uuid.New(), PrivatePay: privatePay, Plan: plan}
	f.patients.profiles[p.ID] = p
	return p
}

func (f *fixture) workMonday(t *testing.T, practitionerID uuid.UUID, start, end TimeOfDay, slot int) {
	t.Helper()
	err := f.store.UpsertConfig(context.Background(), &ScheduleConfig{
		PractitionerID: practitionerID,
		Weekday:        time.Monday,
		StartTime:      start,
		EndTime:        end,
		SlotMinutes:    slot,
		Active:         true,
	})
	if err != nil {
		t.Fatalf("upsert config: %v", err)
	}
}

func (f *fixture) block(t *testing.T, practitionerID uuid.UUID, start, end time.Time) *Block {
	t.Helper()
	b := &Block{PractitionerID: practitionerID, Start: start, End: end, Reason: "time off"}
	if err := f.store.CreateBlock(context.Background(), b); err != nil {
		t.Fatalf("create block: %v", err)
	}
	return b
}

func (f *fixture) hold(t *testing.T, practitionerID, patientID uuid.UUID, start time.Time) *Reservation {
	t.Helper()
	r, err := f.svc.Hold(context.Background(), HoldRequest{
		PractitionerID: practitionerID,
		PatientID:      patientID,
		Start:          start,
	})
	if err != nil {
		t.Fatalf("hold %s: %v", start.Format(time.Kitchen), err)
	}
	return r
}

func (f *fixture) freeSlots(t *testing.T, practitionerID uuid.UUID, date time.Time) []time.Time {
	t.Helper()
	slots, err := f.engine.ComputeFreeSlots(context.Background(), practitionerID, date)
	if err != nil {
		t.Fatalf("compute free slots: %v", err)
	}
	return slots
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func expectSlots(t *testing.T, got, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d slots %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("slot %d: expected %s, got %s", i, want[i].Format(time.RFC3339), got[i].Format(time.RFC3339))
		}
	}
}
