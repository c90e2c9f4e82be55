package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestComputeFreeSlots_FullDay(t *testing.T) {
	f := newFixture(t)
	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	expectSlots(t, got, []time.Time{monday(8, 0), monday(8, 15), monday(8, 30), monday(8, 45)})
}

func TestComputeFreeSlots_BlockAndReservation(t *testing.T) {
	f := newFixture(t)
	f.block(t, f.cardiologist.ID, monday(8, 10), monday(8, 20))
	f.hold(t, f.cardiologist.ID, f.privatePatient.ID, monday(8, 30))

	// The 08:00 slot ends at 08:15, inside the block, so it is excluded too.
	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	expectSlots(t, got, []time.Time{monday(8, 45)})
}

func TestComputeFreeSlots_BlockClearOfFirstSlot(t *testing.T) {
	f := newFixture(t)
	f.block(t, f.cardiologist.ID, monday(8, 16), monday(8, 20))
	f.hold(t, f.cardiologist.ID, f.privatePatient.ID, monday(8, 30))

	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	expectSlots(t, got, []time.Time{monday(8, 0), monday(8, 45)})
}

func TestComputeFreeSlots_BlockTouchingBoundaries(t *testing.T) {
	f := newFixture(t)
	f.block(t, f.cardiologist.ID, monday(7, 0), monday(8, 0))
	f.block(t, f.cardiologist.ID, monday(9, 0), monday(9, 30))

	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	expectSlots(t, got, []time.Time{monday(8, 15), monday(8, 30)})
}

func TestComputeFreeSlots_OverlappingBlocks(t *testing.T) {
	f := newFixture(t)
	f.block(t, f.cardiologist.ID, monday(8, 20), monday(8, 25))
	f.block(t, f.cardiologist.ID, monday(8, 22), monday(8, 40))

	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	expectSlots(t, got, []time.Time{monday(8, 0), monday(8, 45)})
}

func TestComputeFreeSlots_OtherPractitionerUnaffected(t *testing.T) {
	f := newFixture(t)
	f.block(t, f.dermatologist.ID, monday(8, 0), monday(9, 0))
	f.hold(t, f.cardiologist2.ID, f.privatePatient.ID, monday(8, 0))

	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	if len(got) != 4 {
		t.Errorf("expected 4 slots, got %v", got)
	}
}

func TestComputeFreeSlots_CancelledReservationFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.hold(t, f.cardiologist.ID, f.privatePatient.ID, monday(8, 15))

	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	expectSlots(t, got, []time.Time{monday(8, 0), monday(8, 30), monday(8, 45)})

	if _, err := f.svc.Cancel(ctx, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got = f.freeSlots(t, f.cardiologist.ID, testMonday)
	expectSlots(t, got, []time.Time{monday(8, 0), monday(8, 15), monday(8, 30), monday(8, 45)})
}

func TestComputeFreeSlots_PastDate(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testMonday.Add(24 * time.Hour))

	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
}

func TestComputeFreeSlots_TodayOnlyFutureSlots(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(monday(8, 15))

	// 08:15 has started, so it is no longer offered.
	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	expectSlots(t, got, []time.Time{monday(8, 30), monday(8, 45)})
}

func TestComputeFreeSlots_IgnoresTimeOfDayInDate(t *testing.T) {
	f := newFixture(t)
	got := f.freeSlots(t, f.cardiologist.ID, monday(23, 59))
	if len(got) != 4 {
		t.Errorf("expected 4 slots, got %v", got)
	}
}

func TestComputeFreeSlots_NoConfigForWeekday(t *testing.T) {
	f := newFixture(t)
	tuesday := testMonday.AddDate(0, 0, 1)
	if got := f.freeSlots(t, f.cardiologist.ID, tuesday); len(got) != 0 {
		t.Errorf("expected no slots on a day off, got %v", got)
	}
}

func TestComputeFreeSlots_InactiveConfig(t *testing.T) {
	f := newFixture(t)
	cfg, _ := f.store.GetConfig(context.Background(), f.cardiologist.ID, time.Monday)
	cfg.Active = false
	if err := f.store.UpsertConfig(context.Background(), cfg); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := f.freeSlots(t, f.cardiologist.ID, testMonday); len(got) != 0 {
		t.Errorf("expected no slots for inactive config, got %v", got)
	}
}

func TestComputeFreeSlots_NonPositiveSlotMinutes(t *testing.T) {
	for _, slot := range []int{0, -10} {
		f := newFixture(t)
		f.workMonday(t, f.cardiologist.ID, 8*60, 9*60, slot)
		got := f.freeSlots(t, f.cardiologist.ID, testMonday)
		expectSlots(t, got, []time.Time{monday(8, 0), monday(8, 30)})
	}
}

func TestComputeFreeSlots_CorruptConfig(t *testing.T) {
	f := newFixture(t)
	f.workMonday(t, f.cardiologist.ID, 10*60, 9*60, 15)

	_, err := f.engine.ComputeFreeSlots(context.Background(), f.cardiologist.ID, testMonday)
	expectErr(t, err, ErrConfiguration)
}

func TestComputeFreeSlots_UnknownPractitioner(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ComputeFreeSlots(context.Background(), uuid.New(), testMonday)
	expectErr(t, err, ErrNotFound)
}

func TestComputeFreeSlots_InactivePractitioner(t *testing.T) {
	f := newFixture(t)
	f.practitioners.profiles[f.cardiologist.ID].Active = false
	_, err := f.engine.ComputeFreeSlots(context.Background(), f.cardiologist.ID, testMonday)
	expectErr(t, err, ErrNotFound)
}

func TestComputeFreeSlots_DirectoryFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("directory down")
	f.practitioners.err = boom
	_, err := f.engine.ComputeFreeSlots(context.Background(), f.cardiologist.ID, testMonday)
	if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped directory error, got %v", err)
	}
}

func TestComputeFreeSlots_SlotsAreFutureAndBeforeEnd(t *testing.T) {
	f := newFixture(t)
	f.workMonday(t, f.cardiologist.ID, 7*60+10, 18*60+5, 25)
	f.clock.Set(monday(12, 7))
	end := monday(18, 5)

	got := f.freeSlots(t, f.cardiologist.ID, testMonday)
	if len(got) == 0 {
		t.Fatal("expected some slots")
	}
	for i, s := range got {
		if !s.After(f.clock.Now()) {
			t.Errorf("slot %s is not after now", s)
		}
		if !s.Before(end) {
			t.Errorf("slot %s is not before end", s)
		}
		if i > 0 && !s.After(got[i-1]) {
			t.Errorf("slots not strictly ascending at %d", i)
		}
	}
}

func TestComputeFreeSlots_ClinicTimeZone(t *testing.T) {
	f := newFixture(t)
	loc := time.FixedZone("BRT", -3*3600)
	engine := NewEngine(f.store.Stores(), f.practitioners, f.clock, EngineConfig{Location: loc})

	got, err := engine.ComputeFreeSlots(context.Background(), f.cardiologist.ID, time.Date(2030, time.January, 7, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 slots, got %v", got)
	}
	if got[0].Hour() != 8 || got[0].Location() != loc {
		t.Errorf("expected 08:00 clinic time, got %s", got[0])
	}
	if got[0].UTC().Hour() != 11 {
		t.Errorf("expected 11:00 UTC, got %s", got[0].UTC())
	}
}

func TestComputeFreeSlots_DoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.block(t, f.cardiologist.ID, monday(8, 10), monday(8, 20))
	f.hold(t, f.cardiologist.ID, f.privatePatient.ID, monday(8, 30))
	before := len(f.store.reservations) + len(f.store.blocks)

	for i := 0; i < 3; i++ {
		f.freeSlots(t, f.cardiologist.ID, testMonday)
	}
	if after := len(f.store.reservations) + len(f.store.blocks); after != before {
		t.Errorf("store changed from %d to %d records", before, after)
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(NewMemoryStore().Stores(), &mockPractitioners{}, nil, EngineConfig{})
	if e.Location() != time.UTC {
		t.Errorf("expected UTC, got %s", e.Location())
	}
	if e.defaultSlot != DefaultSlotMinutes {
		t.Errorf("expected default slot %d, got %d", DefaultSlotMinutes, e.defaultSlot)
	}
}
