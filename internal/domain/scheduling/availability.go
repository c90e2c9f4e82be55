package scheduling

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/platform/clock"
)

// DefaultSlotMinutes replaces a stored slot length that is not positive.
const DefaultSlotMinutes = 30

// Stores groups the three read models the scheduler works against.
type Stores struct {
	Schedules ScheduleRepository
	Blocks    BlockRepository
	Ledger    ReservationLedger
}

type EngineConfig struct {
	// Location interprets calendar dates and the weekly grid. Defaults to UTC.
	Location           *time.Location
	DefaultSlotMinutes int
}

// Engine computes bookable slot instants. It never writes to any store.
type Engine struct {
	stores        Stores
	practitioners PractitionerDirectory
	clock         clock.Clock
	loc           *time.Location
	defaultSlot   int
}

func NewEngine(stores Stores, practitioners PractitionerDirectory, clk clock.Clock, cfg EngineConfig) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultSlotMinutes <= 0 {
		cfg.DefaultSlotMinutes = DefaultSlotMinutes
	}
	return &Engine{
		stores:        stores,
		practitioners: practitioners,
		clock:         clk,
		loc:           cfg.Location,
		defaultSlot:   cfg.DefaultSlotMinutes,
	}
}

// Location is the clinic time zone.
func (e *Engine) Location() *time.Location { return e.loc }

// ComputeFreeSlots lists, in ascending order, the slot starts on date that are
// inside the practitioner's working hours, clear of blocks and non-cancelled
// reservations, and strictly in the future. Only the calendar day of date is
// used. Past dates and days off yield an empty list.
func (e *Engine) ComputeFreeSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]time.Time, error) {
	if _, err := e.activePractitioner(ctx, practitionerID); err != nil {
		return nil, err
	}

	now := e.clock.Now().In(e.loc)
	y, m, d := date.Date()
	if dayBefore(time.Date(y, m, d, 0, 0, 0, 0, e.loc), now) {
		return []time.Time{}, nil
	}

	day, err := e.loadDay(ctx, practitionerID, y, m, d)
	if err != nil {
		return nil, err
	}
	if day == nil {
		return []time.Time{}, nil
	}

	reserved, err := e.stores.Ledger.ReservedStarts(ctx, practitionerID, day.window)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}
	taken := make(map[int64]struct{}, len(reserved))
	for _, r := range reserved {
		taken[r.UnixNano()] = struct{}{}
	}

	free := []time.Time{}
	for s := range day.starts {
		if !s.After(now) {
			continue
		}
		if _, ok := taken[s.UnixNano()]; ok {
			continue
		}
		if day.blocked(s) {
			continue
		}
		free = append(free, s)
	}
	return free, nil
}

// checkSlot verifies that start is a slot the engine would offer for its day,
// ignoring reservations and the current time.
func (e *Engine) checkSlot(ctx context.Context, practitionerID uuid.UUID, start time.Time) error {
	local := start.In(e.loc)
	y, m, d := local.Date()
	day, err := e.loadDay(ctx, practitionerID, y, m, d)
	if err != nil {
		return err
	}
	if day == nil {
		return fmt.Errorf("%w: practitioner does not work on %s", ErrInvalidTime, local.Weekday())
	}

	onGrid := false
	for s := range day.starts {
		if s.Equal(start) {
			onGrid = true
			break
		}
	}
	if !onGrid {
		return fmt.Errorf("%w: %s is not a slot start", ErrInvalidTime, local.Format(time.RFC3339))
	}
	if day.blocked(start) {
		return fmt.Errorf("%w: %s falls in blocked time", ErrInvalidTime, local.Format(time.RFC3339))
	}
	return nil
}

func (e *Engine) activePractitioner(ctx context.Context, id uuid.UUID) (*PractitionerProfile, error) {
	p, err := e.practitioners.GetPractitioner(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: practitioner %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: practitioner %s is inactive", ErrNotFound, id)
	}
	return p, nil
}

// workDay is the candidate grid and blocked time for one practitioner-day.
type workDay struct {
	step   time.Duration
	starts iter.Seq[time.Time]
	window TimeRange
	blocks []TimeRange
}

// loadDay returns nil when the practitioner has no active config for the
// weekday.
func (e *Engine) loadDay(ctx context.Context, practitionerID uuid.UUID, y int, m time.Month, d int) (*workDay, error) {
	weekday := time.Date(y, m, d, 0, 0, 0, 0, e.loc).Weekday()
	cfg, err := e.stores.Schedules.GetConfig(ctx, practitionerID, weekday)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule config: %w", err)
	}
	if !cfg.Active {
		return nil, nil
	}
	if cfg.StartTime >= cfg.EndTime {
		return nil, fmt.Errorf("%w: %s schedule starts at %s but ends at %s",
			ErrConfiguration, weekday, cfg.StartTime, cfg.EndTime)
	}

	step := cfg.SlotMinutes
	if step <= 0 {
		step = e.defaultSlot
	}

	window := TimeRange{
		Start: cfg.StartTime.On(y, m, d, e.loc),
		End:   (cfg.EndTime + TimeOfDay(step)).On(y, m, d, e.loc),
	}
	blocks, err := e.stores.Blocks.ListBlocks(ctx, practitionerID, window)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	ranges := make([]TimeRange, 0, len(blocks))
	for _, b := range blocks {
		ranges = append(ranges, b.Range())
	}

	return &workDay{
		step:   time.Duration(step) * time.Minute,
		starts: SlotStarts(y, m, d, e.loc, cfg.StartTime, cfg.EndTime, step),
		window: window,
		blocks: ranges,
	}, nil
}

// blocked reports whether the slot starting at s touches any block.
func (w *workDay) blocked(s time.Time) bool {
	return AnyOverlaps(TimeRange{Start: s, End: s.Add(w.step)}, w.blocks)
}
