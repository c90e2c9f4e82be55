package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type configKey struct {
	practitionerID uuid.UUID
	weekday        time.Weekday
}

// MemoryStore is an in-memory ScheduleRepository, BlockRepository and
// ReservationLedger. A single mutex makes Hold atomic.
type MemoryStore struct {
	mu           sync.RWMutex
	configs      map[configKey]*ScheduleConfig
	blocks       map[uuid.UUID]*Block
	reservations map[uuid.UUID]*Reservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs:      make(map[configKey]*ScheduleConfig),
		blocks:       make(map[uuid.UUID]*Block),
		reservations: make(map[uuid.UUID]*Reservation),
	}
}

// Stores returns m in every store role.
func (m *MemoryStore) Stores() Stores {
	return Stores{Schedules: m, Blocks: m, Ledger: m}
}

// -- Schedule configs --

func (m *MemoryStore) GetConfig(_ context.Context, practitionerID uuid.UUID, weekday time.Weekday) (*ScheduleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[configKey{practitionerID, weekday}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListConfigs(_ context.Context, practitionerID uuid.UUID) ([]*ScheduleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ScheduleConfig
	for k, c := range m.configs {
		if k.practitionerID == practitionerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (m *MemoryStore) UpsertConfig(_ context.Context, cfg *ScheduleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	cp := *cfg
	m.configs[configKey{cfg.PractitionerID, cfg.Weekday}] = &cp
	return nil
}

// -- Blocks --

func (m *MemoryStore) CreateBlock(_ context.Context, b *Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	cp := *b
	m.blocks[b.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteBlock(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[id]; !ok {
		return fmt.Errorf("%w: block %s", ErrNotFound, id)
	}
	delete(m.blocks, id)
	return nil
}

func (m *MemoryStore) ListBlocks(_ context.Context, practitionerID uuid.UUID, window TimeRange) ([]*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Block
	for _, b := range m.blocks {
		if b.PractitionerID == practitionerID && b.Range().Overlaps(window) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// -- Reservations --

func (m *MemoryStore) Hold(_ context.Context, r *Reservation, opts HoldOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.reservations {
		if o.Status != StatusCancelled && o.PractitionerID == r.PractitionerID && o.Start.Equal(r.Start) {
			return ErrSlotTaken
		}
	}
	for _, o := range m.reservations {
		if o.Status != StatusCancelled && o.PatientID == r.PatientID && o.Start.Equal(r.Start) {
			return ErrPatientDoubleBooked
		}
	}
	if opts.GuardSpecialty && r.Specialty != "" {
		for _, o := range m.reservations {
			if o.PatientID == r.PatientID && o.Status.Open() && o.Specialty == r.Specialty {
				return ErrDuplicateSpecialtyBooking
			}
		}
	}

	cp := *r
	m.reservations[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = at
	return true, nil
}

func (m *MemoryStore) ReservedStarts(_ context.Context, practitionerID uuid.UUID, window TimeRange) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []time.Time
	for _, r := range m.reservations {
		if r.PractitionerID == practitionerID && r.Status != StatusCancelled && window.Contains(r.Start) {
			out = append(out, r.Start)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *MemoryStore) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Reservation, int, error) {
	return m.list(func(r *Reservation) bool { return r.PatientID == patientID }, limit, offset)
}

func (m *MemoryStore) ListByPractitioner(_ context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Reservation, int, error) {
	return m.list(func(r *Reservation) bool { return r.PractitionerID == practitionerID }, limit, offset)
}

// list returns matching reservations, latest start first.
func (m *MemoryStore) list(match func(*Reservation) bool, limit, offset int) ([]*Reservation, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*Reservation
	for _, r := range m.reservations {
		if match(r) {
			cp := *r
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start.After(all[j].Start) })

	total := len(all)
	if offset >= total {
		return []*Reservation{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (m *MemoryStore) DeleteExpiredHolds(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.reservations {
		if r.Status == StatusHold && r.CreatedAt.Before(cutoff) {
			delete(m.reservations, id)
			n++
		}
	}
	return n, nil
}
