package scheduling

import (
	"iter"
	"time"
)

// TimeRange is a closed interval [Start, End].
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r TimeRange) Valid() bool {
	return r.Start.Before(r.End)
}

// Overlaps reports whether r and o share at least one instant. Both ends are
// inclusive, so ranges that only touch still overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return !o.Start.After(r.End) && !o.End.Before(r.Start)
}

// Contains reports whether t lies within r, ends included.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// AnyOverlaps reports whether r overlaps any of the ranges.
func AnyOverlaps(r TimeRange, ranges []TimeRange) bool {
	for _, o := range ranges {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}

// SlotStarts yields start, start+step, ... while strictly before end, on the
// wall clock of the given day in loc. Instants are strictly increasing. The
// sequence is finite and may be ranged over more than once. A non-positive
// step yields nothing.
func SlotStarts(year int, month time.Month, day int, loc *time.Location, start, end TimeOfDay, step int) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if step <= 0 {
			return
		}
		var prev time.Time
		for m := start; m < end; m += TimeOfDay(step) {
			t := m.On(year, month, day, loc)
			// Wall times skipped by a DST jump normalise forward and can
			// collide with a later slot.
			if !prev.IsZero() && !t.After(prev) {
				continue
			}
			prev = t
			if !yield(t) {
				return
			}
		}
	}
}

// sameDay reports whether a and b fall on the same calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// dayBefore reports whether calendar day a is strictly before calendar day b.
func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
