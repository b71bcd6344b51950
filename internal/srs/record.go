package srs

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultEase is the ease factor of a card that has never been reviewed.
	DefaultEase = 2.5
	// MinEase bounds the ease factor from below.
	MinEase = 1.3
	// MaxInterval caps the interval, in days, so next review times stay
	// representable.
	MaxInterval = 36500

	day = 24 * time.Hour
)

// ReviewRecord is the memory state of a card that has been reviewed at
// least once.
type ReviewRecord struct {
	EaseFactor  float64   `json:"ease_factor" validate:"gte=1.3"`
	Interval    int       `json:"interval" validate:"gte=0"` // days
	Repetitions int       `json:"repetitions" validate:"gte=0"`
	ReviewCount int       `json:"review_count" validate:"gte=0"`
	Lapses      int       `json:"lapses" validate:"gte=0"`
	NextReview  time.Time `json:"next_review"`
}

// Validate reports whether a loaded record is usable. Persisters treat a
// failure as a corrupt store.
func (r ReviewRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return nil
}

// NewRecord returns the state a card starts from before its first review.
func NewRecord() ReviewRecord {
	return ReviewRecord{EaseFactor: DefaultEase}
}

// Due reports whether the record is due at now.
func (r ReviewRecord) Due(now time.Time) bool {
	return !r.NextReview.After(now)
}

// ReviewStore maps card ids to their review records.
type ReviewStore map[string]ReviewRecord

// Clone returns a copy of the store that shares no state with s.
func (s ReviewStore) Clone() ReviewStore {
	out := make(ReviewStore, len(s))
	for id, rec := range s {
		out[id] = rec
	}
	return out
}

// review applies one rating to rec and returns the new state.
// The interval grows from the ease factor held before this review.
func review(rec ReviewRecord, r Rating, now time.Time) ReviewRecord {
	if r.Recalled() {
		rec.Interval = nextInterval(rec)
		rec.Repetitions++
	} else {
		rec.Interval = 1
		rec.Repetitions = 0
		rec.Lapses++
	}

	d := float64(5 - r.Quality())
	rec.EaseFactor = math.Max(rec.EaseFactor+(0.1-d*(0.08+d*0.02)), MinEase)

	rec.ReviewCount++
	rec.NextReview = now.Add(time.Duration(rec.Interval) * day)
	return rec
}

// nextInterval is the interval a successful review would produce.
func nextInterval(rec ReviewRecord) int {
	switch rec.Repetitions {
	case 0:
		return 1
	case 1:
		return 6
	}
	next := math.Round(float64(rec.Interval) * rec.EaseFactor)
	if next >= MaxInterval {
		return MaxInterval
	}
	return max(int(next), 1)
}

// Equal reports whether r and o hold the same state. NextReview is
// compared as an instant, ignoring location.
func (r ReviewRecord) Equal(o ReviewRecord) bool {
	return r.EaseFactor == o.EaseFactor &&
		r.Interval == o.Interval &&
		r.Repetitions == o.Repetitions &&
		r.ReviewCount == o.ReviewCount &&
		r.Lapses == o.Lapses &&
		r.NextReview.Equal(o.NextReview)
}
