package srs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/knolsrs/internal/domain"
)

// Persister loads and saves the whole review store.
// Load after a Save must return an equivalent store.
type Persister interface {
	Load(ctx context.Context) (ReviewStore, error)
	Save(ctx context.Context, store ReviewStore) error
}

// RecordSaver is implemented by persisters that can write a single record.
// The scheduler prefers it over Save after each review.
type RecordSaver interface {
	SaveRecord(ctx context.Context, cardID string, rec ReviewRecord) error
}

// ReviewLogger is implemented by persisters that keep a review history.
type ReviewLogger interface {
	AppendReview(ctx context.Context, entry domain.ReviewLog) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source. The default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithPersister sets where the review store is loaded from and saved to.
func WithPersister(p Persister) Option {
	return func(s *Scheduler) { s.persister = p }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler owns a ReviewStore and applies the SM-2 update to it.
// It is safe for concurrent use.
type Scheduler struct {
	mu        sync.Mutex
	store     ReviewStore
	persister Persister
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Scheduler with an empty store.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  make(ReviewStore),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a Scheduler and loads its store from p.
func Open(ctx context.Context, p Persister, opts ...Option) *Scheduler {
	s := New(append(opts, WithPersister(p))...)
	s.Load(ctx)
	return s
}

// Load replaces the in-memory store with the persisted one and returns the
// number of records loaded. A missing or unreadable store leaves the
// scheduler with an empty store.
func (s *Scheduler) Load(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store = make(ReviewStore)
	if s.persister == nil {
		return 0
	}
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("Failed to load review store, starting fresh", "error", err)
		return 0
	}
	if loaded != nil {
		s.store = loaded
	}
	s.logger.Debug("Review store loaded", "records", len(s.store))
	return len(s.store)
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// RecordReview applies a rating to the card and persists the result.
// Unknown card ids start from NewRecord.
func (s *Scheduler) RecordReview(ctx context.Context, cardID string, r Rating) (ReviewRecord, error) {
	if !r.IsValid() {
		return ReviewRecord{}, &InvalidRatingError{Value: r.String()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.store[cardID]
	if !ok {
		rec = NewRecord()
	}
	now := s.now()
	rec = review(rec, r, now)
	s.store[cardID] = rec

	s.persist(ctx, cardID, rec)
	s.appendLog(ctx, domain.ReviewLog{
		CardID:     cardID,
		Timestamp:  now,
		Rating:     r.String(),
		Interval:   rec.Interval,
		EaseFactor: rec.EaseFactor,
	})
	return rec, nil
}

// persist saves after a review. Failures are logged and never reach the
// caller; the in-memory store stays authoritative.
func (s *Scheduler) persist(ctx context.Context, cardID string, rec ReviewRecord) {
	if s.persister == nil {
		return
	}
	var err error
	if rs, ok := s.persister.(RecordSaver); ok {
		err = rs.SaveRecord(ctx, cardID, rec)
	} else {
		err = s.persister.Save(ctx, s.store.Clone())
	}
	if err != nil {
		s.logger.Error("Failed to save review record", "card_id", cardID, "error", err)
	}
}

func (s *Scheduler) appendLog(ctx context.Context, entry domain.ReviewLog) {
	rl, ok := s.persister.(ReviewLogger)
	if !ok {
		return
	}
	if err := rl.AppendReview(ctx, entry); err != nil {
		s.logger.Warn("Failed to append review log", "card_id", entry.CardID, "error", err)
	}
}

// Record returns the card's review record, if it has one.
func (s *Scheduler) Record(cardID string) (ReviewRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.store[cardID]
	return rec, ok
}

// Snapshot returns a copy of the whole store.
func (s *Scheduler) Snapshot() ReviewStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Clone()
}

// DueCards returns the candidates that are new or whose next review is at
// or before now, in input order.
func (s *Scheduler) DueCards(candidates []domain.Card) []domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	due := make([]domain.Card, 0, len(candidates))
	for _, c := range candidates {
		rec, ok := s.store[c.ID]
		if !ok || rec.Due(now) {
			due = append(due, c)
		}
	}
	return due
}

// Classify reports the card's maturity.
func (s *Scheduler) Classify(cardID string) Maturity {
	rec, ok := s.Record(cardID)
	return classify(rec, ok)
}

// Preview holds the interval, in days, each successful rating would yield.
type Preview struct {
	Hard int `json:"hard"`
	Good int `json:"good"`
	Easy int `json:"easy"`
}

// PreviewIntervals simulates the interval growth for Hard, Good and Easy
// without touching the stored record. Again always yields one day.
func (s *Scheduler) PreviewIntervals(cardID string) Preview {
	rec, ok := s.Record(cardID)
	if !ok {
		rec = NewRecord()
	}
	return Preview{
		Hard: nextInterval(rec),
		Good: nextInterval(rec),
		Easy: nextInterval(rec),
	}
}
