// Package stats derives dashboard statistics from a scheduler's review
// records. Nothing in this package mutates scheduling state.
package stats

import (
	"log/slog"
	"slices"
	"time"

	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/srs"
)

const (
	DefaultForecastDays   = 7
	DefaultLapseThreshold = 3

	day = 24 * time.Hour
)

// Source is the read side of a scheduler.
type Source interface {
	Record(cardID string) (srs.ReviewRecord, bool)
	DueCards(candidates []domain.Card) []domain.Card
	Classify(cardID string) srs.Maturity
	Now() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMasteryPolicy overrides the weights and neutral value used by Mastery.
// An invalid policy is replaced by DefaultMasteryPolicy.
func WithMasteryPolicy(p MasteryPolicy) Option {
	return func(a *Aggregator) { a.policy = p }
}

// WithLogger sets the logger used to report a rejected mastery policy.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// Aggregator computes statistics over a candidate card list.
type Aggregator struct {
	src    Source
	policy MasteryPolicy
	logger *slog.Logger
}

// New returns an Aggregator reading from src.
func New(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{src: src, policy: DefaultMasteryPolicy(), logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.policy.Validate(); err != nil {
		a.logger.Warn("Invalid mastery policy, using defaults", "error", err)
		a.policy = DefaultMasteryPolicy()
	}
	return a
}

// Policy returns the mastery policy in effect.
func (a *Aggregator) Policy() MasteryPolicy {
	return a.policy
}

// DueCount returns how many of cards are due now.
func (a *Aggregator) DueCount(cards []domain.Card) int {
	return len(a.src.DueCards(cards))
}

// Histogram counts cards per maturity bucket.
type Histogram struct {
	New      int `json:"new"`
	Learning int `json:"learning"`
	Mature   int `json:"mature"`
}

// Total returns the number of cards counted.
func (h Histogram) Total() int {
	return h.New + h.Learning + h.Mature
}

// MaturityHistogram classifies every card.
func (a *Aggregator) MaturityHistogram(cards []domain.Card) Histogram {
	var h Histogram
	for _, c := range cards {
		switch a.src.Classify(c.ID) {
		case srs.MaturityNew:
			h.New++
		case srs.MaturityLearning:
			h.Learning++
		case srs.MaturityMature:
			h.Mature++
		}
	}
	return h
}

// AverageEase returns the mean ease factor over reviewed cards, or 0 when
// none of cards has been reviewed.
func (a *Aggregator) AverageEase(cards []domain.Card) float64 {
	var sum float64
	var n int
	for _, c := range cards {
		if rec, ok := a.src.Record(c.ID); ok {
			sum += rec.EaseFactor
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Forecast counts reviews falling due on each of the next days, where day i
// covers [now+i*24h, now+(i+1)*24h). Overdue reviews count towards day 0.
// Unreviewed cards are not counted.
func (a *Aggregator) Forecast(cards []domain.Card, days int) []int {
	if days <= 0 {
		return []int{}
	}
	now := a.src.Now()
	out := make([]int, days)
	for _, c := range cards {
		rec, ok := a.src.Record(c.ID)
		if !ok {
			continue
		}
		offset := rec.NextReview.Sub(now)
		if offset < 0 {
			out[0]++
			continue
		}
		if i := int(offset / day); i < days {
			out[i]++
		}
	}
	return out
}

// StrugglingCards returns the cards with at least threshold lapses, most
// lapses first. Cards with equal lapses keep their input order.
func (a *Aggregator) StrugglingCards(cards []domain.Card, threshold int) []domain.Card {
	type entry struct {
		card   domain.Card
		lapses int
	}
	var found []entry
	for _, c := range cards {
		if rec, ok := a.src.Record(c.ID); ok && rec.Lapses >= threshold {
			found = append(found, entry{card: c, lapses: rec.Lapses})
		}
	}
	slices.SortStableFunc(found, func(x, y entry) int {
		return y.lapses - x.lapses
	})

	out := make([]domain.Card, len(found))
	for i, e := range found {
		out[i] = e.card
	}
	return out
}

// Summary is the dashboard view of a card list.
type Summary struct {
	TotalCards   int           `json:"total_cards"`
	Reviewed     int           `json:"reviewed"`
	TotalReviews int           `json:"total_reviews"`
	Due          int           `json:"due"`
	Maturity     Histogram     `json:"maturity"`
	AverageEase  float64       `json:"average_ease"`
	Forecast     []int         `json:"forecast"`
	Struggling   []domain.Card `json:"struggling"`
}

// Summarize computes every statistic for cards in one call.
func (a *Aggregator) Summarize(cards []domain.Card, forecastDays, lapseThreshold int) Summary {
	s := Summary{
		TotalCards:  len(cards),
		Due:         a.DueCount(cards),
		Maturity:    a.MaturityHistogram(cards),
		AverageEase: a.AverageEase(cards),
		Forecast:    a.Forecast(cards, forecastDays),
		Struggling:  a.StrugglingCards(cards, lapseThreshold),
	}
	for _, c := range cards {
		if rec, ok := a.src.Record(c.ID); ok {
			s.Reviewed++
			s.TotalReviews += rec.ReviewCount
		}
	}
	return s
}
