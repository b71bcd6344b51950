// Package session drives one review session over a snapshot of due cards.
package session

import (
	"context"
	"errors"

	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/srs"
)

// ErrSessionDone is returned by Advance once the queue is exhausted.
var ErrSessionDone = errors.New("session: no cards left")

// Reviewer applies ratings. *srs.Scheduler satisfies it.
type Reviewer interface {
	RecordReview(ctx context.Context, cardID string, r srs.Rating) (srs.ReviewRecord, error)
}

// TopicTally counts reviews for one topic.
type TopicTally struct {
	Reviewed int `json:"reviewed"`
	Correct  int `json:"correct"`
}

// State holds the counters of a running session. It is never persisted.
type State struct {
	Again      int                   `json:"again"`
	Hard       int                   `json:"hard"`
	Good       int                   `json:"good"`
	Easy       int                   `json:"easy"`
	Streak     int                   `json:"streak"`
	BestStreak int                   `json:"best_streak"`
	Topics     map[string]TopicTally `json:"topics"`
}

// Reviewed returns the number of cards rated so far.
func (s State) Reviewed() int {
	return s.Again + s.Hard + s.Good + s.Easy
}

// Session walks a fixed queue of cards one rating at a time.
// A Session is not safe for concurrent use.
type Session struct {
	reviewer Reviewer
	queue    []domain.Card
	state    State
}

// New starts a session over a copy of due. Cards that become due later are
// not added.
func New(reviewer Reviewer, due []domain.Card) *Session {
	return &Session{
		reviewer: reviewer,
		queue:    append([]domain.Card(nil), due...),
		state:    State{Topics: make(map[string]TopicTally)},
	}
}

// Current returns the card awaiting a rating.
func (s *Session) Current() (domain.Card, bool) {
	if len(s.queue) == 0 {
		return domain.Card{}, false
	}
	return s.queue[0], true
}

// Remaining returns the number of cards left in the queue.
func (s *Session) Remaining() int {
	return len(s.queue)
}

// Done reports whether the queue is exhausted.
func (s *Session) Done() bool {
	return len(s.queue) == 0
}

// Advance rates the front card, commits the review and pops it. It reports
// whether the queue is now empty. A rejected rating leaves the card at the
// front.
func (s *Session) Advance(ctx context.Context, r srs.Rating) (bool, error) {
	card, ok := s.Current()
	if !ok {
		return true, ErrSessionDone
	}
	if _, err := s.reviewer.RecordReview(ctx, card.ID, r); err != nil {
		return false, err
	}
	s.queue = s.queue[1:]
	s.count(card, r)
	return s.Done(), nil
}

func (s *Session) count(card domain.Card, r srs.Rating) {
	switch r {
	case srs.Again:
		s.state.Again++
	case srs.Hard:
		s.state.Hard++
	case srs.Good:
		s.state.Good++
	case srs.Easy:
		s.state.Easy++
	}

	if r == srs.Good || r == srs.Easy {
		s.state.Streak++
		s.state.BestStreak = max(s.state.BestStreak, s.state.Streak)
	} else {
		s.state.Streak = 0
	}

	tally := s.state.Topics[card.TopicID]
	tally.Reviewed++
	if r.Recalled() {
		tally.Correct++
	}
	s.state.Topics[card.TopicID] = tally
}

// State returns a copy of the session counters.
func (s *Session) State() State {
	out := s.state
	out.Topics = make(map[string]TopicTally, len(s.state.Topics))
	for k, v := range s.state.Topics {
		out.Topics[k] = v
	}
	return out
}
