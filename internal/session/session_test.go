package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/srs"
)

func newScheduler() *srs.Scheduler {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	return srs.New(srs.WithClock(func() time.Time { return now }))
}

func deck() []domain.Card {
	return []domain.Card{
		{ID: "a", TopicID: "verbs", Term: "ir", Definition: "to go"},
		{ID: "b", TopicID: "verbs", Term: "ser", Definition: "to be"},
		{ID: "c", TopicID: "nouns", Term: "casa", Definition: "house"},
		{ID: "d", TopicID: "nouns", Term: "perro", Definition: "dog"},
		{ID: "e", TopicID: "nouns", Term: "gato", Definition: "cat"},
	}
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()
	sched := newScheduler()
	sess := New(sched, deck())

	ratings := []srs.Rating{srs.Good, srs.Easy, srs.Hard, srs.Good, srs.Again}
	for i, r := range ratings {
		card, ok := sess.Current()
		if !ok {
			t.Fatalf("Queue empty after %d ratings", i)
		}
		if card.ID != deck()[i].ID {
			t.Errorf("Expected card %s at step %d, got %s", deck()[i].ID, i, card.ID)
		}
		empty, err := sess.Advance(ctx, r)
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if empty != (i == len(ratings)-1) {
			t.Errorf("Step %d: empty = %v", i, empty)
		}
		if _, ok := sched.Record(card.ID); !ok {
			t.Errorf("Expected review of %s to be committed immediately", card.ID)
		}
	}

	st := sess.State()
	if st.Again != 1 || st.Hard != 1 || st.Good != 2 || st.Easy != 1 {
		t.Errorf("Unexpected buckets: %+v", st)
	}
	if st.Reviewed() != 5 {
		t.Errorf("Expected 5 reviewed, got %d", st.Reviewed())
	}
	if st.Streak != 0 {
		t.Errorf("Expected streak reset by Again, got %d", st.Streak)
	}
	if st.BestStreak != 2 {
		t.Errorf("Expected best streak 2, got %d", st.BestStreak)
	}
	if got := st.Topics["verbs"]; got != (TopicTally{Reviewed: 2, Correct: 2}) {
		t.Errorf("Unexpected verbs tally: %+v", got)
	}
	if got := st.Topics["nouns"]; got != (TopicTally{Reviewed: 3, Correct: 2}) {
		t.Errorf("Unexpected nouns tally: %+v", got)
	}

	empty, err := sess.Advance(ctx, srs.Good)
	if !empty || !errors.Is(err, ErrSessionDone) {
		t.Errorf("Expected ErrSessionDone on exhausted queue, got %v, %v", empty, err)
	}
}

func TestStreakResetsOnHard(t *testing.T) {
	ctx := context.Background()
	sess := New(newScheduler(), deck())
	for _, r := range []srs.Rating{srs.Good, srs.Good, srs.Good, srs.Hard, srs.Easy} {
		if _, err := sess.Advance(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	st := sess.State()
	if st.Streak != 1 || st.BestStreak != 3 {
		t.Errorf("Expected streak 1 and best 3, got %d and %d", st.Streak, st.BestStreak)
	}
}

func TestQueueIsSnapshot(t *testing.T) {
	cards := deck()
	sess := New(newScheduler(), cards[:2])
	cards[0].ID = "changed"

	if sess.Remaining() != 2 {
		t.Errorf("Expected 2 cards queued, got %d", sess.Remaining())
	}
	if c, _ := sess.Current(); c.ID != "a" {
		t.Errorf("Expected queue to be unaffected by caller mutation, got %s", c.ID)
	}
}

func TestInvalidRatingKeepsCard(t *testing.T) {
	ctx := context.Background()
	sess := New(newScheduler(), deck())

	_, err := sess.Advance(ctx, srs.Rating(0))
	var ire *srs.InvalidRatingError
	if !errors.As(err, &ire) {
		t.Fatalf("Expected InvalidRatingError, got %v", err)
	}
	if sess.Remaining() != 5 {
		t.Errorf("Expected card to stay queued, %d remaining", sess.Remaining())
	}
	if sess.State().Reviewed() != 0 {
		t.Error("Expected no counters to change")
	}
}

func TestEmptySession(t *testing.T) {
	sess := New(newScheduler(), nil)
	if !sess.Done() {
		t.Error("Expected empty session to be done")
	}
	if _, ok := sess.Current(); ok {
		t.Error("Expected no current card")
	}
}
