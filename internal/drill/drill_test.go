package drill

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/session"
	"github.com/conorfennell/knolsrs/internal/srs"
)

func setup() (*srs.Scheduler, *session.Session) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sched := srs.New(srs.WithClock(func() time.Time { return now }))
	sess := session.New(sched, []domain.Card{
		{ID: "ir", TopicID: "verbs", Term: "ir", Definition: "to go"},
		{ID: "ser", TopicID: "verbs", Term: "ser", Definition: "to be"},
		{ID: "casa", TopicID: "nouns", Term: "casa", Definition: "house"},
	})
	return sched, sess
}

func TestRun(t *testing.T) {
	sched, sess := setup()
	input := strings.Join([]string{
		"", "g", // ir: Good
		"", "2", "x", "1", // ser: two rejected attempts, then Again
		"", "Easy", // casa: Easy
	}, "\n")
	var out bytes.Buffer

	st, err := Run(context.Background(), sess, sched, strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Reviewed() != 3 || st.Good != 1 || st.Again != 1 || st.Easy != 1 {
		t.Errorf("Unexpected state %+v", st)
	}
	if !sess.Done() {
		t.Error("Expected session to be done")
	}
	text := out.String()
	for _, want := range []string{"= to go", `invalid rating "2"`, "Reviewed 3", "verbs: 1/2 correct"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, text)
		}
	}
	if rec, _ := sched.Record("ser"); rec.Lapses != 1 {
		t.Errorf("Expected ser to lapse, got %+v", rec)
	}
}

func TestRunQuitEarly(t *testing.T) {
	sched, sess := setup()
	st, err := Run(context.Background(), sess, sched, strings.NewReader("\ng\nq\n"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Reviewed() != 1 || sess.Remaining() != 2 {
		t.Errorf("Expected one review and two cards left, got %d and %d", st.Reviewed(), sess.Remaining())
	}
	if _, ok := sched.Record("ir"); !ok {
		t.Error("Expected the rated card to stay recorded after quitting")
	}
}

func TestRunClosedInput(t *testing.T) {
	sched, sess := setup()
	st, err := Run(context.Background(), sess, sched, strings.NewReader("\n"), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Reviewed() != 0 || sess.Remaining() != 3 {
		t.Errorf("Expected nothing reviewed, got %+v", st)
	}
}
