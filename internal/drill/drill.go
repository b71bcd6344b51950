// Package drill runs a review session in a terminal.
package drill

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/conorfennell/knolsrs/internal/session"
	"github.com/conorfennell/knolsrs/internal/srs"
)

// Previewer predicts the interval each rating would give.
type Previewer interface {
	PreviewIntervals(cardID string) srs.Preview
}

var shortcuts = map[string]srs.Rating{
	"a": srs.Again,
	"h": srs.Hard,
	"g": srs.Good,
	"e": srs.Easy,
}

// Run shows each queued card, reveals its definition on Enter and reads a
// rating. Typing q, or closing the input, ends the drill early; reviews
// already rated stay recorded.
func Run(ctx context.Context, sess *session.Session, p Previewer, in io.Reader, out io.Writer) (session.State, error) {
	scanner := bufio.NewScanner(in)
	readLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	total := sess.Remaining()
	for !sess.Done() {
		if err := ctx.Err(); err != nil {
			return sess.State(), err
		}
		card, _ := sess.Current()
		fmt.Fprintf(out, "\n[%d/%d] %s\n  %s\n", total-sess.Remaining()+1, total, card.TopicID, card.Term)
		fmt.Fprint(out, "Enter to reveal, q to quit: ")
		line, ok := readLine()
		if !ok || line == "q" {
			break
		}

		preview := p.PreviewIntervals(card.ID)
		fmt.Fprintf(out, "  = %s\n", card.Definition)
		fmt.Fprintf(out, "(a)gain %s  (h)ard %s  (g)ood %s  (e)asy %s\n",
			srs.FormatDays(1), srs.FormatDays(preview.Hard), srs.FormatDays(preview.Good), srs.FormatDays(preview.Easy))

		quit := false
		for {
			fmt.Fprint(out, "Rating: ")
			line, ok := readLine()
			if !ok || line == "q" {
				quit = true
				break
			}
			r, known := shortcuts[strings.ToLower(line)]
			if !known {
				var err error
				if r, err = srs.ParseRating(line); err != nil {
					fmt.Fprintf(out, "%v; use a, h, g or e\n", err)
					continue
				}
			}
			if _, err := sess.Advance(ctx, r); err != nil {
				return sess.State(), err
			}
			break
		}
		if quit {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return sess.State(), err
	}
	PrintSummary(out, sess.State())
	return sess.State(), nil
}

// PrintSummary writes the session counters.
func PrintSummary(out io.Writer, st session.State) {
	fmt.Fprintf(out, "\nReviewed %d: again %d, hard %d, good %d, easy %d. Best streak %d.\n",
		st.Reviewed(), st.Again, st.Hard, st.Good, st.Easy, st.BestStreak)
	for _, topic := range slices.Sorted(maps.Keys(st.Topics)) {
		tally := st.Topics[topic]
		fmt.Fprintf(out, "  %s: %d/%d correct\n", topic, tally.Correct, tally.Reviewed)
	}
}
