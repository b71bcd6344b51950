package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/srs"
)

// ErrInvalidWeights is returned by Weights.Validate.
var ErrInvalidWeights = errors.New("stats: invalid mastery weights")

// Weights sets how much each signal contributes to a mastery score.
// They must each lie in [0, 1] and sum to 1.
type Weights struct {
	Reading  float64 `json:"reading"`  // fraction of topic sections read
	Quiz     float64 `json:"quiz"`     // quiz accuracy for the topic
	Maturity float64 `json:"maturity"` // fraction of topic cards that are Mature
	Time     float64 `json:"time"`     // normalized time spent on the topic
}

// DefaultWeights weighs the four signals equally.
var DefaultWeights = Weights{Reading: 0.25, Quiz: 0.25, Maturity: 0.25, Time: 0.25}

// DefaultNeutral is the value a missing signal contributes.
const DefaultNeutral = 0.5

// Validate checks the weights' range and sum.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"reading": w.Reading, "quiz": w.Quiz, "maturity": w.Maturity, "time": w.Time} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s=%v out of [0, 1]", ErrInvalidWeights, name, v)
		}
	}
	if sum := w.Reading + w.Quiz + w.Maturity + w.Time; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: sum is %v, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// MasteryPolicy configures Mastery.
type MasteryPolicy struct {
	Weights Weights
	Neutral float64
}

// Validate checks the weights and that Neutral lies in [0, 1].
func (p MasteryPolicy) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	if p.Neutral < 0 || p.Neutral > 1 || math.IsNaN(p.Neutral) {
		return fmt.Errorf("%w: neutral=%v out of [0, 1]", ErrInvalidWeights, p.Neutral)
	}
	return nil
}

// DefaultMasteryPolicy returns equal weights with a neutral value of 0.5.
func DefaultMasteryPolicy() MasteryPolicy {
	return MasteryPolicy{Weights: DefaultWeights, Neutral: DefaultNeutral}
}

// MasteryInputs carries the signals supplied by other parts of the app,
// each a fraction in [0, 1]. A nil field means no signal yet.
type MasteryInputs struct {
	ReadFraction *float64
	QuizAccuracy *float64
	TimeFraction *float64
}

// Signal returns a pointer to v for use in MasteryInputs.
func Signal(v float64) *float64 {
	return &v
}

// Mastery blends the topic's signals into a 0-100 score. The maturity
// signal is the fraction of topicCards classified Mature; an empty topic
// has no maturity signal. Missing signals contribute the policy's neutral
// value instead of zero.
func (a *Aggregator) Mastery(topicCards []domain.Card, in MasteryInputs) float64 {
	var maturity *float64
	if len(topicCards) > 0 {
		var mature int
		for _, c := range topicCards {
			if a.src.Classify(c.ID) == srs.MaturityMature {
				mature++
			}
		}
		maturity = Signal(float64(mature) / float64(len(topicCards)))
	}

	p := a.policy
	w := p.Weights
	score := w.Reading*p.value(in.ReadFraction) +
		w.Quiz*p.value(in.QuizAccuracy) +
		w.Maturity*p.value(maturity) +
		w.Time*p.value(in.TimeFraction)
	return 100 * clamp01(score)
}

func (p MasteryPolicy) value(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return clamp01(p.Neutral)
	}
	return clamp01(*v)
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
