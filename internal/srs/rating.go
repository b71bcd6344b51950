package srs

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Rating is the learner's self-assessed recall at review time.
type Rating int

const (
	Again Rating = iota + 1 // Recall failed.
	Hard                    // Recalled with significant effort.
	Good                    // Recalled with some effort.
	Easy                    // Recalled effortlessly.
)

// Ratings lists every valid rating in button order.
var Ratings = []Rating{Again, Hard, Good, Easy}

var (
	ratingNames  = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}
	ratingByName = map[string]Rating{
		"again": Again,
		"hard":  Hard,
		"good":  Good,
		"easy":  Easy,
	}
	// The legacy 0-5 quality scale skips 2. The ease arithmetic is
	// calibrated to these values, so they must not be renumbered.
	ratingQuality = [...]int{Again: 1, Hard: 3, Good: 4, Easy: 5}
)

var (
	_ fmt.Stringer             = Rating(0)
	_ json.Marshaler           = Rating(0)
	_ json.Unmarshaler         = (*Rating)(nil)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// InvalidRatingError is returned when a value does not name one of
// Again, Hard, Good or Easy.
type InvalidRatingError struct {
	Value string
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("srs: invalid rating %q", e.Value)
}

// IsValid reports whether r is one of the four ratings.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// String returns the rating name. For invalid values it returns "Rating(n)".
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// Quality returns the rating on the legacy 1/3/4/5 quality scale.
// It returns 0 for invalid ratings.
func (r Rating) Quality() int {
	if !r.IsValid() {
		return 0
	}
	return ratingQuality[r]
}

// Recalled reports whether the rating counts as a successful recall.
func (r Rating) Recalled() bool {
	return r.Quality() >= 3
}

// RatingFromQuality maps a legacy quality value (1, 3, 4 or 5) to a Rating.
func RatingFromQuality(q int) (Rating, error) {
	for _, r := range Ratings {
		if ratingQuality[r] == q {
			return r, nil
		}
	}
	return 0, &InvalidRatingError{Value: strconv.Itoa(q)}
}

// ParseRating accepts a rating name (case-insensitive) or a legacy
// quality number.
func ParseRating(s string) (Rating, error) {
	s = strings.TrimSpace(s)
	if r, ok := ratingByName[strings.ToLower(s)]; ok {
		return r, nil
	}
	if q, err := strconv.Atoi(s); err == nil {
		return RatingFromQuality(q)
	}
	return 0, &InvalidRatingError{Value: s}
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, &InvalidRatingError{Value: strconv.Itoa(int(r))}
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalJSON implements json.Marshaler. Rating serializes as a JSON string.
func (r Rating) MarshalJSON() ([]byte, error) {
	text, err := r.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON accepts either a rating name or a legacy quality number.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var q int
		if err := json.Unmarshal(data, &q); err != nil {
			return &InvalidRatingError{Value: string(data)}
		}
		v, err := RatingFromQuality(q)
		if err != nil {
			return err
		}
		*r = v
		return nil
	}
	return r.UnmarshalText([]byte(s))
}
