package srs

import "fmt"

// MatureInterval is the interval, in days, at which a card counts as Mature.
const MatureInterval = 21

// Maturity is a coarse classification of a card's memory strength.
type Maturity int

const (
	MaturityNew      Maturity = iota // Never reviewed.
	MaturityLearning                 // Reviewed, interval below MatureInterval.
	MaturityMature                   // Interval at or above MatureInterval.
)

var maturityNames = [...]string{MaturityNew: "New", MaturityLearning: "Learning", MaturityMature: "Mature"}

func (m Maturity) String() string {
	if m >= MaturityNew && m <= MaturityMature {
		return maturityNames[m]
	}
	return fmt.Sprintf("Maturity(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Maturity) MarshalText() ([]byte, error) {
	if m < MaturityNew || m > MaturityMature {
		return nil, fmt.Errorf("srs: invalid maturity: %d", int(m))
	}
	return []byte(maturityNames[m]), nil
}

// classify maps a record to its maturity bucket.
func classify(rec ReviewRecord, ok bool) Maturity {
	switch {
	case !ok:
		return MaturityNew
	case rec.Interval < MatureInterval:
		return MaturityLearning
	default:
		return MaturityMature
	}
}
