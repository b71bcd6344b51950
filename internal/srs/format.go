package srs

import (
	"fmt"
	"strconv"
)

// FormatDays renders an interval for a button label: "1d", "3w", "4mo", "1.2y".
func FormatDays(days int) string {
	switch {
	case days < 1:
		return "<1d"
	case days < 7:
		return strconv.Itoa(days) + "d"
	case days < 30:
		return strconv.Itoa((days+3)/7) + "w"
	case days < 365:
		return strconv.Itoa((days+15)/30) + "mo"
	}
	return fmt.Sprintf("%.1fy", float64(days)/365)
}
