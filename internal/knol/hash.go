package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/knolsrs/internal/domain"
)

// Normalize concatenates the card's identifying fields after cleaning each
// part. It trims whitespace, lowercases, and normalizes line endings for
// each field before joining them. The definition is left out so that
// rewording it keeps the card's review history.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// Joined with a newline so "ab"+"c" and "a"+"bc" stay distinct.
	return strings.Join([]string{normalizePart(card.TopicID), normalizePart(card.Term)}, "\n")
}

// Hash takes a card, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(card domain.Card) string {
	normalized := Normalize(card)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}

// ID returns the card's explicit ID, or its hash when it has none.
func ID(card domain.Card) string {
	if card.ID != "" {
		return card.ID
	}
	return Hash(card)
}
