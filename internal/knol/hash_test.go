package knol

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/conorfennell/knolsrs/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.Card{
		TopicID:    "  Spanish-Verbs \r\n",
		Term:       "IR",
		Definition: "to go",
	}
	expected := "spanish-verbs\nir"
	normalized := Normalize(card)

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		card := domain.Card{TopicID: "T", Term: "A"}
		expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte("t\na")))
		hash := Hash(card)

		if hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
		if len(hash) != 64 {
			t.Errorf("Expected a 64 character hex hash, got %d characters", len(hash))
		}
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		card1 := domain.Card{TopicID: "verbs", Term: "ser"}
		card2 := domain.Card{TopicID: " VERBS", Term: "Ser "}
		if Hash(card1) != Hash(card2) {
			t.Errorf("Expected hashes to be equal, but they were different")
		}
	})

	t.Run("definition does not change the hash", func(t *testing.T) {
		card1 := domain.Card{TopicID: "verbs", Term: "ser", Definition: "to be"}
		card2 := domain.Card{TopicID: "verbs", Term: "ser", Definition: "to be (permanent)"}
		if Hash(card1) != Hash(card2) {
			t.Errorf("Expected rewording the definition to keep the hash")
		}
	})

	t.Run("fields do not bleed into each other", func(t *testing.T) {
		card1 := domain.Card{TopicID: "ab", Term: "c"}
		card2 := domain.Card{TopicID: "a", Term: "bc"}
		if Hash(card1) == Hash(card2) {
			t.Errorf("Expected hashes to differ")
		}
	})
}

func TestID(t *testing.T) {
	explicit := domain.Card{ID: "es-ser", TopicID: "verbs", Term: "ser"}
	if got := ID(explicit); got != "es-ser" {
		t.Errorf("Expected explicit id, got %s", got)
	}
	implicit := domain.Card{TopicID: "verbs", Term: "ser"}
	if got := ID(implicit); got != Hash(implicit) {
		t.Errorf("Expected hash id, got %s", got)
	}
}
