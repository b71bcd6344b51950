package domain

import "time"

// Card represents a single vocabulary entry supplied by a content source.
// Two cards with the same ID are the same card across sessions.
type Card struct {
	ID         string `json:"id" validate:"required"`
	TopicID    string `json:"topic_id" validate:"required"`
	Term       string `json:"term" validate:"required"`
	Definition string `json:"definition" validate:"required"`
}

// ReviewLog records a single review event for a card.
// Rating holds the rating name ("Again", "Hard", "Good", "Easy").
type ReviewLog struct {
	ID         string    `json:"id"`
	CardID     string    `json:"card_id"`
	Timestamp  time.Time `json:"timestamp"`
	Rating     string    `json:"rating"`
	Interval   int       `json:"interval"`
	EaseFactor float64   `json:"ease_factor"`
}
