package content

import (
	"slices"

	"github.com/conorfennell/knolsrs/internal/domain"
)

// Deck is an immutable, ordered set of cards with unique ids.
type Deck struct {
	cards  []domain.Card
	byID   map[string]int
	topics []string
}

// NewDeck builds a deck from cards. Later cards with an id already seen are
// dropped.
func NewDeck(cards []domain.Card) *Deck {
	d := &Deck{byID: make(map[string]int, len(cards))}
	for _, c := range cards {
		if _, dup := d.byID[c.ID]; dup {
			continue
		}
		d.byID[c.ID] = len(d.cards)
		d.cards = append(d.cards, c)
		if !slices.Contains(d.topics, c.TopicID) {
			d.topics = append(d.topics, c.TopicID)
		}
	}
	slices.Sort(d.topics)
	return d
}

// Len returns the number of cards.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Cards returns every card in load order.
func (d *Deck) Cards() []domain.Card {
	return slices.Clone(d.cards)
}

// Topics returns the sorted topic ids.
func (d *Deck) Topics() []string {
	return slices.Clone(d.topics)
}

// Topic returns the cards of one topic in load order.
func (d *Deck) Topic(topicID string) []domain.Card {
	var out []domain.Card
	for _, c := range d.cards {
		if c.TopicID == topicID {
			out = append(out, c)
		}
	}
	return out
}

// Lookup finds a card by id.
func (d *Deck) Lookup(id string) (domain.Card, bool) {
	i, ok := d.byID[id]
	if !ok {
		return domain.Card{}, false
	}
	return d.cards[i], true
}
