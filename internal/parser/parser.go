package parser

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/knolsrs/internal/domain"
)

const (
	termPrefix       = "T:"
	definitionPrefix = "D:"
	idPrefix         = "ID:"
	topicPrefix      = "Topic:"
)

type state int

const (
	seeking state = iota
	readingTerm
	readingDefinition
)

// ParseFile reads a file from the given path and extracts all cards.
// Cards take the file name, without extension, as their topic until a
// Topic: line says otherwise.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	base := filepath.Base(path)
	return Parse(file, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Parse reads from an io.Reader and extracts all cards. Card ids are left
// empty unless the card carries an ID: line, which belongs to the card
// being read.
func Parse(r io.Reader, topic string) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var currentCard domain.Card
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) > 0 {
			content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
			switch currentState {
			case readingTerm:
				currentCard.Term = content
			case readingDefinition:
				currentCard.Definition = content
			}
			currentBlock = nil
		}
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Term != "" {
			currentCard.TopicID = topic
			cards = append(cards, currentCard)
		}
		currentCard = domain.Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			finishCard()

		case strings.HasPrefix(line, topicPrefix):
			finishCard()
			topic = trimPrefix(line, topicPrefix)

		case strings.HasPrefix(line, idPrefix):
			flushBlock()
			currentCard.ID = trimPrefix(line, idPrefix)
			if currentState == seeking {
				currentState = readingTerm
			}

		case strings.HasPrefix(line, termPrefix):
			// A new term starts a new card unless only an ID has been read.
			if currentCard.Term != "" || len(currentBlock) > 0 {
				finishCard()
			}
			currentState = readingTerm
			currentBlock = append(currentBlock, trimPrefix(line, termPrefix))

		case strings.HasPrefix(line, definitionPrefix):
			flushBlock()
			currentState = readingDefinition
			currentBlock = append(currentBlock, trimPrefix(line, definitionPrefix))

		case currentState != seeking && len(currentBlock) > 0:
			currentBlock = append(currentBlock, line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func trimPrefix(line, prefix string) string {
	return strings.TrimSpace(line[len(prefix):])
}
