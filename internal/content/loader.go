// Package content turns card files from local directories and git
// repositories into a Deck.
package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/gitsource"
	"github.com/conorfennell/knolsrs/internal/knol"
	"github.com/conorfennell/knolsrs/internal/parser"
)

// Tracker records when each source was last scanned.
type Tracker interface {
	MarkSourceScanned(ctx context.Context, path, sourceType string, cards int, at time.Time) error
}

// GitSyncFunc brings a local checkout of url up to date.
type GitSyncFunc func(ctx context.Context, logger *slog.Logger, url, localPath string) error

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithTracker records scans in t.
func WithTracker(t Tracker) Option {
	return func(ld *Loader) { ld.tracker = t }
}

// WithGitSync replaces gitsource.Sync.
func WithGitSync(fn GitSyncFunc) Option {
	return func(ld *Loader) { ld.gitSync = fn }
}

// Loader reads cards from content sources.
type Loader struct {
	reposDir string
	logger   *slog.Logger
	tracker  Tracker
	gitSync  GitSyncFunc
	validate *validator.Validate
}

// NewLoader returns a Loader that checks git sources out under reposDir.
func NewLoader(reposDir string, opts ...Option) *Loader {
	l := &Loader{
		reposDir: reposDir,
		logger:   slog.Default(),
		gitSync:  gitsource.Sync,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load scans every source and builds a deck. A source that fails is
// skipped; its error is included in the returned error alongside the deck
// of everything that did load.
func (l *Loader) Load(ctx context.Context, sources []string) (*Deck, error) {
	var cards []domain.Card
	var errs []error

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return NewDeck(cards), err
		}
		sourceCards, err := l.loadSource(ctx, source)
		if err != nil {
			l.logger.Error("Failed to load source", "source", source, "error", err)
			errs = append(errs, fmt.Errorf("source %s: %w", source, err))
			continue
		}
		cards = append(cards, sourceCards...)
	}

	deck := NewDeck(cards)
	if dropped := len(cards) - deck.Len(); dropped > 0 {
		l.logger.Warn("Duplicate card ids dropped", "count", dropped)
	}
	l.logger.Info("Content loaded", "sources", len(sources), "cards", deck.Len(), "topics", len(deck.Topics()))
	return deck, errors.Join(errs...)
}

func (l *Loader) loadSource(ctx context.Context, source string) ([]domain.Card, error) {
	sourceType := "local"
	dir := source
	if gitsource.IsGitURL(source) {
		sourceType = "git"
		localPath, err := gitsource.LocalPath(l.reposDir, source)
		if err != nil {
			return nil, err
		}
		if err := l.gitSync(ctx, l.logger, source, localPath); err != nil {
			return nil, err
		}
		dir = localPath
	}

	cards, err := l.loadDir(dir)
	if err != nil {
		return nil, err
	}

	if l.tracker != nil {
		if err := l.tracker.MarkSourceScanned(ctx, source, sourceType, len(cards), time.Now()); err != nil {
			l.logger.Warn("Failed to update last scanned for source", "source", source, "error", err)
		}
	}
	return cards, nil
}

// loadDir parses every .md file below dir. Unparseable files and invalid
// cards are logged and skipped.
func (l *Loader) loadDir(dir string) ([]domain.Card, error) {
	var cards []domain.Card
	var invalid int

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			l.logger.Warn("Failed to parse card file", "path", path, "error", parseErr)
			return nil
		}
		for _, card := range fileCards {
			card.ID = knol.ID(card)
			if err := l.validate.Struct(card); err != nil {
				invalid++
				l.logger.Warn("Skipping invalid card", "path", path, "term", card.Term, "error", err)
				continue
			}
			cards = append(cards, card)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	l.logger.Debug("Directory scanned", "path", dir, "cards", len(cards), "invalid", invalid)
	return cards, nil
}
