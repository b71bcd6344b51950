package content

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/knolsrs/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

type scanRecord struct {
	path, sourceType string
	cards            int
}

type fakeTracker struct {
	scans []scanRecord
}

func (f *fakeTracker) MarkSourceScanned(ctx context.Context, path, sourceType string, cards int, at time.Time) error {
	f.scans = append(f.scans, scanRecord{path, sourceType, cards})
	return nil
}

func TestLoadLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "verbs.md"), "T: ir\nD: to go\n\nT: ser\nID: es-ser\nD: to be\n")
	writeFile(t, filepath.Join(dir, "sub", "nouns.md"), "T: casa\nD: house\n\nT: missing definition\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "T: ignored\nD: not markdown\n")
	writeFile(t, filepath.Join(dir, "dupes.md"), "Topic: verbs\nT: IR\nD: to go, again\n")

	tracker := &fakeTracker{}
	l := NewLoader(t.TempDir(), WithLogger(quietLogger()), WithTracker(tracker))
	deck, err := l.Load(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if deck.Len() != 3 {
		t.Fatalf("Expected 3 cards, got %d: %+v", deck.Len(), deck.Cards())
	}
	if _, ok := deck.Lookup("es-ser"); !ok {
		t.Error("Expected explicit id es-ser to be kept")
	}
	if got := deck.Topics(); len(got) != 2 || got[0] != "nouns" || got[1] != "verbs" {
		t.Errorf("Expected topics [nouns verbs], got %v", got)
	}
	for _, c := range deck.Cards() {
		if c.ID == "" {
			t.Errorf("Card %q has no id", c.Term)
		}
	}
	if len(tracker.scans) != 1 || tracker.scans[0] != (scanRecord{dir, "local", 4}) {
		t.Errorf("Unexpected scans: %+v", tracker.scans)
	}
}

func TestLoadGitSource(t *testing.T) {
	reposDir := t.TempDir()
	var synced []string
	fakeSync := func(ctx context.Context, logger *slog.Logger, url, localPath string) error {
		synced = append(synced, url)
		writeFile(t, filepath.Join(localPath, "deck.md"), "T: hola\nD: hello\n")
		return nil
	}

	l := NewLoader(reposDir, WithLogger(quietLogger()), WithGitSync(fakeSync))
	deck, err := l.Load(context.Background(), []string{"https://example.com/acme/spanish.git"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(synced) != 1 {
		t.Fatalf("Expected one git sync, got %d", len(synced))
	}
	if deck.Len() != 1 || deck.Cards()[0].TopicID != "deck" {
		t.Errorf("Unexpected deck: %+v", deck.Cards())
	}
}

func TestLoadMissingSource(t *testing.T) {
	good := t.TempDir()
	writeFile(t, filepath.Join(good, "a.md"), "T: uno\nD: one\n")

	l := NewLoader(t.TempDir(), WithLogger(quietLogger()))
	deck, err := l.Load(context.Background(), []string{filepath.Join(good, "nope"), good})
	if err == nil {
		t.Error("Expected an error for the missing source")
	}
	if deck.Len() != 1 {
		t.Errorf("Expected the good source to still load, got %d cards", deck.Len())
	}
}

func TestDeck(t *testing.T) {
	deck := NewDeck([]domain.Card{
		{ID: "1", TopicID: "b"},
		{ID: "2", TopicID: "a"},
		{ID: "1", TopicID: "c"},
		{ID: "3", TopicID: "b"},
	})
	if deck.Len() != 3 {
		t.Errorf("Expected duplicates dropped, got %d cards", deck.Len())
	}
	if got := deck.Topic("b"); len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("Unexpected topic b: %+v", got)
	}
	if c, ok := deck.Lookup("1"); !ok || c.TopicID != "b" {
		t.Errorf("Expected first card with id 1 to win, got %+v", c)
	}
	cards := deck.Cards()
	cards[0].ID = "mutated"
	if _, ok := deck.Lookup("1"); !ok || deck.Cards()[0].ID != "1" {
		t.Error("Expected Cards to return a copy")
	}
}
