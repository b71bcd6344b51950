package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/srs"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleStore() srs.ReviewStore {
	return srs.ReviewStore{
		"c1": {EaseFactor: 1.96, Interval: 6, Repetitions: 2, ReviewCount: 3, Lapses: 1, NextReview: t0.Add(6 * 24 * time.Hour)},
		"c2": {EaseFactor: 2.5, Interval: 1, Repetitions: 1, ReviewCount: 1, NextReview: t0.Add(24 * time.Hour)},
	}
}

func assertStoresEqual(t *testing.T, want, got srs.ReviewStore) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(got))
	}
	for id, rec := range want {
		if !got[id].Equal(rec) {
			t.Errorf("Record %s: expected %+v, got %+v", id, rec, got[id])
		}
	}
}

func TestDBSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	empty, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load on fresh database: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty store, got %d records", len(empty))
	}

	if err := db.Save(ctx, sampleStore()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertStoresEqual(t, sampleStore(), got)

	t.Run("save replaces the previous store", func(t *testing.T) {
		smaller := srs.ReviewStore{"c2": sampleStore()["c2"]}
		if err := db.Save(ctx, smaller); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, _ := db.Load(ctx)
		assertStoresEqual(t, smaller, got)
	})
}

func TestDBLoadRejectsCorruptRows(t *testing.T) {
	testCases := []struct {
		name   string
		column string
	}{
		{"ease below floor", "ease_factor = 1.0"},
		{"negative interval", "interval_days = -1"},
		{"negative repetitions", "repetitions = -1"},
		{"negative review count", "review_count = -1"},
		{"negative lapses", "lapses = -1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			db := newTestDB(t)
			if err := db.Save(ctx, sampleStore()); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if _, err := db.conn.Exec(`UPDATE review_records SET ` + tc.column + ` WHERE card_id = 'c1'`); err != nil {
				t.Fatalf("Failed to corrupt row: %v", err)
			}
			if _, err := db.Load(ctx); !errors.Is(err, srs.ErrCorruptSnapshot) {
				t.Errorf("Expected ErrCorruptSnapshot, got %v", err)
			}
		})
	}
}

func TestDBSaveRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	rec := sampleStore()["c1"]
	if err := db.SaveRecord(ctx, "c1", rec); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	rec.Lapses = 2
	rec.Interval = 1
	if err := db.SaveRecord(ctx, "c1", rec); err != nil {
		t.Fatalf("SaveRecord update: %v", err)
	}

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertStoresEqual(t, srs.ReviewStore{"c1": rec}, got)
}

func TestDBSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "v.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := db.SchemaVersion(ctx)
	if err != nil || v != schemaVersion {
		t.Errorf("Expected schema version %d, got %d (%v)", schemaVersion, v, err)
	}
	if _, err := db.conn.Exec(`UPDATE meta SET value = '99' WHERE key = 'schema_version'`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Open(path); !errors.Is(err, srs.ErrUnsupportedVersion) {
		t.Errorf("Expected ErrUnsupportedVersion reopening a newer database, got %v", err)
	}
}

func TestDBHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i, rating := range []string{"Again", "Good", "Easy"} {
		err := db.AppendReview(ctx, domain.ReviewLog{
			CardID:     "c1",
			Timestamp:  t0.Add(time.Duration(i) * time.Hour),
			Rating:     rating,
			Interval:   i + 1,
			EaseFactor: 2.5,
		})
		if err != nil {
			t.Fatalf("AppendReview: %v", err)
		}
	}
	db.AppendReview(ctx, domain.ReviewLog{CardID: "other", Timestamp: t0, Rating: "Hard"})

	logs, err := db.History(ctx, "c1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(logs))
	}
	if logs[0].Rating != "Again" || logs[2].Rating != "Easy" {
		t.Errorf("Expected oldest first, got %s..%s", logs[0].Rating, logs[2].Rating)
	}
	if logs[0].ID == "" || logs[0].ID == logs[1].ID {
		t.Errorf("Expected distinct generated ids, got %q and %q", logs[0].ID, logs[1].ID)
	}
	if !logs[1].Timestamp.Equal(t0.Add(time.Hour)) {
		t.Errorf("Expected timestamp %v, got %v", t0.Add(time.Hour), logs[1].Timestamp)
	}
}

func TestDBSources(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if err := db.MarkSourceScanned(ctx, "decks/spanish", "local", 10, t0); err != nil {
		t.Fatalf("MarkSourceScanned: %v", err)
	}
	if err := db.MarkSourceScanned(ctx, "decks/spanish", "local", 12, t0.Add(time.Hour)); err != nil {
		t.Fatalf("MarkSourceScanned update: %v", err)
	}

	sources, err := db.Sources(ctx)
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("Expected 1 source, got %d", len(sources))
	}
	s := sources[0]
	if s.Cards != 12 || s.LastScanned == nil || !s.LastScanned.Equal(t0.Add(time.Hour)) {
		t.Errorf("Unexpected source %+v", s)
	}
}

func TestSchedulerOnDB(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sched.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	s := srs.Open(ctx, db, srs.WithClock(func() time.Time { return t0 }))
	for _, r := range []srs.Rating{srs.Again, srs.Good, srs.Good} {
		if _, err := s.RecordReview(ctx, "c1", r); err != nil {
			t.Fatal(err)
		}
	}
	want := s.Snapshot()
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	reloaded := srs.Open(ctx, db2)
	assertStoresEqual(t, want, reloaded.Snapshot())

	logs, err := db2.History(ctx, "c1")
	if err != nil || len(logs) != 3 {
		t.Errorf("Expected 3 logged reviews, got %d (%v)", len(logs), err)
	}
}
