package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/srs"
)

const busyTimeoutMillis = 5000

// DB persists review records, the review log and content sources in SQLite.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writes.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init() error {
	if err := db.conn.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=" + strconv.Itoa(busyTimeoutMillis),
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	version, err := db.SchemaVersion(context.Background())
	if err != nil {
		return err
	}
	switch {
	case version == 0:
		_, err := db.conn.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(schemaVersion))
		if err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	case version > schemaVersion:
		return fmt.Errorf("%w: database is version %d, this build reads up to %d", srs.ErrUnsupportedVersion, version, schemaVersion)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SchemaVersion returns the stored schema version, or 0 for a fresh database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid schema version %q: %w", value, err)
	}
	return v, nil
}

// Load reads every review record.
func (db *DB) Load(ctx context.Context) (srs.ReviewStore, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id, ease_factor, interval_days, repetitions, review_count, lapses, next_review
		FROM review_records
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load review records: %w", err)
	}
	defer rows.Close()

	store := make(srs.ReviewStore)
	for rows.Next() {
		var id string
		var rec srs.ReviewRecord
		var next int64
		if err := rows.Scan(&id, &rec.EaseFactor, &rec.Interval, &rec.Repetitions, &rec.ReviewCount, &rec.Lapses, &next); err != nil {
			return nil, fmt.Errorf("failed to scan review record row: %w", err)
		}
		rec.NextReview = time.UnixMilli(next)
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		store[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review records: %w", err)
	}
	return store, nil
}

const upsertRecord = `
	INSERT INTO review_records (card_id, ease_factor, interval_days, repetitions, review_count, lapses, next_review)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(card_id) DO UPDATE SET
		ease_factor = excluded.ease_factor,
		interval_days = excluded.interval_days,
		repetitions = excluded.repetitions,
		review_count = excluded.review_count,
		lapses = excluded.lapses,
		next_review = excluded.next_review
`

// Save replaces the stored records with store.
func (db *DB) Save(ctx context.Context, store srs.ReviewStore) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM review_records`); err != nil {
		return fmt.Errorf("failed to clear review records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for id, rec := range store {
		if _, err := stmt.ExecContext(ctx, recordArgs(id, rec)...); err != nil {
			return fmt.Errorf("failed to save record %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}
	return nil
}

// SaveRecord inserts or updates one record.
func (db *DB) SaveRecord(ctx context.Context, cardID string, rec srs.ReviewRecord) error {
	if _, err := db.conn.ExecContext(ctx, upsertRecord, recordArgs(cardID, rec)...); err != nil {
		return fmt.Errorf("failed to save record %s: %w", cardID, err)
	}
	return nil
}

func recordArgs(id string, rec srs.ReviewRecord) []any {
	return []any{id, rec.EaseFactor, rec.Interval, rec.Repetitions, rec.ReviewCount, rec.Lapses, rec.NextReview.UnixMilli()}
}

// AppendReview adds an entry to the review log. An empty entry ID is
// replaced by a new ULID.
func (db *DB) AppendReview(ctx context.Context, entry domain.ReviewLog) error {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_log (id, card_id, reviewed_at, rating, interval_days, ease_factor)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.CardID, entry.Timestamp.UnixMilli(), entry.Rating, entry.Interval, entry.EaseFactor)
	if err != nil {
		return fmt.Errorf("failed to append review for %s: %w", entry.CardID, err)
	}
	return nil
}

// History returns the card's review log, oldest first.
func (db *DB) History(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, reviewed_at, rating, interval_days, ease_factor
		FROM review_log WHERE card_id = ?
		ORDER BY reviewed_at, id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		var at int64
		if err := rows.Scan(&l.ID, &l.CardID, &at, &l.Rating, &l.Interval, &l.EaseFactor); err != nil {
			return nil, fmt.Errorf("failed to scan review log row for %s: %w", cardID, err)
		}
		l.Timestamp = time.UnixMilli(at)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Source is a content source, either a local path or a Git URL.
type Source struct {
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	Cards       int        `json:"cards"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

// MarkSourceScanned records that a source was scanned and how many cards
// it yielded.
func (db *DB) MarkSourceScanned(ctx context.Context, path, sourceType string, cards int, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type, cards, last_scanned)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			type = excluded.type,
			cards = excluded.cards,
			last_scanned = excluded.last_scanned
	`, path, sourceType, cards, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source %s: %w", path, err)
	}
	return nil
}

// Sources retrieves all known content sources.
func (db *DB) Sources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path, type, cards, last_scanned
		FROM sources ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		var scanned sql.NullInt64
		if err := rows.Scan(&s.Path, &s.Type, &s.Cards, &scanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		if scanned.Valid {
			t := time.UnixMilli(scanned.Int64)
			s.LastScanned = &t
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
