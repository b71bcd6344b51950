package storage

// schemaVersion is stored in the meta table. Open refuses databases written
// by a newer version.
const schemaVersion = 1

const schema = `
-- Key/value settings for the database itself, including schema_version.
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- One row per card that has been reviewed at least once.
CREATE TABLE IF NOT EXISTS review_records (
    card_id TEXT PRIMARY KEY,
    ease_factor REAL NOT NULL,
    interval_days INTEGER NOT NULL,
    repetitions INTEGER NOT NULL,
    review_count INTEGER NOT NULL,
    lapses INTEGER NOT NULL,
    next_review INTEGER NOT NULL -- ms since the Unix epoch
);
CREATE INDEX IF NOT EXISTS idx_review_records_next ON review_records(next_review);

-- Append-only history of every rating.
CREATE TABLE IF NOT EXISTS review_log (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL,
    reviewed_at INTEGER NOT NULL, -- ms since the Unix epoch
    rating TEXT NOT NULL,
    interval_days INTEGER NOT NULL,
    ease_factor REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_log_card ON review_log(card_id, reviewed_at);

-- Content sources, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    path TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    cards INTEGER NOT NULL DEFAULT 0,
    last_scanned INTEGER -- ms since the Unix epoch
);
`
