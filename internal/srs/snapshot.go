package srs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// SchemaVersion is the version written into every snapshot.
const SchemaVersion = 1

var (
	ErrUnsupportedVersion = errors.New("srs: unsupported snapshot version")
	ErrCorruptSnapshot    = errors.New("srs: corrupt snapshot")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// snapshot is the serialized form of a ReviewStore.
type snapshot struct {
	Version int                   `json:"version"`
	Records map[string]recordJSON `json:"records"`
}

// recordJSON stores next_review as milliseconds since the Unix epoch.
type recordJSON struct {
	EaseFactor  float64 `json:"ease_factor"`
	Interval    int     `json:"interval"`
	Repetitions int     `json:"repetitions"`
	ReviewCount int     `json:"review_count"`
	Lapses      int     `json:"lapses"`
	NextReview  int64   `json:"next_review"`
}

// MarshalSnapshot encodes the store as a versioned JSON blob.
func MarshalSnapshot(store ReviewStore) ([]byte, error) {
	snap := snapshot{
		Version: SchemaVersion,
		Records: make(map[string]recordJSON, len(store)),
	}
	for id, rec := range store {
		snap.Records[id] = recordJSON{
			EaseFactor:  rec.EaseFactor,
			Interval:    rec.Interval,
			Repetitions: rec.Repetitions,
			ReviewCount: rec.ReviewCount,
			Lapses:      rec.Lapses,
			NextReview:  rec.NextReview.UnixMilli(),
		}
	}
	return json.Marshal(snap)
}

// UnmarshalSnapshot decodes a blob written by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (ReviewStore, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Version < 1 || snap.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}

	store := make(ReviewStore, len(snap.Records))
	for id, rj := range snap.Records {
		if id == "" {
			return nil, fmt.Errorf("%w: empty card id", ErrCorruptSnapshot)
		}
		rec := ReviewRecord{
			EaseFactor:  rj.EaseFactor,
			Interval:    rj.Interval,
			Repetitions: rj.Repetitions,
			ReviewCount: rj.ReviewCount,
			Lapses:      rj.Lapses,
			NextReview:  time.UnixMilli(rj.NextReview),
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		store[id] = rec
	}
	return store, nil
}
