package storage

import (
	"fmt"

	"github.com/conorfennell/knolsrs/internal/srs"
)

// Store is a persister that holds resources until closed.
type Store interface {
	srs.Persister
	Close() error
}

var (
	_ Store            = (*DB)(nil)
	_ Store            = (*FileStore)(nil)
	_ srs.RecordSaver  = (*DB)(nil)
	_ srs.ReviewLogger = (*DB)(nil)
)

// OpenStore opens the store named by driver: "sqlite" or "json".
func OpenStore(driver, path string) (Store, error) {
	switch driver {
	case "sqlite":
		db, err := Open(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "json":
		return NewFileStore(path), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
