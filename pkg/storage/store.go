package storage

import (
	"context"
	"errors"

	"github.com/predatorx7/logtopus/pkg/model"
)

// ErrUnavailable is returned by an Opener when the backing store does not
// exist in the running environment. Transports treat it as "silently disabled".
var ErrUnavailable = errors.New("storage unavailable")

// QueryParams defines criteria for filtering stored entries.
// From and To are inclusive and compared as encoded timestamp strings.
type QueryParams struct {
	From  string
	To    string
	Limit int
	Level model.Level
}

// KeyValue is a synchronous string store, the shape of browser local storage.
type KeyValue interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Indexed is an auto-incrementing entry store indexed by level and timestamp.
type Indexed interface {
	// Add inserts entry and returns the store-assigned id.
	Add(ctx context.Context, entry model.LogEntry) (int64, error)
	Count(ctx context.Context) (int, error)
	// Oldest returns the ids of the n oldest entries by timestamp.
	Oldest(ctx context.Context, n int) ([]int64, error)
	Delete(ctx context.Context, ids []int64) error
	// Query returns matching entries newest-first.
	Query(ctx context.Context, params QueryParams) ([]model.LogEntry, error)
	Clear(ctx context.Context) error
	Close() error
}

// Opener opens an Indexed store. It may block; callers run it asynchronously.
type Opener func(ctx context.Context) (Indexed, error)

// Match reports whether entry satisfies params. Limit is not considered.
func Match(entry model.LogEntry, params QueryParams) bool {
	if params.Level != 0 && entry.Level != params.Level {
		return false
	}
	if params.From != "" && entry.Timestamp < params.From {
		return false
	}
	if params.To != "" && entry.Timestamp > params.To {
		return false
	}
	return true
}
