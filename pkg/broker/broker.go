// Package broker decouples the collector's HTTP handler from the subscribers
// persisting accepted batches.
package broker

import (
	"context"
	"errors"

	"github.com/predatorx7/logtopus/pkg/model"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("broker closed")

// Publisher defines the interface for publishing log entries.
type Publisher interface {
	Publish(ctx context.Context, logs []model.LogEntry) error
}

// Subscriber defines the interface for consuming log entries. The channel is
// closed when ctx is done or the broker is closed.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan []model.LogEntry, error)
}

// Stats are cumulative counters since the broker was created.
type Stats struct {
	Ingested    uint64 `json:"ingested"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// Broker combines Publisher and Subscriber interfaces.
type Broker interface {
	Publisher
	Subscriber
	Stats() Stats
	Close() error
}
