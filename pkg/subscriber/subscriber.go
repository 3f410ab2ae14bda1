// Package subscriber holds the consumers persisting batches accepted by the
// collector. Each backend lives in its own subpackage.
package subscriber

import (
	"context"
	"fmt"

	"github.com/predatorx7/logtopus/pkg/broker"
	"github.com/predatorx7/logtopus/pkg/model"
)

// Handler processes one batch. It owns error reporting.
type Handler func(ctx context.Context, batch []model.LogEntry)

// Consume subscribes to b and passes every batch to handle until ctx is done
// or the broker closes the subscription. A closed subscription returns nil.
func Consume(ctx context.Context, b broker.Subscriber, handle Handler) error {
	ch, err := b.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-ch:
			if !ok {
				return nil
			}
			handle(ctx, batch)
		}
	}
}
