package subscriber

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/predatorx7/logtopus/pkg/model"
)

// MockSubscriberBroker hands out a fixed channel.
type MockSubscriberBroker struct {
	SubCh chan []model.LogEntry
	Err   error
}

func (m *MockSubscriberBroker) Subscribe(ctx context.Context) (<-chan []model.LogEntry, error) {
	return m.SubCh, m.Err
}

func TestConsume(t *testing.T) {
	ch := make(chan []model.LogEntry, 2)
	ch <- []model.LogEntry{{Message: "a"}}
	ch <- []model.LogEntry{{Message: "b"}, {Message: "c"}}
	close(ch)

	var got []string
	err := Consume(context.Background(), &MockSubscriberBroker{SubCh: ch}, func(_ context.Context, batch []model.LogEntry) {
		for _, e := range batch {
			got = append(got, e.Message)
		}
	})
	if err != nil {
		t.Fatalf("Expected nil on closed subscription, got %v", err)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Expected [a b c], got %v", got)
	}
}

func TestConsume_ContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Consume(ctx, &MockSubscriberBroker{SubCh: make(chan []model.LogEntry)}, func(context.Context, []model.LogEntry) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestConsume_SubscribeError(t *testing.T) {
	err := Consume(context.Background(), &MockSubscriberBroker{Err: errors.New("closed")}, nil)
	if err == nil {
		t.Error("Expected subscribe error")
	}
}
