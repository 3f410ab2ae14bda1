// Package olric implements storage.KeyValue on an Olric distributed map, so
// several processes can share one persistent log list.
package olric

import (
	"context"
	"errors"
	"fmt"
	"time"

	olriclib "github.com/olric-data/olric"
)

// Config holds configuration for the Olric-backed store
type Config struct {
	// Servers is a list of Olric server addresses (e.g., ["localhost:3320"])
	// If empty, defaults to ["localhost:3320"]
	Servers []string

	// DMap is the distributed map holding the keys. Defaults to "logtopus".
	DMap string

	// Timeout bounds each operation. Defaults to 5 seconds.
	Timeout time.Duration
}

type Store struct {
	client  olriclib.Client
	dm      olriclib.DMap
	timeout time.Duration
}

// NewStore connects to the cluster and opens the configured DMap.
func NewStore(cfg Config) (*Store, error) {
	servers := cfg.Servers
	if len(servers) == 0 {
		servers = []string{"localhost:3320"}
	}
	client, err := olriclib.NewClusterClient(servers)
	if err != nil {
		return nil, fmt.Errorf("failed to create Olric cluster client: %w", err)
	}
	return newStore(client, cfg)
}

// newStore opens the configured DMap on client. The store owns client and
// closes it on failure.
func newStore(client olriclib.Client, cfg Config) (*Store, error) {
	name := cfg.DMap
	if name == "" {
		name = "logtopus"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	dm, err := client.NewDMap(name)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("failed to create DMap %s: %w", name, err)
	}

	return &Store{client: client, dm: dm, timeout: timeout}, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	gr, err := s.dm.Get(ctx, key)
	if errors.Is(err, olriclib.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	v, err := gr.String()
	if err != nil {
		return "", false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.dm.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.dm.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the Olric client connection
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Close(ctx)
}
