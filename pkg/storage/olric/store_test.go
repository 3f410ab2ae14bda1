package olric

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	olriclib "github.com/olric-data/olric"
	"github.com/olric-data/olric/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// startNode runs a single embedded Olric member and returns a store on it.
func startNode(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("starts an embedded Olric node")
	}

	c := config.New("local")
	c.BindAddr = "127.0.0.1"
	c.BindPort = freePort(t)
	c.MemberlistConfig.BindAddr = "127.0.0.1"
	c.MemberlistConfig.BindPort = freePort(t)
	c.LogOutput = io.Discard

	started := make(chan struct{})
	c.Started = func() { close(started) }

	db, err := olriclib.New(c)
	if err != nil {
		t.Fatalf("Failed to create Olric node: %v", err)
	}
	go func() {
		if err := db.Start(); err != nil {
			t.Errorf("Olric node stopped: %v", err)
		}
	}()
	select {
	case <-started:
	case <-time.After(30 * time.Second):
		t.Fatal("Timeout waiting for the Olric node")
	}
	t.Cleanup(func() { db.Shutdown(context.Background()) })

	s, err := newStore(db.NewEmbeddedClient(), Config{DMap: "test-logs"})
	if err != nil {
		t.Fatalf("newStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_MissingKey(t *testing.T) {
	s := startNode(t)

	v, ok, err := s.Get("absent")
	if err != nil {
		t.Fatalf("Expected no error for a missing key, got %v", err)
	}
	if ok || v != "" {
		t.Errorf("Expected (\"\", false), got (%q, %v)", v, ok)
	}
}

func TestStore_SetGetRemove(t *testing.T) {
	s := startNode(t)

	if err := s.Set("app_logs", `[{"message":"a"}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := s.Get("app_logs")
	if err != nil || !ok {
		t.Fatalf("Expected stored value, got ok=%v err=%v", ok, err)
	}
	if v != `[{"message":"a"}]` {
		t.Errorf("Expected the stored list, got %s", v)
	}

	if err := s.Remove("app_logs"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, _ := s.Get("app_logs"); ok {
		t.Error("Expected key removed")
	}
}
