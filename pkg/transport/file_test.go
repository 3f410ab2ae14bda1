package transport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/predatorx7/logtopus/pkg/model"
)

func TestFile_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	f, err := NewFile(FileConfig{Filename: path})
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}

	f.Log(model.LevelInfo, "[App] INFO: started", nil, nil)
	f.Log(model.LevelError, "[App] ERROR: failed", model.Fields{"code": 500}, nil)
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), data)
	}
	if lines[0] != "[App] INFO: started" {
		t.Errorf("Unexpected first line: %s", lines[0])
	}
	if lines[1] != `[App] ERROR: failed {"code":500}` {
		t.Errorf("Unexpected second line: %s", lines[1])
	}
}

func TestFile_RequiresFilename(t *testing.T) {
	if _, err := NewFile(FileConfig{}); err == nil {
		t.Error("Expected error without filename")
	}
}
