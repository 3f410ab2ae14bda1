package transport

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/model"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures the rotating file transport.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int  // rotate after this many megabytes, default 10
	MaxBackups int  // rotated files to keep, default 5
	MaxAgeDays int  // days to keep rotated files, 0 keeps them
	Compress   bool // gzip rotated files
	ErrorLog   *zap.Logger
}

// File appends one line per record to a size-rotated file.
type File struct {
	mu     sync.Mutex
	w      *lumberjack.Logger
	errLog *zap.Logger
}

func NewFile(cfg FileConfig) (*File, error) {
	if cfg.Filename == "" {
		return nil, errors.New("file transport: filename is required")
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	return &File{
		w: &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		errLog: diag.Or(cfg.ErrorLog).Named("file"),
	}, nil
}

// Log writes "message" or "message {data}" followed by a newline.
func (f *File) Log(level model.Level, message string, metadata, logCtx model.Fields) {
	line := []byte(message)
	if data := combine(metadata, logCtx); data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			f.errLog.Error("failed to encode log data", zap.Error(err))
		} else {
			line = append(append(line, ' '), encoded...)
		}
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.w.Write(line); err != nil {
		f.errLog.Error("failed to write log file", zap.String("file", f.w.Filename), zap.Error(err))
	}
}

// Rotate closes the current file and starts a new one.
func (f *File) Rotate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Rotate()
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Close()
}
