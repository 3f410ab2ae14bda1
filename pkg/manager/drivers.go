package manager

import (
	"context"
	"fmt"

	"github.com/predatorx7/logtopus/pkg/logger"
	"github.com/predatorx7/logtopus/pkg/storage"
	"github.com/predatorx7/logtopus/pkg/storage/file"
	"github.com/predatorx7/logtopus/pkg/storage/memory"
	olricstore "github.com/predatorx7/logtopus/pkg/storage/olric"
	"github.com/predatorx7/logtopus/pkg/storage/sqlite"
	"github.com/predatorx7/logtopus/pkg/transport"
)

var builtins = map[string]Factory{
	"console": consoleDriver,
	"memory":  memoryDriver,
	"storage": storageDriver,
	"indexed": indexedDriver,
	"http":    httpDriver,
	"file":    fileDriver,
}

func with(base logger.Config, t transport.Transport) *logger.Logger {
	base.Transports = []transport.Transport{t}
	return logger.New(base)
}

func consoleDriver(cfg DriverConfig, base logger.Config) (*logger.Logger, error) {
	colors := true
	if cfg.EnableColors != nil {
		colors = *cfg.EnableColors
	}
	return with(base, transport.NewConsole(transport.ConsoleConfig{EnableColors: colors})), nil
}

func memoryDriver(cfg DriverConfig, base logger.Config) (*logger.Logger, error) {
	return with(base, transport.NewMemory(transport.MemoryConfig{MaxLogs: cfg.MaxLogs})), nil
}

// storageDriver picks the key/value backend: an Olric cluster, a directory of
// JSON files, or process memory, in that order of preference.
func storageDriver(cfg DriverConfig, base logger.Config) (*logger.Logger, error) {
	var kv storage.KeyValue
	switch {
	case len(cfg.OlricServers) > 0:
		s, err := olricstore.NewStore(olricstore.Config{Servers: cfg.OlricServers, DMap: cfg.DMap})
		if err != nil {
			return nil, err
		}
		kv = s
	case cfg.Dir != "":
		s, err := file.NewStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		kv = s
	default:
		kv = memory.NewKeyValue()
	}
	return with(base, transport.NewKeyValue(transport.KeyValueConfig{
		Store:    kv,
		Key:      cfg.Key,
		MaxLogs:  cfg.MaxLogs,
		ErrorLog: base.ErrorLog,
	})), nil
}

// indexedDriver uses SQLite when a DSN is configured and an in-process store
// otherwise.
func indexedDriver(cfg DriverConfig, base logger.Config) (*logger.Logger, error) {
	var open storage.Opener
	if cfg.DSN != "" {
		open = sqlite.Opener(cfg.DSN, cfg.Table)
	} else {
		open = func(context.Context) (storage.Indexed, error) { return memory.NewIndexed(), nil }
	}
	return with(base, transport.NewIndexed(transport.IndexedConfig{
		Open:     open,
		MaxLogs:  cfg.MaxLogs,
		ErrorLog: base.ErrorLog,
	})), nil
}

func httpDriver(cfg DriverConfig, base logger.Config) (*logger.Logger, error) {
	t, err := transport.NewHTTP(transport.HTTPConfig{
		Endpoint:      cfg.Endpoint,
		Headers:       cfg.Headers,
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval,
		Compress:      cfg.Compress,
		APIKey:        cfg.APIKey,
		ErrorLog:      base.ErrorLog,
	})
	if err != nil {
		return nil, err
	}
	return with(base, t), nil
}

func fileDriver(cfg DriverConfig, base logger.Config) (*logger.Logger, error) {
	if cfg.Filename == "" {
		return nil, fmt.Errorf("file driver: filename is required")
	}
	t, err := transport.NewFile(transport.FileConfig{
		Filename:   cfg.Filename,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		ErrorLog:   base.ErrorLog,
	})
	if err != nil {
		return nil, err
	}
	return with(base, t), nil
}
