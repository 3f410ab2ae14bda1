package manager

import (
	"fmt"
	"maps"
	"os"
	"reflect"
	"time"

	"github.com/predatorx7/logtopus/pkg/format"
	"github.com/predatorx7/logtopus/pkg/logger"
	"github.com/predatorx7/logtopus/pkg/model"
	"gopkg.in/yaml.v3"
)

// DriverConfig describes one named logger. Driver selects the factory; the
// other fields are read by the factories that need them.
type DriverConfig struct {
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`

	// Logger settings shared by every driver.
	Prefix          string       `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Formatter       string       `yaml:"formatter,omitempty" json:"formatter,omitempty"`
	MinLevel        string       `yaml:"min_level,omitempty" json:"min_level,omitempty"`
	EnableMetadata  *bool        `yaml:"enable_metadata,omitempty" json:"enable_metadata,omitempty"`
	TimestampFormat string       `yaml:"timestamp_format,omitempty" json:"timestamp_format,omitempty"`
	Context         model.Fields `yaml:"context,omitempty" json:"context,omitempty"`

	// console
	EnableColors *bool `yaml:"enable_colors,omitempty" json:"enable_colors,omitempty"`

	// memory, storage, indexed
	MaxLogs int `yaml:"max_logs,omitempty" json:"max_logs,omitempty"`

	// storage
	Key          string   `yaml:"key,omitempty" json:"key,omitempty"`
	Dir          string   `yaml:"dir,omitempty" json:"dir,omitempty"`
	OlricServers []string `yaml:"olric_servers,omitempty" json:"olric_servers,omitempty"`
	DMap         string   `yaml:"dmap,omitempty" json:"dmap,omitempty"`

	// indexed
	DSN   string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Table string `yaml:"table,omitempty" json:"table,omitempty"`

	// http
	Endpoint      string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	BatchSize     int               `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	BatchInterval time.Duration     `yaml:"batch_interval,omitempty" json:"batch_interval,omitempty"`
	Compress      bool              `yaml:"compress,omitempty" json:"compress,omitempty"`
	APIKey        string            `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// file
	Filename   string `yaml:"filename,omitempty" json:"filename,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`
}

// Merge returns c with every non-zero field of o applied on top. Context and
// Headers are merged key by key.
func (c DriverConfig) Merge(o DriverConfig) DriverConfig {
	out := c
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(o)
	for i := range src.NumField() {
		if f := src.Field(i); !f.IsZero() {
			dst.Field(i).Set(f)
		}
	}
	out.Context = model.Merge(c.Context, o.Context)
	if len(c.Headers) > 0 || len(o.Headers) > 0 {
		out.Headers = make(map[string]string, len(c.Headers)+len(o.Headers))
		maps.Copy(out.Headers, c.Headers)
		maps.Copy(out.Headers, o.Headers)
	}
	return out
}

// loggerConfig resolves the shared logger settings. Transports are left to
// the factory.
func (c DriverConfig) loggerConfig() (logger.Config, error) {
	var cfg logger.Config
	cfg.Prefix = c.Prefix
	cfg.Context = c.Context
	cfg.EnableMetadata = c.EnableMetadata

	f, err := format.ByName(c.Formatter)
	if err != nil {
		return cfg, err
	}
	cfg.Formatter = f

	if c.MinLevel != "" {
		if cfg.MinLevel, err = model.ParseLevel(c.MinLevel); err != nil {
			return cfg, err
		}
	}
	if cfg.TimestampFormat, err = model.ParseTimestampFormat(c.TimestampFormat); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// File is the YAML document read by Load.
//
//	default: app
//	drivers:
//	  app:
//	    driver: indexed
//	    dsn: /var/lib/app/logs.db
//	  remote:
//	    driver: http
//	    endpoint: https://collector.example.com/v1/logs
//	    batch_interval: 10s
//	stacks:
//	  everything: [console, app, remote]
type File struct {
	Default string                  `yaml:"default"`
	Drivers map[string]DriverConfig `yaml:"drivers"`
	Stacks  map[string][]string     `yaml:"stacks"`
}

// Load registers the drivers and stacks described by a YAML document.
func (m *Manager) Load(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse logging config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, cfg := range f.Drivers {
		if cfg.Driver == "" {
			cfg.Driver = name
		}
		if _, ok := m.factories[cfg.Driver]; !ok {
			return fmt.Errorf("driver %q: %w: %s", name, ErrUnknownDriver, cfg.Driver)
		}
		m.drivers[name] = cfg
	}
	for name, members := range f.Stacks {
		if len(members) == 0 {
			return fmt.Errorf("stack %q has no drivers", name)
		}
		m.stacks[name] = members
	}
	if f.Default != "" {
		m.defaultDriver = f.Default
	}
	return nil
}

// LoadFile reads and registers a YAML config file.
func (m *Manager) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read logging config: %w", err)
	}
	return m.Load(data)
}
