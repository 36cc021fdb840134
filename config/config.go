// Package config loads printkit configuration from YAML or JSON files
// validated against a CUE schema.
//
// Schema defaults are merged under the user's file, so every path declared in
// the schema resolves even when the file omits it. The embedded Schema
// describes the printkit settings; callers may supply their own schema for
// tools that embed the loader.
//
// # Basic Usage
//
//	manager, err := config.NewManager(config.Options{
//		ConfigPath:            "/etc/printkit/printkit.yaml",
//		EnableConfigHotReload: true,
//	})
//	if err != nil {
//		return err
//	}
//	defer manager.Close()
//
//	community := config.DefaultCommunity(manager)
//	timeout, _ := manager.GetDuration("snmp.timeout")
//
// # Environment Variables
//
// Files may reference the environment before parsing:
//
//	snmp:
//	  community: "${PRINTKIT_COMMUNITY:-public}"
//	metrics:
//	  listen: $PRINTKIT_METRICS_LISTEN
//
// # Hot Reload
//
// With hot reload enabled the manager re-reads the file on change and keeps
// the previous configuration when the new one fails validation:
//
//	manager.OnConfigChange(func(err error) {
//		if err != nil {
//			log.Warn("config reload failed", "error", err)
//		}
//	})
package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geekxflood/printkit/logging"
)

// Provider gives typed access to configuration values by dot-separated path,
// such as "snmp.timeout". When a path is missing the first default is
// returned if given, otherwise an error.
type Provider interface {
	GetString(path string, defaultValue ...string) (string, error)
	GetInt(path string, defaultValue ...int) (int, error)
	GetFloat(path string, defaultValue ...float64) (float64, error)
	GetBool(path string, defaultValue ...bool) (bool, error)

	// GetDuration parses a string value with time.ParseDuration.
	GetDuration(path string, defaultValue ...time.Duration) (time.Duration, error)

	GetStringSlice(path string, defaultValue ...[]string) ([]string, error)

	// GetMap returns a deep copy of a nested section.
	GetMap(path string) (map[string]any, error)

	Exists(path string) bool

	// Validate checks the merged configuration against the schema.
	Validate() error
}

// Manager is a Provider that owns file watching and reloads.
type Manager interface {
	Provider

	// StartHotReload watches the files selected in Options until ctx is done
	// or StopHotReload is called.
	StartHotReload(ctx context.Context) error
	StopHotReload()

	// OnConfigChange registers a callback run after every reload attempt
	// with its error, nil on success.
	OnConfigChange(callback func(error))

	// Reload re-reads schema and file. On failure the current configuration
	// stays in effect.
	Reload() error

	Close() error
}

// Options selects the schema and configuration file.
type Options struct {
	// SchemaPath is a CUE file or directory. SchemaContent is inline CUE.
	// At most one may be set; with neither the embedded Schema is used.
	SchemaPath    string
	SchemaContent string

	// ConfigPath is a .yaml, .yml or .json file. Empty means schema defaults
	// only.
	ConfigPath string

	// EnableSchemaHotReload watches SchemaPath. It cannot be combined with
	// SchemaContent.
	EnableSchemaHotReload bool

	// EnableConfigHotReload watches ConfigPath.
	EnableConfigHotReload bool

	// HotReloadContext bounds hot reload started by NewManager. Nil means
	// context.Background().
	HotReloadContext context.Context

	// Logger receives reload records. Nil discards them.
	Logger logging.Logger
}

type manager struct {
	options Options
	logger  logging.Logger

	mu       sync.RWMutex
	schema   *schema
	data     map[string]any
	reloader *reloader

	listenersMu sync.Mutex
	listeners   []func(error)
}

func validateOptions(options Options) error {
	if options.SchemaPath != "" && options.SchemaContent != "" {
		return errors.New("cannot specify both schema path and schema content")
	}
	if options.EnableSchemaHotReload && options.SchemaPath == "" {
		return errors.New("schema hot reload requires a schema path")
	}
	if options.EnableConfigHotReload && options.ConfigPath == "" {
		return errors.New("config hot reload requires a config path")
	}
	return nil
}

// NewManager loads the schema and configuration file and, when requested,
// starts hot reload.
func NewManager(options Options) (Manager, error) {
	if err := validateOptions(options); err != nil {
		return nil, err
	}

	m := &manager{
		options: options,
		logger:  logging.OrDiscard(options.Logger),
	}
	if err := m.load(); err != nil {
		return nil, err
	}

	if options.EnableSchemaHotReload || options.EnableConfigHotReload {
		ctx := options.HotReloadContext
		if ctx == nil {
			ctx = context.Background()
		}
		if err := m.StartHotReload(ctx); err != nil {
			return nil, fmt.Errorf("failed to start hot reload: %w", err)
		}
	}

	return m, nil
}

// load builds a fresh schema and merged configuration and swaps them in
// only when both succeed.
func (m *manager) load() error {
	var (
		s   *schema
		err error
	)
	switch {
	case m.options.SchemaContent != "":
		s, err = compileSchema(m.options.SchemaContent, "inline-schema")
	case m.options.SchemaPath != "":
		s, err = loadSchema(m.options.SchemaPath)
	default:
		s, err = compileSchema(Schema, "schema.cue")
	}
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	defaults, err := s.defaults()
	if err != nil {
		return err
	}

	user := map[string]any{}
	if m.options.ConfigPath != "" {
		if user, err = readConfigFile(m.options.ConfigPath); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
		if err := s.validate(user); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	merged := merge(defaults, user)

	m.mu.Lock()
	m.schema = s
	m.data = merged
	m.mu.Unlock()
	return nil
}

func (m *manager) lookup(path string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return valueAt(m.data, path)
}

// get resolves path and converts it, falling back to the first default when
// the path is missing.
func get[T any](m *manager, path string, convert func(any) (T, bool), kind string, defaults []T) (T, error) {
	var zero T
	value, err := m.lookup(path)
	if err != nil {
		if len(defaults) > 0 {
			return defaults[0], nil
		}
		return zero, err
	}
	out, ok := convert(value)
	if !ok {
		return zero, fmt.Errorf("value at path %s is not %s: %T", path, kind, value)
	}
	return out, nil
}

func (m *manager) GetString(path string, defaultValue ...string) (string, error) {
	return get(m, path, func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	}, "a string", defaultValue)
}

func (m *manager) GetInt(path string, defaultValue ...int) (int, error) {
	return get(m, path, func(v any) (int, bool) {
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			return int(n), true
		}
		return 0, false
	}, "an integer", defaultValue)
}

func (m *manager) GetFloat(path string, defaultValue ...float64) (float64, error) {
	return get(m, path, func(v any) (float64, bool) {
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		return 0, false
	}, "a float", defaultValue)
}

func (m *manager) GetBool(path string, defaultValue ...bool) (bool, error) {
	return get(m, path, func(v any) (bool, bool) {
		b, ok := v.(bool)
		return b, ok
	}, "a boolean", defaultValue)
}

func (m *manager) GetDuration(path string, defaultValue ...time.Duration) (time.Duration, error) {
	raw, err := get(m, path, func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	}, "a duration string", nil)
	if err != nil {
		if len(defaultValue) > 0 && !m.Exists(path) {
			return defaultValue[0], nil
		}
		return 0, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration at path %s: %w", path, err)
	}
	return d, nil
}

func (m *manager) GetStringSlice(path string, defaultValue ...[]string) ([]string, error) {
	return get(m, path, func(v any) ([]string, bool) {
		switch items := v.(type) {
		case []string:
			return append([]string(nil), items...), true
		case []any:
			out := make([]string, len(items))
			for i, item := range items {
				s, ok := item.(string)
				if !ok {
					return nil, false
				}
				out[i] = s
			}
			return out, true
		}
		return nil, false
	}, "a string slice", defaultValue)
}

func (m *manager) GetMap(path string) (map[string]any, error) {
	return get(m, path, func(v any) (map[string]any, bool) {
		section, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		return deepCopy(section), true
	}, "a map", nil)
}

func (m *manager) Exists(path string) bool {
	_, err := m.lookup(path)
	return err == nil
}

func (m *manager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schema.validate(m.data)
}

func (m *manager) StartHotReload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reloader != nil {
		return errors.New("hot reload already started")
	}

	var paths []string
	if m.options.EnableConfigHotReload && m.options.ConfigPath != "" {
		paths = append(paths, m.options.ConfigPath)
	}
	if m.options.EnableSchemaHotReload && m.options.SchemaPath != "" {
		paths = append(paths, m.options.SchemaPath)
	}
	if len(paths) == 0 {
		return errors.New("no files to watch: enable config or schema hot reload with a file path")
	}

	r, err := startReloader(ctx, paths, m.reloadFromWatch, m.logger)
	if err != nil {
		return err
	}
	m.reloader = r
	return nil
}

func (m *manager) StopHotReload() {
	m.mu.Lock()
	r := m.reloader
	m.reloader = nil
	m.mu.Unlock()

	if r != nil {
		r.stop()
	}
}

func (m *manager) OnConfigChange(callback func(error)) {
	if callback == nil {
		return
	}
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, callback)
}

func (m *manager) notify(err error) {
	m.listenersMu.Lock()
	listeners := append(([]func(error))(nil), m.listeners...)
	m.listenersMu.Unlock()

	for _, callback := range listeners {
		callback(err)
	}
}

func (m *manager) Reload() error {
	return m.load()
}

func (m *manager) reloadFromWatch() {
	err := m.load()
	if err != nil {
		m.logger.Warn("configuration reload failed", "path", m.options.ConfigPath, "error", err)
		err = fmt.Errorf("configuration reload failed: %w", err)
	} else {
		m.logger.Info("configuration reloaded", "path", m.options.ConfigPath)
	}
	m.notify(err)
}

func (m *manager) Close() error {
	m.StopHotReload()
	return nil
}
