// Package logging provides structured logging for printkit on top of log/slog.
//
// Library packages accept a Logger through their option structs and fall
// back to Discard when none is given; commands initialize the global logger
// from configuration and hand out component loggers.
//
// # Basic Usage
//
//	if err := logging.Init(logging.Config{Level: "debug", Format: "json"}); err != nil {
//		return err
//	}
//	defer logging.Shutdown()
//
//	log := logging.NewComponentLogger("discovery", "scanner")
//	log.Info("printer found", "printer", "10.0.0.12", "name", "lobby")
//
// # Context Fields
//
// Printer address, community and walk identifiers attached with the With*
// helpers are added to every record logged through a *Context method:
//
//	ctx = logging.WithPrinter(ctx, "10.0.0.12")
//	ctx = logging.WithWalkID(ctx, "supplies-3")
//	log.InfoContext(ctx, "walk finished", "count", 12)
//	// ... printer=10.0.0.12 walk_id=supplies-3 count=12
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Output formats. Logfmt is rendered by slog's text handler.
const (
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// Config holds logger settings. The field names match the logging section
// of the printkit configuration schema.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level" yaml:"level"`

	// Format is logfmt or json.
	Format string `json:"format" yaml:"format"`

	// Output is stdout, stderr or a file path. Parent directories of a file
	// path are created.
	Output string `json:"output" yaml:"output"`

	// AddSource adds file and line to each record.
	AddSource bool `json:"addSource" yaml:"addSource"`
}

// DefaultConfig returns info level logfmt records on stderr, leaving stdout
// to command output.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatLogfmt,
		Output: "stderr",
	}
}

var (
	globalMu       sync.RWMutex
	globalLogger   *slog.Logger
	globalCloser   io.Closer
	globalLevelVar *slog.LevelVar
)

// New builds an independent logger. The returned closer is non-nil only when
// output goes to a file and must be closed by the caller.
func New(config Config) (*slog.Logger, io.Closer, error) {
	logger, closer, _, err := build(config)
	return logger, closer, err
}

func build(config Config) (*slog.Logger, io.Closer, *slog.LevelVar, error) {
	if config.Level == "" {
		config.Level = LevelInfo
	}
	if config.Format == "" {
		config.Format = FormatLogfmt
	}
	if !ValidateLevel(config.Level) {
		return nil, nil, nil, fmt.Errorf("invalid log level: %q, must be one of: %s, %s, %s, %s",
			config.Level, LevelDebug, LevelInfo, LevelWarn, LevelError)
	}
	if !ValidateFormat(config.Format) {
		return nil, nil, nil, fmt.Errorf("invalid log format: %q, must be one of: %s, %s",
			config.Format, FormatLogfmt, FormatJSON)
	}

	writer, closer, err := openOutput(config.Output)
	if err != nil {
		return nil, nil, nil, err
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(parseLevel(config.Level))
	opts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(config.Format, FormatJSON) {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(&contextHandler{Handler: handler}), closer, levelVar, nil
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stderr", "":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	default:
		file, err := openLogFile(output)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		return file, file, nil
	}
}

// Init replaces the global logger. A previous log file is closed.
func Init(config Config) error {
	logger, closer, levelVar, err := build(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	previous := globalCloser
	globalLogger = logger
	globalCloser = closer
	globalLevelVar = levelVar
	globalMu.Unlock()

	slog.SetDefault(logger)
	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

// InitWithDefaults calls Init(DefaultConfig()).
func InitWithDefaults() error {
	return Init(DefaultConfig())
}

// Shutdown closes the global log file, if any. It is safe to call twice.
func Shutdown() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalCloser == nil {
		return nil
	}
	err := globalCloser.Close()
	globalCloser = nil
	return err
}

// SetLevel changes the level of the global logger at runtime.
func SetLevel(level string) error {
	if !ValidateLevel(level) {
		return fmt.Errorf("invalid log level: %q, must be one of: %s, %s, %s, %s",
			level, LevelDebug, LevelInfo, LevelWarn, LevelError)
	}

	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLevelVar != nil {
		globalLevelVar.Set(parseLevel(level))
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "warning":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidateLevel reports whether level names a supported log level.
func ValidateLevel(level string) bool {
	switch strings.ToLower(level) {
	case LevelDebug, LevelInfo, LevelWarn, "warning", LevelError:
		return true
	default:
		return false
	}
}

// ValidateFormat reports whether format names a supported output format.
func ValidateFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatLogfmt, FormatJSON, "text":
		return true
	default:
		return false
	}
}

// Get returns the global logger, initializing it with defaults on first use.
func Get() *slog.Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	if err := InitWithDefaults(); err != nil {
		return slog.Default()
	}
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Logger is the logging surface passed into printkit components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	// With returns a Logger that adds args to every record.
	With(args ...any) Logger
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	*slog.Logger
}

func (s slogLogger) With(args ...any) Logger {
	return slogLogger{s.Logger.With(args...)}
}

// Wrap adapts an existing *slog.Logger.
func Wrap(logger *slog.Logger) Logger {
	if logger == nil {
		return Discard()
	}
	return slogLogger{logger}
}

// NewLogger builds an independent Logger from config.
func NewLogger(config Config) (Logger, io.Closer, error) {
	logger, closer, err := New(config)
	if err != nil {
		return nil, nil, err
	}
	return slogLogger{logger}, closer, nil
}

// GetLogger returns the global logger as a Logger.
func GetLogger() Logger {
	return slogLogger{Get()}
}

// Discard returns a Logger that drops every record.
func Discard() Logger {
	return slogLogger{slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))}
}

// OrDiscard returns logger, or Discard when it is nil.
func OrDiscard(logger Logger) Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}

// ComponentLogger tags every record with component and component_type.
type ComponentLogger struct {
	Logger
	component     string
	componentType string
}

// NewComponentLogger returns a logger derived from the global logger.
//
//	log := logging.NewComponentLogger("snmp", "transport")
//	log.Debug("packet sent", "bytes", 39)
//	// ... component=snmp component_type=transport bytes=39
func NewComponentLogger(component, componentType string) *ComponentLogger {
	return &ComponentLogger{
		Logger:        GetLogger().With("component", component, "component_type", componentType),
		component:     component,
		componentType: componentType,
	}
}

// With keeps the component fields on the derived logger.
func (cl *ComponentLogger) With(args ...any) Logger {
	return &ComponentLogger{
		Logger:        cl.Logger.With(args...),
		component:     cl.component,
		componentType: cl.componentType,
	}
}

// GetComponent returns the component name.
func (cl *ComponentLogger) GetComponent() string {
	return cl.component
}

// GetComponentType returns the component type.
func (cl *ComponentLogger) GetComponentType() string {
	return cl.componentType
}

type contextKey string

const (
	keyPrinter   contextKey = "printer"
	keyCommunity contextKey = "community"
	keyRequestID contextKey = "request_id"
	keyWalkID    contextKey = "walk_id"
)

var contextKeys = []contextKey{keyPrinter, keyCommunity, keyRequestID, keyWalkID}

// WithPrinter attaches a printer address to ctx.
func WithPrinter(ctx context.Context, printer string) context.Context {
	return context.WithValue(ctx, keyPrinter, printer)
}

// WithCommunity attaches the community in use to ctx.
func WithCommunity(ctx context.Context, community string) context.Context {
	return context.WithValue(ctx, keyCommunity, community)
}

// WithRequestID attaches a request identifier to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// WithWalkID attaches a walk identifier to ctx.
func WithWalkID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyWalkID, id)
}

// contextFields returns the printkit fields stored in ctx.
func contextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

// contextHandler adds context fields to each record.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := contextFields(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

// openLogFile opens path for appending after rejecting traversal, system
// directories and symlinks.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("log file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid log file path: contains directory traversal: %s", cleanPath)
	}
	if filepath.IsAbs(cleanPath) {
		for _, p := range []string{"/etc/", "/proc/", "/sys/", "/dev/"} {
			if strings.HasPrefix(cleanPath+"/", p) {
				return nil, fmt.Errorf("log file path not allowed: %s", cleanPath)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if info, err := os.Lstat(cleanPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return nil, fmt.Errorf("refusing to open symlink for log file: %s", cleanPath)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("log path must be a regular file: %s", cleanPath)
		}
	}

	return os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
