package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"

	"parkarena/broker/internal/config"
)

// TraceIDHeader is the canonical HTTP header for propagating trace IDs between services.
const TraceIDHeader = "X-Trace-ID"

// TraceIDField is the canonical structured logging field for trace identifiers.
const TraceIDField = "trace_id"

type contextKey string

var (
	loggerContextKey = contextKey("parkarena-logger")
	traceContextKey  = contextKey("parkarena-trace-id")

	globalMu     sync.RWMutex
	globalLogger = newNopLogger()
)

// Level represents log verbosity ordering.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	return l.zerolog().String()
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a textual level onto Level. Blank input means info.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}

// Field represents a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// String returns a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Strings returns a string slice field.
func Strings(key string, values []string) Field { return Field{Key: key, Value: values} }

// Int returns an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 returns an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint64 returns a uint64 field.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Float64 returns a float64 field.
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool returns a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration returns a duration field.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Error returns an error field.
func Error(err error) Field { return Field{Key: "error", Value: err} }

// Logger emits structured logs through zerolog with optional contextual fields.
type Logger struct {
	zl    zerolog.Logger
	sinks *sinkSet
}

// syncWriter describes a writer that can flush to durable storage.
type syncWriter interface {
	io.Writer
	Sync() error
}

// sinkSet tracks the writers that need flushing or closing on shutdown.
type sinkSet struct {
	syncers []syncWriter
	closers []io.Closer
}

func (s *sinkSet) sync() error {
	if s == nil {
		return nil
	}
	var firstErr error
	for _, w := range s.syncers {
		if err := w.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *sinkSet) close() error {
	if s == nil {
		return nil
	}
	firstErr := s.sync()
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// New constructs a logger that writes JSON to a rotating file, mirrors to the
// console when enabled and forwards to Graylog when an address is configured.
func New(cfg config.LoggingConfig) (*Logger, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("logging path must be specified")
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	//1.- The rotating file is always present so operators get a local trail.
	file, err := newRotatingWriter(cfg)
	if err != nil {
		return nil, err
	}
	sinks := &sinkSet{syncers: []syncWriter{file}, closers: []io.Closer{file}}
	writers := []io.Writer{file}
	//2.- Console output uses the human readable zerolog formatter.
	if cfg.Console && os.Stdout != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	//3.- Graylog is optional; a dial failure aborts startup rather than silently dropping logs.
	if addr := strings.TrimSpace(cfg.GraylogAddr); addr != "" {
		gw, err := gelf.NewWriter(addr)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("connect graylog %s: %w", addr, err)
		}
		writers = append(writers, gw)
		sinks.closers = append(sinks.closers, gw)
	}
	logger := newLogger(zerolog.MultiLevelWriter(writers...), level, sinks)
	ReplaceGlobals(logger)
	return logger, nil
}

// NewWithWriter builds a logger writing JSON lines to w. Intended for tools and tests.
func NewWithWriter(w io.Writer, level Level) *Logger {
	if w == nil {
		w = io.Discard
	}
	return newLogger(w, level, nil)
}

// NewTestLogger returns a logger that discards output, suitable for tests.
func NewTestLogger() *Logger {
	return newNopLogger()
}

func newNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func newLogger(w io.Writer, level Level, sinks *sinkSet) *Logger {
	zl := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Str("service", "parkarena").Logger()
	return &Logger{zl: zl, sinks: sinks}
}

// ReplaceGlobals swaps the fallback logger used when no context logger is present.
func ReplaceGlobals(logger *Logger) {
	if logger == nil {
		return
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// L returns the current global logger.
func L() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// With augments the logger with additional structured fields.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return L().With(fields...)
	}
	ctx := l.zl.With()
	for _, field := range fields {
		ctx = appendContext(ctx, field)
	}
	return &Logger{zl: ctx.Logger(), sinks: l.sinks}
}

// Sync flushes buffered output to durable storage.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.sinks.sync()
}

// Close flushes and releases every sink owned by the logger.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.sinks.close()
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields ...Field) { l.log(DebugLevel, message, fields...) }

// Info logs an informational message.
func (l *Logger) Info(message string, fields ...Field) { l.log(InfoLevel, message, fields...) }

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields ...Field) { l.log(WarnLevel, message, fields...) }

// Error logs an error message.
func (l *Logger) Error(message string, fields ...Field) { l.log(ErrorLevel, message, fields...) }

// Fatal logs a fatal message and exits the process.
func (l *Logger) Fatal(message string, fields ...Field) { l.log(FatalLevel, message, fields...) }

func (l *Logger) log(level Level, message string, fields ...Field) {
	if l == nil {
		L().log(level, message, fields...)
		return
	}
	//1.- WithLevel never exits on its own, so fatal handling stays explicit below.
	event := l.zl.WithLevel(level.zerolog())
	if event != nil {
		for _, field := range fields {
			event = appendEvent(event, field)
		}
		event.Msg(message)
	}
	if level == FatalLevel {
		_ = l.Sync()
		os.Exit(1)
	}
}

func appendContext(ctx zerolog.Context, field Field) zerolog.Context {
	switch value := field.Value.(type) {
	case string:
		return ctx.Str(field.Key, value)
	case []string:
		return ctx.Strs(field.Key, value)
	case int:
		return ctx.Int(field.Key, value)
	case int64:
		return ctx.Int64(field.Key, value)
	case uint64:
		return ctx.Uint64(field.Key, value)
	case float64:
		return ctx.Float64(field.Key, value)
	case bool:
		return ctx.Bool(field.Key, value)
	case time.Duration:
		return ctx.Dur(field.Key, value)
	case error:
		return ctx.AnErr(field.Key, value)
	default:
		return ctx.Interface(field.Key, value)
	}
}

func appendEvent(event *zerolog.Event, field Field) *zerolog.Event {
	switch value := field.Value.(type) {
	case string:
		return event.Str(field.Key, value)
	case []string:
		return event.Strs(field.Key, value)
	case int:
		return event.Int(field.Key, value)
	case int64:
		return event.Int64(field.Key, value)
	case uint64:
		return event.Uint64(field.Key, value)
	case float64:
		return event.Float64(field.Key, value)
	case bool:
		return event.Bool(field.Key, value)
	case time.Duration:
		return event.Dur(field.Key, value)
	case error:
		return event.AnErr(field.Key, value)
	default:
		return event.Interface(field.Key, value)
	}
}

// ContextWithLogger stores a logger in the provided context.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// LoggerFromContext retrieves a logger from context or falls back to the global logger.
func LoggerFromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return L()
	}
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok && logger != nil {
		return logger
	}
	return L()
}

// ContextWithTraceID stores a trace identifier in context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceContextKey, traceID)
}

// TraceIDFromContext extracts a trace identifier from context.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(traceContextKey).(string); ok {
		return traceID
	}
	return ""
}

// GenerateTraceID creates a random 16-byte trace identifier represented as hex.
func GenerateTraceID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return hex.EncodeToString(buf[:])
	}
	return fmt.Sprintf("%x", time.Now().UnixNano())
}

// WithTrace enriches the context with a trace ID and returns the derived logger.
func WithTrace(ctx context.Context, base *Logger, traceID string) (context.Context, *Logger, string) {
	tid := strings.TrimSpace(traceID)
	if tid == "" {
		tid = GenerateTraceID()
	}
	if base == nil {
		base = L()
	}
	derived := base.With(String(TraceIDField, tid))
	ctx = ContextWithTraceID(ctx, tid)
	ctx = ContextWithLogger(ctx, derived)
	return ctx, derived, tid
}

// HTTPTraceMiddleware ensures every request has a trace identifier propagated through context and headers.
func HTTPTraceMiddleware(base *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			incoming := strings.TrimSpace(r.Header.Get(TraceIDHeader))
			ctx, logger, traceID := WithTrace(r.Context(), base, incoming)
			r = r.WithContext(ctx)
			w.Header().Set(TraceIDHeader, traceID)
			logger.Debug("request received", String("method", r.Method), String("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}
