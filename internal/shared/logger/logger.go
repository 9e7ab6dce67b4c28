// Package logger provides the structured logging surface used by
// connpool's pool and CLI layers.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logging interface connpool logs through.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	WithContext(ctx context.Context) Logger
	WithFields(fields ...Field) Logger
}

// Field is one structured logging attribute.
type Field struct {
	Key   string
	Value interface{}
}

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	logger zerolog.Logger
	fields []Field
}

var (
	globalLogger *ZeroLogger
	once         sync.Once
)

// Config configures the global logger.
type Config struct {
	Level  string // trace|debug|info|warn|error
	Format string // "console" for human-readable, anything else for JSON
	Output io.Writer
}

// Initialize sets up the global logger. Safe to call more than once; only
// the first call takes effect.
func Initialize(cfg Config) {
	once.Do(func() {
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		if cfg.Format == "console" {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}

		zerolog.SetGlobalLevel(parseLevel(cfg.Level))
		globalLogger = &ZeroLogger{logger: zerolog.New(out).With().Timestamp().Logger()}
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() Logger {
	if globalLogger == nil {
		Initialize(Config{Level: "info"})
	}
	return globalLogger
}

// New returns a logger scoped to a named component.
func New(component string) Logger {
	return Get().WithFields(String("component", component))
}

// WithContext attaches the active trace ID from ctx, if any.
func (l *ZeroLogger) WithContext(ctx context.Context) Logger {
	next := &ZeroLogger{logger: l.logger, fields: append([]Field{}, l.fields...)}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		next.fields = append(next.fields, String("trace_id", span.SpanContext().TraceID().String()))
	}
	return next
}

// WithFields returns a logger that always includes the given fields.
func (l *ZeroLogger) WithFields(fields ...Field) Logger {
	return &ZeroLogger{
		logger: l.logger,
		fields: append(append([]Field{}, l.fields...), fields...),
	}
}

func (l *ZeroLogger) Debug(msg string, fields ...Field) { l.log(l.logger.Debug(), msg, fields) }
func (l *ZeroLogger) Info(msg string, fields ...Field)  { l.log(l.logger.Info(), msg, fields) }
func (l *ZeroLogger) Warn(msg string, fields ...Field)  { l.log(l.logger.Warn(), msg, fields) }
func (l *ZeroLogger) Error(msg string, fields ...Field) { l.log(l.logger.Error(), msg, fields) }

func (l *ZeroLogger) log(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range l.fields {
		event = addField(event, f)
	}
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

func addField(event *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case int64:
		return event.Int64(f.Key, v)
	case float64:
		return event.Float64(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Time:
		return event.Time(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case error:
		return event.AnErr(f.Key, v)
	default:
		return event.Interface(f.Key, v)
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Field constructors.

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d} }
func Err(err error) Field                        { return Field{Key: "error", Value: err} }
func Any(key string, value interface{}) Field    { return Field{Key: key, Value: value} }
