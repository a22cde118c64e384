// Package log provides structured logging for cardioml on top of zerolog.
//
// Estimators obtain a named logger once at construction:
//
//	var globalProvider = log.DefaultProvider()
//
//	func NewSVC() *SVC {
//		svc.logger = globalProvider.GetLoggerWithName("SVC")
//	}
//
// and log with key/value pairs built from the constants in keys.go.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger used throughout the module.
// kv is a flat list of alternating keys and values.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	With(kv ...interface{}) Logger
}

// LoggerProvider hands out loggers that share one output and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level zerolog.Level)
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, kv ...interface{}) { emit(l.zl.Debug(), msg, kv) }
func (l *zerologLogger) Info(msg string, kv ...interface{})  { emit(l.zl.Info(), msg, kv) }
func (l *zerologLogger) Warn(msg string, kv ...interface{})  { emit(l.zl.Warn(), msg, kv) }
func (l *zerologLogger) Error(msg string, kv ...interface{}) { emit(l.zl.Error(), msg, kv) }

func (l *zerologLogger) With(kv ...interface{}) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(toFields(kv)).Logger()}
}

func emit(ev *zerolog.Event, msg string, kv []interface{}) {
	if ev == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			ev = ev.Interface(key, nil)
			break
		}
		switch v := kv[i+1].(type) {
		case error:
			if key == ErrorKey {
				ev = ev.Err(v)
			} else {
				ev = ev.AnErr(key, v)
			}
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func toFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 < len(kv) {
			fields[key] = kv[i+1]
		} else {
			fields[key] = nil
		}
	}
	return fields
}

// ZerologProvider is the LoggerProvider backed by zerolog.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a provider writing human-readable output to stderr.
func NewZerologProvider(level zerolog.Level) *ZerologProvider {
	return NewZerologProviderWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
}

// NewZerologProviderWithWriter creates a provider writing to w. Tests pass a
// bytes.Buffer to get JSON lines.
func NewZerologProviderWithWriter(w io.Writer, level zerolog.Level) *ZerologProvider {
	return &ZerologProvider{base: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base}
}

func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger()}
}

func (p *ZerologProvider) SetLevel(level zerolog.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(level)
}

// ToLogLevel parses a level name. Unknown names map to info.
func ToLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

var (
	globalMu     sync.RWMutex
	globalLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()

	defaultProvider = NewZerologProvider(zerolog.InfoLevel)
)

// DefaultProvider returns the process-wide provider shared by the
// estimators. Its level follows SetupLogger.
func DefaultProvider() LoggerProvider {
	return defaultProvider
}

// SetupLogger configures the process-wide zerolog logger and global level.
func SetupLogger(level string) {
	lvl := ToLogLevel(level)
	zerolog.SetGlobalLevel(lvl)

	globalMu.Lock()
	globalLogger = globalLogger.Level(lvl)
	globalMu.Unlock()

	defaultProvider.SetLevel(lvl)
}

// GetLogger returns the process-wide zerolog logger for call sites that want
// zerolog's fluent API directly.
func GetLogger() *zerolog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	l := globalLogger
	return &l
}

// GetLoggerWithName returns a Logger tagged with component=name.
func GetLoggerWithName(name string) Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return &zerologLogger{zl: globalLogger.With().Str(ComponentKey, name).Logger()}
}

// LogError logs err at error level with its message.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	GetLogger().Error().Err(err).Msg(msg)
}
