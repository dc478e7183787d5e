package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"example.com/tinyhttpd/internal/config"
)

// LogFields carries structured context attached to a log entry.
type LogFields map[string]interface{}

// Logger bundles the error log and the access log. Both are zerolog loggers;
// the error log is leveled, the access log emits one entry per request.
// A Logger is safe for concurrent use.
type Logger struct {
	errorLog  zerolog.Logger
	accessLog *zerolog.Logger // nil when access logging is disabled

	// Files opened for log targets, closed by Close.
	files []*os.File
}

// NewLogger creates and configures a new Logger instance from the logging
// section of the configuration.
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	l := &Logger{}

	errTarget := "stderr"
	if cfg.ErrorLog != nil && cfg.ErrorLog.Target != "" {
		errTarget = cfg.ErrorLog.Target
	}
	errOut, err := l.openTarget(errTarget, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log target: %w", err)
	}
	l.errorLog = zerolog.New(errOut).
		Level(zerologLevel(cfg.LogLevel)).
		With().Timestamp().Logger()

	if cfg.AccessLog != nil && (cfg.AccessLog.Enabled == nil || *cfg.AccessLog.Enabled) {
		accTarget := "stdout"
		if cfg.AccessLog.Target != "" {
			accTarget = cfg.AccessLog.Target
		}
		accOut, err := l.openTarget(accTarget, os.Stdout)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open access log target: %w", err)
		}
		al := zerolog.New(accOut).With().Timestamp().Logger()
		l.accessLog = &al
	}

	return l, nil
}

// NewDiscardLogger returns a Logger that drops everything. Useful as a
// fallback and in tests.
func NewDiscardLogger() *Logger {
	l := &Logger{}
	l.errorLog = zerolog.New(io.Discard)
	return l
}

// NewTestLogger returns a Logger writing both streams to w, for asserting on
// log output in tests.
func NewTestLogger(w io.Writer) *Logger {
	l := &Logger{}
	l.errorLog = zerolog.New(w)
	al := zerolog.New(w)
	l.accessLog = &al
	return l
}

func (l *Logger) openTarget(target string, std *os.File) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if !config.IsFilePath(target) {
		return std, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l.files = append(l.files, f)
	return f, nil
}

func zerologLevel(lv config.LogLevel) zerolog.Level {
	switch lv {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelInfo:
		return zerolog.InfoLevel
	case config.LogLevelWarning:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func emit(ev *zerolog.Event, msg string, fields LogFields) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Debug logs a debug-level entry to the error log.
func (l *Logger) Debug(msg string, fields LogFields) { emit(l.errorLog.Debug(), msg, fields) }

// Info logs an info-level entry to the error log.
func (l *Logger) Info(msg string, fields LogFields) { emit(l.errorLog.Info(), msg, fields) }

// Warn logs a warning-level entry to the error log.
func (l *Logger) Warn(msg string, fields LogFields) { emit(l.errorLog.Warn(), msg, fields) }

// Error logs an error-level entry to the error log.
func (l *Logger) Error(msg string, fields LogFields) { emit(l.errorLog.Error(), msg, fields) }

// Access writes one access log entry for a completed request.
func (l *Logger) Access(remoteAddr, method, path string, status int, respBytes int64, duration time.Duration) {
	if l.accessLog == nil {
		return
	}
	l.accessLog.Log().
		Str("remote_addr", remoteAddr).
		Str("method", method).
		Str("uri", path).
		Int("status", status).
		Int64("resp_bytes", respBytes).
		Int64("duration_ms", duration.Milliseconds()).
		Send()
}

// Close closes any log files opened for file targets.
func (l *Logger) Close() {
	for _, f := range l.files {
		f.Close()
	}
	l.files = nil
}
