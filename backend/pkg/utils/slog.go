package utils

import (
	"bytes"
	"log/slog"
	"time"
)

const logTimeFormat = "2006-01-02 15:04:05"

// ErrAttr returns a slog attribute for an error under the "error" key.
func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

// SlogReplacer renders time and duration attributes as human readable strings.
func SlogReplacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindTime:
		return slog.String(a.Key, a.Value.Time().Format(logTimeFormat))
	case slog.KindDuration:
		return slog.String(a.Key, a.Value.Duration().String())
	default:
		return a
	}
}

// LogOnError calls fn and logs msg if it returns an error. Meant for deferred Close calls.
func LogOnError(l *slog.Logger, fn func() error, msg string) {
	if err := fn(); err != nil {
		l.Error(msg, ErrAttr(err))
	}
}

// LogWriter adapts a slog.Logger to io.Writer, logging each write as one info line.
type LogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a writer that forwards to the given logger.
func NewSlogWriter(l *slog.Logger) *LogWriter {
	return &LogWriter{logger: l}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	msg := bytes.TrimRight(p, "\n")
	if len(msg) > 0 {
		w.logger.Info(string(msg))
	}

	return len(p), nil
}

// Since is a small helper for duration attributes in deferred log calls.
func Since(start time.Time) slog.Attr {
	return slog.Duration("duration", time.Since(start))
}
