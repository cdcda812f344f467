package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccessRecord describes one request/response transaction.
type AccessRecord struct {
	ID         uuid.UUID
	Conn       uint64 // connection sequence number
	RemoteAddr string
	Method     string // "" when the request could not be parsed
	Path       string
	Version    string
	Status     int
	Duration   time.Duration
	BytesIn    int64
	BytesOut   int64
	UserAgent  string
	Referer    string
}

// AccessLogger receives one record per transaction. LogAccess is called
// from connection goroutines and must be safe for concurrent use.
type AccessLogger interface {
	LogAccess(rec AccessRecord)
}

// AccessLoggerFunc adapts a function to AccessLogger.
type AccessLoggerFunc func(rec AccessRecord)

// LogAccess calls f(rec).
func (f AccessLoggerFunc) LogAccess(rec AccessRecord) { f(rec) }

// ZerologAccessLogger writes access records as zerolog events.
type ZerologAccessLogger struct {
	Logger zerolog.Logger
}

// NewZerologAccessLogger returns an access logger writing to l.
func NewZerologAccessLogger(l zerolog.Logger) *ZerologAccessLogger {
	return &ZerologAccessLogger{Logger: l}
}

// LogAccess implements AccessLogger.
func (z *ZerologAccessLogger) LogAccess(rec AccessRecord) {
	ev := z.Logger.Info()
	if rec.Status >= 500 {
		ev = z.Logger.Warn()
	}
	ev.Str("id", rec.ID.String()).
		Uint64("conn", rec.Conn).
		Str("remote", rec.RemoteAddr).
		Str("method", rec.Method).
		Str("path", rec.Path).
		Str("proto", rec.Version).
		Int("status", rec.Status).
		Dur("duration", rec.Duration).
		Int64("bytes_in", rec.BytesIn).
		Int64("bytes_out", rec.BytesOut).
		Str("user_agent", rec.UserAgent).
		Str("referer", rec.Referer).
		Msg("access")
}
