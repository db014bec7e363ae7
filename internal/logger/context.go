package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds session-scoped logging context.
type LogContext struct {
	SessionID string    // opaque session identifier
	Port      string    // serial port identifier
	Phase     string    // "sahara" | "firehose"
	LUN       int       // active LUN, -1 if not applicable
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given port.
func NewLogContext(port string) *LogContext {
	return &LogContext{
		Port:      port,
		LUN:       -1,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		SessionID: lc.SessionID,
		Port:      lc.Port,
		Phase:     lc.Phase,
		LUN:       lc.LUN,
		StartTime: lc.StartTime,
	}
}

// WithPhase returns a copy with the protocol phase set
func (lc *LogContext) WithPhase(phase string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Phase = phase
	}
	return clone
}

// WithLUN returns a copy with the active LUN set
func (lc *LogContext) WithLUN(lun int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.LUN = lun
	}
	return clone
}

// WithSessionID returns a copy with the session id set
func (lc *LogContext) WithSessionID(id string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = id
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
