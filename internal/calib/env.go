package calib

import (
	"io"
	"log/slog"
	"time"
)

// Clock supplies wall-clock time for metadata stamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Env is the explicit context handed to backends and calibration objects.
// There is no package-level logger or clock.
type Env struct {
	Logger *slog.Logger
	Clock  Clock
}

// NewEnv returns an Env using logger and the system clock. A nil logger
// discards all output.
func NewEnv(logger *slog.Logger) Env {
	return Env{Logger: logger, Clock: SystemClock{}}
}

// Log returns the logger, or a discarding logger if none is set.
func (e Env) Log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

// Now returns the time from the configured clock.
func (e Env) Now() time.Time {
	if e.Clock == nil {
		return SystemClock{}.Now()
	}
	return e.Clock.Now()
}
