package mcp2515

import (
	"context"
	"errors"
	"log/slog"
)

// Device is the frame-level surface of a Dev.
type Device interface {
	Send(f Frame) error
	Receive() (Frame, error)
}

// NewLogged wraps d and logs every sent and received frame at level.
// Failures are logged at error level, except ErrNoMessage and
// ErrTxBusy, which are routine when polling.
func NewLogged(d Device, logger *slog.Logger, level slog.Level) Device {
	return &loggedDevice{inner: d, logger: logger, level: level}
}

type loggedDevice struct {
	inner  Device
	logger *slog.Logger
	level  slog.Level
}

func (l *loggedDevice) Send(f Frame) error {
	err := l.inner.Send(f)
	switch {
	case err == nil:
		l.logger.Log(context.Background(), l.level, "mcp2515 send", frameAttrs(f)...)
	case errors.Is(err, ErrTxBusy):
		l.logger.Log(context.Background(), slog.LevelDebug, "mcp2515 send busy", "id", f.ID().String())
	default:
		l.logger.Log(context.Background(), slog.LevelError, "mcp2515 send error", "id", f.ID().String(), "error", err)
	}
	return err
}

func (l *loggedDevice) Receive() (Frame, error) {
	f, err := l.inner.Receive()
	switch {
	case err == nil:
		l.logger.Log(context.Background(), l.level, "mcp2515 receive", frameAttrs(f)...)
	case errors.Is(err, ErrNoMessage):
	default:
		l.logger.Log(context.Background(), slog.LevelError, "mcp2515 receive error", "error", err)
	}
	return f, err
}

func frameAttrs(f Frame) []any {
	return []any{
		"id", f.ID().String(),
		"extended", f.IsExtended(),
		"rtr", f.IsRemoteFrame(),
		"len", f.DLC(),
		"data", f.Data(),
	}
}
