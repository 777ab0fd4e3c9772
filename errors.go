package mcp2515

import (
	"errors"
	"fmt"
)

var (
	ErrNewModeTimeout       = errors.New("mode change not acknowledged")
	ErrTxBusy               = errors.New("all tx buffers pending")
	ErrTxFailed             = errors.New("transmission failed")
	ErrNoMessage            = errors.New("no message available")
	ErrInvalidFrameID       = errors.New("invalid frame id")
	ErrInvalidDLC           = errors.New("invalid data length")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrRemoteFrame          = errors.New("remote frame not representable as can.Msg")
)

// ConfigError reports a bitrate that cannot be derived from the oscillator.
type ConfigError struct {
	Speed      CanSpeed
	Oscillator McpSpeed
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %v not supported with %v oscillator", ErrInvalidConfiguration, e.Speed, e.Oscillator)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfiguration }

// TxError reports an abort or error condition latched in TXBnCTRL.
type TxError struct {
	Buffer int
	Ctrl   byte
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx buffer %d: %v (ctrl %#02x)", e.Buffer, ErrTxFailed, e.Ctrl)
}

func (e *TxError) Is(target error) bool { return target == ErrTxFailed }
