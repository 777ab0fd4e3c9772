package spiproto

import "fmt"

// Error wraps a failure of the underlying Conn.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("spi %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
