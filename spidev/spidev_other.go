//go:build !linux

// Package spidev exchanges bytes with a SPI device through the Linux
// spidev interface.
package spidev

import "errors"

var errUnsupported = errors.New("spidev: only available on linux")

type Conn struct{}

func Open(path string, mode uint8, speedHz uint32) (*Conn, error) {
	return nil, errUnsupported
}

func (c *Conn) Close() error { return errUnsupported }

func (c *Conn) TxRx(tx, rx []byte) error { return errUnsupported }
