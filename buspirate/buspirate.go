// Package buspirate drives a SPI device through a Bus Pirate in
// binary SPI mode, attached via a serial port.
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Speed is the SPI clock selected in the Bus Pirate.
type Speed byte

const (
	Speed30kHz Speed = iota
	Speed125kHz
	Speed250kHz
	Speed1MHz
	Speed2MHz
	Speed2600kHz
	Speed4MHz
	Speed8MHz
)

// Binary mode commands.
const (
	cmdReset     = 0x00
	cmdSPI       = 0x01
	cmdCSLow     = 0x02
	cmdCSHigh    = 0x03
	cmdBulk      = 0x10 // | (n-1), n = 1..16
	cmdPeriph    = 0x40 // | power<<3 | pullups<<2 | aux<<1 | cs
	cmdSpeed     = 0x60 // | Speed
	cmdSPIConfig = 0x80 // | out3v3<<3 | ckp<<2 | cke<<1 | smp

	ack          = 0x01
	maxBulk      = 16
	resetRetries = 20
)

var (
	errNoBinaryMode = errors.New("buspirate: no response to binary mode reset")
	errNoSPIMode    = errors.New("buspirate: SPI mode not entered")
	errNoAck        = errors.New("buspirate: command not acknowledged")
)

// Conn is a Bus Pirate in binary SPI mode. It serializes callers.
type Conn struct {
	mu   sync.Mutex
	port Port
}

// Open opens the serial device name and puts the Bus Pirate behind it
// into SPI mode.
func Open(name string, speed Speed) (*Conn, error) {
	p, err := serial.OpenPort(&serial.Config{Name: name, Baud: 115200, ReadTimeout: 100 * time.Millisecond})
	if err != nil {
		return nil, fmt.Errorf("buspirate: open %s: %w", name, err)
	}
	c, err := New(p, speed)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return c, nil
}

// New switches the Bus Pirate on p into SPI mode 0 with 3.3V push-pull
// outputs, supply on, and chip select released.
func New(p Port, speed Speed) (*Conn, error) {
	c := &Conn{port: p}
	if err := c.enterBinary(); err != nil {
		return nil, err
	}
	if _, err := p.Write([]byte{cmdSPI}); err != nil {
		return nil, err
	}
	if err := c.expect([]byte("SPI1"), errNoSPIMode); err != nil {
		return nil, err
	}
	for _, cmd := range []byte{
		cmdSpeed | byte(speed&7),
		cmdSPIConfig | 1<<3 | 1<<1,
		cmdPeriph | 1<<3 | 1,
	} {
		if err := c.cmd(cmd); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Conn) enterBinary() error {
	var last error
	for i := 0; i < resetRetries; i++ {
		if _, err := c.port.Write([]byte{cmdReset}); err != nil {
			return err
		}
		last = c.expect([]byte("BBIO1"), errNoBinaryMode)
		if last == nil {
			return nil
		}
	}
	return last
}

func (c *Conn) expect(want []byte, errMismatch error) error {
	got := make([]byte, len(want))
	if _, err := io.ReadFull(c.port, got); err != nil {
		return fmt.Errorf("%w: %v", errMismatch, err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%w: got %q", errMismatch, got)
	}
	return nil
}

func (c *Conn) cmd(b byte) error {
	if _, err := c.port.Write([]byte{b}); err != nil {
		return err
	}
	var r [1]byte
	if _, err := io.ReadFull(c.port, r[:]); err != nil {
		return err
	}
	if r[0] != ack {
		return fmt.Errorf("%w: %#02x -> %#02x", errNoAck, b, r[0])
	}
	return nil
}

// TxRx implements spiproto.Conn. Chip select is asserted for the whole
// exchange and released on every return path.
func (c *Conn) TxRx(tx, rx []byte) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cmd(cmdCSLow); err != nil {
		return err
	}
	defer func() {
		if cerr := c.cmd(cmdCSHigh); err == nil {
			err = cerr
		}
	}()
	for off := 0; off < len(tx); off += maxBulk {
		end := off + maxBulk
		if end > len(tx) {
			end = len(tx)
		}
		chunk := tx[off:end]
		msg := append([]byte{cmdBulk | byte(len(chunk)-1)}, chunk...)
		if _, err := c.port.Write(msg); err != nil {
			return err
		}
		reply := make([]byte, 1+len(chunk))
		if _, err := io.ReadFull(c.port, reply); err != nil {
			return err
		}
		if reply[0] != ack {
			return fmt.Errorf("%w: bulk transfer", errNoAck)
		}
		if rx != nil {
			copy(rx[off:], reply[1:])
		}
	}
	return nil
}

// Close returns the Bus Pirate to its user terminal and closes the port.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.port.Write([]byte{cmdReset, 0x0F})
	return c.port.Close()
}
