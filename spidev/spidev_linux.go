//go:build linux

// Package spidev exchanges bytes with a SPI device through the Linux
// spidev interface.
package spidev

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl requests from <linux/spi/spidev.h>.
const (
	iocMessage1      = 0x40206B00 // SPI_IOC_MESSAGE(1)
	iocWrMode        = 0x40016B01
	iocWrBitsPerWord = 0x40016B03
	iocWrMaxSpeedHz  = 0x40046B04
)

// iocTransfer mirrors struct spi_ioc_transfer.
type iocTransfer struct {
	txBuf          uint64
	rxBuf          uint64
	length         uint32
	speedHz        uint32
	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNbits        uint8
	rxNbits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

// Conn is an open spidev device. Each TxRx is a single SPI message, so
// the kernel keeps chip select asserted for exactly its duration.
// Conn serializes callers.
type Conn struct {
	mu      sync.Mutex
	fd      int
	speedHz uint32
}

// Open opens a device such as /dev/spidev0.0 in the given SPI mode
// (0..3) and clock rate. The MCP2515 supports modes 0 and 3 up to 10 MHz.
func Open(path string, mode uint8, speedHz uint32) (*Conn, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	bits := uint8(8)
	for _, s := range []struct {
		name string
		req  uintptr
		arg  unsafe.Pointer
	}{
		{"mode", iocWrMode, unsafe.Pointer(&mode)},
		{"bits per word", iocWrBitsPerWord, unsafe.Pointer(&bits)},
		{"max speed", iocWrMaxSpeedHz, unsafe.Pointer(&speedHz)},
	} {
		if err := ioctl(fd, s.req, s.arg); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("spidev %s: set %s: %w", path, s.name, err)
		}
	}
	return &Conn{fd: fd, speedHz: speedHz}, nil
}

func (c *Conn) Close() error { return unix.Close(c.fd) }

// TxRx implements spiproto.Conn.
func (c *Conn) TxRx(tx, rx []byte) error {
	if len(tx) == 0 {
		return nil
	}
	if rx != nil && len(rx) != len(tx) {
		return fmt.Errorf("spidev: rx length %d differs from tx length %d", len(rx), len(tx))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tr := iocTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		length:      uint32(len(tx)),
		speedHz:     c.speedHz,
		bitsPerWord: 8,
	}
	if rx != nil {
		tr.rxBuf = uint64(uintptr(unsafe.Pointer(&rx[0])))
	}
	err := ioctl(c.fd, iocMessage1, unsafe.Pointer(&tr))
	runtime.KeepAlive(tx)
	runtime.KeepAlive(rx)
	if err != nil {
		return fmt.Errorf("spidev transfer: %w", err)
	}
	return nil
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
