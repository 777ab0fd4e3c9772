//go:build linux

package spidev

import (
	"errors"
	"os"
	"testing"
	"unsafe"

	"github.com/knieriem/mcp2515/v2/spiproto"
)

var _ spiproto.Conn = (*Conn)(nil)

func TestTransferLayout(t *testing.T) {
	if n := unsafe.Sizeof(iocTransfer{}); n != 32 {
		t.Fatalf("spi_ioc_transfer is 32 bytes, got %d", n)
	}
	// _IOW('k', 0, char[32])
	if iocMessage1 != 1<<30|32<<16|'k'<<8 {
		t.Fatalf("SPI_IOC_MESSAGE(1) = %#x", iocMessage1)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open("/dev/spidev-does-not-exist", 0, 1000000)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v", err)
	}
}
