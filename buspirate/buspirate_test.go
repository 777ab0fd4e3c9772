package buspirate

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	mcp2515 "github.com/knieriem/mcp2515/v2"
	"github.com/knieriem/mcp2515/v2/internal/mcpsim"
	"github.com/knieriem/mcp2515/v2/spiproto"
)

var _ spiproto.Conn = (*Conn)(nil)

// fakePirate interprets the binary SPI protocol and forwards each bulk
// transfer to a simulated chip.
type fakePirate struct {
	chip     *mcpsim.Chip
	in       []byte
	out      bytes.Buffer
	spi      bool
	csLow    bool
	csEvents []byte
	nakBulk  bool
	closed   bool
}

func (f *fakePirate) Write(p []byte) (int, error) {
	f.in = append(f.in, p...)
	for len(f.in) > 0 {
		b := f.in[0]
		switch {
		case b == cmdReset:
			f.spi = false
			f.out.WriteString("BBIO1")
		case !f.spi && b == cmdSPI:
			f.spi = true
			f.out.WriteString("SPI1")
		case f.spi && (b == cmdCSLow || b == cmdCSHigh):
			f.csLow = b == cmdCSLow
			f.csEvents = append(f.csEvents, b)
			f.out.WriteByte(ack)
		case f.spi && b&0xF0 == cmdBulk:
			n := int(b&0x0F) + 1
			if len(f.in) < 1+n {
				return len(p), nil
			}
			tx := f.in[1 : 1+n]
			rx := make([]byte, n)
			if f.nakBulk || !f.csLow {
				f.out.WriteByte(0)
				f.out.Write(rx)
			} else {
				_ = f.chip.TxRx(tx, rx)
				f.out.WriteByte(ack)
				f.out.Write(rx)
			}
			f.in = f.in[1+n:]
			continue
		case f.spi:
			f.out.WriteByte(ack)
		}
		f.in = f.in[1:]
	}
	return len(p), nil
}

func (f *fakePirate) Read(p []byte) (int, error) {
	if f.out.Len() == 0 {
		return 0, io.EOF
	}
	return f.out.Read(p)
}

func (f *fakePirate) Close() error {
	f.closed = true
	return nil
}

func TestLoopbackThroughBusPirate(t *testing.T) {
	fp := &fakePirate{chip: &mcpsim.Chip{}}
	c, err := New(fp, Speed1MHz)
	if err != nil {
		t.Fatal(err)
	}
	d := mcp2515.NewDevice(c)
	err = d.Init(mcp2515.Settings{Mode: mcp2515.Loopback, Bitrate: mcp2515.Kbps100, Oscillator: mcp2515.MHz8}, mcp2515.DelayFunc(func(time.Duration) {}))
	if err != nil {
		t.Fatal(err)
	}
	id, _ := mcp2515.ExtendedID(0x1FFFFFFF)
	f, _ := mcp2515.NewFrame(id, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err := d.Send(f); err != nil {
		t.Fatal(err)
	}
	g, err := d.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if g != f {
		t.Fatalf("got %v want %v", g, f)
	}
	if fp.csLow {
		t.Fatal("chip select left asserted")
	}
	if err := c.Close(); err != nil || !fp.closed {
		t.Fatalf("close: %v", err)
	}
}

func TestChipSelectReleasedOnFailure(t *testing.T) {
	fp := &fakePirate{chip: &mcpsim.Chip{}}
	c, err := New(fp, Speed250kHz)
	if err != nil {
		t.Fatal(err)
	}
	fp.nakBulk = true
	fp.csEvents = nil
	err = c.TxRx([]byte{0xA0, 0}, make([]byte, 2))
	if !errors.Is(err, errNoAck) {
		t.Fatalf("got %v", err)
	}
	if !bytes.Equal(fp.csEvents, []byte{cmdCSLow, cmdCSHigh}) || fp.csLow {
		t.Fatalf("cs events % X", fp.csEvents)
	}
}

func TestLongExchangeIsChunked(t *testing.T) {
	fp := &fakePirate{chip: &mcpsim.Chip{}}
	c, err := New(fp, Speed8MHz)
	if err != nil {
		t.Fatal(err)
	}
	// 18 bytes need two bulk transfers.
	tx := make([]byte, 18)
	tx[0] = 0x03
	tx[1] = 0x0E
	rx := make([]byte, len(tx))
	if err := c.TxRx(tx, rx); err != nil {
		t.Fatal(err)
	}
	if rx[2] != 0x80 {
		t.Fatalf("CANSTAT after reset: %#x", rx[2])
	}
}

func TestNewFailsWithoutBinaryMode(t *testing.T) {
	_, err := New(silentPort{}, Speed1MHz)
	if !errors.Is(err, errNoBinaryMode) {
		t.Fatalf("got %v", err)
	}
}

type silentPort struct{}

func (silentPort) Read(p []byte) (int, error)  { return 0, io.EOF }
func (silentPort) Write(p []byte) (int, error) { return len(p), nil }
func (silentPort) Close() error                { return nil }
