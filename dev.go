// Package mcp2515 drives a Microchip MCP2515 stand-alone CAN controller
// attached via SPI.
//
// A Dev is not safe for concurrent use. The chip's registers are the
// only state; every call reads what it needs from the chip.
package mcp2515

import (
	"fmt"
	"time"

	"github.com/knieriem/mcp2515/v2/spiproto"
)

// Defaults applied by Init for zero Settings fields.
const (
	DefaultModeRetries  = 100
	DefaultPollInterval = time.Millisecond

	resetDelay = 10 * time.Millisecond
)

// Settings configure the chip during Init.
type Settings struct {
	Mode       OpMode // mode entered after configuration
	Bitrate    CanSpeed
	Oscillator McpSpeed

	// ClkOut enables the CLKOUT pin, running at the oscillator
	// frequency divided by ClkOutDiv (1, 2, 4 or 8; 0 means 1).
	ClkOut    bool
	ClkOutDiv int

	// ModeRetries bounds the number of CANSTAT polls per mode change.
	ModeRetries  int
	PollInterval time.Duration
}

type Dev struct {
	p            *spiproto.Proto
	delay        Delayer
	retries      int
	pollInterval time.Duration
}

func NewDevice(c spiproto.Conn) *Dev {
	p := spiproto.New(c)
	d := new(Dev)
	d.p = p
	d.delay = DelayFunc(time.Sleep)
	d.retries = DefaultModeRetries
	d.pollInterval = DefaultPollInterval
	return d
}

// Init resets the chip, programs bit timing and receive buffers, and
// enters s.Mode. A nil delay uses time.Sleep. On failure the chip is
// left in configuration mode, or wherever the failing step left it.
func (d *Dev) Init(s Settings, delay Delayer) error {
	timing, err := ResolveTiming(s.Oscillator, s.Bitrate)
	if err != nil {
		return err
	}
	clkpre, err := clkoutPrescaler(s)
	if err != nil {
		return err
	}
	if delay != nil {
		d.delay = delay
	}
	d.retries = DefaultModeRetries
	if s.ModeRetries > 0 {
		d.retries = s.ModeRetries
	}
	d.pollInterval = DefaultPollInterval
	if s.PollInterval > 0 {
		d.pollInterval = s.PollInterval
	}

	// After reset the chip is in configuration mode.
	err = d.p.Reset()
	if err != nil {
		return err
	}
	d.delay.Delay(resetDelay)

	err = d.p.Write(spiproto.CNF3, timing.regs())
	if err != nil {
		return err
	}

	// Turn masks and filters off, and enable rollover: If RXB0 is
	// full, the next arriving message will be written to RXB1.
	err = d.p.BitModify(spiproto.RXB0CTRL, spiproto.RXMMask|spiproto.BUKT, spiproto.RXMAny|spiproto.BUKT)
	if err != nil {
		return err
	}
	err = d.p.BitModify(spiproto.RXB1CTRL, spiproto.RXMMask, spiproto.RXMAny)
	if err != nil {
		return err
	}

	err = d.p.WriteRegister(spiproto.CANINTF, 0)
	if err != nil {
		return err
	}
	err = d.p.BitModify(spiproto.CANINTE, spiproto.RX1IE|spiproto.RX0IE, spiproto.RX1IE|spiproto.RX0IE)
	if err != nil {
		return err
	}

	if s.ClkOut {
		err = d.p.BitModify(spiproto.CANCTRL, spiproto.CLKEN|spiproto.CLKPREMask, spiproto.CLKEN|clkpre)
		if err == nil {
			// SOF would replace the clock on CLKOUT.
			err = d.p.BitModify(spiproto.CNF3, spiproto.SOF, 0)
		}
	} else {
		err = d.p.BitModify(spiproto.CANCTRL, spiproto.CLKEN, 0)
	}
	if err != nil {
		return err
	}

	return d.requestMode(s.Mode)
}

func clkoutPrescaler(s Settings) (byte, error) {
	switch s.ClkOutDiv {
	case 0, 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 8:
		return 3, nil
	}
	return 0, fmt.Errorf("%w: clkout divider %d", ErrInvalidConfiguration, s.ClkOutDiv)
}

// Send loads f into a free transmit buffer and requests its
// transmission. It does not wait for the frame to go out on the bus;
// use CheckTx to look for failed transmissions.
func (d *Dev) Send(f Frame) error {
	st, err := d.p.ReadStatus()
	if err != nil {
		return err
	}
	i := -1
	for n := 0; n < spiproto.NumTxBufs; n++ {
		if !st.TxPending(n) {
			i = n
			break
		}
	}
	if i < 0 {
		return ErrTxBusy
	}
	err = d.p.BitModify(spiproto.CANINTF, spiproto.TxIF(i), 0)
	if err != nil {
		return err
	}
	b, n := encodeFrame(f)
	err = d.p.LoadTxBuf(i, b[:n])
	if err != nil {
		return err
	}
	return d.p.RequestToSend(1 << uint(i))
}

// CheckTx reports the first transmit buffer whose last transmission
// was aborted or hit a bus error.
func (d *Dev) CheckTx() error {
	for i := 0; i < spiproto.NumTxBufs; i++ {
		ctrl, err := d.p.ReadRegister(spiproto.TxCtrl(i))
		if err != nil {
			return err
		}
		if ctrl&(spiproto.ABTF|spiproto.TXERR) != 0 {
			return &TxError{Buffer: i, Ctrl: ctrl}
		}
	}
	return nil
}

// AbortTx aborts all pending transmissions.
func (d *Dev) AbortTx() error {
	err := d.p.BitModify(spiproto.CANCTRL, spiproto.ABAT, spiproto.ABAT)
	if err != nil {
		return err
	}
	return d.p.BitModify(spiproto.CANCTRL, spiproto.ABAT, 0)
}

// Receive returns the frame from the lowest receive buffer holding one,
// or ErrNoMessage. The buffer is released even if its contents fail
// to decode.
func (d *Dev) Receive() (Frame, error) {
	rs, err := d.p.ReadRxStatus()
	if err != nil {
		return Frame{}, err
	}
	i, ok := rs.Buffer()
	if !ok {
		return Frame{}, ErrNoMessage
	}
	var buf [bufLen]byte
	err = d.p.ReadRxBuf(i, buf[:])
	if err != nil {
		return Frame{}, err
	}
	f, decErr := decodeFrame(buf[:])
	err = d.p.BitModify(spiproto.CANINTF, spiproto.RxIF(i), 0)
	if decErr != nil {
		return Frame{}, decErr
	}
	if err != nil {
		return Frame{}, err
	}
	return f, nil
}
