package mcp2515

import (
	"fmt"
	"time"

	"github.com/knieriem/mcp2515/v2/spiproto"
)

// OpMode is an operating mode, encoded as the REQOP bits of CANCTRL
// and the OPMOD bits of CANSTAT.
type OpMode byte

const (
	Normal        OpMode = 0 << 5
	Sleep         OpMode = 1 << 5
	Loopback      OpMode = 2 << 5
	ListenOnly    OpMode = 3 << 5
	Configuration OpMode = 4 << 5
)

func (m OpMode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Sleep:
		return "sleep"
	case Loopback:
		return "loopback"
	case ListenOnly:
		return "listen-only"
	case Configuration:
		return "configuration"
	}
	return fmt.Sprintf("OpMode(%#02x)", byte(m))
}

// ParseOpMode is the inverse of OpMode.String.
func ParseOpMode(s string) (OpMode, error) {
	for _, m := range []OpMode{Normal, Sleep, Loopback, ListenOnly, Configuration} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Delayer blocks the caller for about d.
type Delayer interface {
	Delay(d time.Duration)
}

// DelayFunc adapts a function such as time.Sleep to a Delayer.
type DelayFunc func(time.Duration)

func (f DelayFunc) Delay(d time.Duration) { f(d) }

// Mode returns the operating mode currently reported by CANSTAT.
func (d *Dev) Mode() (OpMode, error) {
	st, err := d.p.ReadRegister(spiproto.CANSTAT)
	if err != nil {
		return 0, err
	}
	return OpMode(st & spiproto.OPMODMask), nil
}

// SetMode moves the chip to mode m. Unless the chip already is in
// configuration mode, it passes through it; a sleeping chip is woken
// first.
func (d *Dev) SetMode(m OpMode) error {
	cur, err := d.Mode()
	if err != nil {
		return err
	}
	if cur == m {
		return nil
	}
	if cur == Sleep {
		if err := d.wake(); err != nil {
			return err
		}
		cur = ListenOnly
		if m == ListenOnly {
			return nil
		}
	}
	if cur != Configuration && m != Configuration {
		if err := d.requestMode(Configuration); err != nil {
			return err
		}
	}
	return d.requestMode(m)
}

// wake sets the wake-up interrupt flag, which the chip treats like
// bus activity, and waits for it to enter listen-only mode.
func (d *Dev) wake() error {
	inte, err := d.p.ReadRegister(spiproto.CANINTE)
	if err != nil {
		return err
	}
	wakeEnabled := inte&spiproto.WAKIF != 0
	if !wakeEnabled {
		if err := d.p.BitModify(spiproto.CANINTE, spiproto.WAKIF, spiproto.WAKIF); err != nil {
			return err
		}
	}
	if err := d.p.BitModify(spiproto.CANINTF, spiproto.WAKIF, spiproto.WAKIF); err != nil {
		return err
	}

	// Without other nodes on the bus the chip may stay asleep after
	// the wake interrupt, so request listen-only explicitly.
	if err := d.requestMode(ListenOnly); err != nil {
		return err
	}
	if !wakeEnabled {
		if err := d.p.BitModify(spiproto.CANINTE, spiproto.WAKIF, 0); err != nil {
			return err
		}
	}
	return d.p.BitModify(spiproto.CANINTF, spiproto.WAKIF, 0)
}

// requestMode writes REQOP and polls OPMOD until it matches m, at most
// d.retries times.
func (d *Dev) requestMode(m OpMode) error {
	err := d.p.BitModify(spiproto.CANCTRL, spiproto.REQOPMask, byte(m))
	if err != nil {
		return err
	}
	for i := 0; i < d.retries; i++ {
		if i > 0 {
			d.delay.Delay(d.pollInterval)
		}
		cur, err := d.Mode()
		if err != nil {
			return err
		}
		if cur == m {
			return nil
		}
	}
	return fmt.Errorf("%w: %v after %d polls", ErrNewModeTimeout, m, d.retries)
}
