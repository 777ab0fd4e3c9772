package mcp2515

import "github.com/knieriem/mcp2515/v2/spiproto"

// ErrorFlags is the content of the EFLG register.
type ErrorFlags byte

func (f ErrorFlags) RxOverflow(i int) bool { return f&(1<<(6+uint(i))) != 0 }
func (f ErrorFlags) TxBusOff() bool        { return f&(1<<5) != 0 }
func (f ErrorFlags) TxPassive() bool       { return f&(1<<4) != 0 }
func (f ErrorFlags) RxPassive() bool       { return f&(1<<3) != 0 }
func (f ErrorFlags) TxWarning() bool       { return f&(1<<2) != 0 }
func (f ErrorFlags) RxWarning() bool       { return f&(1<<1) != 0 }
func (f ErrorFlags) Warning() bool         { return f&(1<<0) != 0 }

const rxOverflowMask = 3 << 6

// ErrorFlags reads EFLG.
func (d *Dev) ErrorFlags() (ErrorFlags, error) {
	v, err := d.p.ReadRegister(spiproto.EFLG)
	return ErrorFlags(v), err
}

// ClearRxOverflow resets the receive overflow flags, which the chip
// never clears by itself.
func (d *Dev) ClearRxOverflow() error {
	return d.p.BitModify(spiproto.EFLG, rxOverflowMask, 0)
}

// ErrorCounters returns the transmit and receive error counters.
func (d *Dev) ErrorCounters() (tec, rec uint8, err error) {
	var b [2]byte
	err = d.p.Read(spiproto.TEC, b[:])
	if err != nil {
		return 0, 0, err
	}
	return b[0], b[1], nil
}
