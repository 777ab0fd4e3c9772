// Package mcpsim simulates the register file and SPI instruction set
// of an MCP2515, enough to exercise the driver without hardware.
//
// In loopback mode a transmit request moves the frame into a receive
// buffer, as the chip does. In all other modes transmissions stay
// pending, since no bus is attached.
package mcpsim

import (
	"errors"
	"sync"
)

// Register addresses and bits, restated from the datasheet so that the
// simulator does not share mistakes with the driver.
const (
	regCANSTAT  = 0x0E
	regCANCTRL  = 0x0F
	regCANINTF  = 0x2C
	regEFLG     = 0x2D
	regTXB0CTRL = 0x30
	regRXB0CTRL = 0x60
	regRXB1CTRL = 0x70

	bufImageLen = 13

	flagWAKIF = 0x40
	flagTX0IF = 0x04
	flagRX0IF = 0x01
	flagRX1IF = 0x02

	txABTF  = 0x40
	txREQ   = 0x08
	rxBUKT  = 0x04
	sidlIDE = 0x08
	sidlSRR = 0x10
	dlcRTR  = 0x40

	modeMask     = 0xE0
	modeSleep    = 0x20
	modeLoopback = 0x40
	modeListen   = 0x60
	ctrlABAT     = 0x10
	ctrlResetVal = 0x87
	statResetVal = 0x80
	eflgRX0OVR   = 0x40
	eflgRX1OVR   = 0x80
)

// Exchange is one recorded SPI transfer.
type Exchange struct {
	Tx []byte
}

// Instr returns the instruction byte of the exchange.
func (e Exchange) Instr() byte { return e.Tx[0] }

// Chip is a simulated MCP2515. The zero value is a chip right after
// power-on reset. It implements spiproto.Conn.
type Chip struct {
	mu      sync.Mutex
	regs    [128]byte
	powered bool

	// NeverAck keeps CANSTAT from following mode requests.
	NeverAck bool

	// Err, if set, is returned by every exchange, which then has no
	// effect on the chip.
	Err error

	log          []Exchange
	canstatReads int
}

func (c *Chip) powerOn() {
	if c.powered {
		return
	}
	c.powered = true
	c.reset()
}

func (c *Chip) reset() {
	c.regs = [128]byte{}
	c.regs[regCANSTAT] = statResetVal
	c.regs[regCANCTRL] = ctrlResetVal
}

// Reg returns the content of register a.
func (c *Chip) Reg(a byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.powerOn()
	return c.regs[a&0x7F]
}

// SetReg overwrites register a without side effects.
func (c *Chip) SetReg(a, v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.powerOn()
	c.regs[a&0x7F] = v
}

// Deliver places a buffer image (SIDH..D7) into receive buffer i and
// raises its interrupt flag, as if the frame arrived from the bus.
func (c *Chip) Deliver(i int, img []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.powerOn()
	base := regRXB0CTRL + 0x10*i + 1
	copy(c.regs[base:base+bufImageLen], img)
	c.regs[regCANINTF] |= flagRX0IF << uint(i)
}

// Log returns the exchanges seen so far.
func (c *Chip) Log() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Exchange(nil), c.log...)
}

// ResetLog forgets recorded exchanges and counters.
func (c *Chip) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
	c.canstatReads = 0
}

// CANSTATReads returns how often CANSTAT was read.
func (c *Chip) CANSTATReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canstatReads
}

var errShort = errors.New("mcpsim: empty exchange")

// TxRx executes the instruction in tx and writes the chip's answer
// to rx.
func (c *Chip) TxRx(tx, rx []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.powerOn()
	if c.Err != nil {
		return c.Err
	}
	if len(tx) == 0 {
		return errShort
	}
	in := append([]byte(nil), tx...)
	c.log = append(c.log, Exchange{Tx: in})
	out := make([]byte, len(in))

	instr := in[0]
	switch {
	case instr == 0xC0:
		c.reset()
	case instr == 0x03:
		a := int(in[1])
		for k := 2; k < len(in); k++ {
			out[k] = c.read(a + k - 2)
		}
	case instr == 0x02:
		a := int(in[1])
		for k := 2; k < len(in); k++ {
			c.write(a+k-2, in[k])
		}
	case instr == 0x05:
		if len(in) == 4 {
			a := int(in[1]) & 0x7F
			mask, v := in[2], in[3]
			c.write(a, c.regs[a]&^mask|v&mask)
		}
	case instr&0xF8 == 0x40:
		n := int(instr>>1) & 3
		base := regTXB0CTRL + 0x10*n + 1
		if instr&1 != 0 {
			base += 5
		}
		for k := 1; k < len(in); k++ {
			c.regs[(base+k-1)&0x7F] = in[k]
		}
	case instr&0xF8 == 0x80:
		for n := 0; n < 3; n++ {
			if instr&(1<<uint(n)) != 0 {
				c.write(regTXB0CTRL+0x10*n, c.regs[regTXB0CTRL+0x10*n]|txREQ)
			}
		}
	case instr&0xF9 == 0x90:
		n := int(instr>>2) & 1
		base := regRXB0CTRL + 0x10*n + 1
		if instr&2 != 0 {
			base += 5
		}
		for k := 1; k < len(in); k++ {
			out[k] = c.regs[(base+k-1)&0x7F]
		}
		c.regs[regCANINTF] &^= flagRX0IF << uint(n)
	case instr == 0xA0:
		for k := 1; k < len(in); k++ {
			out[k] = c.status()
		}
	case instr == 0xB0:
		for k := 1; k < len(in); k++ {
			out[k] = c.rxStatus()
		}
	}
	if rx != nil {
		copy(rx, out)
	}
	return nil
}

func (c *Chip) read(a int) byte {
	a &= 0x7F
	if a&0x0F == 0x0E {
		c.canstatReads++
		return c.regs[regCANSTAT]
	}
	if a&0x0F == 0x0F {
		return c.regs[regCANCTRL]
	}
	return c.regs[a]
}

func (c *Chip) write(a int, v byte) {
	a &= 0x7F
	switch {
	case a&0x0F == 0x0E:
		return
	case a&0x0F == 0x0F:
		c.regs[regCANCTRL] = v
		c.controlChanged()
		return
	case a == regCANINTF:
		old := c.regs[a]
		c.regs[a] = v
		if c.mode() == modeSleep && old&flagWAKIF == 0 && v&flagWAKIF != 0 {
			c.setMode(modeListen)
		}
		return
	}
	c.regs[a] = v
	if a >= regTXB0CTRL && a < regRXB0CTRL && a&0x0F == 0 {
		c.txControlChanged((a - regTXB0CTRL) >> 4)
	}
}

func (c *Chip) mode() byte { return c.regs[regCANSTAT] & modeMask }

func (c *Chip) setMode(m byte) {
	c.regs[regCANSTAT] = c.regs[regCANSTAT]&^modeMask | m
}

func (c *Chip) controlChanged() {
	ctrl := c.regs[regCANCTRL]
	if !c.NeverAck {
		c.setMode(ctrl & modeMask)
	}
	if ctrl&ctrlABAT != 0 {
		for n := 0; n < 3; n++ {
			a := regTXB0CTRL + 0x10*n
			if c.regs[a]&txREQ != 0 {
				c.regs[a] = c.regs[a]&^txREQ | txABTF
			}
		}
	}
	for n := 0; n < 3; n++ {
		c.txControlChanged(n)
	}
}

func (c *Chip) txControlChanged(n int) {
	a := regTXB0CTRL + 0x10*n
	if c.regs[a]&txREQ == 0 {
		return
	}
	c.regs[a] &^= txABTF
	if c.mode() != modeLoopback {
		return
	}
	c.loop(n)
	c.regs[a] &^= txREQ
	c.regs[regCANINTF] |= flagTX0IF << uint(n)
}

// loop moves transmit buffer n into a free receive buffer.
func (c *Chip) loop(n int) {
	var img [bufImageLen]byte
	copy(img[:], c.regs[regTXB0CTRL+0x10*n+1:])
	img[1] &= 0xE0 | sidlIDE | 0x03
	img[4] &= dlcRTR | 0x0F
	if img[1]&sidlIDE == 0 && img[4]&dlcRTR != 0 {
		img[1] |= sidlSRR
	}

	intf := c.regs[regCANINTF]
	switch {
	case intf&flagRX0IF == 0:
		copy(c.regs[regRXB0CTRL+1:], img[:])
		c.regs[regCANINTF] |= flagRX0IF
	case c.regs[regRXB0CTRL]&rxBUKT != 0 && intf&flagRX1IF == 0:
		copy(c.regs[regRXB1CTRL+1:], img[:])
		c.regs[regCANINTF] |= flagRX1IF
	case c.regs[regRXB0CTRL]&rxBUKT != 0:
		c.regs[regEFLG] |= eflgRX1OVR
	default:
		c.regs[regEFLG] |= eflgRX0OVR
	}
}

func (c *Chip) status() byte {
	intf := c.regs[regCANINTF]
	st := intf & (flagRX0IF | flagRX1IF)
	for n := 0; n < 3; n++ {
		if c.regs[regTXB0CTRL+0x10*n]&txREQ != 0 {
			st |= 1 << uint(2+2*n)
		}
		if intf&(flagTX0IF<<uint(n)) != 0 {
			st |= 1 << uint(3+2*n)
		}
	}
	return st
}

func (c *Chip) rxStatus() byte {
	intf := c.regs[regCANINTF]
	var st byte
	if intf&flagRX0IF != 0 {
		st |= 1 << 6
	}
	if intf&flagRX1IF != 0 {
		st |= 1 << 7
	}
	n := -1
	switch {
	case intf&flagRX0IF != 0:
		n = 0
	case intf&flagRX1IF != 0:
		n = 1
	}
	if n < 0 {
		return st
	}
	sidl := c.regs[regRXB0CTRL+0x10*n+2]
	dlc := c.regs[regRXB0CTRL+0x10*n+5]
	if sidl&sidlIDE != 0 {
		st |= 1 << 4
		if dlc&dlcRTR != 0 {
			st |= 1 << 3
		}
	} else if sidl&sidlSRR != 0 {
		st |= 1 << 3
	}
	return st
}
