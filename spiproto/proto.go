// Package spiproto implements the MCP2515 SPI instruction set.
//
// Every Proto method performs exactly one exchange on the underlying Conn.
// Transport failures are returned as *Error and never retried here.
package spiproto

import (
	"errors"
)

// Conn performs one full-duplex exchange with the chip selected.
// Len(rx), if non-zero, equals len(tx); rx may alias tx.
type Conn interface {
	TxRx(tx, rx []byte) error
}

// Instructions.
const (
	instrWrite       = 0x02
	instrRead        = 0x03
	instrBitModify   = 0x05
	instrLoadTxBuf   = 0x40
	instrRTS         = 0x80
	instrReadRxBuf   = 0x90
	instrReadStatus  = 0xA0
	instrReadRxState = 0xB0
	instrReset       = 0xC0
)

var (
	errTxTooLong = errors.New("tx data does not fit into msg buffer")
	errRxTooLong = errors.New("rx data does not fit into msg buffer")
)

type Proto struct {
	conn Conn
	buf  []byte
}

func New(c Conn) *Proto {
	return &Proto{conn: c, buf: make([]byte, 16)}
}

func (d *Proto) Reset() error {
	return d.runCmd("reset", instrReset, None, nil, 0)
}

// Read reads len(buf) consecutive registers starting at a.
func (d *Proto) Read(a Addr, buf []byte) error {
	err := d.runCmd("read", instrRead, a, nil, len(buf))
	if err != nil {
		return err
	}
	copy(buf, d.buf[2:])
	return nil
}

func (d *Proto) ReadRegister(a Addr) (byte, error) {
	var b [1]byte
	err := d.Read(a, b[:])
	return b[0], err
}

// Write writes buf to consecutive registers starting at a.
func (d *Proto) Write(a Addr, buf []byte) error {
	return d.runCmd("write", instrWrite, a, buf, 0)
}

func (d *Proto) WriteRegister(a Addr, v byte) error {
	return d.Write(a, []byte{v})
}

// BitModify changes the bits selected by mask to the corresponding
// bits of data. Only registers marked bit-modifiable in the
// datasheet honour the mask; others are overwritten with data.
func (d *Proto) BitModify(a Addr, mask, data byte) error {
	return d.runCmd("bit modify", instrBitModify, a, []byte{mask, data}, 0)
}

// LoadTxBuf writes buf into transmit buffer ibuf starting at TXBnSIDH.
func (d *Proto) LoadTxBuf(ibuf int, buf []byte) error {
	instr := uint8(instrLoadTxBuf) | (uint8(ibuf) << 1)
	return d.runCmd("load tx buffer", instr, None, buf, 0)
}

// RequestToSend sets TXREQ for the buffers in mask (bit n = TXBn).
func (d *Proto) RequestToSend(mask uint8) error {
	return d.runCmd("request to send", instrRTS|(mask&7), None, nil, 0)
}

// ReadRxBuf reads receive buffer ibuf starting at RXBnSIDH. The chip
// clears the buffer's RXnIF flag when the exchange ends.
func (d *Proto) ReadRxBuf(ibuf int, buf []byte) error {
	instr := uint8(instrReadRxBuf)
	if ibuf == 1 {
		instr |= 1 << 2
	}
	err := d.runCmd("read rx buffer", instr, None, nil, len(buf))
	if err != nil {
		return err
	}
	copy(buf, d.buf[1:])
	return nil
}

func (d *Proto) ReadStatus() (Status, error) {
	err := d.runCmd("read status", instrReadStatus, None, nil, 1)
	if err != nil {
		return 0, err
	}
	return Status(d.buf[1]), nil
}

func (d *Proto) ReadRxStatus() (RxStatus, error) {
	err := d.runCmd("read rx status", instrReadRxState, None, nil, 1)
	if err != nil {
		return 0, err
	}
	return RxStatus(d.buf[1]), nil
}

func (d *Proto) runCmd(op string, instr uint8, a Addr, tx []byte, nrx int) error {
	b := d.buf
	b[0] = instr
	n := 1
	if a != None {
		b[1] = uint8(a)
		n++
	}
	ntx := len(tx)
	if n+ntx > len(b) {
		return errTxTooLong
	}
	if ntx != 0 {
		copy(b[n:], tx)
	}
	n += ntx
	nzero := nrx - ntx
	if nzero > 0 {
		if n+nzero > len(b) {
			return errRxTooLong
		}
		for i := 0; i < nzero; i++ {
			b[n+i] = 0
		}
		n += nzero
	}
	b = b[:n]
	brx := b
	if nrx == 0 {
		brx = nil
	}
	if err := d.conn.TxRx(b, brx); err != nil {
		return &Error{Op: op, Err: err}
	}
	return nil
}
