package spiproto

type Addr uint8

const (
	None     Addr = 0xFF
	CANSTAT  Addr = 0x0E
	CANCTRL  Addr = 0x0F
	TEC      Addr = 0x1C
	REC      Addr = 0x1D
	CNF3     Addr = 0x28
	CNF2     Addr = 0x29
	CNF1     Addr = 0x2A
	CANINTE  Addr = 0x2B
	CANINTF  Addr = 0x2C
	EFLG     Addr = 0x2D
	RXM0SIDH Addr = 0x20
	RXM0SIDL Addr = 0x21
	RXM0EID8 Addr = 0x22
	RXM0EID0 Addr = 0x23

	TXB0CTRL Addr = 0x30
	TXB0SIDH Addr = 0x31
	TXB1CTRL Addr = 0x40
	TXB2CTRL Addr = 0x50

	RXB0CTRL Addr = 0x60
	RXB0SIDH Addr = 0x61
	RXB1CTRL Addr = 0x70
	RXB1SIDH Addr = 0x71
)

// NumTxBufs and NumRxBufs are the number of transmit and receive buffers.
const (
	NumTxBufs = 3
	NumRxBufs = 2
)

// TxCtrl returns the TXBnCTRL address of transmit buffer i.
func TxCtrl(i int) Addr {
	return TXB0CTRL + Addr(i)<<4
}

// RxCtrl returns the RXBnCTRL address of receive buffer i.
func RxCtrl(i int) Addr {
	return RXB0CTRL + Addr(i)<<4
}

const (
	// CANCTRL
	REQOPMask  = 7 << 5
	ABAT       = 1 << 4
	OSM        = 1 << 3
	CLKEN      = 1 << 2
	CLKPREMask = 3 << 0

	// CANSTAT
	OPMODMask = 7 << 5

	// CNF3
	SOF    = 1 << 7
	WAKFIL = 1 << 6

	// CANINTE, CANINTF
	MERRF = 1 << 7
	WAKIF = 1 << 6
	ERRIF = 1 << 5
	TX2IF = 1 << 4
	TX1IF = 1 << 3
	TX0IF = 1 << 2
	RX1IF = 1 << 1
	RX0IF = 1 << 0
	RX1IE = RX1IF
	RX0IE = RX0IF

	// TXBnCTRL
	ABTF  = 1 << 6
	MLOA  = 1 << 5
	TXERR = 1 << 4
	TXREQ = 1 << 3

	// RXBnCTRL
	RXMMask = 3 << 5
	RXMAny  = 3 << 5
	BUKT    = 1 << 2

	// RXM0SIDL
	SIDMask = 7 << 5
	EIDMask = 3 << 0

	// TXBnSIDL, RXBnSIDL
	SRR         = 1 << 4
	EXIDE       = 1 << 3
	SIDLStdMask = 7<<5 | EXIDE

	// TXBnDLC, RXBnDLC
	RTR     = 1 << 6
	DLCMask = 0x0F
)

// TxIF returns the CANINTF flag of transmit buffer i.
func TxIF(i int) byte {
	return TX0IF << uint(i)
}

// RxIF returns the CANINTF flag of receive buffer i.
func RxIF(i int) byte {
	return RX0IF << uint(i)
}

// Status is the reply of the READ STATUS instruction.
type Status byte

func (st Status) Rx0Int() bool {
	return (st & (1 << 0)) != 0
}

func (st Status) Rx1Int() bool {
	return (st & (1 << 1)) != 0
}

// TxPending reports whether TXREQ of transmit buffer i is set.
func (st Status) TxPending(i int) bool {
	return (st & (1 << (2 + 2*uint(i)))) != 0
}

// TxInt reports whether TXnIF of transmit buffer i is set.
func (st Status) TxInt(i int) bool {
	return (st & (1 << (3 + 2*uint(i)))) != 0
}

// RxStatus is the reply of the RX STATUS instruction.
type RxStatus byte

func (st RxStatus) MsgInRxBuf0() bool {
	return (st & (1 << 6)) != 0
}

func (st RxStatus) MsgInRxBuf1() bool {
	return (st & (1 << 7)) != 0
}

func (st RxStatus) IsRemoteFrame() bool {
	return (st & (1 << 3)) != 0
}

func (st RxStatus) IsExtFrame() bool {
	return (st & (1 << 4)) != 0
}

// FilterHit returns the filter that accepted the message.
// Values 6 and 7 mean RXF0 and RXF1 rolled over into RXB1.
func (st RxStatus) FilterHit() int {
	return int(st & 7)
}

// Buffer returns the lowest receive buffer holding a message.
func (st RxStatus) Buffer() (i int, ok bool) {
	switch {
	case st.MsgInRxBuf0():
		return 0, true
	case st.MsgInRxBuf1():
		return 1, true
	}
	return 0, false
}
