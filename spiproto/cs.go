package spiproto

// Bus transfers bytes on a SPI bus without managing chip select.
// W and r may have different lengths; see drivers.SPI in TinyGo.
type Bus interface {
	Tx(w, r []byte) error
}

// Pin is a chip-select output.
type Pin interface {
	Low()
	High()
}

type csConn struct {
	bus Bus
	cs  Pin
}

// NewCSConn returns a Conn that drives cs low for the duration of each
// exchange on bus. The pin is released on every return path.
func NewCSConn(bus Bus, cs Pin) Conn {
	cs.High()
	return &csConn{bus: bus, cs: cs}
}

func (c *csConn) TxRx(tx, rx []byte) error {
	c.cs.Low()
	defer c.cs.High()
	return c.bus.Tx(tx, rx)
}
