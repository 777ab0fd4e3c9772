package main

import (
	"fmt"
	"io"

	"github.com/knieriem/mcp2515/v2/buspirate"
	"github.com/knieriem/mcp2515/v2/spidev"
	"github.com/knieriem/mcp2515/v2/spiproto"
)

type transport interface {
	spiproto.Conn
	io.Closer
}

func openTransport(cfg *appConfig) (transport, error) {
	switch cfg.transport {
	case "spidev":
		// SPI mode 0; the MCP2515 also accepts mode 3.
		return spidev.Open(cfg.device, 0, uint32(cfg.spiHz))
	case "buspirate":
		return buspirate.Open(cfg.device, busPirateSpeed(cfg.spiHz))
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.transport)
}

// busPirateSpeed returns the fastest Bus Pirate clock not above hz.
func busPirateSpeed(hz int) buspirate.Speed {
	steps := []struct {
		hz    int
		speed buspirate.Speed
	}{
		{8000000, buspirate.Speed8MHz},
		{4000000, buspirate.Speed4MHz},
		{2600000, buspirate.Speed2600kHz},
		{2000000, buspirate.Speed2MHz},
		{1000000, buspirate.Speed1MHz},
		{250000, buspirate.Speed250kHz},
		{125000, buspirate.Speed125kHz},
	}
	for _, s := range steps {
		if hz >= s.hz {
			return s.speed
		}
	}
	return buspirate.Speed30kHz
}
