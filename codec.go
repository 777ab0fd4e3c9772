package mcp2515

import (
	"fmt"

	"github.com/knieriem/mcp2515/v2/spiproto"
)

// bufLen is the size of a TX/RX buffer image: SIDH SIDL EID8 EID0 DLC D0..D7.
const bufLen = 13

// encodeFrame lays out f as the chip's buffer registers, starting at
// SIDH. It returns the image and the number of bytes worth loading.
func encodeFrame(f Frame) (b [bufLen]byte, n int) {
	encodeID(b[:], f.id)
	b[4] = f.dlc
	if f.rtr {
		b[4] |= spiproto.RTR
		return b, 5
	}
	copy(b[5:], f.data[:f.dlc])
	return b, 5 + int(f.dlc)
}

func encodeID(dest []byte, id ID) {
	v := id.v
	if id.ext {
		dest[0] = byte(v >> 21)
		dest[1] = byte((v>>13)&(7<<5)) | spiproto.EXIDE | byte((v>>16)&3)
		dest[2] = byte(v >> 8)
		dest[3] = byte(v)
		return
	}
	dest[0] = byte(v >> 3)
	dest[1] = byte(v << 5)
	dest[2] = 0
	dest[3] = 0
}

func decodeID(buf []byte) (ID, error) {
	if buf[1]&spiproto.EXIDE != 0 {
		v := (uint32(buf[0]) << 21) | (uint32(buf[1]&(7<<5)) << 13) | (uint32(buf[1]&3) << 16) | (uint32(buf[2]) << 8) | uint32(buf[3])
		return ExtendedID(v)
	}
	return StandardID((uint32(buf[0]) << 3) | (uint32(buf[1]) >> 5))
}

// decodeFrame is the inverse of encodeFrame for a buffer image read
// from the chip.
func decodeFrame(buf []byte) (Frame, error) {
	if len(buf) < 5 {
		return Frame{}, fmt.Errorf("%w: short buffer (%d bytes)", ErrInvalidFrameID, len(buf))
	}
	id, err := decodeID(buf)
	if err != nil {
		return Frame{}, err
	}
	dlc := int(buf[4] & spiproto.DLCMask)
	if dlc > 8 {
		return Frame{}, fmt.Errorf("%w: dlc %d", ErrInvalidDLC, dlc)
	}
	rtr := buf[4]&spiproto.RTR != 0
	if !id.ext && buf[1]&spiproto.SRR != 0 {
		rtr = true
	}
	if rtr {
		return NewRemoteFrame(id, dlc)
	}
	if len(buf) < 5+dlc {
		return Frame{}, fmt.Errorf("%w: dlc %d exceeds buffer", ErrInvalidDLC, dlc)
	}
	return NewFrame(id, buf[5:5+dlc])
}
