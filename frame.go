package mcp2515

import (
	"fmt"
)

// Identifier limits.
const (
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
)

// ID is a CAN identifier, tagged as standard (11 bit) or extended (29 bit).
// The zero value is standard identifier 0.
type ID struct {
	v   uint32
	ext bool
}

// StandardID returns an 11-bit identifier.
func StandardID(v uint32) (ID, error) {
	if v > MaxStandardID {
		return ID{}, fmt.Errorf("%w: standard id %#x", ErrInvalidFrameID, v)
	}
	return ID{v: v}, nil
}

// ExtendedID returns a 29-bit identifier.
func ExtendedID(v uint32) (ID, error) {
	if v > MaxExtendedID {
		return ID{}, fmt.Errorf("%w: extended id %#x", ErrInvalidFrameID, v)
	}
	return ID{v: v, ext: true}, nil
}

func (id ID) Value() uint32    { return id.v }
func (id ID) IsExtended() bool { return id.ext }

func (id ID) String() string {
	if id.ext {
		return fmt.Sprintf("%08X", id.v)
	}
	return fmt.Sprintf("%03X", id.v)
}

// Frame is a classical CAN frame. Frames are immutable and comparable.
type Frame struct {
	id   ID
	rtr  bool
	dlc  uint8
	data [8]byte
}

// NewFrame returns a data frame carrying up to 8 bytes.
func NewFrame(id ID, data []byte) (Frame, error) {
	if len(data) > 8 {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrInvalidDLC, len(data))
	}
	f := Frame{id: id, dlc: uint8(len(data))}
	copy(f.data[:], data)
	return f, nil
}

// NewRemoteFrame returns a remote transmission request for dlc bytes.
func NewRemoteFrame(id ID, dlc int) (Frame, error) {
	if dlc < 0 || dlc > 8 {
		return Frame{}, fmt.Errorf("%w: %d", ErrInvalidDLC, dlc)
	}
	return Frame{id: id, rtr: true, dlc: uint8(dlc)}, nil
}

func (f Frame) ID() ID              { return f.id }
func (f Frame) IsExtended() bool    { return f.id.ext }
func (f Frame) IsRemoteFrame() bool { return f.rtr }
func (f Frame) DLC() int            { return int(f.dlc) }

// Data returns a copy of the payload. Remote frames have none.
func (f Frame) Data() []byte {
	if f.rtr {
		return nil
	}
	return append([]byte(nil), f.data[:f.dlc]...)
}

func (f Frame) String() string {
	if f.rtr {
		return fmt.Sprintf("%v [%d] remote", f.id, f.dlc)
	}
	return fmt.Sprintf("%v [%d] % X", f.id, f.dlc, f.data[:f.dlc])
}
