package mcp2515

import (
	"github.com/knieriem/can"
)

// FrameFromMsg converts a can.Msg into a data frame.
func FrameFromMsg(m *can.Msg) (Frame, error) {
	if m.Len < 0 || m.Len > 8 {
		return Frame{}, ErrInvalidDLC
	}
	var id ID
	var err error
	if m.ExtFrame() {
		id, err = ExtendedID(m.Id)
	} else {
		id, err = StandardID(m.Id)
	}
	if err != nil {
		return Frame{}, err
	}
	return NewFrame(id, m.Data[:m.Len])
}

// ToMsg stores f in m. Remote frames have no can.Msg form.
func (f Frame) ToMsg(m *can.Msg) error {
	if f.rtr {
		return ErrRemoteFrame
	}
	m.Flags = 0
	if f.id.ext {
		m.Flags = can.ExtFrame
	}
	m.Id = f.id.v
	m.Len = int(f.dlc)
	copy(m.Data[:], f.data[:f.dlc])
	return nil
}

// Read receives the next frame into m. Like Receive, it returns
// ErrNoMessage if no frame is pending.
func (d *Dev) Read(m *can.Msg) error {
	f, err := d.Receive()
	if err != nil {
		return err
	}
	return f.ToMsg(m)
}

// Write transmits m. See Send.
func (d *Dev) Write(m *can.Msg) error {
	f, err := FrameFromMsg(m)
	if err != nil {
		return err
	}
	return d.Send(f)
}
