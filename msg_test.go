package mcp2515

import (
	"errors"
	"testing"

	"github.com/knieriem/can"
)

func TestMsgConversion(t *testing.T) {
	f := mustFrame(t, mustExt(t, 0x18DAF110), 0x02, 0x10, 0x03)
	var m can.Msg
	if err := f.ToMsg(&m); err != nil {
		t.Fatal(err)
	}
	if !m.ExtFrame() || m.Id != 0x18DAF110 || m.Len != 3 || m.Data[1] != 0x10 {
		t.Fatalf("unexpected msg %+v", m)
	}
	g, err := FrameFromMsg(&m)
	if err != nil {
		t.Fatal(err)
	}
	if g != f {
		t.Fatalf("got %v want %v", g, f)
	}

	m.Flags = 0
	m.Id = 0x800
	if _, err := FrameFromMsg(&m); !errors.Is(err, ErrInvalidFrameID) {
		t.Fatalf("standard 0x800: %v", err)
	}
	m.Id = 0x7FF
	m.Len = 9
	if _, err := FrameFromMsg(&m); !errors.Is(err, ErrInvalidDLC) {
		t.Fatalf("len 9: %v", err)
	}

	r, err := NewRemoteFrame(mustStd(t, 1), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.ToMsg(&m); !errors.Is(err, ErrRemoteFrame) {
		t.Fatalf("remote: %v", err)
	}
}

func TestDevReadWriteMsg(t *testing.T) {
	d, _ := newLoopbackDev(t)
	var m can.Msg
	if err := d.Read(&m); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("empty read: %v", err)
	}
	m.Id = 0x321
	m.Len = 2
	m.Data[0], m.Data[1] = 0xCA, 0xFE
	if err := d.Write(&m); err != nil {
		t.Fatal(err)
	}
	var got can.Msg
	if err := d.Read(&got); err != nil {
		t.Fatal(err)
	}
	if got.Id != 0x321 || got.ExtFrame() || got.Len != 2 || got.Data[0] != 0xCA || got.Data[1] != 0xFE {
		t.Fatalf("unexpected msg %+v", got)
	}
}
