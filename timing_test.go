package mcp2515

import (
	"errors"
	"testing"
)

func TestResolveTiming(t *testing.T) {
	tests := []struct {
		osc   McpSpeed
		speed CanSpeed
		want  Timing
	}{
		{MHz8, Kbps100, Timing{0x01, 0xB4, 0x86}},
		{MHz8, Kbps500, Timing{0x00, 0x90, 0x82}},
		{MHz8, Kbps31_25, Timing{0x07, 0xA4, 0x84}},
		{MHz16, Kbps500, Timing{0x00, 0xF0, 0x86}},
		{MHz16, Kbps1000, Timing{0x00, 0xD0, 0x82}},
		{MHz16, Kbps5, Timing{0x3F, 0xFF, 0x87}},
	}
	for _, tc := range tests {
		got, err := ResolveTiming(tc.osc, tc.speed)
		if err != nil {
			t.Fatalf("%v/%v: %v", tc.osc, tc.speed, err)
		}
		if got != tc.want {
			t.Fatalf("%v/%v: got %+v want %+v", tc.osc, tc.speed, got, tc.want)
		}
	}
}

func TestResolveTimingDeterministic(t *testing.T) {
	for _, osc := range []McpSpeed{MHz8, MHz16} {
		for s := Kbps5; s <= Kbps1000; s++ {
			a, errA := ResolveTiming(osc, s)
			b, errB := ResolveTiming(osc, s)
			if a != b || (errA == nil) != (errB == nil) {
				t.Fatalf("%v/%v differs between calls", osc, s)
			}
		}
	}
}

func TestResolveTimingUnsupported(t *testing.T) {
	tests := []struct {
		osc   McpSpeed
		speed CanSpeed
	}{
		{MHz16, Kbps31_25},
		{MHz8, CanSpeed(99)},
		{McpSpeed(7), Kbps125},
	}
	for _, tc := range tests {
		got, err := ResolveTiming(tc.osc, tc.speed)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("%v/%v: got %v", tc.osc, tc.speed, err)
		}
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Speed != tc.speed || ce.Oscillator != tc.osc {
			t.Fatalf("%v/%v: bad error detail %v", tc.osc, tc.speed, err)
		}
		if got != (Timing{}) {
			t.Fatalf("partial result %+v", got)
		}
	}
}

func TestParseSettingsNames(t *testing.T) {
	if s, err := ParseCanSpeed("125"); err != nil || s != Kbps125 {
		t.Fatalf("125: %v %v", s, err)
	}
	if s, err := ParseCanSpeed("31.25kbps"); err != nil || s != Kbps31_25 {
		t.Fatalf("31.25kbps: %v %v", s, err)
	}
	if _, err := ParseCanSpeed("123"); err == nil {
		t.Fatal("expected error")
	}
	if m, err := ParseMcpSpeed("16MHz"); err != nil || m != MHz16 {
		t.Fatalf("16MHz: %v %v", m, err)
	}
	if m, err := ParseOpMode("listen-only"); err != nil || m != ListenOnly {
		t.Fatalf("listen-only: %v %v", m, err)
	}
}
