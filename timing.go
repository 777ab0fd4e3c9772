package mcp2515

import (
	"fmt"
)

// CanSpeed is a CAN bus bitrate.
type CanSpeed uint8

const (
	Kbps5 CanSpeed = iota
	Kbps10
	Kbps20
	Kbps31_25
	Kbps33_3
	Kbps40
	Kbps50
	Kbps80
	Kbps100
	Kbps125
	Kbps200
	Kbps250
	Kbps500
	Kbps1000
)

var speedNames = [...]string{
	Kbps5:     "5kbps",
	Kbps10:    "10kbps",
	Kbps20:    "20kbps",
	Kbps31_25: "31.25kbps",
	Kbps33_3:  "33.3kbps",
	Kbps40:    "40kbps",
	Kbps50:    "50kbps",
	Kbps80:    "80kbps",
	Kbps100:   "100kbps",
	Kbps125:   "125kbps",
	Kbps200:   "200kbps",
	Kbps250:   "250kbps",
	Kbps500:   "500kbps",
	Kbps1000:  "1000kbps",
}

func (s CanSpeed) String() string {
	if int(s) < len(speedNames) {
		return speedNames[s]
	}
	return fmt.Sprintf("CanSpeed(%d)", uint8(s))
}

// ParseCanSpeed maps a name as returned by String, with or without
// the "kbps" suffix, to a CanSpeed.
func ParseCanSpeed(s string) (CanSpeed, error) {
	for i, name := range speedNames {
		if s == name || s+"kbps" == name {
			return CanSpeed(i), nil
		}
	}
	return 0, fmt.Errorf("unknown bitrate %q", s)
}

// McpSpeed is the frequency of the chip's oscillator.
type McpSpeed uint8

const (
	MHz8 McpSpeed = iota
	MHz16
)

func (m McpSpeed) String() string {
	switch m {
	case MHz8:
		return "8MHz"
	case MHz16:
		return "16MHz"
	}
	return fmt.Sprintf("McpSpeed(%d)", uint8(m))
}

// ParseMcpSpeed accepts "8", "8MHz", "16" and "16MHz".
func ParseMcpSpeed(s string) (McpSpeed, error) {
	switch s {
	case "8", "8MHz":
		return MHz8, nil
	case "16", "16MHz":
		return MHz16, nil
	}
	return 0, fmt.Errorf("unknown oscillator %q", s)
}

// Timing holds the values of the bit timing configuration registers.
type Timing struct {
	CNF1, CNF2, CNF3 byte
}

type timingKey struct {
	osc   McpSpeed
	speed CanSpeed
}

// Values as recommended for the MCP2515 by Microchip's bit timing
// calculator, as used by the common Arduino libraries.
var timingTable = map[timingKey]Timing{
	{MHz8, Kbps1000}:  {0x00, 0x80, 0x80},
	{MHz8, Kbps500}:   {0x00, 0x90, 0x82},
	{MHz8, Kbps250}:   {0x00, 0xB1, 0x85},
	{MHz8, Kbps200}:   {0x00, 0xB4, 0x86},
	{MHz8, Kbps125}:   {0x01, 0xB1, 0x85},
	{MHz8, Kbps100}:   {0x01, 0xB4, 0x86},
	{MHz8, Kbps80}:    {0x01, 0xBF, 0x87},
	{MHz8, Kbps50}:    {0x03, 0xB4, 0x86},
	{MHz8, Kbps40}:    {0x03, 0xBF, 0x87},
	{MHz8, Kbps33_3}:  {0x47, 0xE2, 0x85},
	{MHz8, Kbps31_25}: {0x07, 0xA4, 0x84},
	{MHz8, Kbps20}:    {0x07, 0xBF, 0x87},
	{MHz8, Kbps10}:    {0x0F, 0xBF, 0x87},
	{MHz8, Kbps5}:     {0x1F, 0xBF, 0x87},

	{MHz16, Kbps1000}: {0x00, 0xD0, 0x82},
	{MHz16, Kbps500}:  {0x00, 0xF0, 0x86},
	{MHz16, Kbps250}:  {0x41, 0xF1, 0x85},
	{MHz16, Kbps200}:  {0x01, 0xFA, 0x87},
	{MHz16, Kbps125}:  {0x03, 0xF0, 0x86},
	{MHz16, Kbps100}:  {0x03, 0xFA, 0x87},
	{MHz16, Kbps80}:   {0x03, 0xFF, 0x87},
	{MHz16, Kbps50}:   {0x07, 0xFA, 0x87},
	{MHz16, Kbps40}:   {0x07, 0xFF, 0x87},
	{MHz16, Kbps33_3}: {0x4E, 0xF1, 0x85},
	{MHz16, Kbps20}:   {0x0F, 0xFF, 0x87},
	{MHz16, Kbps10}:   {0x1F, 0xFF, 0x87},
	{MHz16, Kbps5}:    {0x3F, 0xFF, 0x87},
}

// ResolveTiming returns the CNF register values for speed on a chip
// clocked at osc. Pairs missing from the table yield a *ConfigError.
func ResolveTiming(osc McpSpeed, speed CanSpeed) (Timing, error) {
	t, ok := timingTable[timingKey{osc, speed}]
	if !ok {
		return Timing{}, &ConfigError{Speed: speed, Oscillator: osc}
	}
	return t, nil
}

// regs returns the values in register order CNF3, CNF2, CNF1,
// for a single sequential write starting at CNF3.
func (t Timing) regs() []byte {
	return []byte{t.CNF3, t.CNF2, t.CNF1}
}
