package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	mcp2515 "github.com/knieriem/mcp2515/v2"
	"github.com/knieriem/mcp2515/v2/internal/mcpsim"
)

func TestRunLoopLoopback(t *testing.T) {
	cfg, _, err := parseFlags([]string{"-count", "2", "-interval", "1ms"})
	if err != nil {
		t.Fatal(err)
	}
	s, err := cfg.settings()
	if err != nil {
		t.Fatal(err)
	}
	d := mcp2515.NewDevice(&mcpsim.Chip{})
	if err := d.Init(s, mcp2515.DelayFunc(func(time.Duration) {})); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	if err := runLoop(context.Background(), d, cfg, l); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Count(out, "msg=received") != 2 || !strings.Contains(out, "match=true") {
		t.Fatalf("unexpected log:\n%s", out)
	}
}

func TestRunLoopNormalModeNoEcho(t *testing.T) {
	cfg, _, err := parseFlags([]string{"-count", "1", "-mode", "normal"})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := cfg.settings()
	d := mcp2515.NewDevice(&mcpsim.Chip{})
	if err := d.Init(s, mcp2515.DelayFunc(func(time.Duration) {})); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	if err := runLoop(context.Background(), d, cfg, l); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "msg=no_message") {
		t.Fatalf("unexpected log:\n%s", buf.String())
	}
}
