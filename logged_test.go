package mcp2515

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggedDevice(t *testing.T) {
	d, _ := newLoopbackDev(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ld := NewLogged(d, logger, slog.LevelInfo)

	if _, err := ld.Receive(); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("idle poll logged: %s", buf.String())
	}

	f := mustFrame(t, mustStd(t, 0x1AB), 7)
	if err := ld.Send(f); err != nil {
		t.Fatal(err)
	}
	if _, err := ld.Receive(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"mcp2515 send", "mcp2515 receive", "id=1AB", "len=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log lacks %q:\n%s", want, out)
		}
	}
}
