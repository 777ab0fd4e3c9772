package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	mcp2515 "github.com/knieriem/mcp2515/v2"
	"github.com/knieriem/mcp2515/v2/internal/metrics"
)

// testFrame is the frame the loop sends: the largest extended
// identifier carrying bytes 1 through 8.
func testFrame() mcp2515.Frame {
	id, _ := mcp2515.ExtendedID(mcp2515.MaxExtendedID)
	f, _ := mcp2515.NewFrame(id, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})
	return f
}

// runLoop sends a test frame every interval and reads back whatever
// arrived, until ctx is done or count frames were sent.
func runLoop(ctx context.Context, d *mcp2515.Dev, cfg *appConfig, l *slog.Logger) error {
	dev := metrics.Instrument(d)
	t := time.NewTicker(cfg.interval)
	defer t.Stop()
	for n := 0; cfg.count == 0 || n < cfg.count; n++ {
		if n > 0 {
			select {
			case <-t.C:
			case <-ctx.Done():
				return nil
			}
		}
		f := testFrame()
		if err := dev.Send(f); err != nil {
			if !errors.Is(err, mcp2515.ErrTxBusy) {
				return err
			}
			l.Warn("send_busy", "id", f.ID().String())
		} else {
			l.Info("sent", "frame", f.String())
		}

		g, err := dev.Receive()
		switch {
		case err == nil:
			l.Info("received", "frame", g.String(), "match", g == f)
		case errors.Is(err, mcp2515.ErrNoMessage):
			l.Info("no_message")
		case errors.Is(err, mcp2515.ErrInvalidDLC), errors.Is(err, mcp2515.ErrInvalidFrameID):
			l.Warn("frame_dropped", "error", err)
		default:
			return err
		}

		if err := d.CheckTx(); err != nil {
			metrics.ObserveError(err)
			l.Warn("tx_failed", "error", err)
		}
		if tec, rec, err := d.ErrorCounters(); err == nil {
			metrics.SetErrorCounters(tec, rec)
		}
	}
	return nil
}
