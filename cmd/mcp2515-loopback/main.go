// Command mcp2515-loopback initializes an MCP2515, then periodically
// sends a test frame and reads back what the controller received. In
// loopback mode every frame sent is received again.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mcp2515 "github.com/knieriem/mcp2515/v2"
	"github.com/knieriem/mcp2515/v2/internal/metrics"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, showVersion, err := parseFlags(args)
	if showVersion {
		fmt.Printf("mcp2515-loopback %s\n", version)
		return 0
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer stop()
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	initialized := make(chan struct{})
	metrics.SetReadinessFunc(func() bool {
		select {
		case <-initialized:
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version)
		srv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	conn, err := openTransport(cfg)
	if err != nil {
		l.Error("transport_open_error", "transport", cfg.transport, "device", cfg.device, "error", err)
		return 1
	}
	defer conn.Close()

	s, _ := cfg.settings()
	d := mcp2515.NewDevice(conn)
	if err := d.Init(s, mcp2515.DelayFunc(time.Sleep)); err != nil {
		metrics.ObserveError(err)
		l.Error("init_error", "error", err)
		return 1
	}
	close(initialized)
	l.Info("initialized", "mode", s.Mode.String(), "bitrate", s.Bitrate.String(), "oscillator", s.Oscillator.String())

	if err := runLoop(ctx, d, cfg, l); err != nil {
		l.Error("loop_error", "error", err)
		return 1
	}
	return 0
}
