package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	mcp2515 "github.com/knieriem/mcp2515/v2"
)

type appConfig struct {
	transport       string
	device          string
	spiHz           int
	oscillator      string
	bitrate         string
	mode            string
	clkout          bool
	interval        time.Duration
	count           int
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
}

// fileConfig is the layout of the optional YAML settings file.
type fileConfig struct {
	Transport       string        `yaml:"transport"`
	Device          string        `yaml:"device"`
	SPIHz           int           `yaml:"spi_hz"`
	Oscillator      string        `yaml:"oscillator"`
	Bitrate         string        `yaml:"bitrate"`
	Mode            string        `yaml:"mode"`
	ClkOut          *bool         `yaml:"clkout"`
	Interval        time.Duration `yaml:"interval"`
	Count           int           `yaml:"count"`
	LogFormat       string        `yaml:"log_format"`
	LogLevel        string        `yaml:"log_level"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	LogMetricsEvery time.Duration `yaml:"log_metrics_interval"`
}

func parseFlags(args []string) (*appConfig, bool, error) {
	fs := flag.NewFlagSet("mcp2515-loopback", flag.ContinueOnError)
	cfg := &appConfig{}
	fs.StringVar(&cfg.transport, "transport", "spidev", "SPI transport: spidev|buspirate")
	fs.StringVar(&cfg.device, "device", "/dev/spidev0.0", "spidev device or Bus Pirate serial port")
	fs.IntVar(&cfg.spiHz, "spi-hz", 1000000, "SPI clock in Hz")
	fs.StringVar(&cfg.oscillator, "oscillator", "8MHz", "MCP2515 oscillator: 8MHz|16MHz")
	fs.StringVar(&cfg.bitrate, "bitrate", "100kbps", "CAN bitrate, e.g. 125kbps")
	fs.StringVar(&cfg.mode, "mode", "loopback", "Mode after init: normal|loopback|listen-only|sleep|configuration")
	fs.BoolVar(&cfg.clkout, "clkout", false, "Enable the CLKOUT pin")
	fs.DurationVar(&cfg.interval, "interval", 500*time.Millisecond, "Delay between test frames")
	fs.IntVar(&cfg.count, "count", 0, "Number of frames to send (0 = until interrupted)")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "Log format: text|json")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	fs.DurationVar(&cfg.logMetricsEvery, "log-metrics-interval", 0, "If >0, periodically log metrics counters")
	configFile := fs.String("config", "", "Optional YAML settings file")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	// Track which flags were explicitly set to give them precedence.
	setFlags := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	if *configFile != "" {
		if err := applyConfigFile(cfg, *configFile, setFlags); err != nil {
			return nil, *showVersion, err
		}
	}
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return nil, *showVersion, fmt.Errorf("environment override error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, *showVersion, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, *showVersion, nil
}

func applyConfigFile(cfg *appConfig, path string, setFlags map[string]struct{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	isSet := func(name string) bool { _, ok := setFlags[name]; return ok }
	str := func(name string, dst *string, v string) {
		if v != "" && !isSet(name) {
			*dst = v
		}
	}
	str("transport", &cfg.transport, fc.Transport)
	str("device", &cfg.device, fc.Device)
	str("oscillator", &cfg.oscillator, fc.Oscillator)
	str("bitrate", &cfg.bitrate, fc.Bitrate)
	str("mode", &cfg.mode, fc.Mode)
	str("log-format", &cfg.logFormat, fc.LogFormat)
	str("log-level", &cfg.logLevel, fc.LogLevel)
	str("metrics-addr", &cfg.metricsAddr, fc.MetricsAddr)
	if fc.SPIHz != 0 && !isSet("spi-hz") {
		cfg.spiHz = fc.SPIHz
	}
	if fc.ClkOut != nil && !isSet("clkout") {
		cfg.clkout = *fc.ClkOut
	}
	if fc.Interval != 0 && !isSet("interval") {
		cfg.interval = fc.Interval
	}
	if fc.Count != 0 && !isSet("count") {
		cfg.count = fc.Count
	}
	if fc.LogMetricsEvery != 0 && !isSet("log-metrics-interval") {
		cfg.logMetricsEvery = fc.LogMetricsEvery
	}
	return nil
}

// applyEnvOverrides applies MCP2515_* variables to fields whose flag
// was not given on the command line.
func applyEnvOverrides(cfg *appConfig, setFlags map[string]struct{}) error {
	var errs []error
	env := func(flagName string, apply func(string) error) {
		if _, ok := setFlags[flagName]; ok {
			return
		}
		key := "MCP2515_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		if err := apply(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	setStr := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	env("transport", setStr(&cfg.transport))
	env("device", setStr(&cfg.device))
	env("oscillator", setStr(&cfg.oscillator))
	env("bitrate", setStr(&cfg.bitrate))
	env("mode", setStr(&cfg.mode))
	env("log-format", setStr(&cfg.logFormat))
	env("log-level", setStr(&cfg.logLevel))
	env("metrics-addr", setStr(&cfg.metricsAddr))
	env("spi-hz", func(v string) (err error) { cfg.spiHz, err = strconv.Atoi(v); return })
	env("count", func(v string) (err error) { cfg.count, err = strconv.Atoi(v); return })
	env("clkout", func(v string) (err error) { cfg.clkout, err = strconv.ParseBool(v); return })
	env("interval", func(v string) (err error) { cfg.interval, err = time.ParseDuration(v); return })
	env("log-metrics-interval", func(v string) (err error) { cfg.logMetricsEvery, err = time.ParseDuration(v); return })
	return errors.Join(errs...)
}

// validate performs semantic validation of the parsed configuration.
// It does not open devices.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.transport {
	case "spidev", "buspirate":
	default:
		return fmt.Errorf("invalid transport: %s", c.transport)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.device == "" {
		return errors.New("device must not be empty")
	}
	if c.spiHz <= 0 || c.spiHz > 10000000 {
		return fmt.Errorf("spi-hz must be in (0, 10MHz] (got %d)", c.spiHz)
	}
	if c.interval <= 0 {
		return fmt.Errorf("interval must be > 0 (got %s)", c.interval)
	}
	if c.count < 0 {
		return fmt.Errorf("count must be >= 0 (got %d)", c.count)
	}
	if c.logMetricsEvery < 0 {
		return fmt.Errorf("log-metrics-interval must be >= 0 (got %s)", c.logMetricsEvery)
	}
	_, err := c.settings()
	return err
}

// settings resolves the chip configuration. Bit timing is checked here
// so that unsupported combinations fail before any device is opened.
func (c *appConfig) settings() (mcp2515.Settings, error) {
	var s mcp2515.Settings
	var err error
	if s.Oscillator, err = mcp2515.ParseMcpSpeed(c.oscillator); err != nil {
		return s, err
	}
	if s.Bitrate, err = mcp2515.ParseCanSpeed(c.bitrate); err != nil {
		return s, err
	}
	if s.Mode, err = mcp2515.ParseOpMode(c.mode); err != nil {
		return s, err
	}
	if _, err = mcp2515.ResolveTiming(s.Oscillator, s.Bitrate); err != nil {
		return s, err
	}
	s.ClkOut = c.clkout
	return s, nil
}
