package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/spa-gateway/internal/busswitch"
	"github.com/kstaniek/spa-gateway/internal/mainboard"
)

// appConfig is resolved flags first, then SPA_MAINBOARD_* environment
// overrides for anything not explicitly set on the command line.
type appConfig struct {
	serialDev    string
	serialDriver string
	baud         int
	serialReadTO time.Duration

	busListenAddr string

	recvBufferSize  int
	recvQueueLen    int
	maxWriteBufSize int

	initDelay      time.Duration
	ctsWindow      time.Duration
	ctsPolicy      string
	maxCtsFailures int
	ctsTicksPerCyc int

	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	serialDev := flag.String("serial", "", "Serial device path (e.g. /dev/ttyUSB0); empty runs a null mock bus for dev/test")
	serialDriver := flag.String("serial-driver", "tarm", "Serial backend: tarm|bugst")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	busListen := flag.String("bus-listen", ":8899", "TCP address accepting raw byte bus peers sharing the physical/mock bus")
	recvBufferSize := flag.Int("recv-buffer-size", busswitch.DefaultRecvBufferSize, "Bus switch read buffer size in bytes")
	recvQueueLen := flag.Int("recv-queue-len", busswitch.DefaultRecvQueueLen, "Bus switch per-listener queue depth")
	maxWriteBufSize := flag.Int("max-write-buffer-size", busswitch.DefaultMaxWriteBufSize, "Bus switch per-connection write buffer cap in bytes")
	initDelay := flag.Duration("init-delay", mainboard.DefaultInitDelay, "Delay before the mock device leaves Initializing")
	ctsWindow := flag.Duration("clear-to-send-window", mainboard.DefaultClearToSendWindow, "Clear-to-send authorization window")
	ctsPolicy := flag.String("cts-policy", "always", "CTS enforcement policy: always|for-multiple-clients|never")
	maxCtsFailures := flag.Int("max-cts-failures", mainboard.DefaultMaxCTSFailures, "Consecutive CTS violations before a channel is evicted")
	ctsTicks := flag.Int("cts-ticks-per-cycle", mainboard.DefaultCTSTicksPerCycle, "ClearToSend ticks per schedule cycle")
	logFormat := flag.String("log-format", "text", "Log format: text|json|color")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default mainboardd-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.serialDev = *serialDev
	cfg.serialDriver = *serialDriver
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.busListenAddr = *busListen
	cfg.recvBufferSize = *recvBufferSize
	cfg.recvQueueLen = *recvQueueLen
	cfg.maxWriteBufSize = *maxWriteBufSize
	cfg.initDelay = *initDelay
	cfg.ctsWindow = *ctsWindow
	cfg.ctsPolicy = *ctsPolicy
	cfg.maxCtsFailures = *maxCtsFailures
	cfg.ctsTicksPerCyc = *ctsTicks
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json", "color":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.serialDriver {
	case "tarm", "bugst":
	default:
		return fmt.Errorf("invalid serial-driver: %s", c.serialDriver)
	}
	if _, err := parseCtsPolicy(c.ctsPolicy); err != nil {
		return err
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.maxCtsFailures <= 0 {
		return fmt.Errorf("max-cts-failures must be > 0")
	}
	if c.ctsTicksPerCyc <= 0 {
		return fmt.Errorf("cts-ticks-per-cycle must be > 0")
	}
	if c.recvBufferSize <= 0 || c.recvQueueLen <= 0 || c.maxWriteBufSize <= 0 {
		return fmt.Errorf("bus switch sizes must be > 0")
	}
	return nil
}

func parseCtsPolicy(s string) (mainboard.Policy, error) {
	switch s {
	case "always":
		return mainboard.PolicyAlways, nil
	case "for-multiple-clients":
		return mainboard.PolicyForMultipleClients, nil
	case "never":
		return mainboard.PolicyNever, nil
	default:
		return 0, fmt.Errorf("invalid cts-policy: %s", s)
	}
}

// applyEnvOverrides maps SPA_MAINBOARD_* environment variables onto cfg
// unless the corresponding flag was explicitly set; an explicit flag wins
// over its environment variable.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	setDuration := func(flagName, env string, dst *time.Duration) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				*dst = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	setInt := func(flagName, env string, dst *int) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	setString := func(flagName, env string, dst *string) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	setBool := func(flagName, env string, dst *bool) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	setString("serial", "SPA_MAINBOARD_SERIAL", &c.serialDev)
	setString("serial-driver", "SPA_MAINBOARD_SERIAL_DRIVER", &c.serialDriver)
	setInt("baud", "SPA_MAINBOARD_BAUD", &c.baud)
	setDuration("serial-read-timeout", "SPA_MAINBOARD_SERIAL_READ_TIMEOUT", &c.serialReadTO)
	setString("bus-listen", "SPA_MAINBOARD_BUS_LISTEN", &c.busListenAddr)
	setInt("recv-buffer-size", "SPA_MAINBOARD_RECV_BUFFER_SIZE", &c.recvBufferSize)
	setInt("recv-queue-len", "SPA_MAINBOARD_RECV_QUEUE_LEN", &c.recvQueueLen)
	setInt("max-write-buffer-size", "SPA_MAINBOARD_MAX_WRITE_BUFFER_SIZE", &c.maxWriteBufSize)
	setDuration("init-delay", "SPA_MAINBOARD_INIT_DELAY", &c.initDelay)
	setDuration("clear-to-send-window", "SPA_MAINBOARD_CTS_WINDOW", &c.ctsWindow)
	setString("cts-policy", "SPA_MAINBOARD_CTS_POLICY", &c.ctsPolicy)
	setInt("max-cts-failures", "SPA_MAINBOARD_MAX_CTS_FAILURES", &c.maxCtsFailures)
	setInt("cts-ticks-per-cycle", "SPA_MAINBOARD_CTS_TICKS", &c.ctsTicksPerCyc)
	setString("log-format", "SPA_MAINBOARD_LOG_FORMAT", &c.logFormat)
	setString("log-level", "SPA_MAINBOARD_LOG_LEVEL", &c.logLevel)
	setString("metrics-addr", "SPA_MAINBOARD_METRICS", &c.metricsAddr)
	setDuration("log-metrics-interval", "SPA_MAINBOARD_LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	setBool("mdns-enable", "SPA_MAINBOARD_MDNS_ENABLE", &c.mdnsEnable)
	setString("mdns-name", "SPA_MAINBOARD_MDNS_NAME", &c.mdnsName)

	return firstErr
}
