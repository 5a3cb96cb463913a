package main

import (
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/spa-gateway/internal/busswitch"
)

// appConfig is resolved flags first, then SPA_GATEWAY_* environment
// overrides for anything not explicitly set on the command line.
type appConfig struct {
	serialDev    string
	serialDriver string
	baud         int
	serialReadTO time.Duration
	busDialAddr  string

	recvBufferSize  int
	recvQueueLen    int
	maxWriteBufSize int

	localTopside bool

	name string
	mac  string

	udpListenAddr string
	tcpListenAddr string

	viewmodelWSAddr string

	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	serialDev := flag.String("serial", "", "Serial device path (e.g. /dev/ttyUSB0); empty requires --bus-dial")
	serialDriver := flag.String("serial-driver", "tarm", "Serial backend: tarm|bugst")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	busDial := flag.String("bus-dial", "", "TCP address of a mainboardd --bus-listen endpoint (dev/test bus, used when --serial is empty)")
	recvBufferSize := flag.Int("recv-buffer-size", busswitch.DefaultRecvBufferSize, "Bus switch read buffer size in bytes")
	recvQueueLen := flag.Int("recv-queue-len", busswitch.DefaultRecvQueueLen, "Bus switch per-listener queue depth")
	maxWriteBufSize := flag.Int("max-write-buffer-size", busswitch.DefaultMaxWriteBufSize, "Bus switch per-connection write buffer cap in bytes")
	localTopside := flag.Bool("local-topside", false, "Also run a local topside display peer sharing this process's bus connection")
	name := flag.String("name", "", "Advertised device name (default spa-gateway-<hostname>)")
	mac := flag.String("mac", "", "Advertised MAC address AA:BB:CC:DD:EE:FF (default a random locally-administered address)")
	udpListen := flag.String("udp-listen", "0.0.0.0:30303", "UDP discovery listen address")
	tcpListen := flag.String("tcp-listen", "0.0.0.0:4257", "TCP relay listen address")
	wsAddr := flag.String("viewmodel-ws-addr", "", "If set, serves the coalesced Wi-Fi lifecycle view model over /ws at this address")
	logFormat := flag.String("log-format", "text", "Log format: text|json|color")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default name)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.serialDev = *serialDev
	cfg.serialDriver = *serialDriver
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.busDialAddr = *busDial
	cfg.recvBufferSize = *recvBufferSize
	cfg.recvQueueLen = *recvQueueLen
	cfg.maxWriteBufSize = *maxWriteBufSize
	cfg.localTopside = *localTopside
	cfg.name = *name
	cfg.mac = *mac
	cfg.udpListenAddr = *udpListen
	cfg.tcpListenAddr = *tcpListen
	cfg.viewmodelWSAddr = *wsAddr
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
	if cfg.name == "" {
		host, _ := os.Hostname()
		cfg.name = fmt.Sprintf("spa-gateway-%s", host)
	}
	if cfg.mdnsName == "" {
		cfg.mdnsName = cfg.name
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
	if c.serialDev == "" && c.busDialAddr == "" {
		return errors.New("one of --serial or --bus-dial is required")
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.mac != "" {
		if _, err := parseMAC(c.mac); err != nil {
			return err
		}
	}
	if c.recvBufferSize <= 0 || c.recvQueueLen <= 0 || c.maxWriteBufSize <= 0 {
		return fmt.Errorf("bus switch sizes must be > 0")
	}
	return nil
}

// parseMAC parses "AA:BB:CC:DD:EE:FF" or "AA-BB-CC-DD-EE-FF" into six bytes.
func parseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	s = strings.ReplaceAll(s, "-", ":")
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("invalid mac %q: expected 6 colon-separated octets", s)
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("invalid mac %q: %w", s, err)
		}
		mac[i] = byte(n)
	}
	return mac, nil
}

// randomMAC derives a locally-administered MAC from crypto/rand bytes, used
// when --mac is not given so two instances on a test network do not
// collide.
func randomMAC() [6]byte {
	var mac [6]byte
	_, _ = rand.Read(mac[:])
	mac[0] = (mac[0] | 0x02) & 0xFE // locally administered, unicast
	return mac
}

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

	setString("serial", "SPA_GATEWAY_SERIAL", &c.serialDev)
	setString("serial-driver", "SPA_GATEWAY_SERIAL_DRIVER", &c.serialDriver)
	setInt("baud", "SPA_GATEWAY_BAUD", &c.baud)
	setDuration("serial-read-timeout", "SPA_GATEWAY_SERIAL_READ_TIMEOUT", &c.serialReadTO)
	setString("bus-dial", "SPA_GATEWAY_BUS_DIAL", &c.busDialAddr)
	setInt("recv-buffer-size", "SPA_GATEWAY_RECV_BUFFER_SIZE", &c.recvBufferSize)
	setInt("recv-queue-len", "SPA_GATEWAY_RECV_QUEUE_LEN", &c.recvQueueLen)
	setInt("max-write-buffer-size", "SPA_GATEWAY_MAX_WRITE_BUFFER_SIZE", &c.maxWriteBufSize)
	setBool("local-topside", "SPA_GATEWAY_LOCAL_TOPSIDE", &c.localTopside)
	setString("name", "SPA_GATEWAY_NAME", &c.name)
	setString("mac", "SPA_GATEWAY_MAC", &c.mac)
	setString("udp-listen", "SPA_GATEWAY_UDP_LISTEN", &c.udpListenAddr)
	setString("tcp-listen", "SPA_GATEWAY_TCP_LISTEN", &c.tcpListenAddr)
	setString("viewmodel-ws-addr", "SPA_GATEWAY_VIEWMODEL_WS_ADDR", &c.viewmodelWSAddr)
	setString("log-format", "SPA_GATEWAY_LOG_FORMAT", &c.logFormat)
	setString("log-level", "SPA_GATEWAY_LOG_LEVEL", &c.logLevel)
	setString("metrics-addr", "SPA_GATEWAY_METRICS", &c.metricsAddr)
	setDuration("log-metrics-interval", "SPA_GATEWAY_LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	setBool("mdns-enable", "SPA_GATEWAY_MDNS_ENABLE", &c.mdnsEnable)
	setString("mdns-name", "SPA_GATEWAY_MDNS_NAME", &c.mdnsName)

	return firstErr
}
