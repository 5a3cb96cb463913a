// Command mainboardd hosts the main-board engine against a MockDevice,
// for integration testing and for driving the gateway/topside state
// machines without real RS-485 hardware: flag-based config with env
// overrides, slog logging, Prometheus metrics endpoint, mDNS
// advertisement, signal-driven shutdown.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/kstaniek/spa-gateway/internal/busswitch"
	"github.com/kstaniek/spa-gateway/internal/logging"
	"github.com/kstaniek/spa-gateway/internal/mainboard"
	"github.com/kstaniek/spa-gateway/internal/metrics"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("mainboardd %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	phys, err := openPhysicalBus(cfg)
	if err != nil {
		l.Error("bus_open_error", "error", err)
		os.Exit(1)
	}
	sw := busswitch.New(phys,
		busswitch.WithReadBufferSize(cfg.recvBufferSize),
		busswitch.WithQueueDepth(cfg.recvQueueLen),
		busswitch.WithMaxWriteBufferSize(cfg.maxWriteBufSize),
	)
	defer sw.Close()

	ctsPolicy, _ := parseCtsPolicy(cfg.ctsPolicy)
	engine := mainboard.New(sw.Attach(),
		mainboard.WithInitDelay(cfg.initDelay),
		mainboard.WithClearToSendWindow(cfg.ctsWindow),
		mainboard.WithCTSPolicy(ctsPolicy),
		mainboard.WithMaxCTSFailures(cfg.maxCtsFailures),
		mainboard.WithCTSTicksPerCycle(cfg.ctsTicksPerCyc),
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runBusListener(ctx, cfg.busListenAddr, sw, l); err != nil {
			l.Error("bus_listener_error", "error", err)
			cancel()
		}
	}()

	if cfg.mdnsEnable {
		go func() {
			_, portStr, splitErr := net.SplitHostPort(cfg.busListenAddr)
			var port int
			if splitErr == nil {
				if p, perr := strconv.Atoi(portStr); perr == nil {
					port = p
				}
			}
			if port == 0 {
				if idx := strings.LastIndex(cfg.busListenAddr, ":"); idx >= 0 {
					if p, perr := strconv.Atoi(cfg.busListenAddr[idx+1:]); perr == nil {
						port = p
					}
				}
			}
			cleanup, err := startMDNS(ctx, cfg, port)
			if err != nil {
				l.Warn("mdns_start_failed", "error", err)
				return
			}
			l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", port)
			go func() { <-ctx.Done(); cleanup() }()
		}()
	}

	metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error("engine_error", "error", err)
			cancel()
		}
	}()

	logging.L().Info("mainboardd_started", "serial", cfg.serialDev, "bus_listen", cfg.busListenAddr)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	engine.Stop()
	cancel()
	wg.Wait()
}
