// Command spa-gatewayd hosts the Wi-Fi module's runtime: bus peer
// negotiation and relay, UDP discovery, TCP frame relay, and Wi-Fi
// provisioning lifecycle, optionally alongside a co-located local topside
// display peer. Flag-based config with env overrides, slog logging,
// Prometheus metrics endpoint, mDNS advertisement, signal-driven
// shutdown.
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

	"github.com/google/uuid"

	"github.com/kstaniek/spa-gateway/internal/allocbroker"
	"github.com/kstaniek/spa-gateway/internal/bfanout"
	"github.com/kstaniek/spa-gateway/internal/busswitch"
	"github.com/kstaniek/spa-gateway/internal/gateway"
	"github.com/kstaniek/spa-gateway/internal/logging"
	"github.com/kstaniek/spa-gateway/internal/metrics"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("spa-gatewayd %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	// instanceID distinguishes this process across restarts in logs and
	// mDNS metadata.
	instanceID := uuid.NewString()
	l.Info("build_info", "version", version, "commit", commit, "date", date, "instance", instanceID)

	mac, err := resolveMAC(cfg.mac)
	if err != nil {
		l.Error("mac_error", "error", err)
		os.Exit(2)
	}

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

	broker := allocbroker.New()
	rt := gateway.New(sw.Attach(), cfg.name, mac, broker,
		gateway.WithUDPListenAddr(cfg.udpListenAddr),
		gateway.WithTCPListenAddr(cfg.tcpListenAddr),
	)

	if cfg.localTopside {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runLocalTopside(ctx, sw.Attach(), broker, l); err != nil && ctx.Err() == nil {
				l.Error("local_topside_error", "error", err)
				cancel()
			}
		}()
	}

	if cfg.viewmodelWSAddr != "" {
		hub := bfanout.New[gateway.LifecycleModel](16, bfanout.PolicyDrop)
		wg.Add(1)
		go func() {
			defer wg.Done()
			pumpViewModel(ctx, rt.ViewModel(), hub)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serveViewModelWS(ctx, cfg.viewmodelWSAddr, hub, l); err != nil && ctx.Err() == nil {
				l.Error("viewmodel_ws_error", "error", err)
			}
		}()
	}

	if cfg.mdnsEnable {
		go func() {
			cleanup, err := startMDNS(ctx, cfg, relayPort(cfg.tcpListenAddr), instanceID)
			if err != nil {
				l.Warn("mdns_start_failed", "error", err)
				return
			}
			l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName)
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
		if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error("gateway_error", "error", err)
			cancel()
		}
	}()

	logging.L().Info("spa_gatewayd_started", "name", cfg.name, "mac", fmt.Sprintf("%02X-%02X-%02X-%02X-%02X-%02X",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5]), "udp", cfg.udpListenAddr, "tcp", cfg.tcpListenAddr)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	wg.Wait()
}

func resolveMAC(s string) ([6]byte, error) {
	if s == "" {
		return randomMAC(), nil
	}
	return parseMAC(s)
}

func relayPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err == nil {
		if p, perr := strconv.Atoi(portStr); perr == nil {
			return p
		}
	}
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		if p, perr := strconv.Atoi(addr[idx+1:]); perr == nil {
			return p
		}
	}
	return 0
}
