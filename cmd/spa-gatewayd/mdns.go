package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

const mdnsServiceType = "_spa-gateway._tcp"

// startMDNS registers the gateway's TCP relay port via mDNS and returns a
// cleanup function; safe to call even when disabled (no-op).
func startMDNS(ctx context.Context, cfg *appConfig, port int, instanceID string) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	instance := cfg.mdnsName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("spa-gatewayd-%s", host)
	}
	meta := []string{
		"version=" + version,
		"commit=" + commit,
		"instance=" + instanceID,
	}
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
