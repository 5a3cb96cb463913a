package main

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/kstaniek/spa-gateway/internal/serialio"
)

// openPhysicalBus resolves the physical transport the gateway's busswitch
// wraps: either a real serial device, or a TCP dial to a mainboardd
// --bus-listen endpoint for hardware-free development.
func openPhysicalBus(cfg *appConfig) (io.ReadWriteCloser, error) {
	if cfg.serialDev != "" {
		driver := serialio.DriverTarm
		if cfg.serialDriver == "bugst" {
			driver = serialio.DriverBugST
		}
		port, err := serialio.Open(driver, cfg.serialDev, cfg.baud, cfg.serialReadTO)
		if err != nil {
			return nil, fmt.Errorf("spa-gatewayd: open serial: %w", err)
		}
		return port, nil
	}
	conn, err := net.DialTimeout("tcp", cfg.busDialAddr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("spa-gatewayd: dial bus %s: %w", cfg.busDialAddr, err)
	}
	return conn, nil
}
