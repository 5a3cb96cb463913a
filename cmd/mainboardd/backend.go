package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/kstaniek/spa-gateway/internal/busswitch"
	"github.com/kstaniek/spa-gateway/internal/serialio"
)

// nullBus is the physical transport used when --serial is empty: it never
// produces bytes on its own and discards writes, so the only traffic on
// the switch is whatever its attached logical peers (engine + TCP bus
// clients) exchange via busswitch's write-echo-to-all-except-originator,
// giving a hardware-free "virtual bus" for dev and integration tests.
type nullBus struct {
	done chan struct{}
}

func newNullBus() *nullBus { return &nullBus{done: make(chan struct{})} }

func (n *nullBus) Read(p []byte) (int, error) {
	<-n.done
	return 0, io.EOF
}

func (n *nullBus) Write(p []byte) (int, error) { return len(p), nil }

func (n *nullBus) Close() error {
	select {
	case <-n.done:
	default:
		close(n.done)
	}
	return nil
}

// openPhysicalBus opens the real serial device when cfg.serialDev is set,
// or falls back to a nullBus otherwise.
func openPhysicalBus(cfg *appConfig) (io.ReadWriteCloser, error) {
	if cfg.serialDev == "" {
		return newNullBus(), nil
	}
	driver := serialio.DriverTarm
	if cfg.serialDriver == "bugst" {
		driver = serialio.DriverBugST
	}
	port, err := serialio.Open(driver, cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return nil, fmt.Errorf("mainboardd: open serial: %w", err)
	}
	return port, nil
}

// runBusListener accepts raw TCP connections on addr and attaches each as a
// logical bus peer on sw, bridging bytes in both directions. This is how a
// co-located gateway or probe process without real RS-485 hardware joins
// the same logical bus as the mainboard engine in development.
func runBusListener(ctx context.Context, addr string, sw *busswitch.Switch, log *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mainboardd: bus listen: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	log.Info("bus_listening", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("mainboardd: bus accept: %w", err)
		}
		log.Info("bus_peer_connected", "peer", conn.RemoteAddr().String())
		go bridgeBusPeer(conn, sw, log)
	}
}

func bridgeBusPeer(conn net.Conn, sw *busswitch.Switch, log *slog.Logger) {
	defer conn.Close()
	lt := sw.Attach()
	defer lt.Close()

	errCh := make(chan error, 2)
	go func() {
		// Flush after every chunk: the logical transport buffers writes
		// until flushed, and a TCP peer's frames must reach the bus as
		// they arrive.
		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if _, werr := lt.Write(buf[:n]); werr != nil {
					errCh <- werr
					return
				}
				if werr := lt.Flush(); werr != nil {
					errCh <- werr
					return
				}
			}
			if err != nil {
				errCh <- err
				return
			}
		}
	}()
	go func() {
		_, err := io.Copy(conn, lt)
		errCh <- err
	}()
	<-errCh
	log.Info("bus_peer_disconnected", "peer", conn.RemoteAddr().String())
}
