// Package serialio wraps physical serial-port libraries behind the
// protocol engine's transport.Transport abstraction, so cmd/spa-gatewayd
// and cmd/mainboardd can open a real RS-485 adapter. Two backends are
// wired in behind one Driver selector.
package serialio

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// Driver selects which third-party serial library backs a Port.
type Driver string

const (
	// DriverTarm uses github.com/tarm/serial.
	DriverTarm Driver = "tarm"
	// DriverBugST uses go.bug.st/serial.
	DriverBugST Driver = "bugst"
)

// Port is the minimal surface serialio needs from either backend; both
// tarm/serial.Port and go.bug.st/serial.Port satisfy an equivalent shape,
// wrapped below to a common interface.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens device at baud using the selected driver. readTimeout goes
// into the port config for DriverTarm; for DriverBugST it is applied via
// SetReadTimeout after open, and only when positive.
func Open(driver Driver, device string, baud int, readTimeout time.Duration) (Port, error) {
	switch driver {
	case DriverBugST:
		return openBugST(device, baud, readTimeout)
	default:
		return openTarm(device, baud, readTimeout)
	}
}

func openTarm(device string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: device, Baud: baud, ReadTimeout: readTimeout}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("serialio: tarm open %s: %w", device, err)
	}
	return p, nil
}

// bugstPort adapts go.bug.st/serial.Port (whose Read timeout is configured
// post-open) to the common Port interface.
type bugstPort struct {
	bugst.Port
}

func openBugST(device string, baud int, readTimeout time.Duration) (Port, error) {
	p, err := bugst.Open(device, &bugst.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("serialio: bugst open %s: %w", device, err)
	}
	if readTimeout > 0 {
		if err := p.SetReadTimeout(readTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("serialio: bugst set read timeout: %w", err)
		}
	}
	return &bugstPort{Port: p}, nil
}

// Flush is a no-op for both backends: writes are unbuffered syscalls on a
// real tty, so transport.Flusher is satisfied trivially by not
// implementing it (internal/transport.Flush treats non-Flushers as
// already flushed).
