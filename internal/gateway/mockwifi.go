package gateway

import (
	"context"
	"fmt"
	"time"
)

// WifiErrorKind classifies a WifiManager failure.
type WifiErrorKind int

const (
	WifiAssociationTimedOut WifiErrorKind = iota
	WifiAssociationFailed
	WifiDhcpTimedOut
	WifiSystemError
)

// WifiError pairs a WifiErrorKind with a human-readable detail.
type WifiError struct {
	Kind WifiErrorKind
	Msg  string
}

func (e *WifiError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind.String()
}

func (k WifiErrorKind) String() string {
	switch k {
	case WifiAssociationTimedOut:
		return "association_timed_out"
	case WifiAssociationFailed:
		return "association_failed"
	case WifiDhcpTimedOut:
		return "dhcp_timed_out"
	default:
		return "system_error"
	}
}

// DppBootstrapper mediates a single QR-code-bootstrapped credential
// exchange.
type DppBootstrapper interface {
	// QRCode returns the bootstrap QR code payload to display to the user.
	QRCode() string
	// ListenThenWait blocks until the DPP exchange completes, returning the
	// SSID the peer provisioned, or ctx's error if canceled first.
	ListenThenWait(ctx context.Context) (ssid string, err error)
}

// WifiManager is the inward-facing hardware/driver abstraction the
// lifecycle state machine runs against. Real driver bindings live outside
// this module; MockWifiManager backs it for tests and hardware-free runs.
type WifiManager interface {
	Advertisement() string
	Init() error
	HasStoredCredentials() bool
	GetStaNetworkName() (string, error)
	CreateBootstrapper() (DppBootstrapper, error)
	StaConnect(ctx context.Context, ssid string) error
	WaitWhileConnected(ctx context.Context) error
}

// MockWifiManager simulates a well-behaved Wi-Fi driver for tests and for
// running the gateway without real ESP32 hardware: it reports stored
// credentials immediately and associates instantly.
type MockWifiManager struct {
	name                string
	HasCredentials      bool
	NetworkName         string
	AssociateDelay      time.Duration
	ConnectedForAtLeast time.Duration
	FailInit            bool
}

// NewMockWifiManager constructs a manager that already has stored
// credentials for ssid and associates immediately.
func NewMockWifiManager(name, ssid string) *MockWifiManager {
	return &MockWifiManager{
		name:                name,
		HasCredentials:      true,
		NetworkName:         ssid,
		ConnectedForAtLeast: 24 * time.Hour,
	}
}

func (m *MockWifiManager) Advertisement() string { return m.name }

func (m *MockWifiManager) Init() error {
	if m.FailInit {
		return &WifiError{Kind: WifiSystemError, Msg: "mock init failure"}
	}
	return nil
}

func (m *MockWifiManager) HasStoredCredentials() bool { return m.HasCredentials }

func (m *MockWifiManager) GetStaNetworkName() (string, error) {
	if m.NetworkName == "" {
		return "", &WifiError{Kind: WifiSystemError, Msg: "no network configured"}
	}
	return m.NetworkName, nil
}

func (m *MockWifiManager) CreateBootstrapper() (DppBootstrapper, error) {
	return &mockDppBootstrapper{owner: m}, nil
}

func (m *MockWifiManager) StaConnect(ctx context.Context, ssid string) error {
	if m.AssociateDelay > 0 {
		select {
		case <-time.After(m.AssociateDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.NetworkName = ssid
	return nil
}

func (m *MockWifiManager) WaitWhileConnected(ctx context.Context) error {
	select {
	case <-time.After(m.ConnectedForAtLeast):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type mockDppBootstrapper struct {
	owner *MockWifiManager
}

func (b *mockDppBootstrapper) QRCode() string {
	return fmt.Sprintf("WIFI:T:DPP;S:%s;;", b.owner.name)
}

func (b *mockDppBootstrapper) ListenThenWait(ctx context.Context) (string, error) {
	select {
	case <-time.After(10 * time.Millisecond):
		b.owner.HasCredentials = true
		return b.owner.NetworkName, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
