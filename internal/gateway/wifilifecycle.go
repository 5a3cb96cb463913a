package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/kstaniek/spa-gateway/internal/logging"
	"github.com/kstaniek/spa-gateway/internal/metrics"
	"github.com/kstaniek/spa-gateway/internal/viewmodel"
)

// AssociationGrace is the grace window a station connect attempt gets
// before it is surfaced as TroubleAssociating.
const AssociationGrace = 60 * time.Second

// reconnectDelay is the pause after an association drops before retrying.
const reconnectDelay = time.Second

// LifecycleKind discriminates the Wi-Fi provisioning/association view
// states a UI or log collaborator observes.
type LifecycleKind int

const (
	LifecycleNeedsProvisioning LifecycleKind = iota
	LifecycleTroubleAssociating
	LifecycleNominal
	LifecycleUnrecoverableError
)

// LifecycleModel is the view-model payload emitted through a
// viewmodel.Handle.
type LifecycleModel struct {
	Kind LifecycleKind

	// NeedsProvisioning.
	QRCode string

	// TroubleAssociating / UnrecoverableError.
	Err string

	// Nominal.
	NetworkName string
	Connected   bool
}

// runWifiLifecycle is the blocking Wi-Fi provisioning/association state
// machine: init the driver, DPP-bootstrap if there are no stored
// credentials, then loop attempting station connect with a grace window
// before reporting trouble. It runs on its own goroutine and never touches
// bus or relay state directly.
func runWifiLifecycle(ctx context.Context, wifi WifiManager, vm *viewmodel.Handle[LifecycleModel]) {
	log := logging.L().With("component", "gateway_wifi_lifecycle")

	if err := wifi.Init(); err != nil {
		log.Error("wifi_init_failed", "error", err)
		vm.Send(LifecycleModel{Kind: LifecycleUnrecoverableError, Err: err.Error()})
		return
	}

	ssid, err := resolveNetworkName(ctx, wifi, vm, log)
	if err != nil {
		vm.Send(LifecycleModel{Kind: LifecycleUnrecoverableError, Err: err.Error()})
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if err := associate(ctx, wifi, ssid, vm, log); err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		vm.Send(LifecycleModel{Kind: LifecycleNominal, NetworkName: ssid, Connected: true})
		metrics.IncWifiAssociation(metrics.WifiOutcomeSuccess)
		log.Info("wifi_associated", "ssid", ssid)

		if err := wifi.WaitWhileConnected(ctx); err != nil && ctx.Err() == nil {
			log.Warn("wifi_disconnected", "error", err)
		}
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// resolveNetworkName returns the already-configured SSID, or runs the DPP
// bootstrap flow to obtain one if no credentials are stored yet.
func resolveNetworkName(ctx context.Context, wifi WifiManager, vm *viewmodel.Handle[LifecycleModel], log *slog.Logger) (string, error) {
	if wifi.HasStoredCredentials() {
		return wifi.GetStaNetworkName()
	}

	bootstrapper, err := wifi.CreateBootstrapper()
	if err != nil {
		return "", err
	}
	vm.Send(LifecycleModel{Kind: LifecycleNeedsProvisioning, QRCode: bootstrapper.QRCode()})
	log.Info("wifi_needs_provisioning")
	return bootstrapper.ListenThenWait(ctx)
}

// associate attempts a single station-connect, capped at AssociationGrace
// before being treated as a TroubleAssociating failure.
func associate(ctx context.Context, wifi WifiManager, ssid string, vm *viewmodel.Handle[LifecycleModel], log *slog.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, AssociationGrace)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- wifi.StaConnect(connectCtx, ssid) }()

	select {
	case err := <-done:
		if err != nil {
			vm.Send(LifecycleModel{Kind: LifecycleTroubleAssociating, Err: err.Error()})
			metrics.IncWifiAssociation(metrics.WifiOutcomeError)
			log.Warn("wifi_associate_failed", "error", err)
			return err
		}
		return nil
	case <-connectCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		vm.Send(LifecycleModel{Kind: LifecycleTroubleAssociating, Err: "association grace window expired"})
		metrics.IncWifiAssociation(metrics.WifiOutcomeTimeout)
		log.Warn("wifi_associate_timeout")
		return connectCtx.Err()
	}
}
