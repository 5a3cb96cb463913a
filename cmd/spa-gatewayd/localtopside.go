package main

import (
	"context"
	"log/slog"

	"github.com/kstaniek/spa-gateway/internal/allocbroker"
	"github.com/kstaniek/spa-gateway/internal/roleclient"
	"github.com/kstaniek/spa-gateway/internal/topside"
	"github.com/kstaniek/spa-gateway/internal/transport"
)

// deviceTypeTopside is the topside panel's device_type byte in
// ChannelAssignmentRequest.
const deviceTypeTopside byte = 0x02

// runLocalTopside drives an embedded topside panel peer on its own
// busswitch.LogicalTransport, for --local-topside: a single process
// hosting both the Wi-Fi module's bus peer and a co-located display.
func runLocalTopside(ctx context.Context, t transport.Transport, broker *allocbroker.Broker, log *slog.Logger) error {
	client := roleclient.New(t, broker, deviceTypeTopside, topside.New, "local-topside")
	log.Info("local_topside_started")
	err := client.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
