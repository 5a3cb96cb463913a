package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/spa-gateway/internal/metrics"
)

// startMetricsLogger periodically logs a metrics snapshot, for deployments
// without a Prometheus scraper.
func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"serial_rx", snap.SerialRx,
					"serial_tx", snap.SerialTx,
					"bus_clients", snap.BusClients,
					"bus_drops", snap.BusDrops,
					"bus_kicks", snap.BusKicks,
					"errors", snap.Errors,
					"malformed", snap.Malformed,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
