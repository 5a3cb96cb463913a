package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kstaniek/spa-gateway/internal/bfanout"
	"github.com/kstaniek/spa-gateway/internal/gateway"
	"github.com/kstaniek/spa-gateway/internal/viewmodel"
)

// lifecycleWireModel is the JSON projection of gateway.LifecycleModel sent
// over /ws; the int Kind is rendered as a name so a browser client doesn't
// need the Go iota ordering.
type lifecycleWireModel struct {
	Kind        string `json:"kind"`
	QRCode      string `json:"qr_code,omitempty"`
	Err         string `json:"error,omitempty"`
	NetworkName string `json:"network_name,omitempty"`
	Connected   bool   `json:"connected"`
}

var lifecycleKindNames = map[gateway.LifecycleKind]string{
	gateway.LifecycleNeedsProvisioning:  "needs_provisioning",
	gateway.LifecycleTroubleAssociating: "trouble_associating",
	gateway.LifecycleNominal:            "nominal",
	gateway.LifecycleUnrecoverableError: "unrecoverable_error",
}

func toWireModel(m gateway.LifecycleModel) lifecycleWireModel {
	return lifecycleWireModel{
		Kind:        lifecycleKindNames[m.Kind],
		QRCode:      m.QRCode,
		Err:         m.Err,
		NetworkName: m.NetworkName,
		Connected:   m.Connected,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// pumpViewModel is the sole consumer of vm; each time it wakes it
// re-broadcasts the latest model (RecvLatest skips any older backlog)
// through hub so any number of /ws clients can observe it, following the
// same single-reader-then-fan-out split the gateway's own relay uses for
// bus traffic (internal/gateway/relay.go).
func pumpViewModel(ctx context.Context, vm *viewmodel.Handle[gateway.LifecycleModel], hub *bfanout.Hub[gateway.LifecycleModel]) {
	for {
		ev := vm.RecvLatest()
		if ev.Shutdown {
			return
		}
		hub.Broadcast(ev.Model)
		if ctx.Err() != nil {
			return
		}
	}
}

// serveViewModelWS exposes hub as a /ws endpoint: each connection gets every
// lifecycle model broadcast after it subscribes, dropped (not queued) if
// that particular client falls behind.
func serveViewModelWS(ctx context.Context, addr string, hub *bfanout.Hub[gateway.LifecycleModel], log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("viewmodel_ws_upgrade_failed", "error", err)
			return
		}
		defer conn.Close()
		log.Info("viewmodel_ws_connected", "peer", r.RemoteAddr)

		sub := hub.Subscribe()
		defer hub.Unsubscribe(sub)

		go func() {
			// Discard anything the client sends; this is a push-only feed.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					sub.Close()
					return
				}
			}
		}()

		for {
			select {
			case model, ok := <-sub.Out:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				payload, err := json.Marshal(toWireModel(model))
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			case <-sub.Closed:
				return
			case <-ctx.Done():
				return
			}
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("viewmodel_ws_listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
