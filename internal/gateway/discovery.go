// Package gateway implements the Wi-Fi module's IP-facing runtime: the UDP
// discovery responder, the TCP frame relay, and the Wi-Fi provisioning
// lifecycle, wired together by Runtime in runtime.go.
package gateway

import (
	"context"
	"fmt"
	"net"

	"github.com/kstaniek/spa-gateway/internal/logging"
)

// DiscoveryPort is the fixed UDP port the discovery responder listens on.
const DiscoveryPort = 30303

// Advertisement formats the fixed discovery reply payload:
// "{name}\r\n{MAC}\r\n" with MAC as six uppercase hyphen-separated bytes.
func Advertisement(name string, mac [6]byte) string {
	return fmt.Sprintf("%s\r\n%02X-%02X-%02X-%02X-%02X-%02X\r\n",
		name, mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// discoveryResponder answers every inbound UDP datagram on DiscoveryPort
// with the fixed advertisement payload, regardless of datagram contents.
type discoveryResponder struct {
	name string
	mac  [6]byte
}

// runDiscovery listens on listenAddr (host:30303) until ctx is canceled.
func runDiscovery(ctx context.Context, listenAddr, name string, mac [6]byte) error {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("gateway: udp discovery listen: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	d := discoveryResponder{name: name, mac: mac}
	payload := []byte(Advertisement(d.name, d.mac))
	buf := make([]byte, 512)
	log := logging.L().With("component", "gateway_discovery")
	log.Info("discovery_listening", "addr", listenAddr)

	for {
		_, addr, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Error("discovery_read_error", "error", err)
			return fmt.Errorf("gateway: udp discovery read: %w", err)
		}
		if _, err := conn.WriteTo(payload, addr); err != nil {
			log.Warn("discovery_write_error", "error", err, "peer", addr.String())
			continue
		}
		log.Debug("discovery_served", "peer", addr.String())
	}
}
