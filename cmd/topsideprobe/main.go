// Command topsideprobe is a diagnostic client that speaks the framed wire
// protocol directly to a Wi-Fi module's virtual channel, bypassing the
// bus-peer channel-negotiation machinery entirely (the Wi-Fi module answers
// ExistingClientRequest itself and sends other requests to the main board
// on its own assigned channel, so no ChannelAssignmentRequest is needed):
// UDP-broadcast discovery, dial the
// advertised TCP relay port, then a fixed sequential handshake printing
// each response.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/transport"
	"github.com/kstaniek/spa-gateway/internal/wifirole"
)

func main() {
	addr := flag.String("addr", "", "Wi-Fi module TCP address host:port; if empty, discovered via UDP broadcast first")
	discoverAddr := flag.String("discover-addr", "255.255.255.255:30303", "UDP broadcast address for discovery")
	discoverTimeout := flag.Duration("discover-timeout", 3*time.Second, "How long to wait for a discovery reply")
	port := flag.Int("port", 4257, "TCP relay port to dial once an address is known")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	target := *addr
	if target == "" {
		discovered, name, mac, err := discover(ctx, *discoverAddr, *discoverTimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("discovered %s (%s) at %s\n", name, mac, discovered)
		target = fmt.Sprintf("%s:%d", discovered, *port)
	}

	conn, err := net.DialTimeout("tcp", target, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", target, err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", target)

	if err := runProbe(conn); err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
}

// discover broadcasts a UDP datagram to discoverAddr (the discovery
// responder answers any inbound datagram, see internal/gateway/discovery.go)
// and parses the fixed "{name}\r\n{MAC}\r\n" reply.
func discover(ctx context.Context, discoverAddr string, timeout time.Duration) (ip, name, mac string, err error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", "", "", fmt.Errorf("udp listen: %w", err)
	}
	defer conn.Close()

	raddr, err := net.ResolveUDPAddr("udp4", discoverAddr)
	if err != nil {
		return "", "", "", fmt.Errorf("resolve %s: %w", discoverAddr, err)
	}
	if _, err := conn.WriteTo([]byte("DISCOVER\r\n"), raddr); err != nil {
		return "", "", "", fmt.Errorf("broadcast: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 512)
	n, peer, err := conn.ReadFrom(buf)
	if err != nil {
		return "", "", "", fmt.Errorf("no discovery reply: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(buf[:n]), "\r\n"), "\r\n")
	if len(lines) < 2 {
		return "", "", "", fmt.Errorf("malformed discovery reply %q", string(buf[:n]))
	}
	udpAddr, ok := peer.(*net.UDPAddr)
	if !ok {
		return "", "", "", fmt.Errorf("unexpected peer address type %T", peer)
	}
	return udpAddr.IP.String(), lines[0], lines[1], nil
}

// runProbe drives the fixed sequential handshake: existing-client identity,
// then the three descriptor fetches the topside panel performs on startup,
// then a fault-log entry fetch, then a single status read, printing each
// response as it arrives.
func runProbe(conn net.Conn) error {
	fr := transport.NewFramedReader(conn)
	fw := transport.NewFramedWriter(conn)
	channel := wifirole.WifiVirtualChannel

	step := func(label string, req protocol.MessageType) (protocol.MessageType, error) {
		msg, err := req.ToMessage(channel)
		if err != nil {
			return protocol.MessageType{}, fmt.Errorf("%s: encode: %w", label, err)
		}
		if err := fw.Write(msg); err != nil {
			return protocol.MessageType{}, fmt.Errorf("%s: write: %w", label, err)
		}
		reply, err := fr.NextMessage()
		if err != nil {
			return protocol.MessageType{}, fmt.Errorf("%s: read reply: %w", label, err)
		}
		mt, err := protocol.DecodeMessageType(reply)
		if err != nil {
			return protocol.MessageType{}, fmt.Errorf("%s: decode reply: %w", label, err)
		}
		fmt.Printf("%-24s -> %+v\n", label, mt)
		return mt, nil
	}

	if _, err := step("ExistingClientRequest", protocol.MessageType{Kind: protocol.KindExistingClientRequest}); err != nil {
		return err
	}
	if _, err := step("SettingsRequest(0x04)", protocol.MessageType{
		Kind:            protocol.KindSettingsRequest,
		SettingsRequest: protocol.SettingsRequestMessage{Kind: protocol.SettingsSettings0x04},
	}); err != nil {
		return err
	}
	if _, err := step("SettingsRequest(Config)", protocol.MessageType{
		Kind:            protocol.KindSettingsRequest,
		SettingsRequest: protocol.SettingsRequestMessage{Kind: protocol.SettingsConfiguration},
	}); err != nil {
		return err
	}
	if _, err := step("SettingsRequest(Info)", protocol.MessageType{
		Kind:            protocol.KindSettingsRequest,
		SettingsRequest: protocol.SettingsRequestMessage{Kind: protocol.SettingsInformation},
	}); err != nil {
		return err
	}
	if _, err := step("SettingsRequest(FaultLog)", protocol.MessageType{
		Kind:            protocol.KindSettingsRequest,
		SettingsRequest: protocol.SettingsRequestMessage{Kind: protocol.SettingsFaultLog},
	}); err != nil {
		return err
	}

	msg, err := fr.NextMessage()
	if err != nil {
		return fmt.Errorf("status: read: %w", err)
	}
	mt, err := protocol.DecodeMessageType(msg)
	if err != nil {
		return fmt.Errorf("status: decode: %w", err)
	}
	fmt.Printf("%-24s -> %+v\n", "StatusUpdate", mt)
	return nil
}
