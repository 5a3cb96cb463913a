package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/kstaniek/spa-gateway/internal/allocbroker"
	"github.com/kstaniek/spa-gateway/internal/bfanout"
	"github.com/kstaniek/spa-gateway/internal/ctssm"
	"github.com/kstaniek/spa-gateway/internal/logging"
	"github.com/kstaniek/spa-gateway/internal/metrics"
	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/statemachine"
	"github.com/kstaniek/spa-gateway/internal/transport"
	"github.com/kstaniek/spa-gateway/internal/viewmodel"
	"github.com/kstaniek/spa-gateway/internal/wifirole"
)

// deviceTypeWifiModule identifies this process's role in
// ChannelAssignmentRequest. 0x02 is the topside panel's device_type; the
// Wi-Fi module takes the next value.
const deviceTypeWifiModule byte = 0x03

// Runtime is the Wi-Fi gateway process: it drives the module's own bus
// peer (channel negotiation via ctssm, then transparent relay via
// wifirole), the UDP discovery responder, the TCP frame relay, and the
// Wi-Fi provisioning lifecycle.
type Runtime struct {
	name string
	mac  [6]byte

	reader *transport.FramedReader
	writer *transport.FramedWriter
	broker *allocbroker.Broker

	relayHub *bfanout.Hub[protocol.Message]
	injected chan injectedMessage

	wifi WifiManager
	vm   *viewmodel.Handle[LifecycleModel]

	udpListenAddr string
	tcpListenAddr string
}

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithUDPListenAddr overrides the discovery listen address (default
// "0.0.0.0:30303").
func WithUDPListenAddr(addr string) Option {
	return func(r *Runtime) { r.udpListenAddr = addr }
}

// WithTCPListenAddr overrides the relay listen address (default
// "0.0.0.0:4257").
func WithTCPListenAddr(addr string) Option {
	return func(r *Runtime) { r.tcpListenAddr = addr }
}

// WithWifiManager substitutes the WifiManager (mainly for tests; defaults
// to a MockWifiManager since no real ESP32 binding exists).
func WithWifiManager(w WifiManager) Option {
	return func(r *Runtime) { r.wifi = w }
}

// WithViewModel substitutes the view-model handle the lifecycle thread
// publishes to.
func WithViewModel(vm *viewmodel.Handle[LifecycleModel]) Option {
	return func(r *Runtime) { r.vm = vm }
}

// New constructs a Runtime driving t, a Transport looking like a private
// connection to the Wi-Fi module's logical bus peer (typically a
// busswitch.LogicalTransport shared with a co-located topside peer).
func New(t transport.Transport, name string, mac [6]byte, broker *allocbroker.Broker, opts ...Option) *Runtime {
	r := &Runtime{
		name:          name,
		mac:           mac,
		reader:        transport.NewFramedReader(t),
		writer:        transport.NewFramedWriter(t),
		broker:        broker,
		relayHub:      bfanout.New[protocol.Message](16, bfanout.PolicyDrop),
		injected:      make(chan injectedMessage, 32),
		wifi:          NewMockWifiManager(name, "spa-network"),
		vm:            viewmodel.New[LifecycleModel](4),
		udpListenAddr: fmt.Sprintf("0.0.0.0:%d", DiscoveryPort),
		tcpListenAddr: fmt.Sprintf("0.0.0.0:%d", RelayPort),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ViewModel exposes the lifecycle view-model handle for a UI or log
// collaborator to drain.
func (r *Runtime) ViewModel() *viewmodel.Handle[LifecycleModel] { return r.vm }

// Run starts discovery, the TCP relay, the Wi-Fi lifecycle thread, and the
// bus-side event-handler loop, blocking until ctx is canceled or a fatal
// error occurs. The discovery, relay and Wi-Fi lifecycle goroutines are
// joined before Run returns; the bus reader goroutine is not joined.
func (r *Runtime) Run(ctx context.Context) error {
	// Wake any view-model consumer blocked in RecvLatest once the runtime
	// is gone.
	defer r.vm.Close()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runDiscovery(ctx, r.udpListenAddr, r.name, r.mac); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runRelay(ctx, r.tcpListenAddr, r.relayHub, r.injected); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runWifiLifecycle(ctx, r.wifi, r.vm)
	}()

	busEvents := make(chan protocol.Message, 32)
	busReaderDone := make(chan struct{})
	go r.readBus(busEvents, busReaderDone)

	err := r.eventLoop(ctx, busEvents, busReaderDone)

	wg.Wait()
	select {
	case e := <-errCh:
		if err == nil {
			err = e
		}
	default:
	}
	return err
}

func (r *Runtime) readBus(out chan<- protocol.Message, done chan<- struct{}) {
	defer close(done)
	log := logging.L().With("component", "gateway_bus_reader")
	for {
		msg, err := r.reader.NextMessage()
		if err != nil {
			log.Error("bus_read_error", "error", err)
			return
		}
		metrics.IncSerialRx()
		out <- msg
	}
}

// eventLoop is the gateway's sole owner of bus-peer state: it first drives
// ctssm to negotiate a channel, then switches to wifirole for steady-state
// relay. It also consumes IP-origin messages from the relay's reader
// goroutines; whatever channel an IP client put on the wire, outbound
// transmission happens on the module's own assigned channel.
func (r *Runtime) eventLoop(ctx context.Context, busEvents <-chan protocol.Message, busReaderDone <-chan struct{}) error {
	logger := protocol.NewMessageLogger("gateway")
	cts := ctssm.New(ctssm.NewContext(deviceTypeWifiModule), r.broker)
	var role *statemachine.Machine[wifirole.Kind, wifirole.Context]

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-busReaderDone:
			return fmt.Errorf("gateway: bus transport closed")
		case msg := <-busEvents:
			mt, err := protocol.DecodeMessageType(msg)
			if err != nil {
				metrics.IncMalformed()
				continue
			}
			logger.Log(protocol.Inbound, msg)
			if role == nil {
				if err := cts.HandleMessage(r.writer, logger, msg.Channel, mt); err != nil {
					return fmt.Errorf("gateway: cts: %w", err)
				}
				if cts.Context.HasChannel {
					role = wifirole.New(cts.Context.Assigned)
				}
				continue
			}
			if err := role.HandleMessage(r.writer, logger, msg.Channel, mt); err != nil {
				return fmt.Errorf("gateway: wifirole: %w", err)
			}
			for _, relayed := range role.Context.DrainRelay() {
				r.relayHub.Broadcast(relayed)
			}
		case in := <-r.injected:
			r.handleInjected(role, in.mt)
		}
	}
}

// handleInjected answers an ExistingClientRequest locally with
// WifiModuleConfigurationResponse{mac}, or else queues the message for the
// next ClearToSend tick on the module's own assigned channel.
func (r *Runtime) handleInjected(role *statemachine.Machine[wifirole.Kind, wifirole.Context], mt protocol.MessageType) {
	if mt.Kind == protocol.KindExistingClientRequest {
		reply, err := protocol.MessageType{Kind: protocol.KindWifiModuleConfigResponse, Mac: r.mac}.ToMessage(wifirole.WifiVirtualChannel)
		if err == nil {
			r.relayHub.Broadcast(reply)
		}
		return
	}
	if role == nil {
		logging.L().Warn("gateway_injected_before_channel_assigned", "kind", mt.Kind)
		return
	}
	role.Context.Enqueue(mt)
}
