package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/spa-gateway/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	SerialRxMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_rx_messages_total",
		Help: "Total protocol messages decoded from the serial bus.",
	})
	SerialTxMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_tx_messages_total",
		Help: "Total protocol messages written to the serial bus.",
	})
	TCPRxMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_rx_messages_total",
		Help: "Total protocol messages received from IP clients (topside/Wi-Fi relays).",
	})
	TCPTxMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_tx_messages_total",
		Help: "Total protocol messages sent to IP clients.",
	})
	BusSwitchDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "busswitch_dropped_messages_total",
		Help: "Total messages dropped by the bus switch fan-out due to slow clients.",
	})
	BusSwitchKicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "busswitch_kicked_clients_total",
		Help: "Total clients disconnected due to backpressure kick policy.",
	})
	BusSwitchRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "busswitch_rejected_clients_total",
		Help: "Total client connection attempts rejected (e.g., max-clients).",
	})
	BusSwitchActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busswitch_active_clients",
		Help: "Current number of active listeners on the bus switch.",
	})
	BusSwitchBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busswitch_broadcast_fanout",
		Help: "Number of listeners targeted in the most recent broadcast.",
	})
	BusSwitchQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busswitch_queue_depth_max",
		Help: "Observed max queued messages among listeners since last sample window.",
	})
	BusSwitchQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busswitch_queue_depth_avg",
		Help: "Approximate average queued messages per listener in last sample.",
	})
	ChannelAllocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "channel_allocations_total",
		Help: "Total client channel addresses successfully assigned.",
	})
	ChannelAllocationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "channel_allocation_failures_total",
		Help: "Total channel-assignment attempts that failed (client channel range exhausted).",
	})
	CtsFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cts_failures_total",
		Help: "Total clear-to-send failures by escalation action taken.",
	}, []string{"action"})
	WifiAssociations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wifi_association_total",
		Help: "Total Wi-Fi association attempts by outcome.",
	}, []string{"outcome"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed frames (bad CRC, invalid length, truncated).",
	})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTCPRead     = "tcp_read"
	ErrTCPWrite    = "tcp_write"
	ErrHandshake   = "handshake"
	ErrSerialWrite = "serial_write"
	ErrSerialOver  = "serial_tx_overflow"
	ErrSerialRead  = "serial_read"
)

// CTS escalation action label values, mirrored from internal/mainboard.
const (
	CtsActionRetry      = "retry"
	CtsActionDeassign   = "deassign"
	CtsActionQuarantine = "quarantine"
)

// Wi-Fi association outcome label values.
const (
	WifiOutcomeSuccess = "success"
	WifiOutcomeTimeout = "timeout"
	WifiOutcomeError   = "error"
)

// StartHTTP serves Prometheus metrics at /metrics on a fresh mux, along
// with a /ready endpoint driven by the registered readiness function.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging without scraping Prometheus
// in-process.
var (
	localSerialRx   uint64
	localSerialTx   uint64
	localTCPRx      uint64
	localTCPTx      uint64
	localBusDrop    uint64
	localBusKick    uint64
	localBusReject  uint64
	localErrors     uint64
	localBusClients uint64
	localFanout     uint64
	localMalformed  uint64
	localQDMax      uint64
	localQDAvg      uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	SerialRx      uint64
	SerialTx      uint64
	TCPRx         uint64
	TCPTx         uint64
	BusDrops      uint64
	BusKicks      uint64
	BusRejects    uint64
	Errors        uint64
	BusClients    uint64
	Fanout        uint64
	Malformed     uint64
	QueueDepthMax uint64
	QueueDepthAvg uint64
}

func Snap() Snapshot {
	return Snapshot{
		SerialRx:      atomic.LoadUint64(&localSerialRx),
		SerialTx:      atomic.LoadUint64(&localSerialTx),
		TCPRx:         atomic.LoadUint64(&localTCPRx),
		TCPTx:         atomic.LoadUint64(&localTCPTx),
		BusDrops:      atomic.LoadUint64(&localBusDrop),
		BusKicks:      atomic.LoadUint64(&localBusKick),
		BusRejects:    atomic.LoadUint64(&localBusReject),
		Errors:        atomic.LoadUint64(&localErrors),
		BusClients:    atomic.LoadUint64(&localBusClients),
		Fanout:        atomic.LoadUint64(&localFanout),
		Malformed:     atomic.LoadUint64(&localMalformed),
		QueueDepthMax: atomic.LoadUint64(&localQDMax),
		QueueDepthAvg: atomic.LoadUint64(&localQDAvg),
	}
}

func IncSerialRx() {
	SerialRxMessages.Inc()
	atomic.AddUint64(&localSerialRx, 1)
}

func IncSerialTx() {
	SerialTxMessages.Inc()
	atomic.AddUint64(&localSerialTx, 1)
}

func IncTCPRx() {
	TCPRxMessages.Inc()
	atomic.AddUint64(&localTCPRx, 1)
}

func AddTCPTx(n int) {
	TCPTxMessages.Add(float64(n))
	atomic.AddUint64(&localTCPTx, uint64(n))
}

func IncBusDrop() {
	BusSwitchDropped.Inc()
	atomic.AddUint64(&localBusDrop, 1)
}

func IncBusKick() {
	BusSwitchKicked.Inc()
	atomic.AddUint64(&localBusKick, 1)
}

func IncBusReject() {
	BusSwitchRejected.Inc()
	atomic.AddUint64(&localBusReject, 1)
}

func SetBusClients(n int) {
	BusSwitchActiveClients.Set(float64(n))
	atomic.StoreUint64(&localBusClients, uint64(n))
}

func SetBroadcastFanout(n int) {
	BusSwitchBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

func IncChannelAllocation() { ChannelAllocations.Inc() }

func IncChannelAllocationFailure() { ChannelAllocationFailures.Inc() }

func IncCtsFailure(action string) { CtsFailures.WithLabelValues(action).Inc() }

func IncWifiAssociation(outcome string) { WifiAssociations.WithLabelValues(outcome).Inc() }

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// SetQueueDepth records a snapshot of max and avg queue depth.
func SetQueueDepth(max, avg int) {
	BusSwitchQueueDepthMax.Set(float64(max))
	BusSwitchQueueDepthAvg.Set(float64(avg))
	atomic.StoreUint64(&localQDMax, uint64(max))
	atomic.StoreUint64(&localQDAvg, uint64(avg))
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrTCPRead, ErrTCPWrite, ErrHandshake,
		ErrSerialWrite, ErrSerialOver, ErrSerialRead,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
