package metrics

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mcp2515 "github.com/knieriem/mcp2515/v2"
	"github.com/knieriem/mcp2515/v2/internal/logging"
	"github.com/knieriem/mcp2515/v2/spiproto"
)

// Prometheus collectors
var (
	TxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp2515_tx_frames_total",
		Help: "Total CAN frames handed to a transmit buffer.",
	})
	RxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp2515_rx_frames_total",
		Help: "Total CAN frames read from the receive buffers.",
	})
	TxBusy = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp2515_tx_busy_total",
		Help: "Send attempts rejected because all transmit buffers were pending.",
	})
	DroppedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp2515_rx_dropped_frames_total",
		Help: "Received frames dropped because they failed to decode.",
	}, []string{"reason"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp2515_errors_total",
		Help: "Error counters by kind.",
	}, []string{"kind"})
	TxErrorCounter = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcp2515_tec",
		Help: "Transmit error counter (TEC) of the controller.",
	})
	RxErrorCounter = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcp2515_rec",
		Help: "Receive error counter (REC) of the controller.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error and drop label values (stable to bound cardinality)
const (
	KindSPI         = "spi"
	KindTxFailed    = "tx_failed"
	KindModeTimeout = "mode_timeout"
	KindOther       = "other"

	ReasonInvalidDLC = "invalid_dlc"
	ReasonInvalidID  = "invalid_id"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
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

// Local mirrored counters for easy logging
var (
	localTx      uint64
	localRx      uint64
	localBusy    uint64
	localDropped uint64
	localErrors  uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Tx      uint64
	Rx      uint64
	TxBusy  uint64
	Dropped uint64
	Errors  uint64 // sum across kinds
}

func Snap() Snapshot {
	return Snapshot{
		Tx:      atomic.LoadUint64(&localTx),
		Rx:      atomic.LoadUint64(&localRx),
		TxBusy:  atomic.LoadUint64(&localBusy),
		Dropped: atomic.LoadUint64(&localDropped),
		Errors:  atomic.LoadUint64(&localErrors),
	}
}

func IncTx() {
	TxFrames.Inc()
	atomic.AddUint64(&localTx, 1)
}

func IncRx() {
	RxFrames.Inc()
	atomic.AddUint64(&localRx, 1)
}

func IncTxBusy() {
	TxBusy.Inc()
	atomic.AddUint64(&localBusy, 1)
}

func IncDropped(reason string) {
	DroppedFrames.WithLabelValues(reason).Inc()
	atomic.AddUint64(&localDropped, 1)
}

func IncError(kind string) {
	Errors.WithLabelValues(kind).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// SetErrorCounters records the controller's TEC and REC.
func SetErrorCounters(tec, rec uint8) {
	TxErrorCounter.Set(float64(tec))
	RxErrorCounter.Set(float64(rec))
}

// ObserveError counts err under the kind it belongs to. Nil errors,
// ErrNoMessage and ErrTxBusy are not errors in this sense; the latter
// has its own counter.
func ObserveError(err error) {
	var se *spiproto.Error
	switch {
	case err == nil, errors.Is(err, mcp2515.ErrNoMessage):
	case errors.Is(err, mcp2515.ErrTxBusy):
		IncTxBusy()
	case errors.Is(err, mcp2515.ErrInvalidDLC):
		IncDropped(ReasonInvalidDLC)
	case errors.Is(err, mcp2515.ErrInvalidFrameID):
		IncDropped(ReasonInvalidID)
	case errors.As(err, &se):
		IncError(KindSPI)
	case errors.Is(err, mcp2515.ErrTxFailed):
		IncError(KindTxFailed)
	case errors.Is(err, mcp2515.ErrNewModeTimeout):
		IncError(KindModeTimeout)
	default:
		IncError(KindOther)
	}
}

// Instrument wraps d so that its traffic and failures are counted.
func Instrument(d mcp2515.Device) mcp2515.Device {
	return instrumented{d}
}

type instrumented struct {
	inner mcp2515.Device
}

func (i instrumented) Send(f mcp2515.Frame) error {
	err := i.inner.Send(f)
	if err == nil {
		IncTx()
	}
	ObserveError(err)
	return err
}

func (i instrumented) Receive() (mcp2515.Frame, error) {
	f, err := i.inner.Receive()
	if err == nil {
		IncRx()
	}
	ObserveError(err)
	return f, err
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version string) {
	BuildInfo.WithLabelValues(version).Set(1)
	// Pre-register label series so that they show up before the first event.
	for _, k := range []string{KindSPI, KindTxFailed, KindModeTimeout, KindOther} {
		Errors.WithLabelValues(k).Add(0)
	}
	for _, r := range []string{ReasonInvalidDLC, ReasonInvalidID} {
		DroppedFrames.WithLabelValues(r).Add(0)
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
