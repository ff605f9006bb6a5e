package eventbus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"poap-og-server/internal/platform/logging"
)

// Warmer re-renders one address.
type Warmer interface {
	Warm(ctx context.Context, address string) error
}

// WarmHandler turns preview:warm events into Warm calls.
type WarmHandler struct {
	warmer  Warmer
	timeout time.Duration
	counter *prometheus.CounterVec
	logger  *logging.Logger
}

// NewWarmHandler builds a handler. counter is labelled by status and may be nil.
func NewWarmHandler(warmer Warmer, timeout time.Duration, counter *prometheus.CounterVec, logger *logging.Logger) *WarmHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &WarmHandler{warmer: warmer, timeout: timeout, counter: counter, logger: logger}
}

func (h *WarmHandler) Handle(data WarmEventData) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	status := "success"
	if err := h.warmer.Warm(ctx, data.Address); err != nil {
		status = "error"
		h.logger.WarnTag("REFRESH", "warm %s (%s) failed: %v", data.Address, data.Source, err)
	} else {
		h.logger.DebugTag("REFRESH", "warmed %s", data.Address)
	}
	if h.counter != nil {
		h.counter.WithLabelValues(status).Inc()
	}
}

// SetupWarmHandler subscribes h to EventPreviewWarm on bus.
func SetupWarmHandler(bus *AsyncEventBus, h *WarmHandler) error {
	return bus.Subscribe(EventPreviewWarm, h.Handle)
}
