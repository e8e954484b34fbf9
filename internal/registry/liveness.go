package registry

import (
	"context"
	"strings"
	"sync"
	"time"
)

// NetworkProber resolves an IP to its current MAC address, e.g. via an
// ARP query. It is the narrow capability trait the liveness loop depends
// on instead of importing the netif package directly, so tests can
// inject a fake responder.
type NetworkProber interface {
	ResolveMAC(ctx context.Context, ip string) (mac string, ok bool)
}

// Heartbeat drives the Registry's periodic liveness sweep. It is
// disabled by default; enabling it schedules the next sweep
// immediately rather than waiting out the current interval.
type Heartbeat struct {
	registry *Registry
	prober   NetworkProber

	mu               sync.Mutex
	enabled          bool
	interval         time.Duration
	offlineRetention time.Duration

	trigger chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewHeartbeat builds a Heartbeat for registry, initially disabled, with
// the given sweep interval and offline-retention window (0 disables
// retention: offline devices are kept forever, matching the daemon's
// default).
func NewHeartbeat(registry *Registry, prober NetworkProber, interval, offlineRetention time.Duration) *Heartbeat {
	return &Heartbeat{
		registry:         registry,
		prober:           prober,
		interval:         interval,
		offlineRetention: offlineRetention,
		trigger:          make(chan struct{}, 1),
		stop:             make(chan struct{}),
	}
}

// Start launches the background sweep loop. Call Stop to shut it down.
func (h *Heartbeat) Start() {
	h.wg.Add(1)
	go h.loop()
}

// Stop halts the sweep loop and waits for it to exit.
func (h *Heartbeat) Stop() {
	close(h.stop)
	h.wg.Wait()
}

// SetEnabled toggles the loop. Enabling schedules an immediate sweep
// instead of waiting for the next tick.
func (h *Heartbeat) SetEnabled(enabled bool) {
	h.mu.Lock()
	h.enabled = enabled
	h.mu.Unlock()

	if enabled {
		select {
		case h.trigger <- struct{}{}:
		default:
		}
	}
}

// Enabled reports the loop's current toggle state.
func (h *Heartbeat) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// Interval reports the current sweep period.
func (h *Heartbeat) Interval() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interval
}

// SetInterval updates the sweep period, taking effect on the next tick.
func (h *Heartbeat) SetInterval(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interval = d
}

func (h *Heartbeat) loop() {
	defer h.wg.Done()

	timer := time.NewTimer(h.Interval())
	defer timer.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-h.trigger:
			if h.Enabled() {
				h.sweep()
			}
			resetTimer(timer, h.Interval())
		case <-timer.C:
			if h.Enabled() {
				h.sweep()
			}
			resetTimer(timer, h.Interval())
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// sweep takes a snapshot, resolves each device's IP via the prober, and
// feeds the result into OnLiveness. It then applies offline retention:
// a device offline longer than the configured window is removed.
func (h *Heartbeat) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, dev := range h.registry.Snapshot() {
		mac, ok := h.prober.ResolveMAC(ctx, dev.IP)
		online := ok && strings.EqualFold(mac, dev.MAC)
		h.registry.OnLiveness(dev.ID, online)
	}

	h.mu.Lock()
	retention := h.offlineRetention
	h.mu.Unlock()
	if retention <= 0 {
		return
	}

	now := h.registry.clock.Now()
	for _, dev := range h.registry.Snapshot() {
		if dev.Connectivity == Offline && !dev.OfflineSince.IsZero() && now.Sub(dev.OfflineSince) > retention {
			h.registry.Delete(dev.ID)
		}
	}
}
