package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cognipilot/dendrite/internal/clock"
	"github.com/cognipilot/dendrite/internal/logging"
	"github.com/cognipilot/dendrite/internal/metrics"
	"github.com/cognipilot/dendrite/internal/mgmt"
)

const defaultSubscriberBuffer = 128

type subscriber struct {
	id     uuid.UUID
	ch     chan DeviceEvent
	lagged int
}

// Registry is the authoritative device map and event source. All
// mutation and event emission happens under one exclusive lock, so
// events concerning the same device are always delivered in the order
// they were committed, and two devices' events never interleave
// inconsistently with commit order.
type Registry struct {
	logger *logging.Logger
	clock  clock.Clock

	mu      sync.Mutex
	devices map[string]*Device
	subs    map[uuid.UUID]*subscriber
}

// New builds an empty Registry.
func New(logger *logging.Logger, clk clock.Clock) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Registry{
		logger:  logger.WithComponent("registry"),
		clock:   clk,
		devices: make(map[string]*Device),
		subs:    make(map[uuid.UUID]*subscriber),
	}
}

// normalizeID canonicalizes a MAC address into the registry's identity
// key: lowercase, colon-separated.
func normalizeID(mac string) string {
	return strings.ToLower(strings.ReplaceAll(mac, "-", ":"))
}

// OnProbe upserts a device from a successful os_info probe. It emits
// Discovered on first appearance, Rebinding when (board, app) or the
// reported HDD SHA changes for a device the registry already knew about,
// and Updated for any other observable change.
func (r *Registry) OnProbe(ip, mac string, info mgmt.OSInfo, hddInfo *mgmt.HddInfo) DeviceEvent {
	id := normalizeID(mac)
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.devices[id]
	if !ok {
		dev := &Device{
			ID:           id,
			IP:           ip,
			MAC:          mac,
			FirstSeen:    now,
			LastSeen:     now,
			Board:        info.Board,
			App:          info.App,
			Version:      info.Version,
			Connectivity: Online,
			Lifecycle:    Lifecycle{Kind: Discovering},
		}
		if hddInfo != nil && hddInfo.Sha != "" {
			dev.Lifecycle = Lifecycle{Kind: Resolving, Sha: hddInfo.Sha}
		}
		r.devices[id] = dev
		return r.emitLocked(EventDiscovered, dev)
	}

	rebinding := existing.Board != info.Board || existing.App != info.App
	if hddInfo != nil && hddInfo.Sha != "" {
		if existing.HDD == nil || existing.HDD.Sha != hddInfo.Sha {
			rebinding = true
		}
	}

	existing.IP = ip
	existing.LastSeen = now
	existing.Connectivity = Online
	existing.Board = info.Board
	existing.App = info.App
	existing.Version = info.Version

	if rebinding {
		sha := ""
		if hddInfo != nil {
			sha = hddInfo.Sha
		}
		existing.Lifecycle = Lifecycle{Kind: Resolving, Sha: sha}
		return r.emitLocked(EventRebinding, existing)
	}

	return r.emitLocked(EventUpdated, existing)
}

// OnFetchResult completes a Resolving -> Bound transition, or records a
// failure: the device remains Bound to its prior HDD if it has one, else
// it reverts to Discovering. A failure is logged, not surfaced as an
// event — it is not a state-changing event from a subscriber's
// perspective unless it actually changes the device's bound HDD.
func (r *Registry) OnFetchResult(id string, outcome FetchOutcome) *DeviceEvent {
	id = normalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return nil
	}

	if outcome.Err != nil {
		if dev.HDD != nil {
			dev.Lifecycle = Lifecycle{Kind: Bound}
		} else {
			dev.Lifecycle = Lifecycle{Kind: Discovering}
		}
		r.logger.Warn("hdd resolution failed", "device", id, "error", outcome.Err)
		return nil
	}

	dev.HDD = &HDDBinding{
		Sha:        outcome.Sha,
		Stale:      outcome.Stale,
		Reachable:  outcome.Reachable,
		Doc:        outcome.Doc,
		ModelPaths: outcome.ModelPaths,
	}
	dev.Lifecycle = Lifecycle{Kind: Bound}
	ev := r.emitLocked(EventUpdated, dev)
	return &ev
}

// SetEnrichment attaches an opportunistic hostname/vendor label to a
// known device. Either argument may be empty to leave that field
// untouched. It never affects lifecycle or connectivity, and emits
// Updated only when something actually changed.
func (r *Registry) SetEnrichment(id, hostname, vendor string) *DeviceEvent {
	id = normalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return nil
	}

	changed := false
	if hostname != "" && dev.Hostname != hostname {
		dev.Hostname = hostname
		changed = true
	}
	if vendor != "" && dev.Vendor != vendor {
		dev.Vendor = vendor
		changed = true
	}
	if !changed {
		return nil
	}
	ev := r.emitLocked(EventUpdated, dev)
	return &ev
}

// OnLiveness records a liveness probe result, transitioning Online <->
// Offline. It emits a Status event only when connectivity actually
// changes.
func (r *Registry) OnLiveness(id string, online bool) *DeviceEvent {
	id = normalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return nil
	}

	wasOnline := dev.Connectivity == Online
	if wasOnline == online {
		return nil
	}

	if online {
		dev.Connectivity = Online
		dev.OfflineSince = time.Time{}
	} else {
		dev.Connectivity = Offline
		dev.OfflineSince = r.clock.Now()
	}
	ev := r.emitLocked(EventStatus, dev)
	return &ev
}

// Delete removes a device and emits Removed. It reports whether the
// device existed.
func (r *Registry) Delete(id string) bool {
	id = normalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return false
	}
	delete(r.devices, id)
	r.emitLocked(EventRemoved, dev)
	return true
}

// Get returns a snapshot of one device.
func (r *Registry) Get(id string) (Device, bool) {
	id = normalizeID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, ok := r.devices[id]
	if !ok {
		return Device{}, false
	}
	return dev.clone(), true
}

// Snapshot returns a point-in-time copy of every device.
func (r *Registry) Snapshot() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev.clone())
	}
	return out
}

// Subscribe registers a new subscriber and immediately replays a
// synthetic Discovered burst covering the current snapshot, so the
// caller never needs a separate "list all" call to initialize. The
// burst and subsequent live events are ordered consistently because both
// happen under the registry's single lock.
func (r *Registry) Subscribe(bufSize int) (uuid.UUID, <-chan DeviceEvent) {
	if bufSize <= 0 {
		bufSize = defaultSubscriberBuffer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &subscriber{id: uuid.New(), ch: make(chan DeviceEvent, bufSize)}
	for _, dev := range r.devices {
		r.deliverLocked(s, DeviceEvent{Type: EventDiscovered, Device: dev.clone(), Timestamp: r.clock.Now()})
	}
	r.subs[s.id] = s
	return s.id, s.ch
}

// Unsubscribe stops delivery to a subscriber. The channel is not closed;
// callers simply stop reading from it.
func (r *Registry) Unsubscribe(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
}

// emitLocked must be called with r.mu held. It builds a DeviceEvent for
// dev and fans it out to every subscriber, never blocking the caller.
func (r *Registry) emitLocked(t EventType, dev *Device) DeviceEvent {
	ev := DeviceEvent{Type: t, Device: dev.clone(), Timestamp: r.clock.Now()}
	for _, s := range r.subs {
		r.deliverLocked(s, ev)
	}
	r.refreshStatusGaugeLocked()
	return ev
}

// refreshStatusGaugeLocked recomputes the devices-by-status gauge. It is
// O(n) in device count, called only from the already-serialized mutation
// path, which matches the registry's low event rate.
func (r *Registry) refreshStatusGaugeLocked() {
	counts := make(map[[2]string]float64)
	for _, dev := range r.devices {
		counts[[2]string{string(dev.Lifecycle.Kind), string(dev.Connectivity)}]++
	}
	g := metrics.Get().DevicesByStatus
	g.Reset()
	for k, v := range counts {
		g.WithLabelValues(k[0], k[1]).Set(v)
	}
}

// deliverLocked attempts a non-blocking send to s. On overflow it
// increments the subscriber's pending-lag counter and makes one
// best-effort attempt to deliver a Lagged marker in the dropped event's
// place.
func (r *Registry) deliverLocked(s *subscriber, ev DeviceEvent) {
	select {
	case s.ch <- ev:
		return
	default:
	}

	s.lagged++
	metrics.Get().SubscriberLagEvents.Inc()
	select {
	case s.ch <- DeviceEvent{Type: EventLagged, Lagged: s.lagged, Timestamp: r.clock.Now()}:
		s.lagged = 0
	default:
	}
}
