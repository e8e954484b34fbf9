// Package discovery orchestrates one end-to-end sweep: an ARP pass over
// the configured subnet followed by a bounded-concurrency MGMT probe of
// every host that answered, feeding results into the registry.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cognipilot/dendrite/internal/enrich"
	"github.com/cognipilot/dendrite/internal/logging"
	"github.com/cognipilot/dendrite/internal/metrics"
	"github.com/cognipilot/dendrite/internal/mgmt"
	"github.com/cognipilot/dendrite/internal/netif"
	"github.com/cognipilot/dendrite/internal/registry"
	"github.com/cognipilot/dendrite/internal/resolver"
)

const maxConcurrentProbes = 32

// ErrAlreadyRunning is returned when a scan is requested while one is
// already in flight; the in-flight scan is left to finish rather than
// being duplicated.
var ErrAlreadyRunning = fmt.Errorf("discovery: scan already in progress")

// Config holds the engine's subnet and mgmt transport parameters.
type Config struct {
	Interface string
	Subnet    *net.IPNet
	MgmtPort  int
	Window    time.Duration
}

// Sweeper performs the ARP sweep stage. *netif.NetIf satisfies this.
type Sweeper interface {
	Sweep(ctx context.Context, iface string, subnet *net.IPNet, window time.Duration) ([]netif.Peer, error)
}

// Prober performs the MGMT probe stage. *mgmt.Client satisfies this.
type Prober interface {
	OSInfo(ctx context.Context, peer *net.UDPAddr) (mgmt.OSInfo, error)
	HddInfo(ctx context.Context, peer *net.UDPAddr) (mgmt.HddInfo, bool, error)
}

// AssetResolver performs the HDD resolution stage. *resolver.Resolver
// satisfies this.
type AssetResolver interface {
	Resolve(ctx context.Context, board, app, reportedSha, peerAddr string) (*resolver.Result, error)
}

// Engine drives sweeps. It is safe for concurrent use; a request made
// while a sweep is running is coalesced into a single pending rescan
// rather than running a second overlapping sweep.
type Engine struct {
	sweeper  Sweeper
	prober   Prober
	registry *registry.Registry
	resolver AssetResolver
	logger   *logging.Logger

	mu            sync.Mutex
	cfg           Config
	running       bool
	pendingRescan bool
}

// New builds an Engine. prober is expected to already be bound to the
// transport used for MGMT probes.
func New(sweeper Sweeper, prober Prober, reg *registry.Registry, res AssetResolver, logger *logging.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		sweeper:  sweeper,
		prober:   prober,
		registry: reg,
		resolver: res,
		logger:   logger.WithComponent("discovery"),
		cfg:      cfg,
	}
}

// SetSubnet updates the scan target, e.g. in response to a config reload.
func (e *Engine) SetSubnet(iface string, subnet *net.IPNet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Interface = iface
	e.cfg.Subnet = subnet
}

// Scan runs one sweep. If a scan is already running, the request is
// coalesced into a pending-rescan flag instead of running a second
// overlapping sweep: the in-flight Scan call picks up the latest
// configured subnet and runs once more before returning.
// ErrAlreadyRunning is still returned to the caller that found a scan
// already running, so it never blocks waiting for the rescan.
func (e *Engine) Scan(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.pendingRescan = true
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	var err error
	for {
		err = e.runOnce(ctx)

		e.mu.Lock()
		rescan := e.pendingRescan
		e.pendingRescan = false
		e.mu.Unlock()

		if !rescan || ctx.Err() != nil {
			return err
		}
		e.logger.Info("rescan coalesced from a trigger received mid-sweep")
	}
}

func (e *Engine) runOnce(ctx context.Context) error {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	if cfg.Subnet == nil {
		return fmt.Errorf("discovery: no subnet configured")
	}

	start := time.Now()
	peers, err := e.sweeper.Sweep(ctx, cfg.Interface, cfg.Subnet, cfg.Window)
	if err != nil {
		e.logger.Warn("arp sweep failed", "interface", cfg.Interface, "error", err)
		return err
	}
	metrics.Get().SweepDuration.Observe(time.Since(start).Seconds())
	metrics.Get().SweepPeersFound.Set(float64(len(peers)))
	e.logger.Info("arp sweep complete", "interface", cfg.Interface, "peers", len(peers), "elapsed", time.Since(start))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentProbes)

	for _, peer := range peers {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(ip net.IP, mac net.HardwareAddr) {
			defer wg.Done()
			defer func() { <-sem }()
			e.probeOne(ctx, ip, mac, cfg.MgmtPort)
		}(peer.IP, peer.MAC)
	}

	wg.Wait()
	return nil
}

// IsScanning reports whether a sweep is currently in flight.
func (e *Engine) IsScanning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) probeOne(ctx context.Context, ip net.IP, mac net.HardwareAddr, port int) {
	peer := &net.UDPAddr{IP: ip, Port: port}

	info, err := e.prober.OSInfo(ctx, peer)
	if err != nil {
		if errors.Is(err, mgmt.ErrUnreachable) || ctx.Err() == context.DeadlineExceeded {
			metrics.Get().ProbeTimeouts.Inc()
		}
		e.logger.Debug("probe failed", "ip", ip, "error", err)
		return
	}
	metrics.Get().ProbeSuccesses.Inc()

	hddInfo, supported, err := e.prober.HddInfo(ctx, peer)
	var hi *mgmt.HddInfo
	if err == nil && supported {
		hi = &hddInfo
	} else if err != nil {
		e.logger.Warn("hdd_info query failed, skipping hdd binding this cycle", "ip", ip, "error", err)
	}

	ev := e.registry.OnProbe(ip.String(), mac.String(), info, hi)
	go e.enrich(ev.Device.ID, ip.String(), mac.String())

	if ev.Device.Lifecycle.Kind != registry.Resolving {
		return
	}

	go e.resolveAndBind(ev.Device.ID, info.Board, info.App, ev.Device.Lifecycle.Sha, ip.String())
}

// enrich attaches a best-effort hostname/vendor label. It runs
// detached from the probe that triggered it: a slow or unreachable
// resolver must never hold up the scan's worker-pool semaphore.
func (e *Engine) enrich(deviceID, ip, mac string) {
	vendor, _ := enrich.VendorForMAC(mac)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	hostname, _ := enrich.ReverseDNS(ctx, ip)

	e.registry.SetEnrichment(deviceID, hostname, vendor)
}

func (e *Engine) resolveAndBind(deviceID, board, app, reportedSha, peerIP string) {
	ctx, cancel := context.WithTimeout(context.Background(), resolver.DefaultResolveDeadline)
	defer cancel()

	result, err := e.resolver.Resolve(ctx, board, app, reportedSha, peerIP)
	if err != nil {
		e.registry.OnFetchResult(deviceID, registry.FetchOutcome{Err: err})
		return
	}
	e.registry.OnFetchResult(deviceID, registry.FetchOutcome{
		Sha:        result.Handle.Sha,
		Stale:      result.Stale,
		Reachable:  result.Reachable,
		Doc:        result.Doc,
		ModelPaths: result.ModelPaths,
	})
}
