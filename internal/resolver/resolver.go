// Package resolver implements the (board, app) -> HDD/model fetch
// pipeline: SHA-verified download with deterministic offline fallback to
// the content-addressed cache.
package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/cognipilot/dendrite/internal/cache"
	"github.com/cognipilot/dendrite/internal/hdd"
	"github.com/cognipilot/dendrite/internal/logging"
	"github.com/cognipilot/dendrite/internal/metrics"
)

// defaultFetchTimeout bounds a single HTTP GET (spec: "10 s timeout").
const defaultFetchTimeout = 10 * time.Second

// DefaultResolveDeadline bounds the whole (board, app) resolution,
// including model sub-fetches.
const DefaultResolveDeadline = 30 * time.Second

// Result is the outcome of resolving (board, app) to an HDD.
type Result struct {
	Handle     *cache.HDDHandle
	Doc        *hdd.HDD
	Stale      bool
	Reachable  bool // only meaningful when Stale
	ModelPaths map[string]string
}

// HTTPDoer is the narrow capability trait the resolver depends on for
// HTTP, so tests can inject a fake transport without touching the
// network.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pinger checks whether an address currently answers ICMP echo; used
// only as an informational annotation on stale fallback responses, never
// to gate cache or ShaMismatch logic.
type Pinger interface {
	Reachable(ctx context.Context, addr string) bool
}

// icmpPinger is the production Pinger, backed by pro-bing.
type icmpPinger struct{}

func (icmpPinger) Reachable(ctx context.Context, addr string) bool {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = 800 * time.Millisecond
	pinger.SetPrivileged(false)

	done := make(chan struct{})
	var reachable bool
	go func() {
		defer close(done)
		if err := pinger.Run(); err != nil {
			return
		}
		reachable = pinger.Statistics().PacketsRecv > 0
	}()

	select {
	case <-done:
		return reachable
	case <-ctx.Done():
		pinger.Stop()
		return false
	}
}

// Resolver implements the AssetResolver fetch pipeline.
type Resolver struct {
	cache   *cache.Store
	http    HTTPDoer
	pinger  Pinger
	baseURL string
	logger  *logging.Logger
}

// New builds a Resolver fetching from baseURL (e.g.
// "https://assets.example.com") and storing into store.
func New(store *cache.Store, baseURL string, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		cache:   store,
		http:    &http.Client{Timeout: defaultFetchTimeout},
		pinger:  icmpPinger{},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.WithComponent("resolver"),
	}
}

// WithHTTPClient overrides the HTTP transport, for tests.
func (r *Resolver) WithHTTPClient(doer HTTPDoer) *Resolver {
	r.http = doer
	return r
}

// WithPinger overrides the reachability checker, for tests.
func (r *Resolver) WithPinger(p Pinger) *Resolver {
	r.pinger = p
	return r
}

// Resolve runs the full fetch pipeline for (board, app), with
// reportedSha the SHA the device itself reported (may be empty if the
// peer doesn't support hdd_info). peerAddr, if non-empty, is used only
// for the stale-fallback reachability ping.
func (r *Resolver) Resolve(ctx context.Context, board, app, reportedSha, peerAddr string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultResolveDeadline)
	defer cancel()

	if reportedSha != "" {
		if handle, ok := r.cache.GetHDD(board, app, reportedSha); ok {
			metrics.Get().CacheHits.WithLabelValues("hdd").Inc()
			metrics.Get().FetchOutcomes.WithLabelValues("ok").Inc()
			return r.finish(ctx, handle, false, peerAddr)
		}
		metrics.Get().CacheMisses.WithLabelValues("hdd").Inc()
	}

	data, fetchErr := r.fetch(ctx, r.hddURL(board, app))
	if fetchErr == nil {
		if reportedSha != "" && !cache.Verify(reportedSha, data) {
			r.logger.Warn("hdd sha mismatch, discarding download", "board", board, "app", app)
			metrics.Get().FetchOutcomes.WithLabelValues("sha_mismatch").Inc()
			return r.staleFallback(ctx, board, app, peerAddr, fmt.Errorf("%w: board=%s app=%s", ErrShaMismatch, board, app))
		}
		sha, err := r.cache.PutHDD(board, app, data)
		if err != nil {
			return nil, fmt.Errorf("resolver: store fetched hdd: %w", err)
		}
		handle, ok := r.cache.GetHDD(board, app, sha)
		if !ok {
			return nil, fmt.Errorf("resolver: put succeeded but get failed for %s/%s@%s", board, app, sha)
		}
		metrics.Get().FetchOutcomes.WithLabelValues("ok").Inc()
		return r.finish(ctx, handle, false, peerAddr)
	}

	return r.staleFallback(ctx, board, app, peerAddr, fetchErr)
}

func (r *Resolver) staleFallback(ctx context.Context, board, app, peerAddr string, cause error) (*Result, error) {
	handle, ok := r.cache.GetHDD(board, app, "")
	if !ok {
		metrics.Get().FetchOutcomes.WithLabelValues("unresolved").Inc()
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrUnresolved, board, app, cause)
	}
	metrics.Get().FetchOutcomes.WithLabelValues("stale").Inc()
	return r.finish(ctx, handle, true, peerAddr)
}

func (r *Resolver) finish(ctx context.Context, handle *cache.HDDHandle, stale bool, peerAddr string) (*Result, error) {
	data, err := os.ReadFile(handle.Path)
	if err != nil {
		return nil, fmt.Errorf("resolver: read cached hdd: %w", err)
	}
	doc, _, err := hdd.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("resolver: parse cached hdd: %w", err)
	}

	result := &Result{Handle: handle, Doc: doc, Stale: stale, ModelPaths: map[string]string{}}
	if stale && peerAddr != "" {
		result.Reachable = r.pinger.Reachable(ctx, peerAddr)
	}

	if err := r.resolveModels(ctx, doc, result); err != nil {
		r.logger.Warn("model resolution incomplete", "error", err)
	}
	return result, nil
}

// resolveModels walks every visual's model reference, fetching and
// caching each distinct SHA at most once.
func (r *Resolver) resolveModels(ctx context.Context, doc *hdd.HDD, result *Result) error {
	var firstErr error
	var walk func(comps []hdd.Comp)
	walk = func(comps []hdd.Comp) {
		for _, c := range comps {
			for _, v := range c.Visuals {
				if v.Model.Href == "" {
					continue
				}
				if v.Model.Sha != "" {
					if _, ok := result.ModelPaths[v.Model.Sha]; ok {
						continue
					}
					if p, ok := r.cache.GetModel(v.Model.Sha); ok {
						result.ModelPaths[v.Model.Sha] = p
						continue
					}
				}
				if err := r.fetchModel(ctx, v.Model.Href, v.Model.Sha, result); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			walk(c.Children)
		}
	}
	walk(doc.Comps)
	return firstErr
}

func (r *Resolver) fetchModel(ctx context.Context, href, expectedSha string, result *Result) error {
	data, err := r.fetch(ctx, r.baseURL+"/"+strings.TrimLeft(href, "/"))
	if err != nil {
		return fmt.Errorf("resolver: fetch model %s: %w", href, err)
	}
	if expectedSha != "" && !cache.Verify(expectedSha, data) {
		return fmt.Errorf("%w: model %s", ErrShaMismatch, href)
	}
	sha, err := r.cache.PutModel(path.Base(href), data)
	if err != nil {
		return fmt.Errorf("resolver: store model %s: %w", href, err)
	}
	p, ok := r.cache.GetModel(sha)
	if !ok {
		return fmt.Errorf("resolver: stored model %s but could not locate it", href)
	}
	result.ModelPaths[sha] = p
	return nil
}

func (r *Resolver) hddURL(board, app string) string {
	return fmt.Sprintf("%s/%s/%s/%s.hdd", r.baseURL, board, app, app)
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("resolver: build request: %w", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolver: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver: fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("resolver: read body of %s: %w", url, err)
	}
	return data, nil
}
