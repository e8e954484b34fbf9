package resolver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/cognipilot/dendrite/internal/cache"
)

const sampleHDD = `<hdd><comp name="imu" role="sensor"><visual name="v" pose="0 0 0 0 0 0"><model href="cam.glb" sha="%s"/></visual></comp></hdd>`

func shaHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fakeDoer routes GET requests by exact URL to canned responses or
// errors, and counts requests per URL so tests can assert dedup.
type fakeDoer struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
	calls     map[string]int
}

func newFakeDoer() *fakeDoer {
	return &fakeDoer{responses: map[string][]byte{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	f.mu.Lock()
	f.calls[url]++
	f.mu.Unlock()

	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	data, ok := f.responses[url]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeDoer) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakePinger struct{ reachable bool }

func (p fakePinger) Reachable(context.Context, string) bool { return p.reachable }

func newTestResolver(t *testing.T, baseURL string) (*Resolver, *fakeDoer, *cache.Store) {
	t.Helper()
	store, err := cache.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	doer := newFakeDoer()
	r := New(store, baseURL, nil).WithHTTPClient(doer).WithPinger(fakePinger{})
	return r, doer, store
}

func TestColdDiscoveryFetchesAndCaches(t *testing.T) {
	modelData := []byte("glb-bytes")
	modelSha := shaHex(modelData)
	hddBytes := []byte(strings.ReplaceAll(sampleHDD, "%s", modelSha))
	hddSha := shaHex(hddBytes)

	r, doer, _ := newTestResolver(t, "https://assets.example.com")
	doer.responses["https://assets.example.com/mr_mcxn_t1/optical-flow/optical-flow.hdd"] = hddBytes
	doer.responses["https://assets.example.com/cam.glb"] = modelData

	result, err := r.Resolve(context.Background(), "mr_mcxn_t1", "optical-flow", hddSha, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Stale {
		t.Fatal("expected fresh resolution, not stale")
	}
	if result.Handle.Sha != hddSha {
		t.Fatalf("got sha %s, want %s", result.Handle.Sha, hddSha)
	}
	if len(result.Doc.Comps) != 1 {
		t.Fatalf("expected parsed doc with one comp, got %+v", result.Doc)
	}
	if _, ok := result.ModelPaths[modelSha]; !ok {
		t.Fatalf("expected model %s to be resolved", modelSha)
	}
}

func TestExpectedShaAlreadyCachedProducesNoHTTPTraffic(t *testing.T) {
	r, doer, store := newTestResolver(t, "https://assets.example.com")
	data := []byte("<hdd></hdd>")
	sha, err := store.PutHDD("board", "app", data)
	if err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	result, err := r.Resolve(context.Background(), "board", "app", sha, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Stale {
		t.Fatal("expected cache hit, not stale")
	}
	if total := len(doer.calls); total != 0 {
		t.Fatalf("expected zero HTTP calls, got %d: %+v", total, doer.calls)
	}
}

func TestOfflineFallbackReturnsStaleWithoutPropagatingError(t *testing.T) {
	r, doer, store := newTestResolver(t, "https://assets.example.com")
	staleData := []byte("<hdd><comp name=\"x\"/></hdd>")
	staleSha, err := store.PutHDD("mr_mcxn_t1", "optical-flow", staleData)
	if err != nil {
		t.Fatalf("seed stale cache: %v", err)
	}

	doer.errs["https://assets.example.com/mr_mcxn_t1/optical-flow/optical-flow.hdd"] = errors.New("network unreachable")

	result, err := r.Resolve(context.Background(), "mr_mcxn_t1", "optical-flow", "S-new-firmware-sha", "")
	if err != nil {
		t.Fatalf("Resolve should fall back, not error: %v", err)
	}
	if !result.Stale {
		t.Fatal("expected stale=true")
	}
	if result.Handle.Sha != staleSha {
		t.Fatalf("got %s, want stale sha %s", result.Handle.Sha, staleSha)
	}
}

func TestShaMismatchDiscardsAndFallsBackToStale(t *testing.T) {
	r, doer, store := newTestResolver(t, "https://assets.example.com")
	staleSha, err := store.PutHDD("board", "app", []byte("<hdd><comp name=\"x\"/></hdd>"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	doer.responses["https://assets.example.com/board/app/app.hdd"] = []byte("corrupted-bytes")

	result, err := r.Resolve(context.Background(), "board", "app", "sha-that-wont-match", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Stale || result.Handle.Sha != staleSha {
		t.Fatalf("expected stale fallback to prior sha, got %+v", result)
	}
}

func TestUnresolvedWhenNoNetworkAndNoCache(t *testing.T) {
	r, doer, _ := newTestResolver(t, "https://assets.example.com")
	doer.errs["https://assets.example.com/board/app/app.hdd"] = errors.New("unreachable")

	_, err := r.Resolve(context.Background(), "board", "app", "", "")
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("got %v, want ErrUnresolved", err)
	}
}

func TestModelDedupAcrossDifferentBoards(t *testing.T) {
	modelData := []byte("shared-model-bytes")
	modelSha := shaHex(modelData)

	hddA := []byte(strings.ReplaceAll(sampleHDD, "%s", modelSha))
	hddB := []byte(strings.ReplaceAll(
		`<hdd><comp name="x"><visual name="v" pose="0 0 0 0 0 0"><model href="cam.glb" sha="%s"/></visual></comp></hdd>`,
		"%s", modelSha))

	r, doer, _ := newTestResolver(t, "https://assets.example.com")
	doer.responses["https://assets.example.com/boardX/appX/appX.hdd"] = hddA
	doer.responses["https://assets.example.com/boardY/appY/appY.hdd"] = hddB
	doer.responses["https://assets.example.com/cam.glb"] = modelData

	if _, err := r.Resolve(context.Background(), "boardX", "appX", shaHex(hddA), ""); err != nil {
		t.Fatalf("resolve A: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "boardY", "appY", shaHex(hddB), ""); err != nil {
		t.Fatalf("resolve B: %v", err)
	}

	if got := doer.count("https://assets.example.com/cam.glb"); got != 1 {
		t.Fatalf("expected exactly one model GET, got %d", got)
	}
}
