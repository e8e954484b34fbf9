package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cognipilot/dendrite/internal/clock"
	"github.com/cognipilot/dendrite/internal/discovery"
	"github.com/cognipilot/dendrite/internal/hdd"
	"github.com/cognipilot/dendrite/internal/logging"
	"github.com/cognipilot/dendrite/internal/mgmt"
	"github.com/cognipilot/dendrite/internal/netif"
	"github.com/cognipilot/dendrite/internal/registry"
	"github.com/cognipilot/dendrite/internal/resolver"
	"github.com/vishvananda/netlink"
)

type emptyNetlinker struct{}

func (emptyNetlinker) LinkList() ([]netlink.Link, error) { return nil, nil }

func (emptyNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return nil, nil
}

type noopProber struct{}

func (noopProber) ResolveMAC(ctx context.Context, ip string) (string, bool) { return "", false }

type noopSweeper struct{}

func (noopSweeper) Sweep(ctx context.Context, iface string, subnet *net.IPNet, window time.Duration) ([]netif.Peer, error) {
	return nil, nil
}

type noopProberClient struct{}

func (noopProberClient) OSInfo(ctx context.Context, peer *net.UDPAddr) (mgmt.OSInfo, error) {
	return mgmt.OSInfo{}, nil
}

func (noopProberClient) HddInfo(ctx context.Context, peer *net.UDPAddr) (mgmt.HddInfo, bool, error) {
	return mgmt.HddInfo{}, false, nil
}

type noopResolver struct{}

func (noopResolver) Resolve(ctx context.Context, board, app, sha, peerAddr string) (*resolver.Result, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mc := clock.NewMockClock(time.Now())
	logger := logging.New(logging.DefaultConfig())
	reg := registry.New(logger, mc)
	hb := registry.NewHeartbeat(reg, noopProber{}, 30*time.Second, 0)
	nif := netif.NewWithNetlinker(emptyNetlinker{}, logger)
	eng := discovery.New(noopSweeper{}, noopProberClient{}, reg, noopResolver{}, logger, discovery.Config{})

	return NewServer(Options{
		Bind:      "127.0.0.1:0",
		Registry:  reg,
		Engine:    eng,
		NetIf:     nif,
		Heartbeat: hb,
		Logger:    logger,
	})
}

func TestHandleListDevicesReturnsEmptyArrayInitially(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rec := httptest.NewRecorder()
	s.handleListDevices(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var devices []DeviceJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("expected no devices, got %d", len(devices))
	}
}

func TestHandleDeleteDeviceNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/devices/aa:bb:cc:dd:ee:ff", nil)
	req.SetPathValue("id", "aa:bb:cc:dd:ee:ff")
	rec := httptest.NewRecorder()
	s.handleDeleteDevice(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestHandleSetSubnetRejectsInvalidBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/subnet", nil)
	rec := httptest.NewRecorder()
	s.handleSetSubnet(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestHandleListDevicesPopulatesVisualsOnceBound(t *testing.T) {
	s := newTestServer(t)

	s.registry.OnProbe("10.0.0.42", "aa:bb:cc:dd:ee:ff", mgmt.OSInfo{Board: "mr_mcxn_t1", App: "optical-flow", Version: "1.0"}, nil)
	doc := &hdd.HDD{Comps: []hdd.Comp{{
		Name:    "chassis",
		Visuals: []hdd.Visual{{Name: "body", Model: hdd.Model{Href: "body.glb"}}},
	}}}
	s.registry.OnFetchResult("aa:bb:cc:dd:ee:ff", registry.FetchOutcome{Sha: "S", Doc: doc, ModelPaths: map[string]string{}})

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rec := httptest.NewRecorder()
	s.handleListDevices(rec, req)

	var devices []DeviceJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	if devices[0].Status != "online" {
		t.Fatalf("expected status key populated, got %+v", devices[0])
	}
	if len(devices[0].Visuals) != 1 || devices[0].Visuals[0].Name != "body" {
		t.Fatalf("expected populated visuals once bound, got %+v", devices[0].Visuals)
	}
}

func TestHandleGetHeartbeatReportsDisabledByDefault(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/heartbeat", nil)
	rec := httptest.NewRecorder()
	s.handleGetHeartbeat(rec, req)

	var hb HeartbeatJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &hb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hb.Enabled {
		t.Fatal("expected heartbeat disabled by default")
	}
}
