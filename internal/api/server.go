package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cognipilot/dendrite/internal/discovery"
	"github.com/cognipilot/dendrite/internal/logging"
	"github.com/cognipilot/dendrite/internal/netif"
	"github.com/cognipilot/dendrite/internal/registry"
)

// Server is the daemon's HTTP/WebSocket surface. It never touches the
// network or MGMT transport directly — everything goes through the
// Registry, Engine, and NetIf it's handed.
type Server struct {
	logger    *logging.Logger
	registry  *registry.Registry
	engine    *discovery.Engine
	netif     *netif.NetIf
	heartbeat *registry.Heartbeat
	ws        *WSManager

	mux *http.ServeMux
	srv *http.Server
}

// Options bundles a Server's dependencies.
type Options struct {
	Bind      string
	Registry  *registry.Registry
	Engine    *discovery.Engine
	NetIf     *netif.NetIf
	Heartbeat *registry.Heartbeat
	Logger    *logging.Logger
}

// NewServer builds a Server and wires its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("api")

	s := &Server{
		logger:    logger,
		registry:  opts.Registry,
		engine:    opts.Engine,
		netif:     opts.NetIf,
		heartbeat: opts.Heartbeat,
	}
	s.ws = NewWSManager(opts.Registry, logger)

	s.mux = http.NewServeMux()
	s.initRoutes()
	s.srv = &http.Server{
		Addr:              opts.Bind,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) initRoutes() {
	s.mux.HandleFunc("GET /api/devices", s.handleListDevices)
	s.mux.HandleFunc("DELETE /api/devices/{id}", s.handleDeleteDevice)
	s.mux.HandleFunc("GET /api/interfaces", s.handleListInterfaces)
	s.mux.HandleFunc("POST /api/subnet", s.handleSetSubnet)
	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.HandleFunc("GET /api/heartbeat", s.handleGetHeartbeat)
	s.mux.HandleFunc("POST /api/heartbeat", s.handleSetHeartbeat)
	s.mux.HandleFunc("GET /ws", s.ws.HandleUpgrade)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// ListenAndServe starts the HTTP server. It blocks until the server
// stops, returning http.ErrServerClosed on a clean Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api listening", "bind", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server and the websocket manager.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ws.Close()
	return s.srv.Shutdown(ctx)
}
