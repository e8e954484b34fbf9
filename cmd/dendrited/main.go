// Command dendrited is the Dendrite discovery daemon: it sweeps the
// local network for MGMT-speaking devices, resolves their hardware
// description documents, and serves the result over HTTP/WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cognipilot/dendrite/internal/api"
	"github.com/cognipilot/dendrite/internal/cache"
	"github.com/cognipilot/dendrite/internal/clock"
	"github.com/cognipilot/dendrite/internal/config"
	"github.com/cognipilot/dendrite/internal/discovery"
	"github.com/cognipilot/dendrite/internal/logging"
	"github.com/cognipilot/dendrite/internal/mgmt"
	"github.com/cognipilot/dendrite/internal/netif"
	"github.com/cognipilot/dendrite/internal/registry"
	"github.com/cognipilot/dendrite/internal/resolver"
)

func main() {
	configPath := flag.String("config", "/etc/dendrite/dendrite.hcl", "path to dendrite.hcl")
	flag.Parse()

	logger := logging.New(logging.DefaultConfig())
	if err := run(*configPath, logger); err != nil {
		logger.Error("dendrited exiting", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *logging.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn("falling back to built-in defaults", "path", configPath, "error", err)
		cfg = config.Default()
	}

	store, err := cache.NewStore(cfg.Cache.Path, logger)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}

	transport, err := mgmt.NewTransport(cfg.Daemon.Bind, logger, clock.RealClock{})
	if err != nil {
		return fmt.Errorf("bind mgmt transport on %s: %w", cfg.Daemon.Bind, err)
	}
	defer transport.Close()

	mgmtClient := mgmt.NewClient(transport)
	assetResolver := resolver.New(store, cfg.HDD.BaseURL, logger)
	reg := registry.New(logger, clock.RealClock{})
	nif := netif.New(logger)

	subnetIP := net.ParseIP(cfg.Discovery.Subnet)
	var subnet *net.IPNet
	if subnetIP != nil {
		subnet = &net.IPNet{IP: subnetIP.Mask(net.CIDRMask(cfg.Discovery.PrefixLen, 32)), Mask: net.CIDRMask(cfg.Discovery.PrefixLen, 32)}
	}

	engine := discovery.New(nif, mgmtClient, reg, assetResolver, logger, discovery.Config{
		Interface: cfg.Discovery.Interface,
		Subnet:    subnet,
		MgmtPort:  cfg.Discovery.MgmtPort,
	})

	prober := netif.NewProber(nif, cfg.Discovery.Interface)
	heartbeat := registry.NewHeartbeat(reg, prober,
		time.Duration(cfg.Daemon.HeartbeatIntervalSecs)*time.Second,
		time.Duration(cfg.Daemon.OfflineRetentionSecs)*time.Second,
	)
	heartbeat.SetEnabled(cfg.Daemon.HeartbeatEnabled)
	heartbeat.Start()
	defer heartbeat.Stop()

	server := api.NewServer(api.Options{
		Bind:      cfg.Daemon.APIBind,
		Registry:  reg,
		Engine:    engine,
		NetIf:     nif,
		Heartbeat: heartbeat,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(configPath, logger)
	if err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
		go watchConfig(ctx, watcher, engine, logger)
	}

	if subnet != nil {
		go func() {
			if err := engine.Scan(ctx); err != nil {
				logger.Warn("initial scan failed", "error", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error("api server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func watchConfig(ctx context.Context, w *config.Watcher, engine *discovery.Engine, logger *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			logger.Info("applying reloaded config", "diff", ev.Diff)
			ip := net.ParseIP(ev.Config.Discovery.Subnet)
			if ip == nil {
				continue
			}
			subnet := &net.IPNet{IP: ip.Mask(net.CIDRMask(ev.Config.Discovery.PrefixLen, 32)), Mask: net.CIDRMask(ev.Config.Discovery.PrefixLen, 32)}
			engine.SetSubnet(ev.Config.Discovery.Interface, subnet)
			go engine.Scan(ctx)
		}
	}
}
