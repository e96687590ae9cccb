// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/cryodaq/cryodaq/docs"
	"github.com/cryodaq/cryodaq/internal/api"
	"github.com/cryodaq/cryodaq/internal/auth"
	"github.com/cryodaq/cryodaq/internal/authz"
	"github.com/cryodaq/cryodaq/internal/bridge"
	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/instrument"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/measure"
	"github.com/cryodaq/cryodaq/internal/supervisor"
	"github.com/cryodaq/cryodaq/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting CryoDAQ with supervisor tree")

	logging.Info().
		Str("data_addr", cfg.Server.DataAddr()).
		Str("control_addr", cfg.Server.ControlAddr()).
		Str("store_dir", cfg.Store.Dir).
		Bool("store_in_memory", cfg.Store.InMemory).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Configuration loaded")

	// Data server facade: append store plus callback dispatch. The supervisor
	// owns its lifecycle; it is constructed here so handlers can be wired.
	svc, err := dataserver.New(cfg.Store, cfg.Notify.Workers, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize data server")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize NATS bridge (optional - requires build with -tags nats).
	// The tap mirrors every store event onto JetStream; delivery is best
	// effort and never blocks an append.
	var natsBridge *bridge.Bridge
	if cfg.NATS.Enabled {
		if !bridge.Available {
			logging.Fatal().Msg("NATS bridge requested but not compiled in (rebuild with -tags nats)")
		}
		natsBridge, err = bridge.New(cfg.NATS)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize NATS bridge")
		}
		svc.SetEventTap(natsBridge.Tap())
		defer func() {
			if err := natsBridge.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing NATS bridge")
			}
		}()
		logging.Info().Str("url", cfg.NATS.URL).Bool("embedded", cfg.NATS.EmbeddedServer).
			Msg("NATS bridge initialized")
	}

	// Instrument registry. Simulated sources are registered in development so
	// the full acquisition path works on a bench with no hardware attached.
	registry := instrument.NewRegistry()
	if cfg.IsDevelopment() {
		registerSimInstruments(registry)
	}

	runner := measure.NewRunner(svc, registry, cfg.Measure.SampleInterval)

	if cfg.Security.AuthMode == "none" {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  All control endpoints are publicly accessible!")
		logging.Warn().Msg("  This mode should ONLY be used for:")
		logging.Warn().Msg("    - Local bench development")
		logging.Warn().Msg("    - Isolated instrument networks")
		logging.Warn().Msg("    - CI testing environments")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  NEVER use AUTH_MODE=none on a shared network!")
		logging.Warn().Msg("============================================================")
	}

	authn, err := auth.NewAuthenticator(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}
	if authn.Mode() == auth.ModeBasic {
		logging.Warn().Msg("Basic Auth transmits credentials with each request. Use HTTPS in production!")
	}

	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	defer enforcer.Close()
	authzMW := authz.NewMiddleware(enforcer, authn.Mode() != auth.ModeNone)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
		logging.Warn().Msg("This should only be used for CI testing!")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: CORS is configured with wildcard origin (CORS_ORIGINS=*)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  This allows ANY website to make cross-origin requests to your API.")
		logging.Warn().Msg("  With authentication enabled, attackers can steal credentials")
		logging.Warn().Msg("  via malicious websites.")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  RECOMMENDED: Set specific origins in production:")
		logging.Warn().Msg("    CORS_ORIGINS=https://lab.example.org")
		logging.Warn().Msg("============================================================")
	}

	chiMW := api.NewChiMiddlewareFromSecurity(cfg.Security)

	// Analytical export is optional - requires build with -tags duckdb.
	// A nil exporter makes the data router answer /export with 503.
	exporter := newExporter(svc, cfg.Export)
	if exporter == nil {
		logging.Info().Msg("DuckDB export not compiled in (rebuild with -tags duckdb to enable)")
	} else {
		logging.Info().Str("dir", cfg.Export.Dir).Msg("DuckDB export enabled")
	}

	dataHandler := api.NewDataHandler(svc, cfg.Security.CORSOrigins)
	dataRouter := api.NewDataRouter(dataHandler, chiMW, authn, authzMW, exporter)

	controlHandler := api.NewControlHandler(registry, runner, authn)
	controlRouter := api.NewControlRouter(controlHandler, chiMW, authn, authzMW)

	dataServer := &http.Server{
		Addr:         cfg.Server.DataAddr(),
		Handler:      dataRouter.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	controlServer := &http.Server{
		Addr:         cfg.Server.ControlAddr(),
		Handler:      controlRouter.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())

	tree.AddDataService(services.NewDataService(svc))
	logging.Info().Msg("Data service added to supervisor tree")

	if cfg.Status.Enabled {
		collector := measure.NewCollector(svc, registry, cfg.Status.Interval)
		tree.AddInstrumentService(services.NewCollectorService(collector))
		logging.Info().Dur("interval", cfg.Status.Interval).Msg("Status collector added to supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPService("data-server", dataServer, 10*time.Second))
	tree.AddAPIService(services.NewHTTPService("control-server", controlServer, 10*time.Second))
	logging.Info().
		Str("data_addr", dataServer.Addr).
		Str("control_addr", controlServer.Addr).
		Msg("HTTP server services added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Measurement runs hold their own goroutines outside the tree.
	runner.StopAll()

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Daemon stopped gracefully")
}

// registerSimInstruments registers simulated signal sources so development
// setups have devices to sample without hardware.
func registerSimInstruments(registry *instrument.Registry) {
	sims := []*instrument.SimSource{
		instrument.NewSimSource("sim-sine", 1.0, 0.5, 10),
		instrument.NewSimSource("sim-noise", 0.1, 13.0, 10),
	}
	for _, sim := range sims {
		if err := registry.Register(sim); err != nil {
			logging.Error().Err(err).Str("instrument", sim.Name()).Msg("Failed to register simulated instrument")
			continue
		}
		logging.Info().Str("instrument", sim.Name()).Msg("Simulated instrument registered")
	}
}
