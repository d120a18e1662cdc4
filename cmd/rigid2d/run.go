package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/opd-ai/rigid2d/pkg/config"
	"github.com/opd-ai/rigid2d/pkg/engine"
	"github.com/opd-ai/rigid2d/pkg/health"
	"github.com/opd-ai/rigid2d/pkg/logging"
	"github.com/opd-ai/rigid2d/pkg/physics"
	"github.com/opd-ai/rigid2d/pkg/render"
	"github.com/opd-ai/rigid2d/pkg/resource"
	"github.com/opd-ai/rigid2d/pkg/stream"
)

// memoryLimitMB is the heap size above which readiness fails
const memoryLimitMB = 500

const shutdownTimeout = 10 * time.Second

// loadConfig reads path, falling back to the defaults when the file does not exist, then
// applies the scene template and the RIGID2D_* environment overrides.
func loadConfig(ctx context.Context, logger *logging.Logger, path, scene string) (*config.SimConfig, error) {
	var cfg *config.SimConfig
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", path,
		)
		cfg = config.DefaultConfig()
	} else {
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if scene != "" {
		if err := config.ApplySceneTemplate(cfg, scene); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnvironmentOverrides(cfg); err != nil {
		return nil, logging.WrapError(err, "failed to apply environment configuration")
	}
	return cfg, nil
}

// runHeadless advances a fresh simulation by steps fixed steps and writes the final
// state to out, as indented JSON or as an ASCII frame.
func runHeadless(cfg *config.SimConfig, logger *logging.Logger, steps int, ascii bool, out io.Writer) error {
	sim, err := engine.NewSimulation(cfg, logger)
	if err != nil {
		return err
	}

	dt := cfg.Timing.FixedTimestep
	taken := 0
	for taken < steps {
		taken += sim.Advance(dt)
	}
	if err := sim.CheckStability(); err != nil {
		return err
	}

	state := sim.Snapshot()
	if ascii {
		r := render.NewTerminalRenderer(out, 72, 24, 0.5)
		r.SetCenter(sceneCenter(state))
		return render.DrawState(r, state)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

// sceneCenter is the centre of the dynamic bodies' bounds, or the origin when there are none
func sceneCenter(st *engine.State) physics.Vector2D {
	box := physics.EmptyAABB()
	for _, b := range st.Bodies {
		if !b.Static {
			box = box.Union(b.Bounds)
		}
	}
	if !box.Min.IsFinite() || !box.Max.IsFinite() {
		return physics.Vector2D{}
	}
	return box.Center()
}

// serve runs the simulation and serves /ws, /health and /ready on cfg.Stream.Addr until
// ctx ends. When ready is non-nil it receives the bound address once listening.
func serve(ctx context.Context, cfg *config.SimConfig, logger *logging.Logger, maxClients int, ready chan<- string) error {
	sim, err := engine.NewSimulation(cfg, logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Stream.Addr)
	if err != nil {
		return logging.WrapError(err, "failed to listen on %s", cfg.Stream.Addr)
	}

	streamServer := stream.NewServer(maxClients, logger)
	streamServer.Scene = cfg.Scene.Name
	stopForwarding := streamServer.Forward(sim.EventBus)
	defer stopForwarding()

	healthChecker := health.NewHealthChecker()
	healthChecker.AddCheck(health.NewSimulationHealthCheck(sim.IsRunning))
	healthChecker.AddCheck(health.NewStabilityHealthCheck(sim.CheckStability))
	healthChecker.AddCheck(health.NewStreamHealthCheck(func() string { return listener.Addr().String() }))
	healthChecker.AddCheck(health.NewMemoryHealthCheck(memoryLimitMB, nil))

	supervisor := resource.NewSupervisor(ctx, resource.DefaultOptions(), logger)
	healthChecker.AddCheck(resource.NewHealthCheck(supervisor))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", streamServer.HandleWS)
	mux.HandleFunc("/health", healthChecker.LivenessHandler)
	mux.HandleFunc("/ready", healthChecker.ReadinessHandler)

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	tasks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"http", func(context.Context) error {
			if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}},
		{"simulation", sim.Run},
		{"stream", func(ctx context.Context) error {
			err := streamServer.Run(ctx, func() interface{} { return sim.Snapshot() }, cfg.Stream.BroadcastRate)
			if errors.Is(err, stream.ErrServerClosed) {
				return nil
			}
			return err
		}},
	}
	for _, task := range tasks {
		if err := supervisor.Go(task.name, task.fn); err != nil {
			listener.Close()
			supervisor.Shutdown(ctx)
			return err
		}
	}
	if err := supervisor.StartMonitor(); err != nil {
		logger.Warn(ctx, "Resource monitor not started", "error", err)
	}

	logger.Info(ctx, "Serving simulation",
		"address", listener.Addr().String(),
		"scene", cfg.Scene.Name,
		"broadcast_rate", cfg.Stream.BroadcastRate,
	)
	if ready != nil {
		ready <- listener.Addr().String()
	}

	<-supervisor.Done()

	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	streamServer.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "HTTP server shutdown failed", err)
	}
	return supervisor.Shutdown(shutdownCtx)
}
