// Command herdsim runs the cattle herd simulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/cattle-herd/internal/api"
	"github.com/talgya/cattle-herd/internal/config"
	"github.com/talgya/cattle-herd/internal/engine"
	"github.com/talgya/cattle-herd/internal/entropy"
	"github.com/talgya/cattle-herd/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "scenario YAML (defaults when empty)")
	ticks := flag.Int("ticks", 0, "run this many ticks headless and exit (0 = run until signalled)")
	dbPath := flag.String("db", "", "telemetry database (overrides telemetry.path)")
	port := flag.Int("port", 0, "HTTP API port (overrides api.port, -1 disables)")
	flag.Parse()

	if err := run(*configPath, *ticks, *dbPath, *port); err != nil {
		slog.Error("herdsim failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, ticks int, dbPath string, port int) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if cfg.Seed == 0 {
		cfg.Seed = entropy.Resolve(cfg.Seed)
		slog.Info("drew random seed", "seed", cfg.Seed)
	}
	slog.Info("herdsim starting", "config", configPath, "seed", cfg.Seed, "nav", cfg.Nav)

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		return err
	}

	// ── Telemetry ─────────────────────────────────────────────────────
	if dbPath == "" {
		dbPath = cfg.Telemetry.Path
	}
	var db *telemetry.DB
	if dbPath != "" {
		if err := ensureParentDir(dbPath); err != nil {
			return fmt.Errorf("create telemetry dir: %w", err)
		}
		db, err = telemetry.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open telemetry: %w", err)
		}
		defer db.Close()

		raw, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if _, err := db.BeginRun(cfg.Seed, raw); err != nil {
			return err
		}
		slog.Info("telemetry enabled", "path", dbPath)
	}

	eng := engine.NewEngine(cfg.Tick.DT)
	if cfg.Tick.Interval > 0 {
		eng.Interval = cfg.Tick.Interval
	}
	eng.SetSpeed(float64(cfg.Tick.Speed))

	sampleEvery := uint64(cfg.Telemetry.SampleEvery)
	if sampleEvery == 0 {
		sampleEvery = 1
	}
	flush := func(tick uint64) {
		if db == nil {
			return
		}
		if err := db.RecordSamples(tick, sim.AgentStates()); err != nil {
			slog.Error("record samples failed", "tick", tick, "error", err)
		}
		if err := db.RecordEvents(sim.DrainEvents()); err != nil {
			slog.Error("record events failed", "tick", tick, "error", err)
		}
	}

	// Wire tick callbacks.
	eng.OnTick = func(tick uint64) {
		sim.Step(eng.DT)
		if tick%sampleEvery == 0 {
			flush(tick)
		}
	}
	eng.OnSecond = func(tick uint64) {
		st := sim.Status().Stats
		slog.Debug("herd",
			"tick", tick,
			"alive", st.Alive,
			"panicked", st.Panicked,
			"grazing", st.Grazing,
			"avg_fear", fmt.Sprintf("%.1f", st.AvgFear),
		)
	}
	eng.OnMinute = func(tick uint64) {
		st := sim.Status()
		slog.Info("herd summary",
			"sim_time", st.SimTime,
			"alive", st.Stats.Alive,
			"panicked", st.Stats.Panicked,
			"max_fear", fmt.Sprintf("%.1f", st.Stats.MaxFear),
		)
	}

	if ticks > 0 {
		slog.Info("running headless", "ticks", ticks)
		eng.RunFor(ticks)
	} else {
		// ── HTTP API ──────────────────────────────────────────────────
		if port == 0 {
			port = cfg.API.Port
		}
		var apiServer *api.Server
		if port > 0 {
			adminKey := os.Getenv(cfg.API.AdminKeyEnv)
			if adminKey == "" {
				slog.Warn("admin key not set, POST endpoints will be disabled", "env", cfg.API.AdminKeyEnv)
			}
			apiServer = &api.Server{
				Sim:       sim,
				Eng:       eng,
				DB:        db,
				Port:      port,
				AdminKey:  adminKey,
				RateLimit: cfg.API.RateLimit,
			}
			apiServer.Start()
			fmt.Printf("API: http://localhost:%d/api/v1/status\n", port)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			slog.Info("received signal, shutting down", "signal", sig)
			eng.Stop()
		}()

		fmt.Println("Starting simulation... (Ctrl+C to stop)")
		eng.Run()

		if apiServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(ctx); err != nil {
				slog.Error("API shutdown failed", "error", err)
			}
		}
	}

	// Final flush on shutdown.
	if db != nil {
		if err := db.RecordEvents(sim.DrainEvents()); err != nil {
			slog.Error("final event flush failed", "error", err)
		}
		if err := db.SaveMeta("last_tick", strconv.FormatUint(eng.Tick, 10)); err != nil {
			slog.Error("save last tick failed", "error", err)
		}
	}

	st := sim.Status()
	slog.Info("simulation stopped",
		"tick", eng.Tick,
		"sim_time", st.SimTime,
		"alive", st.Stats.Alive,
		"panicked", st.Stats.Panicked,
	)
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
