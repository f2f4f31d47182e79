// Package app wires together the tick-driven world runtime's components
// and serves the boundary adapters over HTTP: a single entry point that
// builds the logging router, constructs the simulation, starts its loop
// in a goroutine, serves HTTP from another goroutine, and blocks until
// the context is cancelled or the HTTP server fails.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"ticksim/server/internal/broadcast"
	"ticksim/server/internal/lease"
	"ticksim/server/internal/intent"
	"ticksim/server/internal/net/ws"
	"ticksim/server/internal/observation"
	"ticksim/server/internal/sim"
	"ticksim/server/internal/world"
	"ticksim/server/logging"
	loggingSinks "ticksim/server/logging/sinks"
)

// Config bundles the handful of options worth overriding at deploy time,
// loaded from environment variables via os.Getenv + strconv.
type Config struct {
	Addr        string
	World       world.Config
	Sim         sim.Config
	LeaseTTL    time.Duration
}

// DefaultConfig returns reasonable defaults plus a dev-friendly HTTP
// address.
func DefaultConfig() Config {
	return Config{
		Addr:     ":8080",
		World:    world.DefaultConfig(),
		Sim:      sim.DefaultConfig(),
		LeaseTTL: lease.DefaultTTL,
	}
}

func (cfg Config) withEnvOverrides(logger *log.Logger) Config {
	next := cfg
	if raw := os.Getenv("TICK_DURATION_MS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			next.Sim.TickDuration = time.Duration(v) * time.Millisecond
		} else {
			logger.Printf("invalid TICK_DURATION_MS=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("TICK_DEADLINE_MS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			next.Sim.IntentDeadline = time.Duration(v) * time.Millisecond
		} else {
			logger.Printf("invalid TICK_DEADLINE_MS=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("LEASE_TTL_MS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			next.LeaseTTL = time.Duration(v) * time.Millisecond
		} else {
			logger.Printf("invalid LEASE_TTL_MS=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("BROADCAST_QUEUE_DEPTH"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			next.Sim.BroadcastQueueDepth = v
		} else {
			logger.Printf("invalid BROADCAST_QUEUE_DEPTH=%q: %v", raw, err)
		}
	}
	return next
}

// Run constructs every component (A-I), starts the tick scheduler, and
// serves the boundary adapters until ctx is cancelled or the HTTP server
// fails.
func Run(ctx context.Context) error {
	logger := log.Default()

	logConfig := logging.DefaultConfig()
	sinks := map[string]logging.Sink{
		"console": loggingSinks.NewConsole(os.Stdout),
		"memory":  loggingSinks.NewMemory(1024),
	}
	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, logger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	cfg := DefaultConfig().withEnvOverrides(logger)

	w, err := world.New(cfg.World)
	if err != nil {
		return fmt.Errorf("failed to construct world: %w", err)
	}

	leases := lease.NewManager(cfg.LeaseTTL, router)
	queue := intent.NewQueue()
	obsGen := observation.NewGenerator(cfg.Sim.ObservationRadius, cfg.Sim.HearingRadius, router)
	hub := broadcast.NewHub(cfg.Sim.BroadcastQueueDepth, router)
	codec := ws.NewJSONCodec()

	scheduler := sim.New(cfg.Sim, w, leases, queue, obsGen, hub, codec, router)
	scheduler.ShutdownHook = func() {
		logger.Printf("invariant violation detected: exiting")
		os.Exit(1)
	}

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Printf("scheduler stopped: %v", err)
		}
	}()
	defer scheduler.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/agent", ws.AgentHandler(scheduler))
	mux.HandleFunc("/viewer", ws.ViewerHandler(scheduler))

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	logger.Printf("server listening on %s", srv.Addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
