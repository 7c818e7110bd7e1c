// Command planningcore wires C1–C7 into a running process: the task store,
// goal-binding protocol engine, task integration coordinator, execution
// gateway, and the autonomous executor's tick loop. Modeled on the
// teacher's cmd/agsh: load env, build the bus first, construct roles in
// dependency order, start goroutines, wait for shutdown.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/conscious-bot/planning-core/internal/audit"
	"github.com/conscious-bot/planning-core/internal/bus"
	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/executor"
	"github.com/conscious-bot/planning-core/internal/gateway"
	"github.com/conscious-bot/planning-core/internal/integration"
	"github.com/conscious-bot/planning-core/internal/store"
)

// staticBotConnection reports connected, a placeholder until a real bot
// session (e.g. a mineflayer bridge) is wired in.
type staticBotConnection struct{ connected bool }

func (s staticBotConnection) IsConnected() bool { return s.connected }

// allowedLeaves is the executor's leaf allowlist (spec §4.7 guard pipeline
// step 1) — every action type the resolver (C3) can produce.
var allowedLeaves = map[string]struct{}{
	"craft_item":      {},
	"mine_block":      {},
	"gather_resource": {},
	"navigate_to":     {},
	"explore":         {},
}

func main() {
	_ = godotenv.Load(".env")

	homeDir, _ := os.UserHomeDir()
	cacheDir := filepath.Join(homeDir, ".cache", "planningcore")
	_ = os.MkdirAll(cacheDir, 0o755)

	if f, err := os.OpenFile(filepath.Join(cacheDir, "debug.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}

	cfg := config.Load()

	// Build the bus first — every other component either publishes to it or
	// taps it.
	b := bus.New()

	// C1 — task store.
	st := store.New(cfg.StrictFinalize)

	// Audit trail: one append-only JSONL file tapping every lifecycle event
	// on the bus (other bus payloads are not recorded) plus every gateway
	// dispatch.
	trail := audit.Open(filepath.Join(cacheDir, "audit.jsonl"))
	defer trail.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	tapStop := make(chan struct{})
	go trail.Tap(b, tapStop)
	defer close(tapStop)

	// C6 — execution gateway. Endpoint and bot-connection state are
	// deployment-specific; a real build wires a mineflayer bridge here.
	endpoint := os.Getenv("ACTION_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:3000/action"
	}
	bot := staticBotConnection{connected: true}
	gw := gateway.New(cfg, endpoint, bot, trail)

	// C5 — task integration coordinator. External collaborators (Sterling
	// executor, macro planner, domain solver, requirement resolver, goal
	// status updater) are nil until a deployment wires its own; AddTask and
	// friends degrade to their documented fail-closed/no-op paths.
	coord := integration.New(st, b, cfg, nil, nil, nil, nil, nil)

	// C7 — autonomous executor. Position and kill-switch are deployment
	// hooks; nil position means "unknown," which the geofence guard treats
	// fail-closed when the geofence is enabled.
	sup := executor.NewSupervisor(cfg, st, gw, coord, coord, allowedLeaves,
		func() *executor.Position { return nil },
		func() bool { return cfg.EnablePlanningExecutor },
	)
	execCancel := sup.Start(ctx)
	defer execCancel()

	log.Printf("[MAIN] planning-core started, mode=%s executor_enabled=%v", cfg.ExecutorMode, cfg.EnablePlanningExecutor)

	<-ctx.Done()
	log.Printf("[MAIN] shutting down")
	time.Sleep(200 * time.Millisecond)
}
