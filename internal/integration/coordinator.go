package integration

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/conscious-bot/planning-core/internal/bus"
	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/protocol"
	"github.com/conscious-bot/planning-core/internal/store"
	"github.com/conscious-bot/planning-core/internal/types"
)

// metadataAllowlist is the set of metadata keys that survive a task rebuild
// (spec §4.5.1 step 8). Everything else is dropped.
var metadataAllowlist = map[string]bool{
	"origin": true, "goalKey": true, "subtaskKey": true, "taskProvenance": true,
	"reflexInstanceId": true, "goalBinding": true, "sterling": true, "solver": true,
	"blockedReason": true, "blockedAt": true, "parentTaskId": true, "tags": true,
	"category": true, "requirement": true, "nextEligibleAt": true,
}

// Coordinator is C5. It satisfies protocol.Mutator so C4's applier can
// commit effects through it without importing the store directly.
type Coordinator struct {
	store *store.Store
	bus   *bus.Bus
	cfg   *config.Config

	sterling     SterlingExecutor
	macroPlanner MacroPlanner
	domainSolver DomainSolver
	requirements RequirementResolver
	goalUpdater  GoalStatusUpdater

	replanTimers *replanTimers
}

// New constructs a Coordinator. macroPlanner, domainSolver, and goalUpdater
// may be nil — their absence is a valid, spec-covered configuration
// (rig_e_solver_unimplemented, no episode reporting, logged goal updates).
func New(st *store.Store, b *bus.Bus, cfg *config.Config, sterling SterlingExecutor,
	macroPlanner MacroPlanner, domainSolver DomainSolver, requirements RequirementResolver, goalUpdater GoalStatusUpdater) *Coordinator {
	return &Coordinator{
		store: st, bus: b, cfg: cfg,
		sterling: sterling, macroPlanner: macroPlanner, domainSolver: domainSolver,
		requirements: requirements, goalUpdater: goalUpdater,
		replanTimers: newReplanTimers(),
	}
}

// GetTask implements protocol.Mutator.
func (c *Coordinator) GetTask(id string) *types.Task { return c.store.Get(id) }

// SetTask implements protocol.Mutator.
func (c *Coordinator) SetTask(task *types.Task) { c.store.Set(task, nil) }

// SetGoalStatus implements protocol.Mutator.
func (c *Coordinator) SetGoalStatus(goalID, status, reason string) error {
	if c.goalUpdater == nil {
		log.Printf("[INTEGRATION] no goal updater wired, dropping update_goal_status goal=%s status=%s reason=%s", goalID, status, reason)
		return nil
	}
	return c.goalUpdater.UpdateGoalStatus(context.Background(), goalID, status, reason)
}

func newID() string { return uuid.NewString() }

func (c *Coordinator) publishLifecycle(taskID string, eventType types.EventType, detail map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Topic: bus.TopicLifecycleEvent,
		Payload: types.LifecycleEvent{
			Type: eventType, TaskID: taskID, Timestamp: time.Now().UTC(), Detail: detail,
		},
	})
}

func (c *Coordinator) publishTaskAdded(task *types.Task) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Topic: bus.TopicTaskAdded, Payload: types.TaskAdded{Task: task, Timestamp: time.Now().UTC()}})
}

// applyMetadataAllowlist rebuilds metadata keeping only the keys named in
// spec §4.5.1 step 8 — this runs once, on finalization, over the raw
// extension bag a task may have been partially constructed with.
func applyMetadataAllowlist(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if !metadataAllowlist[k] {
			continue
		}
		if k == "goalKey" {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
		}
		out[k] = v
	}
	return out
}
