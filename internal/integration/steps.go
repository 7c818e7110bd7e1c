package integration

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/conscious-bot/planning-core/internal/types"
)

const (
	rigGReplanBaseDelay = 5 * time.Second
	rigGReplanMaxAttempts = 3
)

// replanTimers tracks in-flight debounced replan timers keyed by task id.
// Re-entry into StartTaskStep while a timer is already scheduled for a task
// is a no-op (spec §4.5.4) — a mutex-guarded map is enough here, there is
// no pack library for a debounced one-shot scheduler.
type replanTimers struct {
	mu     sync.Mutex
	active map[string]bool
}

func newReplanTimers() *replanTimers { return &replanTimers{active: map[string]bool{}} }

func (r *replanTimers) tryStart(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[taskID] {
		return false
	}
	r.active[taskID] = true
	return true
}

func (r *replanTimers) clear(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, taskID)
}

// StepCommitSnapshot is the advisory decision StartTaskStep returns in
// dry-run mode (spec §4.5.4).
type StepCommitSnapshot struct {
	ShouldProceed        bool
	SuggestedParallelism int
}

// StartTaskStep runs the Rig-G feasibility gate (at most once per task, via
// solver.rigGChecked) and, when the gate clears, marks stepID started.
// StartTaskStepDryRun is the dry-run variant: it evaluates the gate and
// emits shadow_rig_g_evaluation without mutating any state.
func (c *Coordinator) StartTaskStep(ctx context.Context, taskID, stepID string) (bool, error) {
	return c.startTaskStep(ctx, taskID, stepID, false)
}

// StartTaskStepDryRun evaluates the gate without committing (spec §4.5.4
// dryRun=true path) and returns the advisory snapshot.
func (c *Coordinator) StartTaskStepDryRun(ctx context.Context, taskID, stepID string) (StepCommitSnapshot, error) {
	proceed, err := c.startTaskStep(ctx, taskID, stepID, true)
	if err != nil {
		return StepCommitSnapshot{}, err
	}
	task := c.store.Get(taskID)
	parallelism := 1
	if task != nil && task.Metadata.Solver != nil && task.Metadata.Solver.RigG != nil {
		parallelism = suggestedParallelism(task.Metadata.Solver.RigG.Signals)
	}
	return StepCommitSnapshot{ShouldProceed: proceed, SuggestedParallelism: parallelism}, nil
}

func (c *Coordinator) startTaskStep(ctx context.Context, taskID, stepID string, dryRun bool) (bool, error) {
	task := c.store.Get(taskID)
	if task == nil {
		return false, fmt.Errorf("integration: unknown task %s", taskID)
	}

	if task.Metadata.Solver != nil && task.Metadata.Solver.RigG != nil && !task.Metadata.Solver.RigGChecked {
		signals := task.Metadata.Solver.RigG.Signals
		if !signals.FeasibilityPassed {
			if dryRun {
				c.publishLifecycle(taskID, types.EventShadowRigGEvaluation, map[string]any{
					"advice": map[string]any{"shouldProceed": false, "suggestedParallelism": suggestedParallelism(signals)},
				})
				return false, nil
			}
			c.failFeasibility(task, signals)
			return false, nil
		}
		if !dryRun {
			task.Metadata.Solver.RigGChecked = true
			c.store.Set(task, nil)
		}
	}

	if dryRun {
		parallelism := 1
		if task.Metadata.Solver != nil && task.Metadata.Solver.RigG != nil {
			parallelism = suggestedParallelism(task.Metadata.Solver.RigG.Signals)
		}
		c.publishLifecycle(taskID, types.EventShadowRigGEvaluation, map[string]any{
			"advice": map[string]any{"shouldProceed": true, "suggestedParallelism": parallelism},
		})
		return true, nil
	}

	for i := range task.Steps {
		if task.Steps[i].ID == stepID {
			now := time.Now().UTC()
			task.Steps[i].StartedAt = &now
			break
		}
	}
	if task.Status == types.StatusUnplannable {
		c.clearReplanInFlight(task)
	}
	c.store.Set(task, nil)
	return true, nil
}

func suggestedParallelism(s types.RigGSignals) int {
	v := s.DAGNodeCount - s.DAGEdgeCount
	if v < 1 {
		return 1
	}
	return v
}

func (c *Coordinator) failFeasibility(task *types.Task, signals types.RigGSignals) {
	top := signals.TopRejectionKind
	if top == "" && len(signals.RejectionKinds) > 0 {
		top = signals.RejectionKinds[0]
	}
	task.Status = types.StatusUnplannable
	task.Metadata.BlockedReason = fmt.Sprintf("Feasibility failed: %s", top)
	task.Metadata.BlockedAt = nil
	backfillBlockedAt(&task.Metadata)
	c.store.Set(task, nil)
	c.scheduleReplan(task.ID)
}

// scheduleReplan implements the debounced, idempotent replan scheduler
// (spec §4.5.4): re-entry while a timer is already running is a logged
// no-op; exhaustion after 3 attempts emits rig_g_replan_exhausted.
func (c *Coordinator) scheduleReplan(taskID string) {
	if !c.replanTimers.tryStart(taskID) {
		log.Printf("[INTEGRATION] replan already scheduled for %s", taskID)
		return
	}
	go c.runReplanAttempts(taskID, 1)
}

func (c *Coordinator) runReplanAttempts(taskID string, attempt int) {
	delay := rigGReplanBaseDelay * time.Duration(1<<uint(attempt-1))
	time.Sleep(delay)

	task := c.store.Get(taskID)
	if task == nil || task.Status != types.StatusUnplannable {
		c.replanTimers.clear(taskID)
		return
	}

	if attempt >= rigGReplanMaxAttempts {
		c.replanTimers.clear(taskID)
		if task.Metadata.Solver != nil && task.Metadata.Solver.RigGReplan != nil {
			task.Metadata.Solver.RigGReplan.InFlight = false
		}
		c.store.Set(task, nil)
		c.publishLifecycle(taskID, types.EventRigGReplanExhausted, map[string]any{"attempts": attempt})
		return
	}

	c.publishLifecycle(taskID, types.EventRigGReplanNeeded, map[string]any{"attempt": attempt})
	c.runReplanAttempts(taskID, attempt+1)
}

func (c *Coordinator) clearReplanInFlight(task *types.Task) {
	c.replanTimers.clear(task.ID)
	if task.Metadata.Solver != nil && task.Metadata.Solver.RigGReplan != nil {
		task.Metadata.Solver.RigGReplan.InFlight = false
	}
}
