package integration

import (
	"context"
	"log"

	"github.com/conscious-bot/planning-core/internal/protocol"
	"github.com/conscious-bot/planning-core/internal/types"
)

// StatusUpdateOpts configures UpdateTaskStatus.
type StatusUpdateOpts struct {
	// Origin is "runtime" (default, zero value) or "protocol". protocol
	// skips hook firing entirely — it is the re-entrant path C4's applier
	// routes update_task_status effects through.
	Origin types.MutatorOrigin
}

// UpdateTaskStatus commits a status transition (spec §4.5.2). For the
// runtime origin on a goal-bound task, it runs C4's OnTaskStatusChanged
// reducer, partitions and commits self-effects atomically with this write,
// then routes remaining effects back through the applier. Terminal
// transitions trigger episode reporting.
func (c *Coordinator) UpdateTaskStatus(ctx context.Context, id string, next types.Status, opts StatusUpdateOpts) error {
	task := c.store.Get(id)
	if task == nil {
		return nil
	}
	previous := task.Status

	if opts.Origin == types.MutatorProtocol {
		task.Status = next
		c.store.Set(task, nil)
		return nil
	}

	if task.Metadata.GoalBinding == nil {
		task.Status = next
		c.store.Set(task, nil)
		c.maybeReportEpisode(ctx, task, previous, next)
		return nil
	}

	result := protocol.OnTaskStatusChanged(protocol.TaskStateView{
		TaskID: task.ID, Status: task.Status, GoalBinding: task.Metadata.GoalBinding,
	}, protocol.TaskStatusChangedEvent{Previous: previous, Next: next})

	self, remaining := protocol.PartitionSelfHoldEffects(task.ID, result.SyncEffects)
	protocol.ApplyToTask(task, self)
	task.Status = next
	c.store.Set(task, nil)

	if err := protocol.ApplySyncEffects(task.ID, remaining, c); err != nil {
		log.Printf("[INTEGRATION] error applying remaining sync effects for %s: %v", task.ID, err)
		return err
	}
	for _, e := range result.GoalStatusUpdates {
		if err := c.SetGoalStatus(e.GoalID, e.Status, e.Reason); err != nil {
			return err
		}
	}

	c.maybeReportEpisode(ctx, task, previous, next)
	return nil
}

// RouteTaskStatusUpdate implements protocol.Mutator: C4's applier routes
// every cross-task update_task_status effect here rather than writing to
// the store directly, so protocol-origin hook suppression (spec §4.4, §5)
// applies uniformly regardless of which task the reducer's effect targets.
func (c *Coordinator) RouteTaskStatusUpdate(taskID, status, reason string) error {
	_ = reason // carried for audit/log symmetry with the effect; status.go's protocol path does not branch on it
	return c.UpdateTaskStatus(context.Background(), taskID, types.Status(status), StatusUpdateOpts{Origin: types.MutatorProtocol})
}

func (c *Coordinator) maybeReportEpisode(ctx context.Context, task *types.Task, previous, next types.Status) {
	if !next.IsTerminal() {
		return
	}
	outcome := "EXECUTION_FAILURE"
	if next == types.StatusCompleted {
		outcome = "EXECUTION_SUCCESS"
	}
	c.reportEpisode(ctx, task, outcome)
	if next == types.StatusCompleted {
		c.publishLifecycle(task.ID, types.EventCompleted, map[string]any{"previous": string(previous)})
	} else {
		c.publishLifecycle(task.ID, types.EventFailed, map[string]any{"previous": string(previous)})
	}
}
