package protocol

import (
	"time"

	"github.com/conscious-bot/planning-core/internal/types"
)

// Mutator is the dependency C5/C7 inject so the applier can commit effects
// without protocol importing the store package directly.
type Mutator interface {
	GetTask(id string) *types.Task
	SetTask(task *types.Task)
	SetGoalStatus(goalID, status, reason string) error

	// RouteTaskStatusUpdate commits a cross-task update_task_status effect.
	// Spec §4.4's cross-task routing invariant: this must go through C5's
	// updateTaskStatus mutator with origin='protocol' — never a direct
	// SetTask — so the protocol-origin hook suppression applies uniformly
	// regardless of whether the effect targets the originating task or
	// another one.
	RouteTaskStatusUpdate(taskID, status, reason string) error
}

// PartitionSelfHoldEffects splits effects into those that target selfTaskID
// (the task whose own status change produced this reducer result) and those
// that target some other task or goal. Self effects must be folded into the
// same commit that triggered the reducer — never a separate mutator
// round-trip — so a crash between the two can never leave the originating
// task's hold state observably out of sync with its own status write.
//
// Only apply_hold/clear_hold ever land in self (testable property 12):
// update_task_status always runs through the cross-task routing invariant's
// RouteTaskStatusUpdate/protocol-origin path below, even when it happens to
// target the task that produced it, so origin='protocol' hook suppression
// applies uniformly. Effects without a TaskID (pure goal updates) always
// land in remaining.
func PartitionSelfHoldEffects(selfTaskID string, effects []Effect) (self, remaining []Effect) {
	for _, e := range effects {
		if e.TaskID != "" && e.TaskID == selfTaskID && (e.Kind == EffectApplyHold || e.Kind == EffectClearHold) {
			self = append(self, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	return self, remaining
}

// ApplyToTask mutates task in place per effects. Only apply_hold,
// clear_hold, and update_task_status touch a task; update_goal_status and
// noop are no-ops here.
func ApplyToTask(task *types.Task, effects []Effect) {
	for _, e := range effects {
		switch e.Kind {
		case EffectApplyHold:
			if task.Metadata.GoalBinding == nil {
				continue
			}
			task.Metadata.GoalBinding.Hold = &types.Hold{
				Reason:       types.HoldReason(e.HoldReason),
				HeldAt:       time.Now().UTC(),
				NextReviewAt: e.NextReviewAt,
			}
		case EffectClearHold:
			if task.Metadata.GoalBinding != nil {
				task.Metadata.GoalBinding.Hold = nil
			}
		case EffectUpdateTaskStatus:
			task.Status = types.Status(e.Status)
		case EffectUpdateGoalStatus, EffectNoop:
			// not task-local
		}
	}
}

// ApplySyncEffects commits effects via mutator, applying the self-targeted
// subset atomically with a single GetTask/SetTask round-trip before moving
// on to effects targeting other tasks.
func ApplySyncEffects(selfTaskID string, effects []Effect, mutator Mutator) error {
	self, remaining := PartitionSelfHoldEffects(selfTaskID, effects)

	if len(self) > 0 {
		if t := mutator.GetTask(selfTaskID); t != nil {
			ApplyToTask(t, self)
			mutator.SetTask(t)
		}
	}

	for _, e := range remaining {
		switch e.Kind {
		case EffectApplyHold, EffectClearHold:
			t := mutator.GetTask(e.TaskID)
			if t == nil {
				continue
			}
			ApplyToTask(t, []Effect{e})
			mutator.SetTask(t)
		case EffectUpdateTaskStatus:
			if err := mutator.RouteTaskStatusUpdate(e.TaskID, e.Status, e.Reason); err != nil {
				return err
			}
		case EffectUpdateGoalStatus:
			if err := mutator.SetGoalStatus(e.GoalID, e.Status, e.Reason); err != nil {
				return err
			}
		case EffectNoop:
			// nothing to commit
		}
	}
	return nil
}

// ApplyReducerResult commits both halves of a ReducerResult: sync effects
// (partitioned self-first per ApplySyncEffects) and goal-status updates.
func ApplyReducerResult(selfTaskID string, result ReducerResult, mutator Mutator) error {
	if err := ApplySyncEffects(selfTaskID, result.SyncEffects, mutator); err != nil {
		return err
	}
	for _, e := range result.GoalStatusUpdates {
		if err := mutator.SetGoalStatus(e.GoalID, e.Status, e.Reason); err != nil {
			return err
		}
	}
	return nil
}
