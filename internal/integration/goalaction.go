package integration

import (
	"context"
	"time"

	"github.com/conscious-bot/planning-core/internal/protocol"
)

// HandleGoalAction is the goal-side ingress for C4's OnGoalAction reducer
// (spec §4.4): preempt/resume/cancel events arriving from the goal source
// for a bound task. The task's live status and goal binding feed the pure
// reducer; the result commits through ApplyReducerResult so self-targeted
// hold effects land atomically with any routed status change, and any
// update_task_status effect re-enters via RouteTaskStatusUpdate with
// origin='protocol' (the cross-task routing invariant applies regardless of
// whether the effect happens to target the same task the event was raised
// for).
func (c *Coordinator) HandleGoalAction(ctx context.Context, taskID string, action protocol.GoalActionKind, nextReviewAt *time.Time) error {
	task := c.store.Get(taskID)
	if task == nil {
		return nil
	}
	result := protocol.OnGoalAction(protocol.TaskStateView{
		TaskID: task.ID, Status: task.Status, GoalBinding: task.Metadata.GoalBinding,
	}, protocol.GoalActionEvent{Action: action, NextReviewAt: nextReviewAt})

	return protocol.ApplyReducerResult(task.ID, result, c)
}
