package protocol

import (
	"fmt"

	"github.com/conscious-bot/planning-core/internal/types"
)

// DetectIllegalStates is the observer-snapshot invariant checker: given a
// task's current snapshot, it returns every violated invariant name. It is
// read-only and side-effect free — callers log or audit what comes back,
// they never use it to block a commit in progress.
//
// done_but_not_completed relaxation: a task whose steps are all done (or
// whose progress has reached 1.0) while status is still pending/active is
// NOT flagged here. Postcondition verification runs after the last step
// completes and may still fail it, so "done" does not imply "completed" —
// only the converse direction is an invariant.
func DetectIllegalStates(task *types.Task) []string {
	var violations []string

	if task.Status == types.StatusCompleted {
		for _, s := range task.Steps {
			if !s.Done {
				violations = append(violations, fmt.Sprintf("completed_with_incomplete_step:%s", s.ID))
			}
		}
	}

	if task.Progress < 0 || task.Progress > 1 {
		violations = append(violations, "progress_out_of_bounds")
	}

	if task.Status.IsTerminal() && task.Metadata.GoalBinding != nil && task.Metadata.GoalBinding.Hold != nil {
		violations = append(violations, "terminal_with_active_hold")
	}

	if task.Metadata.Origin == nil {
		violations = append(violations, "missing_origin")
	}

	return violations
}

// GoalBindingDriftReason is the thin summary spec §4.4's drift detector
// emits as goal_binding_drift when a goal-sourced task finalizes without a
// goalBinding attached. Rig-E-gated types (navigation, exploration — the
// class the hierarchical macro planner handles) are the only ones a goal
// resolver is ever expected to bind; any other type was simply never
// eligible (type_not_gated). A gated type reaching finalization unbound
// means the macro planner that would have attached the binding never ran
// (goal_resolver_disabled) — that is the only way a gated type ends up here.
func GoalBindingDriftReason(taskType types.TaskType) string {
	if !isGoalGatedType(taskType) {
		return fmt.Sprintf("type_not_gated:%s", taskType)
	}
	return "goal_resolver_disabled"
}

func isGoalGatedType(t types.TaskType) bool {
	return t == types.TypeNavigation || t == types.TypeExploration
}
