package protocol

import (
	"time"

	"github.com/conscious-bot/planning-core/internal/types"
)

// TaskStateView is the minimal task slice a reducer needs: its own status
// and the goal binding (if any) governing it.
type TaskStateView struct {
	TaskID      string
	Status      types.Status
	GoalBinding *types.GoalBinding
}

// TaskStatusChangedEvent describes a status transition a reducer reacts to.
type TaskStatusChangedEvent struct {
	Previous types.Status
	Next     types.Status
}

// TaskProgressUpdatedEvent describes a progress-field write.
type TaskProgressUpdatedEvent struct {
	Previous float64
	Next     float64
}

// GoalActionKind enumerates the goal-level events the reducer reacts to.
type GoalActionKind string

const (
	GoalResumed   GoalActionKind = "goal_resumed"
	GoalPreempted GoalActionKind = "goal_preempted"
	GoalCancelled GoalActionKind = "goal_cancelled"
)

// GoalActionEvent describes a goal-level event arriving for a bound task.
type GoalActionEvent struct {
	Action       GoalActionKind
	NextReviewAt *time.Time
}

// OnTaskStatusChanged is the first reducer surface: (current, event) ->
// effects. A transition into a terminal status on a goal-bound task fans
// out an update_goal_status effect so the bound goal tracks task outcome.
func OnTaskStatusChanged(state TaskStateView, event TaskStatusChangedEvent) ReducerResult {
	if state.GoalBinding == nil {
		return ReducerResult{}
	}
	if !event.Next.IsTerminal() {
		return ReducerResult{}
	}
	if state.GoalBinding.GoalID == "" {
		return ReducerResult{}
	}
	goalStatus := "failed"
	if event.Next == types.StatusCompleted {
		goalStatus = "completed"
	}
	return ReducerResult{
		GoalStatusUpdates: []Effect{{
			Kind:   EffectUpdateGoalStatus,
			GoalID: state.GoalBinding.GoalID,
			Status: goalStatus,
			Reason: "task_terminal:" + string(event.Next),
		}},
	}
}

// OnTaskProgressUpdated is the second reducer surface. Progress writes do
// not themselves synchronize hold/goal state in this protocol — the surface
// exists for symmetry with the other two reducers and so a future signal
// (e.g. progress-triggered review) has a single place to live.
func OnTaskProgressUpdated(state TaskStateView, event TaskProgressUpdatedEvent) ReducerResult {
	return ReducerResult{}
}

// OnGoalAction is the third reducer surface: goal-level events arriving for
// a bound task. The hard-wall rule governs goal_resumed: a task whose
// current hold reason is manual_pause produces only a noop — manual_pause
// is clearable only by explicit user resume/cancel, never by goal_resumed.
func OnGoalAction(state TaskStateView, event GoalActionEvent) ReducerResult {
	gb := state.GoalBinding
	switch event.Action {
	case GoalResumed:
		if gb == nil || gb.Hold == nil {
			return ReducerResult{SyncEffects: []Effect{noop("no hold to resume")}}
		}
		if gb.Hold.Reason == types.HoldManualPause {
			return ReducerResult{SyncEffects: []Effect{noop("hard wall: manual_pause cannot be cleared by goal_resumed")}}
		}
		return ReducerResult{SyncEffects: []Effect{
			{Kind: EffectClearHold, TaskID: state.TaskID},
			{Kind: EffectUpdateTaskStatus, TaskID: state.TaskID, Status: string(types.StatusPending), Reason: "goal_resumed"},
		}}

	case GoalPreempted:
		if state.Status.IsTerminal() {
			return ReducerResult{SyncEffects: []Effect{noop("task already terminal, cannot preempt")}}
		}
		return ReducerResult{SyncEffects: []Effect{
			{Kind: EffectApplyHold, TaskID: state.TaskID, HoldReason: string(types.HoldPreempted), NextReviewAt: event.NextReviewAt},
		}}

	case GoalCancelled:
		if state.Status.IsTerminal() {
			return ReducerResult{SyncEffects: []Effect{noop("task already terminal, cannot cancel")}}
		}
		effects := []Effect{}
		if gb != nil && gb.Hold != nil {
			effects = append(effects, Effect{Kind: EffectClearHold, TaskID: state.TaskID})
		}
		effects = append(effects, Effect{Kind: EffectUpdateTaskStatus, TaskID: state.TaskID, Status: string(types.StatusFailed), Reason: "goal_cancelled"})
		return ReducerResult{SyncEffects: effects}

	default:
		return ReducerResult{SyncEffects: []Effect{noop("unrecognized goal action")}}
	}
}
