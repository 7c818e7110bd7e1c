// Package protocol implements C4, the Goal-Binding Protocol Engine: pure
// reducers that turn task-state changes and goal-level events into ordered
// synchronization effects, the applier that commits those effects, and the
// hold state machine that backs goal-bound suspension.
package protocol

import "time"

// EffectKind enumerates the effect variants a reducer may emit.
type EffectKind string

const (
	EffectApplyHold       EffectKind = "apply_hold"
	EffectClearHold       EffectKind = "clear_hold"
	EffectUpdateTaskStatus EffectKind = "update_task_status"
	EffectUpdateGoalStatus EffectKind = "update_goal_status"
	EffectNoop            EffectKind = "noop"
)

// Effect is one instruction produced by a reducer. Only the fields relevant
// to Kind are populated.
type Effect struct {
	Kind EffectKind

	TaskID string
	GoalID string

	// apply_hold
	HoldReason   string
	NextReviewAt *time.Time

	// update_task_status / update_goal_status
	Status string
	Reason string
}

// ReducerResult is what every pure reducer returns: ordered effects plus any
// goal-level status updates to apply alongside them.
type ReducerResult struct {
	SyncEffects      []Effect
	GoalStatusUpdates []Effect
}

func noop(reason string) Effect {
	return Effect{Kind: EffectNoop, Reason: reason}
}
