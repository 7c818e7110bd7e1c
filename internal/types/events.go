package types

import "time"

// EventType enumerates the lifecycle events emitted by the spine (spec §6).
type EventType string

const (
	EventHighPriorityAdded          EventType = "high_priority_added"
	EventCompleted                  EventType = "completed"
	EventFailed                     EventType = "failed"
	EventSolverUnavailable          EventType = "solver_unavailable"
	EventRigGReplanNeeded           EventType = "rig_g_replan_needed"
	EventRigGReplanExhausted        EventType = "rig_g_replan_exhausted"
	EventShadowRigGEvaluation       EventType = "shadow_rig_g_evaluation"
	EventGoalBindingDrift           EventType = "goal_binding_drift"
	EventIntentParamsUnserializable EventType = "intent_params_unserializable"
	EventTaskFinalizeInvariantViolation EventType = "task_finalize_invariant_violation"
)

// LifecycleEvent is the payload for taskLifecycleEvent bus messages.
type LifecycleEvent struct {
	Type      EventType      `json:"type"`
	TaskID    string         `json:"taskId"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// TaskAdded is the payload for the taskAdded event.
type TaskAdded struct {
	Task      *Task     `json:"task"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEntry is the record C6 emits per dispatch attempt (spec §4.6).
type AuditEntry struct {
	Timestamp   time.Time      `json:"ts"`
	Origin      string         `json:"origin"`
	Priority    string         `json:"priority"`
	ActionType  string         `json:"actionType"`
	Mode        string         `json:"mode"`
	OK          bool           `json:"ok"`
	Error       string         `json:"error,omitempty"`
	FailureCode string         `json:"failureCode,omitempty"`
	DurationMs  int64          `json:"durationMs"`
	Context     map[string]any `json:"context,omitempty"`
	ShadowBlocked bool         `json:"shadowBlocked,omitempty"`
}
