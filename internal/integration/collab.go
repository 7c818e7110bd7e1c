// Package integration implements C5, the Task Integration coordinator: the
// finalization pipeline (addTask), runtime/protocol-aware status updates,
// TTL-anchored metadata merges, the Rig-G feasibility gate, and episode
// reporting. It is thick by design — the spec's own framing — but every
// external capability it needs is a narrow, separately-fakeable interface.
package integration

import "context"

// SterlingExpansion is what the Sterling executor returns for a digest.
type SterlingExpansion struct {
	Status        string // "ok" | "blocked"
	Steps         []ExpandedStep
	BlockedReason string
}

// ExpandedStep is one step materialized by Sterling IR expansion, possibly
// an unresolved intent leaf (type_prefixed "task_type_*").
type ExpandedStep struct {
	ID    string
	Label string
	Leaf  string
	Args  map[string]any
	// IntentStepIndex is set (and Leaf looks like "task_type_*") when this
	// step is an unresolved intent leaf awaiting splice-in replacement.
	IntentStepIndex int
	IsIntent        bool
}

// SterlingExecutor expands a committed IR digest into executable steps and
// resolves leftover intent leaves (task_type_*) into dispatchable steps.
type SterlingExecutor interface {
	ExpandByDigest(ctx context.Context, digest string) (SterlingExpansion, error)
	ResolveIntentSteps(ctx context.Context, req IntentResolutionRequest) (IntentResolutionResult, error)
}

// IntentResolutionRequest asks the Sterling executor to resolve one
// unresolved intent leaf encountered during post-resolution validation
// (spec §4.5.1 step 2).
type IntentResolutionRequest struct {
	Leaf   string
	Args   map[string]any
	TaskID string
}

// IntentResolutionResult is what the Sterling executor returns for one
// intent leaf: either a replacement step list, or a fail-closed reason.
type IntentResolutionResult struct {
	Status string // "ok" | "blocked"
	Steps  []ExpandedStep
	Reason string // blocked_intent_resolution_disabled | _unavailable | blocked_undispatchable_steps
}

// MacroPlanner is the hierarchical (Rig-E) planner consulted for
// navigation/exploration tasks. A nil MacroPlanner means "not configured."
type MacroPlanner interface {
	Plan(ctx context.Context, task TaskView) (PlanResult, error)
}

// PlanResult is what a MacroPlanner returns.
type PlanResult struct {
	Steps      []ExpandedStep
	NoPlanFound bool // rig_e_no_plan_found
	OntologyGap bool // rig_e_ontology_gap
}

// TaskView is the minimal read-only task shape collaborators receive —
// they never get write access to the task under construction.
type TaskView struct {
	Type       string
	Title      string
	Parameters map[string]any
}

// DomainSolver receives terminal-transition episode reports keyed by
// per-domain plan id (spec §4.5.5).
type DomainSolver interface {
	ReportEpisode(ctx context.Context, report EpisodeReport) error
}

// EpisodeReport is the linkage report sent to a domain solver on terminal
// transition.
type EpisodeReport struct {
	TaskID          string
	PlanID          string
	BundleHash      string // omitted (empty) when join keys are incoherent
	TraceBundleHash string
	OutcomeClass    string // EXECUTION_SUCCESS | EXECUTION_FAILURE | richer substrate class
}

// RequirementResolver is the external HTN/GOAP collaborator that attaches
// requirement metadata and drives step generation on the default path.
type RequirementResolver interface {
	Resolve(ctx context.Context, task TaskView) (ResolvedRequirement, error)
}

// ResolvedRequirement is what the requirement resolver attaches.
type ResolvedRequirement struct {
	Requirement map[string]any
	Steps       []ExpandedStep
}

// GoalStatusUpdater is the external goal-source collaborator notified by
// update_goal_status effects. A nil updater degrades to a logged no-op —
// useful for deployments where the goal source lives out of process and
// isn't wired yet.
type GoalStatusUpdater interface {
	UpdateGoalStatus(ctx context.Context, goalID, status, reason string) error
}
