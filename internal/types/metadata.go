package types

import "time"

// OriginKind identifies who finalized a task (stamped exactly once by C5).
type OriginKind string

const (
	OriginAPI          OriginKind = "api"
	OriginCognition    OriginKind = "cognition"
	OriginGoalSource   OriginKind = "goal_source"
	OriginGoalResolver OriginKind = "goal_resolver"
	OriginExecutor     OriginKind = "executor"
)

// MutatorOrigin distinguishes the re-entrancy-control tag on updateTaskStatus
// calls: "runtime" fires hooks/reducers, "protocol" is the C4-routed,
// hook-suppressing path (spec §4.5.2, §5).
type MutatorOrigin string

const (
	MutatorRuntime  MutatorOrigin = "runtime"
	MutatorProtocol MutatorOrigin = "protocol"
)

// Origin is stamped exactly once per task and never mutated after
// finalization (invariant 1).
type Origin struct {
	Kind          OriginKind `json:"kind"`
	Name          string     `json:"name,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ParentTaskID  string     `json:"parentTaskId,omitempty"`
	ParentGoalKey string     `json:"parentGoalKey,omitempty"`
}

// HoldReason is the enumerated (but forward-compatible) reason a goal-bound
// task is suspended. manual_pause is a hard wall (spec §4.4).
type HoldReason string

const (
	HoldManualPause     HoldReason = "manual_pause"
	HoldPreempted       HoldReason = "preempted"
	HoldWaitingOnPrereq HoldReason = "waiting_on_prereq"
)

// Hold records an enforced suspension on a goal-bound task.
type Hold struct {
	Reason       HoldReason `json:"reason"`
	HeldAt       time.Time  `json:"heldAt"`
	ResumeHints  []string   `json:"resumeHints,omitempty"`
	NextReviewAt *time.Time `json:"nextReviewAt,omitempty"`
}

// Clone deep-copies a Hold (nil-safe).
func (h *Hold) Clone() *Hold {
	if h == nil {
		return nil
	}
	cp := *h
	cp.ResumeHints = append([]string(nil), h.ResumeHints...)
	if h.NextReviewAt != nil {
		t := *h.NextReviewAt
		cp.NextReviewAt = &t
	}
	return &cp
}

// GoalBinding associates a task with a higher-level goal instance.
type GoalBinding struct {
	GoalInstanceID string  `json:"goalInstanceId"`
	GoalType       string  `json:"goalType"`
	ProvisionalKey string  `json:"provisionalKey"`
	Verifier       string  `json:"verifier"`
	GoalID         string  `json:"goalId,omitempty"`
	Hold           *Hold   `json:"hold,omitempty"`
}

// Clone deep-copies a GoalBinding (nil-safe), including its Hold.
func (g *GoalBinding) Clone() *GoalBinding {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Hold = g.Hold.Clone()
	return &cp
}

// RigGSignals is the feasibility metadata attached to a plan.
type RigGSignals struct {
	FeasibilityPassed bool     `json:"feasibility_passed"`
	DAGNodeCount      int      `json:"dag_node_count"`
	DAGEdgeCount      int      `json:"dag_edge_count"`
	RejectionKinds    []string `json:"rejection_kinds,omitempty"`
	TopRejectionKind  string   `json:"top_rejection_kind,omitempty"`
}

// RigG is the solver.rigG sub-namespace read by the feasibility gate.
type RigG struct {
	Signals RigGSignals `json:"signals"`
}

// RigGReplan tracks the debounced, idempotent replan-scheduling state.
type RigGReplan struct {
	InFlight bool `json:"inFlight"`
	Attempts int  `json:"attempts"`
}

// JoinKeys correlates an executed episode back to the plan bundle that
// produced it.
type JoinKeys struct {
	PlanID          string `json:"planId"`
	BundleHash      string `json:"bundleHash"`
	TraceBundleHash string `json:"traceBundleHash"`
	SolverID        string `json:"solverId,omitempty"`
}

// Solver is the per-domain plan-id / episode-linkage / Rig-G sub-namespace.
type Solver struct {
	BuildingPlanID string      `json:"buildingPlanId,omitempty"`
	MiningPlanID   string      `json:"miningPlanId,omitempty"`
	CraftingPlanID string      `json:"craftingPlanId,omitempty"`
	NavigationPlanID string    `json:"navigationPlanId,omitempty"`
	JoinKeys       *JoinKeys   `json:"joinKeys,omitempty"`
	RigG           *RigG       `json:"rigG,omitempty"`
	RigGChecked    bool        `json:"rigGChecked"`
	RigGReplan     *RigGReplan `json:"rigGReplan,omitempty"`
	ReplanCount    int         `json:"replanCount"`
	SolveResultSubstrate *SolveResultSubstrate `json:"solveResultSubstrate,omitempty"`
}

// SolveResultSubstrate carries a richer outcome classification that is only
// trusted when it coheres with JoinKeys (matching planId and bundleHash).
type SolveResultSubstrate struct {
	PlanID     string `json:"planId"`
	BundleHash string `json:"bundleHash"`
	Class      string `json:"class"` // e.g. "SEARCH_EXHAUSTED"
}

// Clone deep-copies a Solver (nil-safe).
func (s *Solver) Clone() *Solver {
	if s == nil {
		return nil
	}
	cp := *s
	if s.JoinKeys != nil {
		jk := *s.JoinKeys
		cp.JoinKeys = &jk
	}
	if s.RigG != nil {
		rg := *s.RigG
		rg.Signals.RejectionKinds = append([]string(nil), s.RigG.Signals.RejectionKinds...)
		cp.RigG = &rg
	}
	if s.RigGReplan != nil {
		rr := *s.RigGReplan
		cp.RigGReplan = &rr
	}
	if s.SolveResultSubstrate != nil {
		sub := *s.SolveResultSubstrate
		cp.SolveResultSubstrate = &sub
	}
	return &cp
}

// TaskProvenance records who constructed the task.
type TaskProvenance struct {
	Builder    string `json:"builder"`
	Source     string `json:"source"`
	ActionType string `json:"actionType,omitempty"`
}

// Sterling is the Sterling-IR identity sub-namespace.
type Sterling struct {
	CommittedIRDigest string         `json:"committedIrDigest"`
	SchemaVersion     string         `json:"schemaVersion,omitempty"`
	EnvelopeID        string         `json:"envelopeId,omitempty"`
	DedupeNamespace   string         `json:"dedupeNamespace,omitempty"`
	Exec              map[string]any `json:"exec,omitempty"`
}

// Metadata is the full envelope attached to a task.
type Metadata struct {
	Origin         *Origin         `json:"origin,omitempty"`
	GoalKey        string          `json:"goalKey,omitempty"`
	SubtaskKey     string          `json:"subtaskKey,omitempty"`
	TaskProvenance *TaskProvenance `json:"taskProvenance,omitempty"`
	ReflexInstanceID string        `json:"reflexInstanceId,omitempty"`
	GoalBinding    *GoalBinding    `json:"goalBinding,omitempty"`
	Sterling       *Sterling       `json:"sterling,omitempty"`
	Solver         *Solver         `json:"solver,omitempty"`
	BlockedReason  string          `json:"blockedReason,omitempty"`
	BlockedAt      *time.Time      `json:"blockedAt,omitempty"`
	ParentTaskID   string          `json:"parentTaskId,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Category       string          `json:"category,omitempty"`
	Requirement    map[string]any  `json:"requirement,omitempty"`
	NextEligibleAt *time.Time      `json:"nextEligibleAt,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`

	// ExecutorPlanDigest is sha256(canonicalize(finalSteps)), recomputed on
	// every finalization regardless of whether a splice occurred (spec
	// §4.5.1 step 3) — it is never inherited from the expansion digest.
	ExecutorPlanDigest string `json:"executorPlanDigest,omitempty"`

	// Extensions is a bounded forward-compatibility bag for keys that are not
	// (yet) first-class sub-namespaces. It is never consulted by the
	// propagation allowlist (spec §4.5.1 step 8) — only an enumerated set of
	// keys survives task rebuilds.
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Clone deep-copies Metadata (nil-safe pointers, fresh slices/maps).
func (m Metadata) Clone() Metadata {
	cp := m
	if m.Origin != nil {
		o := *m.Origin
		cp.Origin = &o
	}
	if m.TaskProvenance != nil {
		tp := *m.TaskProvenance
		cp.TaskProvenance = &tp
	}
	cp.GoalBinding = m.GoalBinding.Clone()
	if m.Sterling != nil {
		st := *m.Sterling
		st.Exec = cloneAnyMap(m.Sterling.Exec)
		cp.Sterling = &st
	}
	cp.Solver = m.Solver.Clone()
	if m.BlockedAt != nil {
		t := *m.BlockedAt
		cp.BlockedAt = &t
	}
	cp.Tags = append([]string(nil), m.Tags...)
	cp.Requirement = cloneAnyMap(m.Requirement)
	if m.NextEligibleAt != nil {
		t := *m.NextEligibleAt
		cp.NextEligibleAt = &t
	}
	cp.Extensions = cloneAnyMap(m.Extensions)
	return cp
}
