package integration

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/conscious-bot/planning-core/internal/protocol"
	"github.com/conscious-bot/planning-core/internal/store"
	"github.com/conscious-bot/planning-core/internal/types"
)

// maxIngestRetries bounds the Sterling ingest retry loop: up to 2 retries,
// 3 attempts total (spec §4.5.1 step 1).
const maxIngestRetries = 2

// PartialTask is the caller-supplied shape AddTask finalizes into a Task.
type PartialTask struct {
	Title      string
	Type       types.TaskType
	Source     types.Source
	Priority   float64
	Urgency    float64
	Parameters map[string]any
	Metadata   map[string]any // raw bag, filtered through the allowlist on commit
}

// AddTask runs the finalization pipeline (spec §4.5.1): Sterling IR ingest or
// requirement resolution, intent-step splice, Rig-E sentinel, dedup,
// metadata allowlisting, origin stamping, blocked-pair backfill, and
// lifecycle event emission.
func (c *Coordinator) AddTask(ctx context.Context, partial PartialTask) (*types.Task, error) {
	task := &types.Task{
		ID: newID(), Title: partial.Title, Type: partial.Type, Source: partial.Source,
		Priority: partial.Priority, Urgency: partial.Urgency, Parameters: partial.Parameters,
		Status: types.StatusPending,
	}
	task.Metadata = c.rebuildMetadata(partial.Metadata)

	switch {
	case partial.Type == types.TypeSterlingIR:
		c.ingestSterling(ctx, task)
	case partial.Type == types.TypeAdvisoryAction:
		task.Metadata.BlockedReason = "advisory_action"
		task.Metadata.Extensions = setExtension(task.Metadata.Extensions, "noStepsReason", "advisory-skip")
	case partial.Type == types.TypeNavigation || partial.Type == types.TypeExploration:
		c.planMacro(ctx, task)
	default:
		c.resolveRequirement(ctx, task)
	}

	if dup := c.findDuplicate(task); dup != nil {
		return dup, nil
	}

	c.stampOrigin(task)
	c.detectGoalBindingDrift(task)
	backfillBlockedAt(&task.Metadata)

	c.store.Set(task, nil)
	c.publishTaskAdded(task)
	if task.Priority >= 0.8 {
		c.publishLifecycle(task.ID, types.EventHighPriorityAdded, map[string]any{"priority": task.Priority})
	}
	return task, nil
}

// ingestSterling runs the Sterling IR pathway: expandByDigest with bounded
// retry on blocked_digest_unknown, then post-resolution intent-step
// validation and splice.
func (c *Coordinator) ingestSterling(ctx context.Context, task *types.Task) {
	digest := ""
	if task.Metadata.Sterling != nil {
		digest = task.Metadata.Sterling.CommittedIRDigest
	}
	if digest == "" || c.sterling == nil {
		blockTask(task, "blocked_sterling_unconfigured")
		return
	}

	attempts := 0
	operation := func() (SterlingExpansion, error) {
		attempts++
		exp, err := c.sterling.ExpandByDigest(ctx, digest)
		if err != nil {
			return SterlingExpansion{}, backoff.Permanent(err)
		}
		if exp.Status == "blocked" && exp.BlockedReason == "blocked_digest_unknown" {
			return SterlingExpansion{}, fmt.Errorf("blocked_digest_unknown")
		}
		return exp, nil
	}

	exp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxIngestRetries+1),
	)

	task.Metadata.Extensions = setExtension(task.Metadata.Extensions, "expansionMode", "ingest")
	task.Metadata.Extensions = setExtension(task.Metadata.Extensions, "ingestRetryCount", attempts-1)

	if err != nil || exp.Status != "ok" {
		reason := exp.BlockedReason
		if reason == "" {
			reason = "blocked_digest_unknown"
		}
		blockTask(task, reason)
		return
	}

	c.spliceAndCommit(task, exp.Steps)
}

// planMacro runs the Rig-E blocking sentinel for navigation/exploration
// tasks (spec §4.5.1 step 4): no configured planner is a hard block that is
// never overwritten by a generic no-plan heuristic.
func (c *Coordinator) planMacro(ctx context.Context, task *types.Task) {
	if c.macroPlanner == nil {
		blockTask(task, "rig_e_solver_unimplemented")
		c.publishLifecycle(task.ID, types.EventSolverUnavailable, map[string]any{"taskType": string(task.Type)})
		return
	}
	result, err := c.macroPlanner.Plan(ctx, TaskView{Type: string(task.Type), Title: task.Title, Parameters: task.Parameters})
	if err != nil {
		blockTask(task, "rig_e_solver_unimplemented")
		return
	}
	switch {
	case result.NoPlanFound:
		blockTask(task, "rig_e_no_plan_found")
	case result.OntologyGap:
		blockTask(task, "rig_e_ontology_gap")
	default:
		c.spliceAndCommit(task, result.Steps)
	}
}

// resolveRequirement runs the default requirement-resolution path (spec
// §4.5.1 step 6).
func (c *Coordinator) resolveRequirement(ctx context.Context, task *types.Task) {
	if c.requirements == nil {
		return
	}
	resolved, err := c.requirements.Resolve(ctx, TaskView{Type: string(task.Type), Title: task.Title, Parameters: task.Parameters})
	if err != nil {
		log.Printf("[INTEGRATION] requirement resolver error for %s: %v", task.ID, err)
		return
	}
	task.Metadata.Requirement = resolved.Requirement
	c.spliceAndCommit(task, resolved.Steps)
}

// spliceAndCommit runs post-resolution intent validation and the splice
// algorithm (spec §4.5.1 steps 2–3), writing the final steps and
// executorPlanDigest onto task.
func (c *Coordinator) spliceAndCommit(task *types.Task, expanded []ExpandedStep) {
	hasIntents := false
	for _, step := range expanded {
		if step.IsIntent {
			hasIntents = true
			break
		}
	}
	if hasIntents && c.sterling == nil {
		blockTask(task, "blocked_intent_resolution_disabled")
		return
	}

	var offenders []string
	var replacements []Replacement
	anyUnresolved := false

	for i, step := range expanded {
		if !step.IsIntent {
			continue
		}
		res, err := c.sterling.ResolveIntentSteps(context.Background(), IntentResolutionRequest{Leaf: step.Leaf, Args: step.Args, TaskID: task.ID})
		if err != nil {
			blockTask(task, "blocked_intent_resolution_unavailable")
			return
		}
		if res.Status != "ok" {
			if res.Reason == "blocked_intent_resolution_unavailable" {
				blockTask(task, res.Reason)
				return
			}
			anyUnresolved = true
			continue
		}
		if len(res.Steps) == 0 {
			offenders = append(offenders, step.ID)
			continue
		}
		steps := make([]types.Step, len(res.Steps))
		for j, rs := range res.Steps {
			steps[j] = types.Step{ID: rs.ID, Label: rs.Label, Meta: types.StepMeta{Leaf: rs.Leaf, Args: rs.Args, Executable: rs.Leaf != ""}}
		}
		replacements = append(replacements, Replacement{IntentStepIndex: i, Steps: steps})
	}

	if len(offenders) > 0 {
		blockTask(task, "blocked_undispatchable_steps")
		task.Metadata.Extensions = setExtension(task.Metadata.Extensions, "undispatchableSteps", offenders)
		return
	}

	final, allResolved := spliceIntentSteps(expanded, replacements)
	task.Steps = final
	task.Metadata.ExecutorPlanDigest = digestSteps(final)

	if !allResolved && anyUnresolved {
		blockTask(task, "blocked_unresolved_intents")
	}
}

// findDuplicate runs spec §4.5.1 step 7's dedup pass.
func (c *Coordinator) findDuplicate(task *types.Task) *types.Task {
	partial := store.FindSimilarPartial{Title: task.Title, Type: task.Type, Source: task.Source}
	if task.Metadata.Sterling != nil {
		partial.StickyIRDigest = task.Metadata.Sterling.CommittedIRDigest
	}
	if task.Metadata.Sterling != nil && task.Metadata.Sterling.CommittedIRDigest != "" {
		if !c.store.ReserveDedupeKey(task.Metadata.Sterling.CommittedIRDigest) {
			return c.store.FindByDedupeKey(task.Metadata.Sterling.CommittedIRDigest)
		}
	}
	return c.store.FindSimilar(partial)
}

// stampOrigin implements the origin inference in spec §4.5.1 step 9.
func (c *Coordinator) stampOrigin(task *types.Task) {
	if task.Metadata.Origin != nil {
		return
	}
	var kind types.OriginKind
	switch {
	case task.Metadata.GoalBinding != nil:
		kind = types.OriginGoalResolver
	case task.Source == types.SourceGoal:
		kind = types.OriginGoalSource
	case task.Source == types.SourceAutonomous && hasCognitiveTag(task.Metadata.Tags):
		kind = types.OriginCognition
	case task.Metadata.ParentTaskID != "":
		kind = types.OriginExecutor
	default:
		kind = types.OriginAPI
	}
	// The switch above always assigns kind via its default arm, so origin is
	// unconditionally set here — AddTask can never reach store.Set without
	// one. Store.Set's own strict-finalize tripwire (internal/store) is what
	// catches any other code path into the store that bypasses this stamp.
	task.Metadata.Origin = &types.Origin{Kind: kind, CreatedAt: time.Now().UTC(), ParentTaskID: task.Metadata.ParentTaskID}
}

// detectGoalBindingDrift implements spec §4.4's drift detector at
// finalization: a goal-sourced task with no goalBinding attached means goal
// resolution and task creation have desynchronized. Emits goal_binding_drift
// with the spec's thin summary; a no-op for every other task.
func (c *Coordinator) detectGoalBindingDrift(task *types.Task) {
	if task.Source != types.SourceGoal || task.Metadata.GoalBinding != nil {
		return
	}
	var originKind types.OriginKind
	if task.Metadata.Origin != nil {
		originKind = task.Metadata.Origin.Kind
	}
	reason := protocol.GoalBindingDriftReason(task.Type)
	c.publishLifecycle(task.ID, types.EventGoalBindingDrift, map[string]any{
		"id":         task.ID,
		"type":       string(task.Type),
		"source":     string(task.Source),
		"originKind": string(originKind),
		"reason":     reason,
	})
}

func hasCognitiveTag(tags []string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, "cognition") || strings.EqualFold(t, "cognitive") {
			return true
		}
	}
	return false
}

// backfillBlockedAt implements spec §4.5.1 step 10: blockedAt anchors to the
// metadata timestamp at the moment blockedReason was set, never "now", so a
// TTL clock is not silently extended by this safety net.
func backfillBlockedAt(m *types.Metadata) {
	if m.BlockedReason == "" || m.BlockedAt != nil {
		return
	}
	anchor := m.UpdatedAt
	if anchor.IsZero() {
		anchor = time.Now().UTC()
	}
	m.BlockedAt = &anchor
}

func blockTask(task *types.Task, reason string) {
	task.Status = types.StatusPendingPlanning
	task.Metadata.BlockedReason = reason
}

// rebuildMetadata runs the allowlist filter (spec §4.5.1 step 8) over a raw
// caller-supplied metadata bag, producing a Metadata envelope with only the
// enumerated sub-namespaces populated.
func (c *Coordinator) rebuildMetadata(raw map[string]any) types.Metadata {
	filtered := applyMetadataAllowlist(raw)
	m := types.Metadata{}
	if v, ok := filtered["goalKey"].(string); ok {
		m.GoalKey = v
	}
	if v, ok := filtered["subtaskKey"].(string); ok {
		m.SubtaskKey = v
	}
	if v, ok := filtered["parentTaskId"].(string); ok {
		m.ParentTaskID = v
	}
	if v, ok := filtered["reflexInstanceId"].(string); ok {
		m.ReflexInstanceID = v
	}
	if v, ok := filtered["category"].(string); ok {
		m.Category = v
	}
	if v, ok := filtered["tags"].([]string); ok {
		m.Tags = v
	}
	if v, ok := filtered["goalBinding"].(*types.GoalBinding); ok {
		m.GoalBinding = v
	}
	if v, ok := filtered["sterling"].(*types.Sterling); ok {
		m.Sterling = v
	}
	if v, ok := filtered["solver"].(*types.Solver); ok {
		m.Solver = v
	}
	if v, ok := filtered["taskProvenance"].(*types.TaskProvenance); ok {
		m.TaskProvenance = v
	}
	if v, ok := filtered["requirement"].(map[string]any); ok {
		m.Requirement = v
	}
	m.UpdatedAt = time.Now().UTC()
	return m
}

func setExtension(ext map[string]any, key string, value any) map[string]any {
	if ext == nil {
		ext = map[string]any{}
	}
	ext[key] = value
	return ext
}
