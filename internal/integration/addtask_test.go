package integration

import (
	"context"
	"testing"

	"github.com/conscious-bot/planning-core/internal/bus"
	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/store"
	"github.com/conscious-bot/planning-core/internal/types"
)

func newTestCoordinator() (*Coordinator, *store.Store, *FakeSterlingExecutor) {
	st := store.New(false)
	b := bus.New()
	cfg := &config.Config{}
	sterling := NewFakeSterlingExecutor()
	return New(st, b, cfg, sterling, nil, nil, nil, nil), st, sterling
}

func TestAddTask_SterlingIR_OkExpansion(t *testing.T) {
	c, _, sterling := newTestCoordinator()
	sterling.Expansions["digest-1"] = SterlingExpansion{
		Status: "ok",
		Steps: []ExpandedStep{
			{ID: "s0", Leaf: "gather_nearby"},
			{ID: "s1", Leaf: "navigate_to"},
		},
	}

	task, err := c.AddTask(context.Background(), PartialTask{
		Title: "fetch wood", Type: types.TypeSterlingIR, Source: types.SourceAutonomous,
		Metadata: map[string]any{"sterling": &types.Sterling{CommittedIRDigest: "digest-1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != types.StatusPending {
		t.Fatalf("expected pending status, got %s", task.Status)
	}
	if len(task.Steps) != 2 {
		t.Fatalf("expected 2 materialized steps, got %d", len(task.Steps))
	}
	if task.Metadata.ExecutorPlanDigest == "" {
		t.Fatalf("expected executorPlanDigest to be set")
	}
	if task.Metadata.Origin == nil || task.Metadata.Origin.Kind != types.OriginAPI {
		t.Fatalf("expected api origin for autonomous task without cognitive tags or goal binding, got %+v", task.Metadata.Origin)
	}
}

func TestAddTask_SterlingIR_RetriesOnDigestUnknownThenBlocks(t *testing.T) {
	c, _, sterling := newTestCoordinator()
	// digest-2 is never registered -> every call returns blocked_digest_unknown.
	task, err := c.AddTask(context.Background(), PartialTask{
		Title: "mystery task", Type: types.TypeSterlingIR, Source: types.SourceManual,
		Metadata: map[string]any{"sterling": &types.Sterling{CommittedIRDigest: "digest-2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != types.StatusPendingPlanning {
		t.Fatalf("expected pending_planning after retry exhaustion, got %s", task.Status)
	}
	if task.Metadata.BlockedReason != "blocked_digest_unknown" {
		t.Fatalf("expected blocked_digest_unknown, got %q", task.Metadata.BlockedReason)
	}
	if task.Metadata.BlockedAt == nil {
		t.Fatalf("expected blockedAt to be backfilled")
	}
	if sterling.Calls["digest-2"] != 3 {
		t.Fatalf("expected 3 total attempts (1 + 2 retries), got %d", sterling.Calls["digest-2"])
	}
}

func TestAddTask_AdvisoryAction_SkipsStepGeneration(t *testing.T) {
	c, _, _ := newTestCoordinator()
	task, err := c.AddTask(context.Background(), PartialTask{
		Title: "notify player", Type: types.TypeAdvisoryAction, Source: types.SourceManual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(task.Steps) != 0 {
		t.Fatalf("expected no steps for advisory action")
	}
	if task.Metadata.BlockedReason != "advisory_action" {
		t.Fatalf("expected blockedReason=advisory_action, got %q", task.Metadata.BlockedReason)
	}
}

func TestAddTask_Navigation_NoPlannerConfigured_RigESentinel(t *testing.T) {
	c, _, _ := newTestCoordinator()
	task, err := c.AddTask(context.Background(), PartialTask{
		Title: "scout ravine", Type: types.TypeNavigation, Source: types.SourceAutonomous,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != types.StatusPendingPlanning {
		t.Fatalf("expected pending_planning, got %s", task.Status)
	}
	if task.Metadata.BlockedReason != "rig_e_solver_unimplemented" {
		t.Fatalf("expected rig_e_solver_unimplemented, got %q", task.Metadata.BlockedReason)
	}
}

func TestAddTask_MetadataAllowlist_DropsUnknownKeys(t *testing.T) {
	c, _, _ := newTestCoordinator()
	task, err := c.AddTask(context.Background(), PartialTask{
		Title: "general task", Type: types.TypeGeneral, Source: types.SourceManual,
		Metadata: map[string]any{"category": "combat", "notAllowlisted": "should be dropped"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Metadata.Category != "combat" {
		t.Fatalf("expected allowlisted category to survive")
	}
	if task.Metadata.Extensions["notAllowlisted"] != nil {
		t.Fatalf("expected non-allowlisted key to be dropped")
	}
}

func TestAddTask_HighPriority_EmitsLifecycleEvent(t *testing.T) {
	c, _, _ := newTestCoordinator()
	sub := c.bus.Subscribe(bus.TopicLifecycleEvent)

	_, err := c.AddTask(context.Background(), PartialTask{
		Title: "urgent flee", Type: types.TypeGeneral, Source: types.SourceManual, Priority: 0.9,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case ev := <-sub:
		lc, ok := ev.Payload.(types.LifecycleEvent)
		if !ok || lc.Type != types.EventHighPriorityAdded {
			t.Fatalf("expected high_priority_added event, got %+v", ev.Payload)
		}
	default:
		t.Fatalf("expected a lifecycle event to be published")
	}
}

func TestAddTask_GoalSourcedUngatedType_EmitsDriftWithTypeNotGated(t *testing.T) {
	c, _, _ := newTestCoordinator()
	sub := c.bus.Subscribe(bus.TopicLifecycleEvent)

	_, err := c.AddTask(context.Background(), PartialTask{
		Title: "chop wood", Type: types.TypeGeneral, Source: types.SourceGoal,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for {
		select {
		case ev := <-sub:
			lc, ok := ev.Payload.(types.LifecycleEvent)
			if ok && lc.Type == types.EventGoalBindingDrift {
				found = true
				if lc.Detail["reason"] != "type_not_gated:general" {
					t.Fatalf("expected type_not_gated:general, got %+v", lc.Detail)
				}
				if lc.Detail["source"] != "goal" {
					t.Fatalf("expected source=goal, got %+v", lc.Detail)
				}
			}
		default:
			if !found {
				t.Fatalf("expected a goal_binding_drift event to be published")
			}
			return
		}
	}
}

func TestAddTask_GoalSourcedGatedTypeNoPlanner_EmitsDriftWithResolverDisabled(t *testing.T) {
	c, _, _ := newTestCoordinator()
	sub := c.bus.Subscribe(bus.TopicLifecycleEvent)

	_, err := c.AddTask(context.Background(), PartialTask{
		Title: "scout ravine", Type: types.TypeNavigation, Source: types.SourceGoal,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for {
		select {
		case ev := <-sub:
			lc, ok := ev.Payload.(types.LifecycleEvent)
			if ok && lc.Type == types.EventGoalBindingDrift {
				found = true
				if lc.Detail["reason"] != "goal_resolver_disabled" {
					t.Fatalf("expected goal_resolver_disabled, got %+v", lc.Detail)
				}
			}
		default:
			if !found {
				t.Fatalf("expected a goal_binding_drift event to be published")
			}
			return
		}
	}
}

func TestAddTask_GoalSourcedWithBinding_NoDrift(t *testing.T) {
	c, _, _ := newTestCoordinator()
	sub := c.bus.Subscribe(bus.TopicLifecycleEvent)

	_, err := c.AddTask(context.Background(), PartialTask{
		Title: "chop wood", Type: types.TypeGeneral, Source: types.SourceGoal,
		Metadata: map[string]any{"goalBinding": &types.GoalBinding{GoalID: "g1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for {
		select {
		case ev := <-sub:
			if lc, ok := ev.Payload.(types.LifecycleEvent); ok && lc.Type == types.EventGoalBindingDrift {
				t.Fatalf("expected no drift event for a task with a bound goalBinding, got %+v", lc)
			}
		default:
			return
		}
	}
}
