package integration

import (
	"context"
	"testing"

	"github.com/conscious-bot/planning-core/internal/bus"
	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/store"
	"github.com/conscious-bot/planning-core/internal/types"
)

func TestStartTaskStep_NoRigG_CommitsImmediately(t *testing.T) {
	st := store.New(false)
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{ID: "t1", Steps: []types.Step{{ID: "s0"}}}, nil)

	proceed, err := c.StartTaskStep(context.Background(), "t1", "s0")
	if err != nil || !proceed {
		t.Fatalf("expected immediate proceed with no rigG signals, got proceed=%v err=%v", proceed, err)
	}
	if st.Get("t1").Steps[0].StartedAt == nil {
		t.Fatalf("expected step startedAt to be stamped")
	}
}

func TestStartTaskStep_FeasibilityPassed_SetsRigGCheckedOnce(t *testing.T) {
	st := store.New(false)
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{
		ID: "t1", Steps: []types.Step{{ID: "s0"}},
		Metadata: types.Metadata{Solver: &types.Solver{RigG: &types.RigG{Signals: types.RigGSignals{
			FeasibilityPassed: true, DAGNodeCount: 5, DAGEdgeCount: 2,
		}}}},
	}, nil)

	proceed, err := c.StartTaskStep(context.Background(), "t1", "s0")
	if err != nil || !proceed {
		t.Fatalf("expected proceed on feasibility pass, got proceed=%v err=%v", proceed, err)
	}
	if !st.Get("t1").Metadata.Solver.RigGChecked {
		t.Fatalf("expected rigGChecked set true")
	}
}

func TestStartTaskStep_FeasibilityFailed_SetsUnplannable(t *testing.T) {
	st := store.New(false)
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{
		ID: "t1", Steps: []types.Step{{ID: "s0"}},
		Metadata: types.Metadata{Solver: &types.Solver{RigG: &types.RigG{Signals: types.RigGSignals{
			FeasibilityPassed: false, TopRejectionKind: "no_reachable_block",
		}}}},
	}, nil)

	proceed, err := c.StartTaskStep(context.Background(), "t1", "s0")
	if err != nil || proceed {
		t.Fatalf("expected block on failed feasibility, got proceed=%v err=%v", proceed, err)
	}
	got := st.Get("t1")
	if got.Status != types.StatusUnplannable {
		t.Fatalf("expected unplannable status, got %s", got.Status)
	}
	if got.Metadata.BlockedReason != "Feasibility failed: no_reachable_block" {
		t.Fatalf("unexpected blockedReason: %q", got.Metadata.BlockedReason)
	}
	if got.Metadata.BlockedAt == nil {
		t.Fatalf("expected blockedAt anchor set alongside blockedReason")
	}
}

func TestStartTaskStepDryRun_DoesNotMutateState(t *testing.T) {
	st := store.New(false)
	b := bus.New()
	c := New(st, b, &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{
		ID: "t1", Steps: []types.Step{{ID: "s0"}},
		Metadata: types.Metadata{Solver: &types.Solver{RigG: &types.RigG{Signals: types.RigGSignals{
			FeasibilityPassed: true, DAGNodeCount: 4, DAGEdgeCount: 1,
		}}}},
	}, nil)

	sub := b.Subscribe(bus.TopicLifecycleEvent)
	snapshot, err := c.StartTaskStepDryRun(context.Background(), "t1", "s0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snapshot.ShouldProceed || snapshot.SuggestedParallelism != 3 {
		t.Fatalf("expected shouldProceed=true parallelism=3, got %+v", snapshot)
	}

	got := st.Get("t1")
	if got.Metadata.Solver.RigGChecked {
		t.Fatalf("expected dry run not to mutate rigGChecked")
	}
	if got.Steps[0].StartedAt != nil {
		t.Fatalf("expected dry run not to stamp step startedAt")
	}

	select {
	case ev := <-sub:
		lc := ev.Payload.(types.LifecycleEvent)
		if lc.Type != types.EventShadowRigGEvaluation {
			t.Fatalf("expected shadow_rig_g_evaluation event, got %v", lc.Type)
		}
	default:
		t.Fatalf("expected a shadow evaluation event to be published")
	}
}
