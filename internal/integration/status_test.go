package integration

import (
	"context"
	"testing"

	"github.com/conscious-bot/planning-core/internal/bus"
	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/store"
	"github.com/conscious-bot/planning-core/internal/types"
)

type fakeGoalUpdater struct {
	calls []struct{ goalID, status, reason string }
}

func (f *fakeGoalUpdater) UpdateGoalStatus(ctx context.Context, goalID, status, reason string) error {
	f.calls = append(f.calls, struct{ goalID, status, reason string }{goalID, status, reason})
	return nil
}

func TestUpdateTaskStatus_TerminalGoalBoundTask_RoutesGoalStatusUpdate(t *testing.T) {
	st := store.New(false)
	updater := &fakeGoalUpdater{}
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, updater)

	task := &types.Task{
		ID: "t1", Status: types.StatusActive,
		Metadata: types.Metadata{GoalBinding: &types.GoalBinding{GoalID: "g1"}},
	}
	st.Set(task, nil)

	if err := c.UpdateTaskStatus(context.Background(), "t1", types.StatusCompleted, StatusUpdateOpts{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := st.Get("t1")
	if got.Status != types.StatusCompleted {
		t.Fatalf("expected status committed to completed, got %s", got.Status)
	}
	if len(updater.calls) != 1 || updater.calls[0].status != "completed" {
		t.Fatalf("expected one goal status update to completed, got %+v", updater.calls)
	}
}

func TestUpdateTaskStatus_ProtocolOrigin_SkipsHooks(t *testing.T) {
	st := store.New(false)
	updater := &fakeGoalUpdater{}
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, updater)

	task := &types.Task{
		ID: "t2", Status: types.StatusActive,
		Metadata: types.Metadata{GoalBinding: &types.GoalBinding{GoalID: "g2"}},
	}
	st.Set(task, nil)

	if err := c.UpdateTaskStatus(context.Background(), "t2", types.StatusCompleted, StatusUpdateOpts{Origin: types.MutatorProtocol}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updater.calls) != 0 {
		t.Fatalf("expected protocol origin to skip goal status routing, got %+v", updater.calls)
	}
	if st.Get("t2").Status != types.StatusCompleted {
		t.Fatalf("expected status still committed")
	}
}

func TestRouteTaskStatusUpdate_CommitsWithProtocolOrigin(t *testing.T) {
	st := store.New(false)
	updater := &fakeGoalUpdater{}
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, updater)

	task := &types.Task{
		ID: "t4", Status: types.StatusPaused,
		Metadata: types.Metadata{GoalBinding: &types.GoalBinding{GoalID: "g4"}},
	}
	st.Set(task, nil)

	if err := c.RouteTaskStatusUpdate("t4", string(types.StatusCompleted), "goal_cancelled"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Get("t4").Status != types.StatusCompleted {
		t.Fatalf("expected status committed via RouteTaskStatusUpdate, got %s", st.Get("t4").Status)
	}
	// protocol origin must not re-enter the reducer and issue a second goal
	// status update beyond what the caller's own reducer pass already did.
	if len(updater.calls) != 0 {
		t.Fatalf("expected RouteTaskStatusUpdate's protocol origin to skip goal routing, got %+v", updater.calls)
	}
}

func TestUpdateTaskStatus_UnboundTask_NoGoalRouting(t *testing.T) {
	st := store.New(false)
	updater := &fakeGoalUpdater{}
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, updater)

	st.Set(&types.Task{ID: "t3", Status: types.StatusActive}, nil)
	if err := c.UpdateTaskStatus(context.Background(), "t3", types.StatusFailed, StatusUpdateOpts{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updater.calls) != 0 {
		t.Fatalf("expected no goal routing for an unbound task")
	}
	if st.Get("t3").Status != types.StatusFailed {
		t.Fatalf("expected status committed to failed")
	}
}
