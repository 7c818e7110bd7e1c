package integration

import (
	"context"
	"testing"

	"github.com/conscious-bot/planning-core/internal/bus"
	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/store"
	"github.com/conscious-bot/planning-core/internal/types"
)

func TestManageTask_TerminalTaskRejectsEveryAction(t *testing.T) {
	for _, action := range []ManagementAction{ManagementPause, ManagementResume, ManagementCancel, ManagementPrioritize} {
		st := store.New(false)
		c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
		st.Set(&types.Task{ID: "t1", Status: types.StatusCompleted}, nil)

		if err := c.ManageTask(context.Background(), "t1", action, nil); err != ErrInvalidTransition {
			t.Fatalf("action %s: expected ErrInvalidTransition on terminal task, got %v", action, err)
		}
	}
}

func TestManageTask_PauseSetsManualPauseHold(t *testing.T) {
	st := store.New(false)
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{
		ID: "t1", Status: types.StatusActive,
		Metadata: types.Metadata{GoalBinding: &types.GoalBinding{GoalID: "g1"}},
	}, nil)

	if err := c.ManageTask(context.Background(), "t1", ManagementPause, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := st.Get("t1")
	if got.Status != types.StatusPaused {
		t.Fatalf("expected status paused, got %s", got.Status)
	}
	if got.Metadata.GoalBinding.Hold == nil || got.Metadata.GoalBinding.Hold.Reason != types.HoldManualPause {
		t.Fatalf("expected manual_pause hold, got %+v", got.Metadata.GoalBinding.Hold)
	}
}

func TestManageTask_ResumeClearsManualPauseHold(t *testing.T) {
	st := store.New(false)
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{
		ID: "t1", Status: types.StatusPaused,
		Metadata: types.Metadata{GoalBinding: &types.GoalBinding{
			GoalID: "g1", Hold: &types.Hold{Reason: types.HoldManualPause},
		}},
	}, nil)

	if err := c.ManageTask(context.Background(), "t1", ManagementResume, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := st.Get("t1")
	if got.Status != types.StatusPending {
		t.Fatalf("expected status pending, got %s", got.Status)
	}
	if got.Metadata.GoalBinding.Hold != nil {
		t.Fatalf("expected explicit user resume to clear manual_pause hold, got %+v", got.Metadata.GoalBinding.Hold)
	}
}

func TestManageTask_CancelTransitionsToFailedAndClearsHold(t *testing.T) {
	st := store.New(false)
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{
		ID: "t1", Status: types.StatusActive,
		Metadata: types.Metadata{GoalBinding: &types.GoalBinding{
			GoalID: "g1", Hold: &types.Hold{Reason: types.HoldPreempted},
		}},
	}, nil)

	if err := c.ManageTask(context.Background(), "t1", ManagementCancel, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := st.Get("t1")
	if got.Status != types.StatusFailed {
		t.Fatalf("expected status failed, got %s", got.Status)
	}
	if got.Metadata.GoalBinding.Hold != nil {
		t.Fatalf("expected hold cleared on cancel, got %+v", got.Metadata.GoalBinding.Hold)
	}
}

func TestManageTask_PrioritizeUpdatesPriority(t *testing.T) {
	st := store.New(false)
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{ID: "t1", Status: types.StatusActive, Priority: 0.2}, nil)

	p := 0.9
	if err := c.ManageTask(context.Background(), "t1", ManagementPrioritize, &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Get("t1").Priority != 0.9 {
		t.Fatalf("expected priority updated to 0.9, got %v", st.Get("t1").Priority)
	}
}

func TestManageTask_NonGoalBoundTaskPauseResumeStillTransitions(t *testing.T) {
	st := store.New(false)
	c := New(st, bus.New(), &config.Config{}, nil, nil, nil, nil, nil)
	st.Set(&types.Task{ID: "t1", Status: types.StatusActive}, nil)

	if err := c.ManageTask(context.Background(), "t1", ManagementPause, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Get("t1").Status != types.StatusPaused {
		t.Fatalf("expected status paused, got %s", st.Get("t1").Status)
	}
}
