package integration

import (
	"context"
	"errors"
	"time"

	"github.com/conscious-bot/planning-core/internal/types"
)

// ManagementAction enumerates the user-invoked lifecycle controls covered by
// spec §4.4's "Preconditioning for management actions" and testable
// property 4.
type ManagementAction string

const (
	ManagementPause      ManagementAction = "pause"
	ManagementResume     ManagementAction = "resume"
	ManagementCancel     ManagementAction = "cancel"
	ManagementPrioritize ManagementAction = "prioritize"
)

// ErrInvalidTransition is returned for any management action attempted on a
// task whose status is already terminal (spec §4.4, testable property 4:
// "management pause/resume/cancel/prioritize is rejected with
// invalid_transition" when current status is completed/failed).
var ErrInvalidTransition = errors.New("invalid_transition")

// ManageTask applies a user-invoked management action to task id. Every
// action is rejected with ErrInvalidTransition once the task has reached a
// terminal status. Pause/resume/cancel on a goal-bound task precondition
// the hold change — deep-cloning any pre-existing hold before calling the
// underlying status handler, and rolling the hold back in-memory if that
// handler rejects the transition (spec §4.4).
func (c *Coordinator) ManageTask(ctx context.Context, id string, action ManagementAction, priority *float64) error {
	task := c.store.Get(id)
	if task == nil {
		return nil
	}
	if task.Status.IsTerminal() {
		return ErrInvalidTransition
	}

	switch action {
	case ManagementPrioritize:
		if priority != nil {
			task.Priority = *priority
			c.store.Set(task, nil)
		}
		return nil
	case ManagementPause:
		return c.managePause(ctx, task)
	case ManagementResume:
		return c.manageResume(ctx, task)
	case ManagementCancel:
		return c.manageCancel(ctx, task)
	default:
		return errors.New("unknown management action")
	}
}

// managePause applies the manual_pause hard wall (spec invariant 5: "status
// = paused via user action on a goal-bound task" ⇒ "hold.reason =
// manual_pause") before transitioning status through UpdateTaskStatus, so
// the commit that lands status=paused also carries the hold.
func (c *Coordinator) managePause(ctx context.Context, task *types.Task) error {
	prior := precomputeHold(task, &types.Hold{Reason: types.HoldManualPause, HeldAt: time.Now().UTC()})
	if err := c.UpdateTaskStatus(ctx, task.ID, types.StatusPaused, StatusUpdateOpts{}); err != nil {
		rollbackHold(task, prior)
		return err
	}
	return nil
}

// manageResume is the explicit user-resume path: unlike the goal_resumed
// reducer event (§4.4's hard-wall rule), a user resume always clears the
// hold — manual_pause is "clearable only by explicit user resume/cancel."
func (c *Coordinator) manageResume(ctx context.Context, task *types.Task) error {
	prior := precomputeHold(task, nil)
	if err := c.UpdateTaskStatus(ctx, task.ID, types.StatusPending, StatusUpdateOpts{}); err != nil {
		rollbackHold(task, prior)
		return err
	}
	return nil
}

// manageCancel clears any hold and transitions the task to failed.
func (c *Coordinator) manageCancel(ctx context.Context, task *types.Task) error {
	prior := precomputeHold(task, nil)
	if err := c.UpdateTaskStatus(ctx, task.ID, types.StatusFailed, StatusUpdateOpts{}); err != nil {
		rollbackHold(task, prior)
		return err
	}
	return nil
}

// precomputeHold deep-clones task's current hold (for rollback), sets next
// as the new hold on the in-memory task (the store commit happens in the
// following UpdateTaskStatus call), and returns the clone. A no-op on tasks
// without a goal binding.
func precomputeHold(task *types.Task, next *types.Hold) *types.Hold {
	if task.Metadata.GoalBinding == nil {
		return nil
	}
	prior := task.Metadata.GoalBinding.Hold.Clone()
	task.Metadata.GoalBinding.Hold = next
	return prior
}

func rollbackHold(task *types.Task, prior *types.Hold) {
	if task.Metadata.GoalBinding == nil {
		return
	}
	task.Metadata.GoalBinding.Hold = prior
}
