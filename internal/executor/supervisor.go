package executor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/gateway"
	"github.com/conscious-bot/planning-core/internal/resolver"
	"github.com/conscious-bot/planning-core/internal/store"
	"github.com/conscious-bot/planning-core/internal/types"
)

// StepCommitter runs the Rig-G feasibility gate (§4.5.4) for a task's next
// step and reports whether the executor may proceed to dispatch it.
type StepCommitter interface {
	StartTaskStep(ctx context.Context, taskID, stepID string) (proceed bool, err error)
}

// PositionSource reports the bot's last-known position, nil when unknown.
type PositionSource func() *Position

// KillSwitch reports whether the executor is currently enabled to run.
type KillSwitch func() bool

// Supervisor is C7: the cooperative, single-threaded autonomous executor
// loop. One tick at a time; no parallel task execution at this layer.
type Supervisor struct {
	cfg           *config.Config
	store         *store.Store
	gw            *gateway.Gateway
	committer     StepCommitter
	lifecycle     LifecycleUpdater
	allowedLeaves map[string]struct{}
	position      PositionSource
	enabled       KillSwitch

	breaker *Breaker
	limiter *RateLimiter

	mu       sync.Mutex
	failures int
	cancel   context.CancelFunc
}

// NewSupervisor constructs a Supervisor. allowedLeaves is the leaf
// allowlist checked by evaluateGuards regardless of mode. lifecycle may be
// nil, in which case the auto-unblock/auto-fail TTL pass (spec §4.7) is
// skipped and only the bare eligibility filter runs.
func NewSupervisor(cfg *config.Config, st *store.Store, gw *gateway.Gateway, committer StepCommitter, lifecycle LifecycleUpdater,
	allowedLeaves map[string]struct{}, position PositionSource, enabled KillSwitch) *Supervisor {
	return &Supervisor{
		cfg:           cfg,
		store:         st,
		gw:            gw,
		committer:     committer,
		lifecycle:     lifecycle,
		allowedLeaves: allowedLeaves,
		position:      position,
		enabled:       enabled,
		breaker:       NewBreaker(),
		limiter:       NewRateLimiter(cfg.MaxStepsPerMinute),
	}
}

// Start launches the tick loop in its own goroutine and returns a cancel
// handle the caller can invoke for an emergency stop. Aborting it cancels
// any in-flight egress and clears the interval; it does not undo remote
// effects already dispatched.
func (s *Supervisor) Start(ctx context.Context) context.CancelFunc {
	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(loopCtx)
	return cancel
}

func (s *Supervisor) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick is one scheduler interval: kill switch, breaker check, one task
// picked and (if all guards pass) dispatched, error backoff on failure.
func (s *Supervisor) tick(ctx context.Context) {
	if s.enabled != nil && !s.enabled() {
		return
	}

	now := time.Now()
	if s.breaker.IsOpen(now) {
		return
	}

	if err := s.runCycle(ctx, now); err != nil {
		log.Printf("[EXECUTOR] runCycle error: %v", err)
		s.breaker.Trip(now)
		s.backoffSleep()
		return
	}
	s.breaker.RecordSuccess()
}

func (s *Supervisor) runCycle(ctx context.Context, now time.Time) error {
	s.applyBlockedTaskPolicy(ctx, now)

	task := s.pickTask(now)
	if task == nil {
		return nil
	}

	step, ok := nextStep(task)
	if !ok {
		return nil
	}

	decision := EvaluateGuards(GuardInput{
		Geofence:      s.cfg.Geofence,
		Position:      s.positionNow(),
		Leaf:          step.Meta.Leaf,
		AllowedLeaves: s.allowedLeaves,
		Mode:          s.cfg.ExecutorMode,
		RateBudget:    s.limiter.Budget(now),
	})

	switch decision {
	case DecisionAwaitRigG:
		return s.commitExecution(ctx, task, step, now)
	case DecisionShadowObserve:
		return nil
	default:
		log.Printf("[EXECUTOR] guard blocked task=%s leaf=%s decision=%s", task.ID, step.Meta.Leaf, decision)
		return nil
	}
}

func (s *Supervisor) commitExecution(ctx context.Context, task *types.Task, step types.Step, now time.Time) error {
	proceed, err := s.committer.StartTaskStep(ctx, task.ID, step.ID)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	action, fail := resolver.Resolve(task)
	if fail != nil {
		log.Printf("[EXECUTOR] resolution failed task=%s code=%s", task.ID, fail.FailureCode)
		return nil
	}

	s.limiter.Record(now)

	resp := s.gw.Execute(ctx, gateway.DispatchRequest{
		Origin:   "executor",
		Priority: "normal",
		Action:   action,
	})
	if !resp.OK {
		log.Printf("[EXECUTOR] dispatch failed task=%s error=%s", task.ID, resp.Error)
	}
	return nil
}

// pickTask scans every stored task and lets TaskEligible apply the
// status/blocked/TTL allowlist (spec §4.7: status ∈ {active, in_progress}).
// No store-side status filter is applied here — GetTasks' Filter.Status
// takes a single status, and narrowing to just StatusActive would silently
// exclude in_progress tasks before TaskEligible ever sees them.
func (s *Supervisor) pickTask(now time.Time) *types.Task {
	for _, task := range s.store.GetTasks(store.Filter{}) {
		if TaskEligible(task, now) {
			return task
		}
	}
	return nil
}

func nextStep(task *types.Task) (types.Step, bool) {
	for _, step := range task.Steps {
		if !step.Done {
			return step, true
		}
	}
	return types.Step{}, false
}

func (s *Supervisor) positionNow() *Position {
	if s.position == nil {
		return nil
	}
	return s.position()
}

func (s *Supervisor) backoffSleep() {
	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.mu.Unlock()

	backoff := 250 * time.Millisecond * time.Duration(1<<uint(failures))
	if backoff > s.cfg.MaxBackoff() {
		backoff = s.cfg.MaxBackoff()
	}
	time.Sleep(backoff)
}
