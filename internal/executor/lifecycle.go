package executor

import (
	"context"
	"log"
	"time"

	"github.com/conscious-bot/planning-core/internal/integration"
	"github.com/conscious-bot/planning-core/internal/types"
)

// LifecycleUpdater lets the executor auto-unblock or auto-fail a blocked
// task before the eligibility filter runs (spec §4.7): "Blocked tasks are
// candidates for auto-fail or auto-unblock before the eligibility filter
// runs." Implemented by C5's Coordinator.
type LifecycleUpdater interface {
	UpdateTaskStatus(ctx context.Context, id string, next types.Status, opts integration.StatusUpdateOpts) error
	UpdateTaskMetadata(id string, patch integration.MetadataPatch)
}

// applyBlockedTaskPolicy runs the auto-unblock and auto-fail TTL policy
// (spec §4.7's "task-eligibility filter" note) over every currently blocked
// task, before TaskEligible is consulted. It is a no-op when lifecycle is
// nil (no coordinator wired, e.g. in narrow unit tests of runCycle alone).
func (s *Supervisor) applyBlockedTaskPolicy(ctx context.Context, now time.Time) {
	if s.lifecycle == nil {
		return
	}
	for _, task := range s.store.GetAll() {
		if task.Metadata.BlockedReason == "" {
			continue
		}
		if ShouldAutoUnblockShadow(task, s.cfg.ExecutorMode) {
			empty := ""
			s.lifecycle.UpdateTaskMetadata(task.ID, integration.MetadataPatch{BlockedReason: &empty})
			continue
		}
		if exceeded, reason := BlockedTTLExceeded(task, now); exceeded {
			s.lifecycle.UpdateTaskMetadata(task.ID, integration.MetadataPatch{
				Extensions: map[string]any{"autoFailReason": reason},
			})
			if err := s.lifecycle.UpdateTaskStatus(ctx, task.ID, types.StatusFailed, integration.StatusUpdateOpts{}); err != nil {
				log.Printf("[EXECUTOR] auto-fail on TTL exceeded failed task=%s: %v", task.ID, err)
			}
		}
	}
}
