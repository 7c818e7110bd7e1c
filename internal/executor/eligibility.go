package executor

import (
	"fmt"
	"time"

	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/types"
)

const defaultBlockedTTL = 2 * time.Minute

// blockedTTLExempt lists blockedReason values that never auto-fail on TTL.
var blockedTTLExempt = map[string]bool{
	"waiting_on_prereq":    true,
	"infra_error_tripped":  true,
	"max_retries_exceeded": true,
}

// blockedTTLOverrides lists reasons with a TTL other than the 2 minute
// default.
var blockedTTLOverrides = map[string]time.Duration{}

// TaskEligible reports whether task may be picked by the executor: status
// in the active allowlist, no blockedReason, and nextEligibleAt has passed.
func TaskEligible(task *types.Task, now time.Time) bool {
	switch task.Status {
	case types.StatusActive, types.StatusInProgress:
	default:
		return false
	}
	if task.Metadata.BlockedReason != "" {
		return false
	}
	if task.Metadata.NextEligibleAt != nil && task.Metadata.NextEligibleAt.After(now) {
		return false
	}
	return true
}

// ShouldAutoUnblockShadow reports whether a task blocked only because the
// executor was in shadow mode should be unblocked now that mode is live.
func ShouldAutoUnblockShadow(task *types.Task, mode config.ExecutorMode) bool {
	return mode == config.ModeLive && task.Metadata.BlockedReason == "shadow_mode"
}

// BlockedTTLExceeded reports whether a blocked task's TTL has elapsed,
// returning the auto-fail reason string to apply when it has.
func BlockedTTLExceeded(task *types.Task, now time.Time) (bool, string) {
	reason := task.Metadata.BlockedReason
	if reason == "" {
		return false, ""
	}
	if blockedTTLExempt[reason] {
		return false, ""
	}
	if task.Metadata.BlockedAt == nil {
		return false, ""
	}
	ttl := defaultBlockedTTL
	if override, ok := blockedTTLOverrides[reason]; ok {
		ttl = override
	}
	if now.Sub(*task.Metadata.BlockedAt) > ttl {
		return true, fmt.Sprintf("blocked-ttl-exceeded:%s", reason)
	}
	return false, ""
}
