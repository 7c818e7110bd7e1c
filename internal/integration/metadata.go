package integration

import (
	"log"
	"time"
)

// MetadataPatch is the caller-supplied set of fields to merge (spec §4.5.3).
// Only the fields that are non-nil/non-empty are considered "set" by this
// patch — the zero value of a field means "leave unchanged," not "clear."
type MetadataPatch struct {
	BlockedReason *string
	BlockedAt     *time.Time
	Tags          []string
	Category      *string
	NextEligibleAt *time.Time

	// Extensions merges keys into metadata.extensions — the bounded
	// forward-compatibility bag (spec §9), e.g. a TTL auto-fail's
	// "blocked-ttl-exceeded:<originalReason>" diagnostic.
	Extensions map[string]any

	// Origin is ignored with a warning if present — origin is stamped once
	// at finalization and never mutated by a metadata patch.
	Origin any
}

// UpdateTaskMetadata merges patch into task id's metadata under the
// TTL-anchor rules in spec §4.5.3.
func (c *Coordinator) UpdateTaskMetadata(id string, patch MetadataPatch) {
	task := c.store.Get(id)
	if task == nil {
		return
	}

	if patch.Origin != nil {
		log.Printf("[INTEGRATION] ignoring origin key in metadata patch for %s", id)
	}

	if patch.BlockedReason != nil {
		reason := *patch.BlockedReason
		wasBlocked := task.Metadata.BlockedReason != ""
		sameReason := task.Metadata.BlockedReason == reason

		switch {
		case reason == "":
			// clearing blockedReason clears its anchor too — blockedReason
			// present iff blockedAt present (spec invariant 2).
			task.Metadata.BlockedAt = nil
		case patch.BlockedAt != nil:
			// explicit caller-provided blockedAt always wins.
			at := *patch.BlockedAt
			task.Metadata.BlockedAt = &at
		case !wasBlocked || !sameReason:
			now := time.Now().UTC()
			task.Metadata.BlockedAt = &now
		default:
			// same reason re-applied: preserve the existing anchor.
		}
		task.Metadata.BlockedReason = reason
	} else if patch.BlockedAt != nil {
		at := *patch.BlockedAt
		task.Metadata.BlockedAt = &at
	}

	if patch.Tags != nil {
		task.Metadata.Tags = patch.Tags
	}
	if patch.Category != nil {
		task.Metadata.Category = *patch.Category
	}
	if patch.NextEligibleAt != nil {
		task.Metadata.NextEligibleAt = patch.NextEligibleAt
	}
	if patch.Extensions != nil {
		if task.Metadata.Extensions == nil {
			task.Metadata.Extensions = map[string]any{}
		}
		for k, v := range patch.Extensions {
			task.Metadata.Extensions[k] = v
		}
	}

	c.store.Set(task, nil)
}
