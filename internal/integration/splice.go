package integration

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/conscious-bot/planning-core/internal/protocol"
	"github.com/conscious-bot/planning-core/internal/types"
)

// Replacement is a resolved-step substitution keyed by the index of the
// intent leaf it replaces in the original expansion.
type Replacement struct {
	IntentStepIndex int
	Steps           []types.Step
}

// spliceIntentSteps walks original in order, substituting each intent step
// by its resolved replacement steps (first replacement wins on a duplicate
// index), keeping unresolved intents in place, and preserving every
// non-intent step untouched (spec §4.5.1 step 3, scenario S6).
func spliceIntentSteps(original []ExpandedStep, replacements []Replacement) (final []types.Step, allResolved bool) {
	byIndex := map[int]Replacement{}
	for _, r := range replacements {
		if _, exists := byIndex[r.IntentStepIndex]; !exists {
			byIndex[r.IntentStepIndex] = r
		}
	}

	allResolved = true
	order := 0
	for i, step := range original {
		if step.IsIntent {
			if r, ok := byIndex[i]; ok {
				for _, s := range r.Steps {
					s.Order = order
					order++
					final = append(final, s)
				}
				continue
			}
			allResolved = false
		}
		final = append(final, types.Step{
			ID: step.ID, Label: step.Label, Order: order,
			Meta: types.StepMeta{Leaf: step.Leaf, Args: step.Args, Executable: step.Leaf != ""},
		})
		order++
	}
	return final, allResolved
}

// digestSteps computes executorPlanDigest = sha256(canonicalize(finalSteps)).
func digestSteps(steps []types.Step) string {
	asAny := make([]any, len(steps))
	for i, s := range steps {
		asAny[i] = map[string]any{
			"id": s.ID, "label": s.Label, "order": s.Order,
			"leaf": s.Meta.Leaf, "args": s.Meta.Args,
		}
	}
	canonical, _, _ := protocol.CanonicalizeAny(asAny)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
