// Package resolver implements C3, the Task-Action Resolver: it maps a task
// to gateway-ready action parameters using a fixed-precedence source order,
// failing deterministically when no source suffices.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conscious-bot/planning-core/internal/types"
)

// placeholder is the literal value rejected as a placeholder at legacy
// precedence (step 1), causing that source to be treated as absent.
const placeholder = "item"

// domainSpec describes, per task type, the gateway action type, the legacy
// parameter key groups (any one group fully present satisfies legacy
// resolution), and the title-inference regex + primary arg key.
type domainSpec struct {
	actionType  string
	legacyKeys  [][]string // each inner slice: required keys, in output order
	titleRegex  *regexp.Regexp
	titleArgKey string
	permissive  bool // exploration / straight-line move: defaults instead of fail-closed
}

var domains = map[types.TaskType]domainSpec{
	types.TypeCrafting: {
		actionType: "craft_item",
		legacyKeys: [][]string{{"item"}, {"recipe"}},
		titleRegex: regexp.MustCompile(`(?i)^craft\s+(.+)$`),
		titleArgKey: "item",
	},
	types.TypeMining: {
		actionType: "mine_block",
		legacyKeys: [][]string{{"block"}, {"blockType"}},
		titleRegex: regexp.MustCompile(`(?i)^mine\s+(.+)$`),
		titleArgKey: "block",
	},
	types.TypeGathering: {
		actionType: "gather_resource",
		legacyKeys: [][]string{{"resource"}, {"item"}, {"target"}},
		titleRegex: regexp.MustCompile(`(?i)^gather\s+(.+)$`),
		titleArgKey: "resource",
	},
	types.TypeNavigation: {
		actionType: "navigate_to",
		legacyKeys: [][]string{{"target"}, {"position"}, {"destination"}},
		titleRegex: regexp.MustCompile(`(?i)^(?:navigate to|move to|go to)\s+(.+)$`),
		titleArgKey: "target",
		permissive:  true,
	},
	types.TypeExploration: {
		actionType: "explore",
		legacyKeys: [][]string{{"target"}, {"area"}},
		titleRegex: regexp.MustCompile(`(?i)^explore\s*(.*)$`),
		titleArgKey: "target",
		permissive:  true,
	},
}

// normalizeValue lowercases, replaces spaces with underscores, and strips a
// single trailing plural "s" — the title-inference normalization rule.
func normalizeValue(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.TrimSuffix(s, "s")
	return s
}

func failure(category types.FailureCategory, domain, key, reason string, evidence []string) *types.ResolutionFailure {
	return &types.ResolutionFailure{
		Category:    category,
		Reason:      reason,
		FailureCode: fmt.Sprintf("%s:%s:%s", category, domain, key),
		Retryable:   false,
		Evidence:    evidence,
	}
}

// Resolve maps task to a gateway-ready action per spec §4.3's precedence.
func Resolve(task *types.Task) (types.ResolvedAction, *types.ResolutionFailure) {
	var evidence []string

	spec, known := domains[task.Type]
	if !known {
		evidence = append(evidence, fmt.Sprintf("unknown task type %q", task.Type))
		return types.ResolvedAction{}, failure(types.CategoryMappingInvalid, "unknown_type", string(task.Type),
			fmt.Sprintf("no resolver domain registered for type %q", task.Type), evidence)
	}

	// 1. Legacy fields on task.parameters.
	if action, ok := tryLegacy(task, spec, &evidence); ok {
		return action, nil
	}

	// 2. task.parameters.requirementCandidate.outputPattern + quantity.
	if action, ok := tryRequirementCandidate(task, spec, &evidence); ok {
		return action, nil
	}

	// 3. task.steps[0].meta.args domain keys.
	if action, ok := tryStepMetaArgs(task, spec, &evidence); ok {
		return action, nil
	}

	// 4. Title inference.
	if action, ok := tryTitleInference(task, spec, &evidence); ok {
		return action, nil
	}

	if spec.permissive {
		evidence = append(evidence, "permissive domain: falling back to defaults")
		return types.ResolvedAction{
			Type: spec.actionType,
			Parameters: map[string]any{
				"target":   "random",
				"radius":   32,
				"distance": 1,
			},
			ResolvedFrom: types.ResolvedInferred,
			Evidence:     evidence,
		}, nil
	}

	return types.ResolvedAction{}, failure(types.CategoryMappingMissing, string(task.Type), firstLegacyKey(spec),
		fmt.Sprintf("no source satisfied resolution for type %q", task.Type), evidence)
}

func firstLegacyKey(spec domainSpec) string {
	if len(spec.legacyKeys) == 0 || len(spec.legacyKeys[0]) == 0 {
		return "unknown"
	}
	return spec.legacyKeys[0][0]
}

func tryLegacy(task *types.Task, spec domainSpec, evidence *[]string) (types.ResolvedAction, bool) {
	if task.Parameters == nil {
		*evidence = append(*evidence, "legacy: task.parameters absent")
		return types.ResolvedAction{}, false
	}
	for _, group := range spec.legacyKeys {
		key := group[0]
		val, present := task.Parameters[key]
		if !present {
			*evidence = append(*evidence, fmt.Sprintf("legacy: %s absent", key))
			continue
		}
		sval, isStr := val.(string)
		if isStr && sval == placeholder {
			*evidence = append(*evidence, fmt.Sprintf("legacy: %s is placeholder value %q, skipped", key, placeholder))
			continue
		}
		params := map[string]any{key: val}
		if q, ok := task.Parameters["quantity"]; ok {
			params["quantity"] = q
		}
		*evidence = append(*evidence, fmt.Sprintf("legacy: %s=%v satisfied resolution", key, val))
		return types.ResolvedAction{
			Type:         spec.actionType,
			Parameters:   params,
			ResolvedFrom: types.ResolvedLegacy,
			Evidence:     append([]string(nil), *evidence...),
		}, true
	}
	return types.ResolvedAction{}, false
}

func tryRequirementCandidate(task *types.Task, spec domainSpec, evidence *[]string) (types.ResolvedAction, bool) {
	rc, ok := task.Parameters["requirementCandidate"].(map[string]any)
	if !ok {
		*evidence = append(*evidence, "requirementCandidate: absent")
		return types.ResolvedAction{}, false
	}
	pattern, ok := rc["outputPattern"].(string)
	if !ok || pattern == "" || pattern == placeholder {
		*evidence = append(*evidence, "requirementCandidate: outputPattern absent or placeholder")
		return types.ResolvedAction{}, false
	}
	params := map[string]any{spec.titleArgKey: pattern}
	if q, ok := rc["quantity"]; ok {
		params["quantity"] = q
	}
	*evidence = append(*evidence, fmt.Sprintf("requirementCandidate: outputPattern=%q satisfied resolution", pattern))
	return types.ResolvedAction{
		Type:         spec.actionType,
		Parameters:   params,
		ResolvedFrom: types.ResolvedRequirementCandidate,
		Evidence:     append([]string(nil), *evidence...),
	}, true
}

func tryStepMetaArgs(task *types.Task, spec domainSpec, evidence *[]string) (types.ResolvedAction, bool) {
	if len(task.Steps) == 0 {
		*evidence = append(*evidence, "stepMetaArgs: no steps present")
		return types.ResolvedAction{}, false
	}
	args := task.Steps[0].Meta.Args
	if args == nil {
		*evidence = append(*evidence, "stepMetaArgs: steps[0].meta.args absent")
		return types.ResolvedAction{}, false
	}
	for _, group := range spec.legacyKeys {
		key := group[0]
		val, present := args[key]
		if !present {
			continue
		}
		if sval, isStr := val.(string); isStr && sval == placeholder {
			continue
		}
		params := map[string]any{key: val}
		if q, ok := args["quantity"]; ok {
			params["quantity"] = q
		}
		*evidence = append(*evidence, fmt.Sprintf("stepMetaArgs: %s=%v satisfied resolution", key, val))
		return types.ResolvedAction{
			Type:         spec.actionType,
			Parameters:   params,
			ResolvedFrom: types.ResolvedStepMetaArgs,
			Evidence:     append([]string(nil), *evidence...),
		}, true
	}
	*evidence = append(*evidence, "stepMetaArgs: no domain key present in steps[0].meta.args")
	return types.ResolvedAction{}, false
}

func tryTitleInference(task *types.Task, spec domainSpec, evidence *[]string) (types.ResolvedAction, bool) {
	m := spec.titleRegex.FindStringSubmatch(strings.TrimSpace(task.Title))
	if m == nil {
		*evidence = append(*evidence, fmt.Sprintf("titleInference: title %q did not match domain pattern", task.Title))
		return types.ResolvedAction{}, false
	}
	raw := strings.TrimSpace(m[1])
	if raw == "" {
		*evidence = append(*evidence, "titleInference: matched pattern but captured empty target")
		return types.ResolvedAction{}, false
	}
	normalized := normalizeValue(raw)
	*evidence = append(*evidence, fmt.Sprintf("titleInference: title %q -> %s=%s", task.Title, spec.titleArgKey, normalized))
	return types.ResolvedAction{
		Type:         spec.actionType,
		Parameters:   map[string]any{spec.titleArgKey: normalized},
		ResolvedFrom: types.ResolvedInferred,
		Evidence:     append([]string(nil), *evidence...),
	}, true
}
