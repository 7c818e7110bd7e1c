// Package normalizer implements C2, the Action Response Normalizer: a pure
// function that interprets heterogeneous remote payloads from the
// Minecraft action endpoint into a NormalizedActionResponse with hoisted
// diagnostics and deterministic-vs-retryable failure classification.
package normalizer

import (
	"strings"

	"github.com/conscious-bot/planning-core/internal/types"
)

// deterministicPrefixes are code prefixes always classified deterministic.
var deterministicPrefixes = []string{"mapping_", "contract_", "postcondition_"}

// deterministicTerminal is the terminal-set of leaf codes classified
// deterministic regardless of prefix (spec §4.2).
var deterministicTerminal = map[string]struct{}{
	"invalid_input":      {},
	"tool_invalid":       {},
	"missing_ingredient": {},
	"inventory_full":     {},
	"unloaded_chunks":    {},
	"unknown_recipe":     {},
	"unknown_block":      {},
	"unknown_item":       {},
}

// IsDeterministicFailure classifies a failure code as deterministic (true,
// never worth retrying) or retryable (false). Matched against both the full
// code and its dot-suffix (e.g. "acquire.noneCollected" checks both the
// whole string and "noneCollected").
//
// Expectations:
//   - true for any code prefixed mapping_, contract_, postcondition_
//   - true for the terminal set, matched on the full code or its dot-suffix
//   - false for timeout, stuck, busy, acquire.noneCollected, navigate.unreachable
//   - false for an empty or unrecognized code
func IsDeterministicFailure(code string) bool {
	if code == "" {
		return false
	}
	for _, p := range deterministicPrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	if _, ok := deterministicTerminal[code]; ok {
		return true
	}
	if idx := strings.LastIndex(code, "."); idx >= 0 {
		suffix := code[idx+1:]
		if _, ok := deterministicTerminal[suffix]; ok {
			return true
		}
	}
	return false
}

// asMap best-effort type-asserts m[key] to a JSON-object shape.
func asMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	r, ok := v.(map[string]any)
	return r, ok
}

func asBool(m map[string]any, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func asString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// extractError applies the error-extraction order: error string, error.detail,
// error.message, message, then a generic fallback.
func extractError(m map[string]any, generic string) string {
	if s, ok := asString(m, "error"); ok && s != "" {
		return s
	}
	if errObj, ok := asMap(m, "error"); ok {
		if s, ok := asString(errObj, "detail"); ok && s != "" {
			return s
		}
		if s, ok := asString(errObj, "message"); ok && s != "" {
			return s
		}
	}
	if s, ok := asString(m, "message"); ok && s != "" {
		return s
	}
	return generic
}

// extractFailureCode applies the failure-code extraction order: error.code,
// then top-level failureCode.
func extractFailureCode(m map[string]any) string {
	if errObj, ok := asMap(m, "error"); ok {
		if s, ok := asString(errObj, "code"); ok && s != "" {
			return s
		}
	}
	if s, ok := asString(m, "failureCode"); ok {
		return s
	}
	return ""
}

// hoistDiagnostics recognizes three wrapper shapes for toolDiagnostics:
// dispatcher-wrapped (data.leafResult.result.toolDiagnostics), direct leaf
// (result.toolDiagnostics), and legacy (none found). Diagnostics are only
// accepted if the object carries a non-null "version" field.
func hoistDiagnostics(outer map[string]any) map[string]any {
	var candidate map[string]any

	if data, ok := asMap(outer, "data"); ok {
		if leafResult, ok := asMap(data, "leafResult"); ok {
			if result, ok := asMap(leafResult, "result"); ok {
				if diag, ok := asMap(result, "toolDiagnostics"); ok {
					candidate = diag
				}
			}
		}
	}
	if candidate == nil {
		if result, ok := asMap(outer, "result"); ok {
			if diag, ok := asMap(result, "toolDiagnostics"); ok {
				candidate = diag
			}
		}
	}
	if candidate == nil {
		return nil
	}
	if v, ok := candidate["version"]; ok && v != nil {
		return candidate
	}
	return nil
}

// Normalize classifies payload per spec §4.2:
//  1. Empty payload -> ok=false, error="Empty response".
//  2. Transport failure (outer success=false) -> ok=false, error from extraction order.
//  3. Transport success with no leaf payload -> ok=true, data=nil.
//  4. Leaf failure (success=false, OR status='failure', OR error present
//     without explicit success=true/status='success') -> ok=false.
//  5. Otherwise -> ok=true.
func Normalize(payload any) types.NormalizedActionResponse {
	if payload == nil {
		return types.NormalizedActionResponse{OK: false, Error: "Empty response"}
	}
	outer, ok := payload.(map[string]any)
	if !ok || len(outer) == 0 {
		return types.NormalizedActionResponse{OK: false, Error: "Empty response"}
	}

	resp := types.NormalizedActionResponse{}
	resp.ToolDiagnostics = hoistDiagnostics(outer)

	if outerSuccess, has := asBool(outer, "success"); has && !outerSuccess {
		resp.OK = false
		resp.Error = extractError(outer, "Unknown error")
		resp.FailureCode = extractFailureCode(outer)
		if result, ok := asMap(outer, "result"); ok {
			if s, ok := asString(result, "status"); ok {
				resp.LeafStatus = s
			}
		}
		return resp
	}

	result, hasResult := asMap(outer, "result")
	if !hasResult {
		if data, ok := asMap(outer, "data"); ok {
			if leafResult, ok := asMap(data, "leafResult"); ok {
				if r, ok := asMap(leafResult, "result"); ok {
					result = r
					hasResult = true
				}
			}
		}
	}
	if !hasResult {
		resp.OK = true
		resp.Data = nil
		return resp
	}

	leafSuccess, hasLeafSuccess := asBool(result, "success")
	leafStatus, hasLeafStatus := asString(result, "status")
	_, hasErrField := result["error"]

	explicitSuccess := (hasLeafSuccess && leafSuccess) || (hasLeafStatus && leafStatus == "success")
	isFailure := (hasLeafSuccess && !leafSuccess) || (hasLeafStatus && leafStatus == "failure") ||
		(hasErrField && !explicitSuccess)

	if hasLeafStatus {
		resp.LeafStatus = leafStatus
	}
	if errObj, ok := asMap(result, "error"); ok {
		if code, ok := asString(errObj, "code"); ok {
			resp.LeafErrorCode = code
		}
	}

	if isFailure {
		resp.OK = false
		resp.Error = extractError(result, "Unknown error")
		resp.FailureCode = extractFailureCode(result)
		resp.Data = result
		return resp
	}

	resp.OK = true
	resp.Data = result
	return resp
}
