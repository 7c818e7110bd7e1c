package normalizer

import "testing"

func TestNormalize_EmptyPayload(t *testing.T) {
	got := Normalize(nil)
	if got.OK || got.Error != "Empty response" {
		t.Fatalf("expected empty-response failure, got %+v", got)
	}
	got = Normalize(map[string]any{})
	if got.OK || got.Error != "Empty response" {
		t.Fatalf("expected empty-map to also be Empty response, got %+v", got)
	}
}

func TestNormalize_TransportFailure(t *testing.T) {
	got := Normalize(map[string]any{"success": false, "error": "connection refused"})
	if got.OK || got.Error != "connection refused" {
		t.Fatalf("expected transport failure error extraction, got %+v", got)
	}
}

func TestNormalize_TransportFailure_FallsBackToMessageThenGeneric(t *testing.T) {
	got := Normalize(map[string]any{"success": false, "message": "timed out"})
	if got.Error != "timed out" {
		t.Fatalf("expected message fallback, got %+v", got)
	}
	got = Normalize(map[string]any{"success": false})
	if got.Error != "Unknown error" {
		t.Fatalf("expected generic fallback, got %+v", got)
	}
}

func TestNormalize_TransportSuccessNoLeafPayload(t *testing.T) {
	got := Normalize(map[string]any{"success": true})
	if !got.OK || got.Data != nil {
		t.Fatalf("expected ok=true data=nil, got %+v", got)
	}
}

// S1 — acquire-material failure.
func TestNormalize_S1_AcquireMaterialFailure(t *testing.T) {
	payload := map[string]any{
		"success": true,
		"result": map[string]any{
			"success": false,
			"error": map[string]any{
				"detail": "No reachable oak_log found",
				"code":   "acquire.noneCollected",
			},
			"totalAcquired": 0,
		},
	}
	got := Normalize(payload)
	if got.OK {
		t.Fatalf("expected ok=false")
	}
	if got.Error != "No reachable oak_log found" {
		t.Fatalf("expected detail-extracted error, got %q", got.Error)
	}
	if got.FailureCode != "acquire.noneCollected" {
		t.Fatalf("expected failureCode acquire.noneCollected, got %q", got.FailureCode)
	}
	if IsDeterministicFailure(got.FailureCode) {
		t.Fatalf("acquire.noneCollected must be retryable, not deterministic")
	}
}

func TestNormalize_LeafFailureViaStatusField(t *testing.T) {
	payload := map[string]any{"success": true, "result": map[string]any{"status": "failure"}}
	got := Normalize(payload)
	if got.OK {
		t.Fatalf("expected leaf failure via status=failure")
	}
}

func TestNormalize_LeafFailureViaErrorPresentWithoutExplicitSuccess(t *testing.T) {
	payload := map[string]any{"success": true, "result": map[string]any{"error": "boom"}}
	got := Normalize(payload)
	if got.OK {
		t.Fatalf("expected error-present-without-explicit-success to be a failure")
	}
}

func TestNormalize_LeafSuccess(t *testing.T) {
	payload := map[string]any{"success": true, "result": map[string]any{"success": true, "status": "success", "output": 42}}
	got := Normalize(payload)
	if !got.OK {
		t.Fatalf("expected ok=true for explicit leaf success")
	}
}

func TestNormalize_DiagnosticsHoisting_DispatcherWrapped(t *testing.T) {
	payload := map[string]any{
		"success": true,
		"data": map[string]any{
			"leafResult": map[string]any{
				"result": map[string]any{
					"success":         true,
					"toolDiagnostics": map[string]any{"version": "1.0", "x": 1},
				},
			},
		},
	}
	got := Normalize(payload)
	if got.ToolDiagnostics == nil {
		t.Fatalf("expected diagnostics to be hoisted from dispatcher-wrapped shape")
	}
}

func TestNormalize_DiagnosticsRejectedWithoutVersion(t *testing.T) {
	payload := map[string]any{
		"success": true,
		"result": map[string]any{
			"success":         true,
			"toolDiagnostics": map[string]any{"x": 1},
		},
	}
	got := Normalize(payload)
	if got.ToolDiagnostics != nil {
		t.Fatalf("expected diagnostics without version field to be rejected")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	// normalizeActionResponse is idempotent on its output considered as an
	// opaque payload: wrapping the result again must not flip ok.
	payload := map[string]any{"success": true, "result": map[string]any{"success": true}}
	first := Normalize(payload)
	rewrapped := map[string]any{"success": true, "result": map[string]any{"success": first.OK, "data": first.Data}}
	second := Normalize(rewrapped)
	if first.OK != second.OK {
		t.Fatalf("expected idempotent ok across re-wrapping, got %v then %v", first.OK, second.OK)
	}
}

func TestIsDeterministicFailure(t *testing.T) {
	cases := map[string]bool{
		"mapping_missing:craft:item": true,
		"contract_missing_keys":      true,
		"postcondition_failed:op":    true,
		"invalid_input":              true,
		"unknown_recipe":             true,
		"acquire.unknown_item":       true, // dot-suffix match
		"timeout":                    false,
		"stuck":                      false,
		"busy":                       false,
		"acquire.noneCollected":      false,
		"navigate.unreachable":       false,
		"":                           false,
	}
	for code, want := range cases {
		if got := IsDeterministicFailure(code); got != want {
			t.Errorf("IsDeterministicFailure(%q) = %v, want %v", code, got, want)
		}
	}
}
