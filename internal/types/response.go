package types

// NormalizedActionResponse is C2's output shape (spec §3, §4.2).
type NormalizedActionResponse struct {
	OK             bool           `json:"ok"`
	Error          string         `json:"error,omitempty"`
	FailureCode    string         `json:"failureCode,omitempty"`
	Data           any            `json:"data"`
	ToolDiagnostics map[string]any `json:"toolDiagnostics,omitempty"`
	LeafStatus     string         `json:"leafStatus,omitempty"`
	LeafErrorCode  string         `json:"leafErrorCode,omitempty"`
}

// ResolvedFrom identifies which precedence source satisfied C3's resolution.
type ResolvedFrom string

const (
	ResolvedLegacy             ResolvedFrom = "legacy"
	ResolvedRequirementCandidate ResolvedFrom = "requirementCandidate"
	ResolvedStepMetaArgs       ResolvedFrom = "stepMetaArgs"
	ResolvedInferred           ResolvedFrom = "inferred"
)

// ResolvedAction is C3's success output: a gateway-ready action.
type ResolvedAction struct {
	Type         string         `json:"type"`
	Parameters   map[string]any `json:"parameters"`
	TimeoutMs    int            `json:"timeout,omitempty"`
	ResolvedFrom ResolvedFrom   `json:"resolvedFrom"`
	Evidence     []string       `json:"evidence"`
}

// FailureCategory is C3's deterministic-failure classification.
type FailureCategory string

const (
	CategoryMappingMissing  FailureCategory = "mapping_missing"
	CategoryMappingInvalid  FailureCategory = "mapping_invalid"
	CategoryMappingAmbiguous FailureCategory = "mapping_ambiguous"
)

// ResolutionFailure is C3's failure output.
type ResolutionFailure struct {
	Category    FailureCategory `json:"category"`
	Reason      string          `json:"reason"`
	FailureCode string          `json:"failureCode"`
	Retryable   bool            `json:"retryable"`
	Evidence    []string        `json:"evidence"`
}

func (f *ResolutionFailure) Error() string {
	if f == nil {
		return ""
	}
	return f.FailureCode + ": " + f.Reason
}
