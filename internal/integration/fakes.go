package integration

import "context"

// FakeSterlingExecutor is an in-memory SterlingExecutor for tests: a fixed
// digest -> expansion table, with an optional per-call counter so tests can
// assert bounded-retry behavior on blocked_digest_unknown.
type FakeSterlingExecutor struct {
	Expansions map[string]SterlingExpansion
	Calls      map[string]int

	// IntentResolutions maps a leaf name to its scripted resolution result.
	IntentResolutions map[string]IntentResolutionResult
}

// NewFakeSterlingExecutor constructs an empty fake.
func NewFakeSterlingExecutor() *FakeSterlingExecutor {
	return &FakeSterlingExecutor{
		Expansions:         map[string]SterlingExpansion{},
		Calls:              map[string]int{},
		IntentResolutions:  map[string]IntentResolutionResult{},
	}
}

func (f *FakeSterlingExecutor) ExpandByDigest(ctx context.Context, digest string) (SterlingExpansion, error) {
	f.Calls[digest]++
	exp, ok := f.Expansions[digest]
	if !ok {
		return SterlingExpansion{Status: "blocked", BlockedReason: "blocked_digest_unknown"}, nil
	}
	return exp, nil
}

func (f *FakeSterlingExecutor) ResolveIntentSteps(ctx context.Context, req IntentResolutionRequest) (IntentResolutionResult, error) {
	f.Calls["intent:"+req.Leaf]++
	res, ok := f.IntentResolutions[req.Leaf]
	if !ok {
		return IntentResolutionResult{Status: "blocked", Reason: "blocked_unresolved_intents"}, nil
	}
	return res, nil
}

// FakeMacroPlanner is a scripted MacroPlanner.
type FakeMacroPlanner struct {
	Result PlanResult
	Err    error
}

func (f *FakeMacroPlanner) Plan(ctx context.Context, task TaskView) (PlanResult, error) {
	return f.Result, f.Err
}

// FakeDomainSolver records every episode report it receives.
type FakeDomainSolver struct {
	Reports []EpisodeReport
}

func (f *FakeDomainSolver) ReportEpisode(ctx context.Context, report EpisodeReport) error {
	f.Reports = append(f.Reports, report)
	return nil
}

// FakeRequirementResolver is a scripted RequirementResolver.
type FakeRequirementResolver struct {
	Result ResolvedRequirement
	Err    error
}

func (f *FakeRequirementResolver) Resolve(ctx context.Context, task TaskView) (ResolvedRequirement, error) {
	return f.Result, f.Err
}
