// Package sequence runs a sales-automation sequence: an ordered list of
// steps, each either a pure skill or a side-effecting action, chained
// through a mutable state the runtime interpolates step inputs from and
// persists after every step so a crash loses no completed work.
package sequence

import "context"

// OnFailure controls what happens when a step's invoker returns a failed
// result or an error.
type OnFailure string

const (
	OnFailureStop     OnFailure = "stop"
	OnFailureContinue OnFailure = "continue"
	OnFailureFallback OnFailure = "fallback"
)

// Step is one entry in a Definition's ordered step list. Exactly one of
// SkillKey (pure computation) or Action (side-effecting) is set.
type Step struct {
	Order            int
	SkillKey         string
	Action           string
	InputMapping     map[string]string
	OutputKey        string
	OnFailure        OnFailure
	FallbackSkillKey string
	RequiresApproval bool
}

// IsAction reports whether this step resolves against the Actions
// registry rather than Skills.
func (s Step) IsAction() bool {
	return s.SkillKey == ""
}

// Definition is the reusable template a sequence execution runs against.
type Definition struct {
	Key   string
	Steps []Step
}

// ResultStatus is the outcome of one invoker call.
type ResultStatus string

const (
	StatusSuccess           ResultStatus = "success"
	StatusFailed            ResultStatus = "failed"
	StatusNeedsConfirmation ResultStatus = "needs_confirmation"
)

// Result is what a Skill or Action returns for one invocation.
type Result struct {
	Status ResultStatus
	Data   map[string]any
	Error  string
}

// Invoker is implemented by both skills and actions; the distinction is
// which registry (Skills vs Actions) a step's key is looked up in, not the
// interface itself.
type Invoker interface {
	Invoke(ctx context.Context, input map[string]any) (Result, error)
}

// StepResult is the persisted record of one executed step, appended to
// Execution.StepResults after every step.
type StepResult struct {
	StepIndex    int            `json:"step_index"`
	OutputKey    string         `json:"output_key,omitempty"`
	Status       ResultStatus   `json:"status"`
	Data         map[string]any `json:"data,omitempty"`
	Error        string         `json:"error,omitempty"`
	UsedFallback bool           `json:"used_fallback,omitempty"`
}

// Execution is one run of a Definition against a concrete trigger.
type Execution struct {
	ID           string
	OrgID        string
	UserID       string
	SequenceKey  string
	Trigger      map[string]any
	Context      map[string]any
	IsSimulation bool
}
