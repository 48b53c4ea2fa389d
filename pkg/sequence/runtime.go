package sequence

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Store persists an execution's progress so a crash mid-sequence loses no
// completed work. Implemented by PostgresStore against sequence_executions,
// whose step_results column holds the same JSON shape as []StepResult.
type Store interface {
	SaveProgress(ctx context.Context, executionID string, stepResults []StepResult) error
	MarkCompleted(ctx context.Context, executionID string) error
	MarkFailed(ctx context.Context, executionID string, failedStepIndex int) error
}

// DefinitionLookup resolves a sequence key to its step template. A plain
// map[string]Definition satisfies this trivially.
type DefinitionLookup interface {
	Lookup(key string) (Definition, bool)
}

// Definitions is the in-memory DefinitionLookup a fixed, code-defined set
// of sequences uses.
type Definitions map[string]Definition

// Lookup implements DefinitionLookup.
func (d Definitions) Lookup(key string) (Definition, bool) {
	def, ok := d[key]
	return def, ok
}

// Runtime executes sequence definitions step by step, modeled on the
// sequential chain loop in the teacher's session executor: a mutable state
// threaded through each step, fail-fast by default, persisted after every
// step rather than only at the end.
type Runtime struct {
	definitions DefinitionLookup
	registry    Registry
	store       Store
}

// NewRuntime builds a Runtime.
func NewRuntime(definitions DefinitionLookup, registry Registry, store Store) *Runtime {
	return &Runtime{definitions: definitions, registry: registry, store: store}
}

// Execute runs exec's sequence to completion or to its first unhandled
// failure, persisting step results after every step.
func (r *Runtime) Execute(ctx context.Context, exec Execution) error {
	def, ok := r.definitions.Lookup(exec.SequenceKey)
	if !ok {
		return fmt.Errorf("sequence: unknown sequence key %q", exec.SequenceKey)
	}

	steps := make([]Step, len(def.Steps))
	copy(steps, def.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	outputs := map[string]any{}
	state := map[string]any{
		"trigger": exec.Trigger,
		"outputs": outputs,
		"context": exec.Context,
		"execution": map[string]any{
			"id":            exec.ID,
			"is_simulation": exec.IsSimulation,
		},
	}

	var stepResults []StepResult
	for _, step := range steps {
		input := buildInput(step.InputMapping, state)

		result, usedFallback, err := r.runStep(ctx, step, input, exec.IsSimulation)

		sr := StepResult{
			StepIndex:    step.Order,
			OutputKey:    step.OutputKey,
			Status:       result.Status,
			Data:         result.Data,
			Error:        result.Error,
			UsedFallback: usedFallback,
		}
		stepResults = append(stepResults, sr)

		if step.OutputKey != "" {
			outputs[step.OutputKey] = result.Data
		}
		state["last_result"] = sr

		if perr := r.store.SaveProgress(ctx, exec.ID, stepResults); perr != nil {
			return fmt.Errorf("sequence: persisting step %d: %w", step.Order, perr)
		}

		if result.Status == StatusFailed {
			if step.OnFailure == OnFailureContinue {
				continue
			}
			if merr := r.store.MarkFailed(ctx, exec.ID, step.Order); merr != nil {
				return fmt.Errorf("sequence: step %d failed and marking failure also failed: %w", step.Order, merr)
			}
			if err != nil {
				return fmt.Errorf("sequence: step %d failed: %w", step.Order, err)
			}
			return fmt.Errorf("sequence: step %d failed: %s", step.Order, result.Error)
		}
	}

	return r.store.MarkCompleted(ctx, exec.ID)
}

// runStep executes one step, applying the on_failure=fallback policy
// inline: a failed primary invocation with a configured fallback skill is
// retried through that skill, and on success the step is recorded as
// succeeded via the fallback.
func (r *Runtime) runStep(ctx context.Context, step Step, input map[string]any, simulate bool) (Result, bool, error) {
	inv, ok := r.registry.resolve(step)
	if !ok {
		key := step.Action
		if !step.IsAction() {
			key = step.SkillKey
		}
		err := fmt.Errorf("sequence: no invoker registered for step %d (key %q)", step.Order, key)
		return Result{Status: StatusFailed, Error: err.Error()}, false, err
	}

	result, err := r.invoke(ctx, inv, input, step, simulate)
	if err == nil && result.Status != StatusFailed {
		return result, false, nil
	}

	if step.OnFailure != OnFailureFallback || step.FallbackSkillKey == "" {
		return result, false, err
	}

	fallbackInv, ok := r.registry.fallback(step)
	if !ok {
		return result, false, fmt.Errorf("sequence: fallback skill %q not registered: %w", step.FallbackSkillKey, errors.Join(err, errors.New("no fallback registered")))
	}

	fbResult, fbErr := r.invoke(ctx, fallbackInv, input, step, simulate)
	return fbResult, true, fbErr
}

// invoke runs one invoker call, applying the simulation-mode dry-run
// normalization to actions only: the confirm input is stripped so the
// action never sees an operator's go-ahead, and a needs_confirmation
// result is downgraded to success with the preview payload as data.
func (r *Runtime) invoke(ctx context.Context, inv Invoker, input map[string]any, step Step, simulate bool) (Result, error) {
	callInput := input
	if step.IsAction() && simulate {
		callInput = make(map[string]any, len(input))
		for k, v := range input {
			if k == "confirm" {
				continue
			}
			callInput[k] = v
		}
	}

	result, err := inv.Invoke(ctx, callInput)
	if err != nil {
		return Result{Status: StatusFailed, Error: err.Error()}, err
	}

	if step.IsAction() && simulate && result.Status == StatusNeedsConfirmation {
		return Result{Status: StatusSuccess, Data: result.Data}, nil
	}
	return result, nil
}

func buildInput(mapping map[string]string, state map[string]any) map[string]any {
	input := make(map[string]any, len(mapping))
	for k, tmpl := range mapping {
		input[k] = InterpolateValue(tmpl, state)
	}
	return input
}
