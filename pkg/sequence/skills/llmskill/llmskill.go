// Package llmskill implements a sequence.Invoker that wraps an LLM
// completion call. Its output is free text, so it always goes through the
// tolerant JSON extractor before the sequence runtime sees it; a response
// that doesn't contain a JSON object falls back to a raw-text result
// rather than failing the step outright.
package llmskill

import (
	"context"
	"fmt"

	"github.com/revloop/orchestrator/pkg/sequence"
)

// Completer is the narrow interface llmskill depends on, satisfied by
// externalclients/llmclient.Client.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Skill calls an LLM with a fixed system prompt and the step's "prompt"
// input, then extracts structured output from the response.
type Skill struct {
	llm          Completer
	systemPrompt string
}

// New builds a Skill.
func New(llm Completer, systemPrompt string) *Skill {
	return &Skill{llm: llm, systemPrompt: systemPrompt}
}

// Invoke implements sequence.Invoker.
func (s *Skill) Invoke(ctx context.Context, input map[string]any) (sequence.Result, error) {
	prompt, _ := input["prompt"].(string)
	if prompt == "" {
		err := fmt.Errorf("llmskill: missing \"prompt\" input")
		return sequence.Result{Status: sequence.StatusFailed, Error: err.Error()}, err
	}

	raw, err := s.llm.Complete(ctx, s.systemPrompt, prompt)
	if err != nil {
		return sequence.Result{Status: sequence.StatusFailed, Error: err.Error()}, err
	}

	data, parseErr := ExtractJSON(raw)
	if parseErr != nil {
		return sequence.Result{
			Status: sequence.StatusSuccess,
			Data:   map[string]any{"raw_text": raw},
		}, nil
	}
	return sequence.Result{Status: sequence.StatusSuccess, Data: data}, nil
}
