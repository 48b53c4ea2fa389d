// Package llmclient wraps the Anthropic Messages API for the sequence
// runtime's LLM-backed skills. It exposes a single-turn Complete call; the
// tolerant JSON extraction that follows lives in the caller (llmskill),
// not here — this package only knows how to get text out of the model.
package llmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/revloop/orchestrator/pkg/apperrors"
	appconfig "github.com/revloop/orchestrator/pkg/config"
)

const defaultMaxTokens = 1024

// Client sends single-turn completions to Anthropic's Messages API.
type Client struct {
	api   anthropic.Client
	model string
}

// New builds a Client from the application's LLM configuration and a
// resolved API key (the caller reads cfg.APIKeyEnv from the environment,
// mirroring how externalclients/mailer and slackclient receive secrets).
func New(cfg *appconfig.LLMConfig, apiKey string) *Client {
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &Client{
		api:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}
}

// Complete sends a system/user turn and returns the concatenated text
// content of the response. It does not attempt to parse the text as JSON —
// callers that expect structured output run it through their own tolerant
// extractor.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "anthropic messages.new failed")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", apperrors.New(apperrors.KindUpstreamUnavailable, fmt.Sprintf("anthropic response had no text content blocks (stop_reason=%s)", resp.StopReason))
	}
	return text.String(), nil
}
