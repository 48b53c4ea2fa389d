package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

// TicketTarget is the payload carried by a matched (or default) routing rule.
type TicketTarget struct {
	ProjectID string `json:"project_id"`
	Priority  string `json:"priority"`
	Owner     string `json:"owner,omitempty"`
}

// RuleStore loads the enabled routing rule set for error-ticket routing.
type RuleStore interface {
	LoadRoutingRules(ctx context.Context) ([]Rule, error)
}

// TicketDispatcher delivers a routed ticket event to its resolved target,
// e.g. posting to a Slack channel or opening a sequence run.
type TicketDispatcher interface {
	DispatchTicket(ctx context.Context, target TicketTarget, ev sources.TicketEvent) error
}

// SentryRouter evaluates routing rules against an error-tracking issue event
// and dispatches it to the matched (or configured default) target.
type SentryRouter struct {
	engine     *Engine
	rules      RuleStore
	dispatcher TicketDispatcher
	defaultTarget *TicketTarget
}

// NewSentryRouter builds a router. defaultTarget may be nil, in which case
// an unmatched event is dropped (logged, not dispatched).
func NewSentryRouter(rules RuleStore, dispatcher TicketDispatcher, defaultTarget *TicketTarget) *SentryRouter {
	return &SentryRouter{engine: NewEngine(), rules: rules, dispatcher: dispatcher, defaultTarget: defaultTarget}
}

// HandleTicketEvent implements sources.TicketHandler.
func (s *SentryRouter) HandleTicketEvent(ctx context.Context, ev sources.TicketEvent) error {
	rules, err := s.rules.LoadRoutingRules(ctx)
	if err != nil {
		return fmt.Errorf("loading routing rules: %w", err)
	}

	facts := Facts{
		"release":     ev.Release,
		"environment": ev.Environment,
		"level":       ev.Level,
	}

	rule, matched, err := s.engine.Match(rules, facts)
	if err != nil {
		return fmt.Errorf("evaluating routing rules: %w", err)
	}

	var target TicketTarget
	switch {
	case matched && rule.TestMode:
		slog.Info("routing rule matched in test mode, no dispatch", "rule_id", rule.ID, "issue_id", ev.IssueID)
		return nil
	case matched:
		if err := json.Unmarshal(rule.Target, &target); err != nil {
			return fmt.Errorf("decoding routing rule target: %w", err)
		}
	case s.defaultTarget != nil:
		target = *s.defaultTarget
	default:
		slog.Info("no routing rule matched and no default configured, dropping issue", "issue_id", ev.IssueID)
		return nil
	}

	return s.dispatcher.DispatchTicket(ctx, target, ev)
}
