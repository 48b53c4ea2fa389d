package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/revloop/orchestrator/pkg/externalclients/meetingbot"
	"github.com/revloop/orchestrator/pkg/routing"
	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

// RecordingRule is one auto-scheduling rule row.
type RecordingRule struct {
	ID                   string          `db:"id"`
	OrgID                string          `db:"org_id"`
	Priority             int             `db:"priority"`
	Enabled              bool            `db:"enabled"`
	TitleExcludeKeywords []string        `db:"title_exclude_keywords"`
	TitleIncludeKeywords []string        `db:"title_include_keywords"`
	MinAttendees         *int            `db:"min_attendees"`
	MaxAttendees         *int            `db:"max_attendees"`
	DomainMode           string          `db:"domain_mode"`
	AllowedDomains       []string        `db:"allowed_domains"`
	Target               json.RawMessage `db:"target"`
	TestMode             bool            `db:"test_mode"`
}

// ScheduleTarget is the payload carried by a matched (or implicit default)
// recording rule: which bot configuration deploys and at what priority.
type ScheduleTarget struct {
	ProjectID string `json:"project_id"`
	Priority  string `json:"priority"`
	Owner     string `json:"owner,omitempty"`
}

// RuleStore loads the enabled recording rule set for an org.
type RuleStore interface {
	LoadRecordingRules(ctx context.Context, orgID string) ([]RecordingRule, error)
}

// OrgResolver maps an inbound meeting event to the owning org and that
// org's own email domain (needed to evaluate internal_only/external_only
// domain_mode rules). The calendar/meeting platform carries no org
// identifier of its own, so this is resolved from the connection that
// registered the webhook (e.g. the calendar account that owns
// ev.ExternalMeetingID's connection) — left as an interface so the wiring
// can be backed by whichever connection table the calendar-connection
// package owns.
type OrgResolver interface {
	ResolveOrg(ctx context.Context, ev sources.MeetingEvent) (orgID, userID string, err error)
	OrgDomain(ctx context.Context, orgID string) (string, error)
}

// BotDeployer deploys the meeting-recorder bot.
type BotDeployer interface {
	DeployBot(ctx context.Context, orgID string, req meetingbot.DeployBotRequest) (*meetingbot.DeployBotResponse, error)
}

// SchedulerStore is the subset of Store used by Scheduler.
type SchedulerStore interface {
	CreateBotDeployment(ctx context.Context, orgID, userID, botID string, ev sources.MeetingEvent) error
}

// Scheduler evaluates recording auto-scheduling rules against inbound
// calendar/meeting events and deploys a bot when one matches. It implements
// sources.MeetingHandler.
type Scheduler struct {
	store  SchedulerStore
	rules  RuleStore
	orgs   OrgResolver
	bots   BotDeployer
	quota  *QuotaChecker
	engine *routing.Engine
}

// NewScheduler builds a Scheduler.
func NewScheduler(store SchedulerStore, rules RuleStore, orgs OrgResolver, bots BotDeployer, quota *QuotaChecker) *Scheduler {
	return &Scheduler{store: store, rules: rules, orgs: orgs, bots: bots, quota: quota, engine: routing.NewEngine()}
}

// HandleMeetingEvent implements sources.MeetingHandler. Only "scheduled"
// (or equivalently named) events trigger evaluation; updates/cancellations
// to a meeting already carrying a deployment are out of scope here.
func (s *Scheduler) HandleMeetingEvent(ctx context.Context, ev sources.MeetingEvent) error {
	orgID, userID, err := s.orgs.ResolveOrg(ctx, ev)
	if err != nil {
		return fmt.Errorf("resolving org for meeting event: %w", err)
	}
	if orgID == "" {
		slog.Info("meeting event could not be attributed to an org, skipping", "external_meeting_id", ev.ExternalMeetingID)
		return nil
	}

	rules, err := s.rules.LoadRecordingRules(ctx, orgID)
	if err != nil {
		return fmt.Errorf("loading recording rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	orgDomain, err := s.orgs.OrgDomain(ctx, orgID)
	if err != nil {
		return fmt.Errorf("resolving org domain: %w", err)
	}

	attendeeDomains := emailDomains(ev.AttendeeEmails)

	// domain_mode has no clean reduction to the generic engine's closed
	// operator set (it branches on set membership against a per-rule
	// allowed-domain list plus an internal/external split that depends on
	// the org's own domain), so it is filtered here; the remaining three
	// predicate categories (title-exclude, attendee-range, title-include)
	// go through the shared priority/first-match engine exactly as
	// routing.SentryRouter does.
	eligible := make([]routing.Rule, 0, len(rules))
	byID := make(map[string]RecordingRule, len(rules))
	for _, rr := range rules {
		if !rr.Enabled {
			continue
		}
		if !domainModeSatisfied(rr.DomainMode, rr.AllowedDomains, attendeeDomains, orgDomain) {
			continue
		}
		byID[rr.ID] = rr
		eligible = append(eligible, toRoutingRule(rr))
	}

	facts := routing.Facts{
		"title":          []string{ev.Title},
		"attendee_count": len(ev.AttendeeEmails),
	}

	matched, ok, err := s.engine.Match(eligible, facts)
	if err != nil {
		return fmt.Errorf("evaluating recording rules: %w", err)
	}
	if !ok {
		slog.Info("no recording rule matched, skipping auto-schedule", "org_id", orgID, "external_meeting_id", ev.ExternalMeetingID)
		return nil
	}

	rule := byID[matched.ID]
	if matched.TestMode {
		slog.Info("recording rule matched in test mode, no bot deployed", "rule_id", rule.ID, "external_meeting_id", ev.ExternalMeetingID)
		return nil
	}

	var target ScheduleTarget
	if err := json.Unmarshal(rule.Target, &target); err != nil {
		return fmt.Errorf("decoding recording rule target: %w", err)
	}

	ok, reason, err := s.quota.CheckAndReserve(ctx, orgID)
	if err != nil {
		return fmt.Errorf("checking monthly bot quota: %w", err)
	}
	if !ok {
		slog.Info("monthly bot deployment quota exhausted, skipping", "org_id", orgID, "reason", reason)
		return nil
	}

	resp, err := s.bots.DeployBot(ctx, orgID, meetingbot.DeployBotRequest{MeetingURL: ev.MeetingURL})
	if err != nil {
		return fmt.Errorf("deploying meeting bot: %w", err)
	}

	return s.store.CreateBotDeployment(ctx, orgID, userID, resp.BotID, ev)
}

func domainModeSatisfied(mode string, allowed, attendeeDomains []string, orgDomain string) bool {
	switch mode {
	case "all", "":
		return true
	case "external_only":
		for _, d := range attendeeDomains {
			if strings.EqualFold(d, orgDomain) {
				return false
			}
		}
		return true
	case "internal_only":
		for _, d := range attendeeDomains {
			if !strings.EqualFold(d, orgDomain) {
				return false
			}
		}
		return true
	case "specific_domains":
		for _, d := range attendeeDomains {
			for _, a := range allowed {
				if strings.EqualFold(d, a) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func toRoutingRule(rr RecordingRule) routing.Rule {
	var predicates []routing.Predicate
	if len(rr.TitleExcludeKeywords) > 0 {
		predicates = append(predicates, routing.Predicate{Field: "title", Op: routing.OpNoneMatch, Values: rr.TitleExcludeKeywords})
	}
	if rr.MinAttendees != nil {
		predicates = append(predicates, routing.Predicate{Field: "attendee_count", Op: routing.OpRangeGTE, Value: fmt.Sprintf("%d", *rr.MinAttendees)})
	}
	if rr.MaxAttendees != nil {
		predicates = append(predicates, routing.Predicate{Field: "attendee_count", Op: routing.OpRangeLTE, Value: fmt.Sprintf("%d", *rr.MaxAttendees)})
	}
	if len(rr.TitleIncludeKeywords) > 0 {
		predicates = append(predicates, routing.Predicate{Field: "title", Op: routing.OpAnyMatch, Values: rr.TitleIncludeKeywords})
	}
	return routing.Rule{
		ID:         rr.ID,
		Priority:   rr.Priority,
		Enabled:    rr.Enabled,
		TestMode:   rr.TestMode,
		Target:     rr.Target,
		Predicates: predicates,
	}
}

func emailDomains(emails []string) []string {
	domains := make([]string, 0, len(emails))
	for _, e := range emails {
		if i := strings.LastIndex(e, "@"); i != -1 && i < len(e)-1 {
			domains = append(domains, e[i+1:])
		}
	}
	return domains
}
