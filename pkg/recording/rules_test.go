package recording

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revloop/orchestrator/pkg/externalclients/meetingbot"
	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

type fakeRuleStore struct{ rules []RecordingRule }

func (f fakeRuleStore) LoadRecordingRules(ctx context.Context, orgID string) ([]RecordingRule, error) {
	return f.rules, nil
}

type fakeOrgResolver struct {
	orgID, userID, domain string
}

func (f fakeOrgResolver) ResolveOrg(ctx context.Context, ev sources.MeetingEvent) (string, string, error) {
	return f.orgID, f.userID, nil
}
func (f fakeOrgResolver) OrgDomain(ctx context.Context, orgID string) (string, error) {
	return f.domain, nil
}

type fakeBotDeployer struct {
	deployed []meetingbot.DeployBotRequest
}

func (f *fakeBotDeployer) DeployBot(ctx context.Context, orgID string, req meetingbot.DeployBotRequest) (*meetingbot.DeployBotResponse, error) {
	f.deployed = append(f.deployed, req)
	return &meetingbot.DeployBotResponse{BotID: "bot-1"}, nil
}

type fakeSchedulerStore struct {
	created []sources.MeetingEvent
}

func (f *fakeSchedulerStore) CreateBotDeployment(ctx context.Context, orgID, userID, botID string, ev sources.MeetingEvent) error {
	f.created = append(f.created, ev)
	return nil
}

func target(t *testing.T, tgt ScheduleTarget) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(tgt)
	require.NoError(t, err)
	return raw
}

func TestHandleMeetingEventDeploysOnMatch(t *testing.T) {
	rules := fakeRuleStore{rules: []RecordingRule{
		{ID: "r1", Priority: 10, Enabled: true, DomainMode: "all", Target: target(t, ScheduleTarget{ProjectID: "proj-1"})},
	}}
	orgs := fakeOrgResolver{orgID: "org-1", userID: "user-1", domain: "acme.com"}
	deployer := &fakeBotDeployer{}
	store := &fakeSchedulerStore{}
	quota := NewQuotaChecker(fakeQuotaStore{count: 0}, func(string) int { return 10 })

	s := NewScheduler(store, rules, orgs, deployer, quota)
	err := s.HandleMeetingEvent(context.Background(), sources.MeetingEvent{
		Title: "Acme / Globex sync", MeetingURL: "https://meet.example/abc", AttendeeEmails: []string{"a@acme.com", "b@globex.com"},
	})
	require.NoError(t, err)
	assert.Len(t, deployer.deployed, 1)
	assert.Len(t, store.created, 1)
}

func TestHandleMeetingEventSkipsWhenTitleExcluded(t *testing.T) {
	rules := fakeRuleStore{rules: []RecordingRule{
		{ID: "r1", Priority: 10, Enabled: true, DomainMode: "all", TitleExcludeKeywords: []string{"standup"}, Target: target(t, ScheduleTarget{ProjectID: "proj-1"})},
	}}
	orgs := fakeOrgResolver{orgID: "org-1", domain: "acme.com"}
	deployer := &fakeBotDeployer{}
	store := &fakeSchedulerStore{}
	quota := NewQuotaChecker(fakeQuotaStore{count: 0}, nil)

	s := NewScheduler(store, rules, orgs, deployer, quota)
	err := s.HandleMeetingEvent(context.Background(), sources.MeetingEvent{Title: "Daily Standup"})
	require.NoError(t, err)
	assert.Empty(t, deployer.deployed)
}

func TestHandleMeetingEventRespectsInternalOnlyDomainMode(t *testing.T) {
	rules := fakeRuleStore{rules: []RecordingRule{
		{ID: "r1", Priority: 10, Enabled: true, DomainMode: "internal_only", Target: target(t, ScheduleTarget{ProjectID: "proj-1"})},
	}}
	orgs := fakeOrgResolver{orgID: "org-1", domain: "acme.com"}
	deployer := &fakeBotDeployer{}
	store := &fakeSchedulerStore{}
	quota := NewQuotaChecker(fakeQuotaStore{count: 0}, nil)

	s := NewScheduler(store, rules, orgs, deployer, quota)
	err := s.HandleMeetingEvent(context.Background(), sources.MeetingEvent{
		Title: "Internal sync", AttendeeEmails: []string{"a@acme.com", "b@globex.com"},
	})
	require.NoError(t, err)
	assert.Empty(t, deployer.deployed, "external attendee should disqualify an internal_only rule")
}

func TestHandleMeetingEventSkipsWhenQuotaExhausted(t *testing.T) {
	rules := fakeRuleStore{rules: []RecordingRule{
		{ID: "r1", Priority: 10, Enabled: true, DomainMode: "all", Target: target(t, ScheduleTarget{ProjectID: "proj-1"})},
	}}
	orgs := fakeOrgResolver{orgID: "org-1", domain: "acme.com"}
	deployer := &fakeBotDeployer{}
	store := &fakeSchedulerStore{}
	quota := NewQuotaChecker(fakeQuotaStore{count: 5}, func(string) int { return 5 })

	s := NewScheduler(store, rules, orgs, deployer, quota)
	err := s.HandleMeetingEvent(context.Background(), sources.MeetingEvent{Title: "Call"})
	require.NoError(t, err)
	assert.Empty(t, deployer.deployed)
}

func TestHandleMeetingEventPicksHighestPriorityMatch(t *testing.T) {
	rules := fakeRuleStore{rules: []RecordingRule{
		{ID: "low", Priority: 1, Enabled: true, TestMode: true, DomainMode: "all", Target: target(t, ScheduleTarget{ProjectID: "low-proj"})},
		{ID: "high", Priority: 100, Enabled: true, DomainMode: "all", Target: target(t, ScheduleTarget{ProjectID: "high-proj"})},
	}}
	orgs := fakeOrgResolver{orgID: "org-1", domain: "acme.com"}
	deployer := &fakeBotDeployer{}
	store := &fakeSchedulerStore{}
	quota := NewQuotaChecker(fakeQuotaStore{count: 0}, nil)

	s := NewScheduler(store, rules, orgs, deployer, quota)
	require.NoError(t, s.HandleMeetingEvent(context.Background(), sources.MeetingEvent{Title: "Call"}))
	assert.Len(t, deployer.deployed, 1)
}

type fakeQuotaStore struct{ count int }

func (f fakeQuotaStore) CountBotDeploymentsThisMonth(ctx context.Context, orgID string, now time.Time) (int, error) {
	return f.count, nil
}
