package routing

import (
	"context"
	"fmt"

	"github.com/revloop/orchestrator/pkg/externalclients/ats"
	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

// ActivityLogger is the subset of *ats.Client used by ATSTicketDispatcher.
type ActivityLogger interface {
	LogActivity(ctx context.Context, orgID string, activity ats.ActivityLog) error
}

// ATSTicketDispatcher implements TicketDispatcher by logging the routed
// error as an activity against the target's ATS/CRM record. The target's
// ProjectID doubles as the CRM record id to attach the activity to —
// the routing rule owner decides which record an error's ticket belongs
// under when the rule is authored.
type ATSTicketDispatcher struct {
	client ActivityLogger
	orgID  string
}

// NewATSTicketDispatcher builds an ATSTicketDispatcher for a fixed org,
// since the Sentry bridge currently routes to a single ATS tenant rather
// than resolving one per event.
func NewATSTicketDispatcher(client ActivityLogger, orgID string) *ATSTicketDispatcher {
	return &ATSTicketDispatcher{client: client, orgID: orgID}
}

// DispatchTicket implements TicketDispatcher.
func (d *ATSTicketDispatcher) DispatchTicket(ctx context.Context, target TicketTarget, ev sources.TicketEvent) error {
	body := fmt.Sprintf("[%s/%s] %s\n%s\n%s", target.Priority, ev.Environment, ev.Title, ev.Culprit, ev.URL)
	return d.client.LogActivity(ctx, d.orgID, ats.ActivityLog{
		RecordID: target.ProjectID,
		Type:     "error_ticket",
		Body:     body,
	})
}
