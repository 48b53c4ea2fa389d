package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revloop/orchestrator/pkg/externalclients/ats"
	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

type fakeActivityLogger struct {
	logged ats.ActivityLog
	orgID  string
}

func (f *fakeActivityLogger) LogActivity(ctx context.Context, orgID string, activity ats.ActivityLog) error {
	f.orgID = orgID
	f.logged = activity
	return nil
}

func TestDispatchTicketLogsActivityAgainstTargetRecord(t *testing.T) {
	logger := &fakeActivityLogger{}
	d := NewATSTicketDispatcher(logger, "org-1")

	err := d.DispatchTicket(context.Background(), TicketTarget{ProjectID: "crm-42", Priority: "high"}, sources.TicketEvent{
		Title:       "nil pointer in checkout",
		Environment: "production",
	})

	require.NoError(t, err)
	assert.Equal(t, "org-1", logger.orgID)
	assert.Equal(t, "crm-42", logger.logged.RecordID)
	assert.Contains(t, logger.logged.Body, "nil pointer in checkout")
}
