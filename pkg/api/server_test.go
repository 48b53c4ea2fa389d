package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revloop/orchestrator/pkg/webhookingest"
)

func TestValidateWiringReportsEveryMissingDependency(t *testing.T) {
	s := &Server{}

	err := s.ValidateWiring()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhookingest pipeline not set")
	assert.Contains(t, err.Error(), "notification queue not set")
	assert.Contains(t, err.Error(), "media upload store not set")
	assert.Contains(t, err.Error(), "sequence starter not set")
	assert.Contains(t, err.Error(), "sequence runner not set")
}

func TestValidateWiringPassesWhenFullyWired(t *testing.T) {
	s := &Server{
		pipeline:     webhookingest.NewPipeline(&fakeEventStore{id: "evt-1"}, fakeSource{name: "stripe"}),
		notifQueue:   &fakeNotificationQueue{},
		mediaUploads: &fakeMediaUploadQueuer{},
		seqStarter:   &fakeSeqStarter{id: "exec-1"},
		seqRunner:    newFakeSeqRunner(),
	}

	assert.NoError(t, s.ValidateWiring())
}
