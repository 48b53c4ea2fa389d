package webhookingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/revloop/orchestrator/pkg/apperrors"
	"github.com/revloop/orchestrator/pkg/eventlog"
)

// EventStore is the subset of *eventlog.Store the pipeline depends on,
// narrowed to an interface so the pipeline can be tested without a database.
type EventStore interface {
	Insert(ctx context.Context, ev eventlog.NewEvent) (*eventlog.Event, error)
	AssignOrg(ctx context.Context, id, orgID string) error
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
}

// Pipeline dispatches inbound webhook requests to a registered Source and
// drives it through the shared verify/parse/insert/resolve/process stages.
type Pipeline struct {
	store   EventStore
	sources map[string]Source
}

// NewPipeline creates a pipeline over the given sources, keyed by Name().
func NewPipeline(store EventStore, sources ...Source) *Pipeline {
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &Pipeline{store: store, sources: byName}
}

// Handle runs the full pipeline for one HTTP delivery. Pass r with its body
// unread: Handle reads up to 5 MiB of r.Body itself.
func (p *Pipeline) Handle(ctx context.Context, sourceName string, r *http.Request) (*Result, error) {
	src, ok := p.sources[sourceName]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("unknown webhook source %q", sourceName))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 5<<20))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindBadRequest, err, "reading webhook body")
	}

	if err := src.Verify(r, body); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthorized, err, "webhook signature verification failed")
	}

	eventType, externalID, err := src.ParseIdentity(body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindBadRequest, err, "parsing webhook payload")
	}

	headers := headerJSON(r.Header)
	ev, err := p.store.Insert(ctx, eventlog.NewEvent{
		Source:          sourceName,
		EventType:       eventType,
		ExternalEventID: externalID,
		Payload:         json.RawMessage(body),
		Headers:         headers,
	})
	if err != nil {
		if err == eventlog.ErrDuplicate {
			slog.Info("duplicate webhook delivery ignored", "source", sourceName, "event_type", eventType)
			return &Result{Status: eventlog.StatusIgnored, Duplicate: true}, nil
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "storing webhook event")
	}

	log := slog.With("event_id", ev.ID, "source", sourceName, "event_type", eventType)

	if orgID, err := src.ResolveOrg(ctx, body); err != nil {
		log.Warn("failed to resolve tenant for webhook event", "error", err)
	} else if orgID != "" {
		if err := p.store.AssignOrg(ctx, ev.ID, orgID); err != nil {
			log.Warn("failed to persist resolved org", "error", err)
		}
	}

	if err := src.Process(ctx, ev); err != nil {
		if markErr := p.store.MarkFailed(ctx, ev.ID, err); markErr != nil {
			log.Error("failed to record processing failure", "error", markErr)
		}
		return nil, err
	}

	if err := p.store.MarkProcessed(ctx, ev.ID); err != nil {
		log.Error("failed to mark event processed", "error", err)
	}

	log.Info("webhook event processed")
	return &Result{EventID: ev.ID, Status: eventlog.StatusProcessed}, nil
}

func headerJSON(h http.Header) json.RawMessage {
	flat := make(map[string]string, len(h))
	for k := range h {
		flat[k] = h.Get(k)
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
