// Package api provides the HTTP surface of the orchestrator: inbound webhook
// ingestion, internal queue entry points used by schedulers and cron, and a
// health endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/revloop/orchestrator/pkg/auth"
	"github.com/revloop/orchestrator/pkg/config"
	"github.com/revloop/orchestrator/pkg/database"
	"github.com/revloop/orchestrator/pkg/httpmiddleware"
	"github.com/revloop/orchestrator/pkg/notifications"
	"github.com/revloop/orchestrator/pkg/observability"
	"github.com/revloop/orchestrator/pkg/recording"
	"github.com/revloop/orchestrator/pkg/sequence"
	"github.com/revloop/orchestrator/pkg/webhookingest"
)

// SequenceStarter creates the persisted execution row for a sequence run and
// returns its id. Narrowed from *sequence.PostgresStore so handlers can be
// tested against a fake.
type SequenceStarter interface {
	StartExecution(ctx context.Context, exec sequence.Execution) (string, error)
}

// SequenceRunner drives a sequence execution to completion. Narrowed from
// *sequence.Runtime.
type SequenceRunner interface {
	Execute(ctx context.Context, exec sequence.Execution) error
}

// MediaUploadQueuer marks a recording as pending its next media-upload
// attempt. Narrowed from *recording.Store.
type MediaUploadQueuer interface {
	MarkMediaUploadPending(ctx context.Context, id string) error
}

// NotificationQueuer enqueues a notification for dispatch. Narrowed from
// *notifications.Queue.
type NotificationQueuer interface {
	Enqueue(ctx context.Context, n notifications.NewNotification) error
}

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config
	dbClient   *database.Client

	pipeline     *webhookingest.Pipeline
	notifQueue   NotificationQueuer
	mediaUploads MediaUploadQueuer
	seqStarter   SequenceStarter
	seqRunner    SequenceRunner

	authCfg    auth.Config
	userLookup auth.UserLookup // nil: no end-user session auth, only service-role/cron

	reporter *observability.Reporter // nil: Sentry disabled
}

// NewServer creates a new API server with Echo v5 and registers every route.
// Middleware (security headers, CORS, rate limiting, response caching) is
// wired here since all of it needs to run ahead of routing.
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	pipeline *webhookingest.Pipeline,
	notifQueue NotificationQueuer,
	mediaUploads MediaUploadQueuer,
	seqStarter SequenceStarter,
	seqRunner SequenceRunner,
	authCfg auth.Config,
	userLookup auth.UserLookup,
	reporter *observability.Reporter,
	mw ServerMiddleware,
) *Server {
	e := echo.New()

	s := &Server{
		echo:         e,
		cfg:          cfg,
		dbClient:     dbClient,
		pipeline:     pipeline,
		notifQueue:   notifQueue,
		mediaUploads: mediaUploads,
		seqStarter:   seqStarter,
		seqRunner:    seqRunner,
		authCfg:      authCfg,
		userLookup:   userLookup,
		reporter:     reporter,
	}

	s.setupRoutes(mw)
	return s
}

// ServerMiddleware bundles the optional cross-cutting middleware built in
// pkg/httpmiddleware. Any field left nil is skipped.
type ServerMiddleware struct {
	CORS          *httpmiddleware.CORS
	RateLimiter   *httpmiddleware.RateLimiter
	ResponseCache *httpmiddleware.ResponseCache
}

// ValidateWiring checks that all required dependencies have been supplied.
// Call this after NewServer and before Start/StartWithListener so that
// wiring gaps are caught at startup rather than surfacing as 500s at
// request time.
func (s *Server) ValidateWiring() error {
	var errs []error
	if s.pipeline == nil {
		errs = append(errs, fmt.Errorf("webhookingest pipeline not set"))
	}
	if s.notifQueue == nil {
		errs = append(errs, fmt.Errorf("notification queue not set"))
	}
	if s.mediaUploads == nil {
		errs = append(errs, fmt.Errorf("media upload store not set"))
	}
	if s.seqStarter == nil {
		errs = append(errs, fmt.Errorf("sequence starter not set"))
	}
	if s.seqRunner == nil {
		errs = append(errs, fmt.Errorf("sequence runner not set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("server wiring incomplete: %w", errors.Join(errs...))
	}
	return nil
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes(mw ServerMiddleware) {
	// Server-wide body size limit (5 MB) — matches the read cap webhookingest
	// applies to inbound deliveries, plus JSON envelope overhead.
	s.echo.Use(middleware.BodyLimit(5 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	if mw.CORS != nil {
		s.echo.Use(mw.CORS.Middleware())
	}
	if mw.RateLimiter != nil {
		s.echo.Use(mw.RateLimiter.Middleware())
	}
	if mw.ResponseCache != nil {
		s.echo.Use(mw.ResponseCache.Middleware())
	}

	s.echo.GET("/health", s.healthHandler)

	webhooks := s.echo.Group("/webhooks")
	webhooks.POST("/meeting-recorder", s.webhookHandler("meeting-recorder"))
	webhooks.POST("/meetings", s.webhookHandler("meetings"))
	webhooks.POST("/stripe", s.webhookHandler("stripe"))
	webhooks.POST("/sentry-bridge", s.webhookHandler("sentry-bridge"))

	internal := s.echo.Group("/internal", s.requireServiceOrCron)
	internal.POST("/enqueue_notification", s.enqueueNotificationHandler)
	internal.POST("/enqueue_media_upload", s.enqueueMediaUploadHandler)
	internal.POST("/enqueue_sequence", s.enqueueSequenceHandler)
}

// Start starts the HTTP server on the given address and blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Echo exposes the underlying Echo instance for tests that need to issue
// requests directly against it.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
