// Package main starts the orchestrator: HTTP webhook/API surface plus the
// background schedulers that poll bot deployments, transcripts, and queued
// notifications.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	echo "github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"

	"github.com/revloop/orchestrator/pkg/api"
	"github.com/revloop/orchestrator/pkg/auth"
	"github.com/revloop/orchestrator/pkg/billing"
	appconfig "github.com/revloop/orchestrator/pkg/config"
	"github.com/revloop/orchestrator/pkg/database"
	"github.com/revloop/orchestrator/pkg/clientcore"
	"github.com/revloop/orchestrator/pkg/eventlog"
	"github.com/revloop/orchestrator/pkg/externalclients/ats"
	"github.com/revloop/orchestrator/pkg/externalclients/llmclient"
	"github.com/revloop/orchestrator/pkg/externalclients/mailer"
	"github.com/revloop/orchestrator/pkg/externalclients/meetingbot"
	"github.com/revloop/orchestrator/pkg/externalclients/oauthprovider"
	"github.com/revloop/orchestrator/pkg/externalclients/objectstore"
	"github.com/revloop/orchestrator/pkg/externalclients/slackclient"
	"github.com/revloop/orchestrator/pkg/httpmiddleware"
	"github.com/revloop/orchestrator/pkg/notifications"
	"github.com/revloop/orchestrator/pkg/notifications/channels"
	"github.com/revloop/orchestrator/pkg/observability"
	"github.com/revloop/orchestrator/pkg/recording"
	"github.com/revloop/orchestrator/pkg/routing"
	"github.com/revloop/orchestrator/pkg/scheduler"
	"github.com/revloop/orchestrator/pkg/sequence"
	"github.com/revloop/orchestrator/pkg/sequence/skills/llmskill"
	"github.com/revloop/orchestrator/pkg/tenancy"
	"github.com/revloop/orchestrator/pkg/webhookingest"
	"github.com/revloop/orchestrator/pkg/webhookingest/sources"
)

// serviceRoleKeyEnv names the environment variable holding the platform's
// service-role bearer key. Unlike CronSecret, config.Config carries no
// accessor for this one, so it's named directly here.
const serviceRoleKeyEnv = "SERVICE_ROLE_KEY"

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	httpAddr := flag.String("addr", getEnv("HTTP_ADDR", ":8080"), "HTTP listen address")
	flag.Parse()

	if err := godotenv.Load(filepath.Join(*configDir, ".env")); err != nil {
		log.Printf("no .env file loaded from %s: %v", *configDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := appconfig.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	stats := cfg.Stats()
	slog.Info("configuration loaded", "config_dir", cfg.ConfigDir(), "webhook_sources", stats.WebhookSources)

	dbConfig, err := database.NewConfigFromAppConfig(cfg.Database)
	if err != nil {
		log.Fatalf("resolving database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("closing database client", "error", err)
		}
	}()

	reporter, err := observability.NewReporter(
		os.Getenv(cfg.Sentry.DSNEnv), cfg.Sentry.Environment, os.Getenv("GIT_COMMIT"))
	if err != nil {
		slog.Warn("sentry reporter disabled", "error", err)
	}

	// External client fabric: shared per-tenant concurrency limiter and one
	// OAuth token guard per upstream provider, backed by the same postgres
	// token store.
	limiter := clientcore.NewTenantLimiter(cfg.TenantConcurrency.MaxInFlightPerOrg)
	tokenStore := clientcore.NewPostgresTokenStore(dbClient.DB)

	meetingBotRefresher, err := oauthprovider.New(cfg.ExternalClients.MeetingBot)
	if err != nil {
		log.Fatalf("configuring meeting-bot oauth refresher: %v", err)
	}
	meetingBotGuard := clientcore.NewTokenGuard(tokenStore, meetingBotRefresher)
	meetingBotClient := meetingbot.New(cfg.ExternalClients.MeetingBot.BaseURL,
		cfg.ExternalClients.MeetingBot.RequestTimeout, limiter, meetingBotGuard)

	atsRefresher, err := oauthprovider.New(cfg.ExternalClients.ATS)
	if err != nil {
		log.Fatalf("configuring ats oauth refresher: %v", err)
	}
	atsGuard := clientcore.NewTokenGuard(tokenStore, atsRefresher)
	atsClient := ats.New(cfg.ExternalClients.ATS.BaseURL,
		cfg.ExternalClients.ATS.RequestTimeout, limiter, atsGuard)

	llmAPIKey := os.Getenv(cfg.LLM.APIKeyEnv)
	llmClient := llmclient.New(cfg.LLM, llmAPIKey)

	mailerClient := mailer.New(cfg.Mailer, os.Getenv(cfg.Mailer.APIKeyEnv))
	// Slack bot tokens are per-tenant in slack_workspaces; channels.Driver
	// has no org-scoped token resolution wired yet (see DESIGN.md), so this
	// single client serves whichever workspace SLACK_BOT_TOKEN names.
	slackClient := slackclient.New(os.Getenv("SLACK_BOT_TOKEN"))

	objectStore, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		log.Fatalf("configuring object store: %v", err)
	}

	// Domain stores.
	billingStore := billing.NewStore(dbClient.DB)
	billingHandler := billing.NewHandler(billingStore)

	tenancyStore := tenancy.NewStore(dbClient.DB)

	recordingStore := recording.NewStore(dbClient.DB)
	quotaChecker := recording.NewQuotaChecker(recordingStore, func(orgID string) int {
		tier, err := billingStore.PlanTier(ctx, orgID)
		if err != nil {
			slog.Warn("resolving plan tier for bot quota, defaulting to trial", "org_id", orgID, "error", err)
			tier = "trial"
		}
		return billing.MonthlyBotQuota(tier)
	})
	recordingScheduler := recording.NewScheduler(recordingStore, recordingStore, tenancyStore, meetingBotClient, quotaChecker)
	botStateMachine := recording.NewStateMachine(recordingStore, recording.NewPollEnqueuer(recordingStore))
	mediaUploadWorker := recording.NewMediaUploadWorker(recordingStore,
		recording.NewMeetingBotMediaProvider(meetingBotClient), objectStore)
	transcriptWorker := recording.NewTranscriptFetchWorker(recordingStore,
		recording.NewMeetingBotTranscriptFetcher(meetingBotClient))

	notificationStore := notifications.NewStore(dbClient.DB)
	notificationQueue := notifications.NewQueue(notificationStore)
	frequencyLimiter := notifications.NewFrequencyLimiter(notificationStore)
	drivers := map[notifications.Channel]channels.Driver{
		notifications.ChannelSlackDM:      channels.NewSlackDM(slackClient),
		notifications.ChannelSlackChannel: channels.NewSlackChannel(slackClient),
		notifications.ChannelEmail:        channels.NewEmail(mailerClient),
		notifications.ChannelInApp:        channels.NewInApp(notificationStore),
	}
	dispatcher := notifications.NewDispatcher(notificationStore, frequencyLimiter, drivers, hostname())
	feedbackLoop := notifications.NewFeedbackLoop(notificationStore, notificationQueue)

	defaultOrgID := getEnv("DEFAULT_ORG_ID", "")
	atsDispatcher := routing.NewATSTicketDispatcher(atsClient, defaultOrgID)
	routingRuleStore := routing.NewPostgresRuleStore(dbClient.DB, defaultOrgID)
	sentryRouter := routing.NewSentryRouter(routingRuleStore, atsDispatcher, nil)

	// Sequence runtime. Only llmskill exists as a concrete invoker pack-wide
	// — no side-effecting Action has a wired implementation yet, so the
	// Actions registry ships empty and every built-in definition below is
	// skill-only. See DESIGN.md.
	sequenceRegistry := sequence.Registry{
		Skills: map[string]sequence.Invoker{
			"summarize_meeting": llmskill.New(llmClient,
				"Summarize this sales call for the account owner. Respond with a JSON object: "+
					`{"summary": string, "next_steps": [string], "risk": "low"|"medium"|"high"}.`),
		},
		Actions: map[string]sequence.Invoker{},
	}
	sequenceDefinitions := sequence.Definitions{
		"meeting_followup_summary": {
			Key: "meeting_followup_summary",
			Steps: []sequence.Step{
				{
					Order:     0,
					SkillKey:  "summarize_meeting",
					OutputKey: "summary",
					OnFailure: sequence.OnFailureStop,
				},
			},
		},
	}
	sequenceStore := sequence.NewPostgresStore(dbClient.DB)
	sequenceRuntime := sequence.NewRuntime(sequenceDefinitions, sequenceRegistry, sequenceStore)

	// Webhook ingest.
	eventlogStore := eventlog.NewStore(dbClient.DB)
	meetingBaaSSrc, err := webhookSourceSecret(cfg, "meetingbaas")
	if err != nil {
		log.Fatalf("%v", err)
	}
	fathomSrc, err := webhookSourceSecret(cfg, "fathom")
	if err != nil {
		log.Fatalf("%v", err)
	}
	stripeSrc, err := webhookSourceSecret(cfg, "stripe")
	if err != nil {
		log.Fatalf("%v", err)
	}
	sentrySrc, err := webhookSourceSecret(cfg, "sentry")
	if err != nil {
		log.Fatalf("%v", err)
	}

	pipeline := webhookingest.NewPipeline(eventlogStore,
		sources.NewMeetingBaaS(meetingBaaSSrc, botStateMachine),
		sources.NewMeetings(fathomSrc, recordingScheduler),
		sources.NewStripe(stripeSrc, billingHandler),
		sources.NewSentryBridge(sentrySrc, sentryRouter),
	)

	// HTTP middleware.
	redisURL := os.Getenv(cfg.Redis.URLEnv)
	if redisURL == "" {
		log.Fatalf("environment variable %s is not set", cfg.Redis.URLEnv)
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("parsing redis url: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)

	userIDFromContext := func(c *echo.Context) string { return c.Request().Header.Get("X-User-Id") }

	rateLimiter := httpmiddleware.NewRateLimiter(redisClient, cfg.RateLimit.RequestsPerWindow,
		cfg.RateLimit.Window, userIDFromContext)
	responseCache, err := httpmiddleware.NewResponseCache(cfg.ResponseCache.MaxEntries,
		cfg.ResponseCache.TTL, userIDFromContext)
	if err != nil {
		log.Fatalf("configuring response cache: %v", err)
	}
	cors := httpmiddleware.NewCORS(cfg.CORS.AllowedOrigins)

	authCfg := auth.Config{
		ServiceRoleKey: os.Getenv(serviceRoleKeyEnv),
		CronSecret:     os.Getenv(cfg.CronSecretEnv()),
	}

	server := api.NewServer(cfg, dbClient, pipeline, notificationQueue, recordingStore,
		sequenceStore, sequenceRuntime, authCfg, nil, reporter, api.ServerMiddleware{
			CORS:          cors,
			RateLimiter:   rateLimiter,
			ResponseCache: responseCache,
		})
	if err := server.ValidateWiring(); err != nil {
		log.Fatalf("server wiring incomplete: %v", err)
	}

	sched := scheduler.New()
	registerJobs(sched, mediaUploadWorker, transcriptWorker, dispatcher, feedbackLoop)
	sched.Start()
	defer sched.Stop()

	go func() {
		slog.Info("http server listening", "addr", *httpAddr)
		if err := server.Start(*httpAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func webhookSourceSecret(cfg *appconfig.Config, name string) (string, error) {
	src, err := cfg.WebhookSource(name)
	if err != nil {
		return "", err
	}
	return os.Getenv(src.SecretEnv), nil
}

func registerJobs(sched *scheduler.Scheduler, mediaUploadWorker *recording.MediaUploadWorker,
	transcriptWorker *recording.TranscriptFetchWorker, dispatcher *notifications.Dispatcher,
	feedbackLoop *notifications.FeedbackLoop) {
	jobs := []scheduler.Job{
		scheduler.NewTickJob("media_upload", "*/5 * * * *", mediaUploadWorker.Tick,
			func(r recording.TickResult) string { return summarizeTick(r) }),
		scheduler.NewTickJob("transcript_fetch", "*/1 * * * *", transcriptWorker.Tick,
			func(r recording.TickResult) string { return summarizeTick(r) }),
		scheduler.NewTickJob("notification_dispatch", "*/5 * * * *", dispatcher.Tick,
			func(r notifications.DispatchResult) string { return summarizeDispatch(r) }),
		scheduler.NewTickJob("feedback_loop", "0 0 * * *", feedbackLoop.Tick,
			func(n int) string { return "feedback requests queued: " + strconv.Itoa(n) }),
	}
	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			log.Fatalf("registering scheduled job %q: %v", job.Name, err)
		}
	}
}

func summarizeTick(r recording.TickResult) string {
	return "succeeded " + strconv.Itoa(r.Succeeded) + " failed " + strconv.Itoa(r.Failed)
}

func summarizeDispatch(r notifications.DispatchResult) string {
	return "sent " + strconv.Itoa(r.Sent) + " failed " + strconv.Itoa(r.Failed)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "orchestrator"
	}
	return h
}
