// Command maproulette runs the backend: the HTTP/WebSocket API, the
// background job scheduler, and the connection pool they share.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/maproulette/backend/internal/api"
	"github.com/maproulette/backend/internal/authz"
	"github.com/maproulette/backend/internal/cache"
	"github.com/maproulette/backend/internal/config"
	"github.com/maproulette/backend/internal/osm"
	"github.com/maproulette/backend/internal/review"
	"github.com/maproulette/backend/internal/scheduler"
	"github.com/maproulette/backend/internal/store"
	"github.com/maproulette/backend/internal/task"
	"github.com/maproulette/backend/internal/ws"
)

func configureLogger(level string) *slog.Logger {
	l := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func main() {
	configPath := flag.String("config", "maproulette.toml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := configureLogger(cfg.General.LogLevel)
	slog.SetDefault(logger)
	logger.Info("maproulette starting", "config", *configPath, "environment", cfg.General.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.DB.DSN(), cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns, cfg.DB.ConnMaxLifetime.Duration)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	checker := authz.NewChecker(st.Grants())

	onTaskStatusChange, onReviewCreated, onReviewStatusChange, hub := wireWebSocketHub(logger)

	projectCache := cache.New[store.Project](
		cache.WithCapacity[store.Project](cfg.Cache.ProjectCapacity),
		cache.WithDefaultTTL[store.Project](cfg.Cache.DefaultTTL.Duration))
	challengeCache := cache.New[store.Challenge](
		cache.WithCapacity[store.Challenge](cfg.Cache.ChallengeCapacity),
		cache.WithDefaultTTL[store.Challenge](cfg.Cache.DefaultTTL.Duration))
	taskCache := cache.New[store.Task](
		cache.WithCapacity[store.Task](cfg.Cache.TaskCapacity),
		cache.WithDefaultTTL[store.Task](cfg.Cache.DefaultTTL.Duration))

	osmCache := cache.NewOSMCache(cfg.Cache.OSMObjectCapacity, cfg.Cache.OSMObjectTTL.Duration)
	submitter := osm.NewSubmitter(st.Tasks(), st.OSMObjects(), osmCache)
	osmAuth := api.NewOSMAuth(cfg.OSM, cfg.Super)
	cooperative := api.NewCooperativeSubmitter(osmAuth.Client, submitter)

	taskEngine := task.NewEngine(st.Tasks(), st.Challenges(), st.Locks(), st.Reviews(), st.UserMetrics(),
		st.StatusActions(), checker, challengeCache, cooperative, onTaskStatusChange, onReviewCreated)
	reviewEngine := review.NewEngine(st.Reviews(), st.Tasks(), st.Challenges(), st.Projects(), st.UserMetrics(),
		checker, challengeCache, projectCache, onReviewStatusChange)

	authMiddleware, err := api.NewAuthMiddleware(osmAuth.Resolve, cfg.General.AuditLogPath, logger.With("component", "auth"))
	if err != nil {
		logger.Error("failed to build auth middleware", "error", err)
		os.Exit(1)
	}
	defer authMiddleware.Close()

	apiSrv := api.NewServer(cfg.API, taskEngine, reviewEngine, submitter, osmAuth.Client, hub, authMiddleware,
		logger.With("component", "api"))

	sched := scheduler.New(ctx, logger.With("component", "scheduler"))
	jobs := &scheduler.Jobs{
		Locks:              st.Locks(),
		Challenges:         st.Challenges(),
		Notifications:      st.Notifications(),
		Caches:             []scheduler.Sweeper{projectCache, challengeCache, taskCache},
		OSMCache:           osmCache,
		Mailer:             buildMailer(cfg.Mailer),
		// No per-user OAuth token is persisted outside a live request, so a
		// background job has no credential to call OSM's user-details endpoint
		// with on a user's behalf; digests are a no-op until that's addressed.
		ResolveEmail: func(context.Context, int64) (string, error) { return "", nil },
		Logger:             logger.With("component", "scheduler"),
		LockTTL:            cfg.Scheduler.TaskLockExpiry.Duration,
		ImmediateBatchSize: 25,
	}
	if cfg.Scheduler.Enabled {
		if err := scheduler.RegisterAll(sched, cfg.Scheduler, jobs); err != nil {
			logger.Error("failed to register scheduled jobs", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	go func() {
		if err := apiSrv.Start(ctx, cfg.General.ShutdownWait.Duration); err != nil {
			logger.Error("api server error", "error", err)
		}
	}()

	logger.Info("maproulette running", "bind", cfg.API.Bind)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())

	shutdownStart := time.Now()
	cancel()
	time.Sleep(cfg.General.ShutdownWait.Duration)
	logger.Info("maproulette stopped", "shutdown_duration", time.Since(shutdownStart).String())
}

// wireWebSocketHub builds the fan-out hub and the engine completion
// callbacks that publish onto it. Claim/release events are published
// directly from internal/api's handlers, which already have the challenge
// id in hand; these callbacks cover the commits the task and review engines
// make internally (SetStatus's status change and its review auto-creation,
// SetReviewStatus).
func wireWebSocketHub(logger *slog.Logger) (
	func(taskID, challengeID, userID int64, newStatus int),
	func(taskID, challengeID, requestedBy int64),
	func(taskID, challengeID, requestedBy int64, newStatus int),
	*ws.Hub,
) {
	hub := ws.NewHub(logger.With("component", "ws"))
	onTaskStatusChange := func(taskID, challengeID, userID int64, newStatus int) {
		ws.PublishTaskCompleted(hub, taskID, challengeID, userID)
	}
	onReviewCreated := func(taskID, challengeID, requestedBy int64) {
		ws.PublishReviewRequested(hub, taskID, challengeID, nil)
	}
	onReviewStatusChange := func(taskID, challengeID, requestedBy int64, newStatus int) {
		ws.PublishReviewCompleted(hub, taskID, challengeID, &requestedBy)
	}
	return onTaskStatusChange, onReviewCreated, onReviewStatusChange, hub
}

func buildMailer(cfg config.Mailer) scheduler.Mailer {
	if !cfg.Enabled {
		return scheduler.NoopMailer{}
	}
	return &scheduler.SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.FromAddr,
	}
}
