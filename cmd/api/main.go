package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callgrid/internal/auth"
	"callgrid/internal/config"
	"callgrid/internal/dispatch"
	"callgrid/internal/engine"
	"callgrid/internal/escalog"
	"callgrid/internal/httpapi"
	"callgrid/internal/reporting"
	"callgrid/internal/scheduler"
	"callgrid/internal/session"
	"callgrid/internal/tiers"
	"callgrid/pkg/logger"
	"callgrid/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	order, err := tiers.NewOrder(cfg.Escalation.Tiers)
	if err != nil {
		log.Error("tier config invalid", "err", err)
		os.Exit(1)
	}

	store := session.NewStore(
		session.NewPostgresRepo(db),
		order,
		cfg.Escalation.WarnOffset,
		cfg.Escalation.EscalateOffset,
	)

	var transport dispatch.Transport
	if cfg.Notify.WebhookURL != "" {
		transport = dispatch.NewWebhookTransport(cfg.Notify.WebhookURL)
	} else {
		// Local development without a delivery endpoint.
		transport = dispatch.NewMemoryTransport()
	}

	dispatcher := dispatch.NewDispatcher(
		tiers.NewPostgresDirectory(db),
		transport,
		dispatch.NewRedisClaimer(rdb),
		cfg.Notify.MaxAttempts,
		cfg.Notify.BackoffBase,
		cfg.Notify.ClaimTTL,
	)

	recorder := escalog.NewRecorder(escalog.NewPostgresRepo(db))

	eng := engine.New(store, dispatcher, recorder)
	sched := scheduler.New(store, eng, 5*time.Second)
	eng.BindScheduler(sched)

	// Re-arm deadlines for calls that were mid-ring when the last process
	// stopped; overdue ones fire immediately once Run starts.
	recoverCtx := logger.With(rootCtx, log)
	if err := sched.Recover(recoverCtx); err != nil {
		log.Error("deadline recovery failed", "err", err)
		os.Exit(1)
	}
	go sched.Run(recoverCtx)

	reports := reporting.NewService(reporting.NewPostgresRepo(db))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:    authManager,
		Engine:  eng,
		Reports: reports,
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
