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

	"listenlink/internal/audit"
	"listenlink/internal/auth"
	"listenlink/internal/chat"
	"listenlink/internal/config"
	"listenlink/internal/history"
	"listenlink/internal/httpapi"
	"listenlink/internal/invitations"
	"listenlink/internal/metrics"
	"listenlink/internal/presence"
	"listenlink/internal/users"
	"listenlink/pkg/logger"
	"listenlink/pkg/utils"

	"github.com/gin-gonic/gin"
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

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	m := metrics.New()
	hub := invitations.NewHub(log)
	tracker := presence.NewRedisTracker(rdb, cfg.Calls.PresenceTTL)
	auditSvc := audit.NewService(audit.NewPGRepo(db))
	invitationRepo := invitations.NewPGRepo(db)

	invitationSvc := invitations.NewService(invitationRepo, tracker,
		invitations.WithNotifier(hub),
		invitations.WithAuditor(auditSvc),
		invitations.WithRecorder(m),
		invitations.WithLogger(log),
		invitations.WithMaxCallDuration(cfg.Calls.MaxCallDuration),
	)
	go invitationSvc.RunSweeper(rootCtx, cfg.Calls.SweepInterval, cfg.Calls.RingWindow)

	limiter := httpapi.NewUserRateLimiter(cfg.Calls.InvitesPerMinute)
	go limiter.Run(rootCtx.Done())

	h := httpapi.Handlers{
		Auth:        authManager,
		Users:       users.NewPGRepo(db),
		Presence:    tracker,
		Invitations: invitationSvc,
		Chat:        chat.NewService(chat.NewPGRepo(db), log),
		History:     history.NewService(invitationRepo),
		Audit:       auditSvc,
		RingWindow:  cfg.Calls.RingWindow,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log, "/healthz", "/readyz", "/metrics"))
	r.Use(m.Middleware())

	registerOpsRoutes(r, db, rdb)
	httpapi.Register(r, httpapi.Routes{
		Handlers:      h,
		Streamer:      httpapi.Streamer{Handlers: h, Hub: hub, Metrics: m},
		AuthMW:        auth.RequireAccessToken(authManager),
		CreateLimiter: limiter,
		Metrics:       m.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: the invitation stream is long-lived and sets its
		// own per-frame write deadlines.
		IdleTimeout: 60 * time.Second,
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
}
