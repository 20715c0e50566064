package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/questtoken/api/rest"
	"github.com/kasuganosora/questtoken/api/sse"
	"github.com/kasuganosora/questtoken/audit"
	"github.com/kasuganosora/questtoken/cache"
	"github.com/kasuganosora/questtoken/config"
	dbadapter "github.com/kasuganosora/questtoken/db"
	"github.com/kasuganosora/questtoken/game/condition"
	"github.com/kasuganosora/questtoken/game/quest"
	"github.com/kasuganosora/questtoken/game/script"
	"github.com/kasuganosora/questtoken/game/token"
	"github.com/kasuganosora/questtoken/logger"
	mw "github.com/kasuganosora/questtoken/middleware"
	"github.com/kasuganosora/questtoken/model"
	"github.com/kasuganosora/questtoken/plugin/hook"
	"github.com/kasuganosora/questtoken/scheduler"
	"github.com/kasuganosora/questtoken/snapshot"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.Default()
	if len(os.Args) > 1 {
		loaded, err := config.Load(os.Args[1])
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	// ---- Logger ----
	lg := logger.New(cfg.Log, cfg.Server.Debug)
	defer lg.Sync()

	if cfg.Server.AdminKey == "" {
		lg.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.JWTSecret == "" {
		lg.Warn("security.jwt_secret is not set; player endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		lg.Fatal("db open failed", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		lg.Fatal("db migrate failed", zap.Error(err))
	}
	lg.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	cacheConfig := cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		lg.Fatal("cache init failed", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		lg.Fatal("pubsub init failed", zap.Error(err))
	}
	lg.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Templates ----
	registry := quest.NewRegistry()
	templates, err := quest.LoadTemplatesFile(cfg.Quest.TemplatesFile)
	if err != nil {
		lg.Fatal("quest templates invalid", zap.String("file", cfg.Quest.TemplatesFile), zap.Error(err))
	}
	if err := registry.Replace(templates); err != nil {
		lg.Fatal("quest templates rejected", zap.Error(err))
	}
	lg.Info("quest templates loaded", zap.Int("count", len(templates)))

	// ---- Hooks / Audit ----
	hooks := hook.NewHookCenter()
	ledger := audit.New(db, lg)
	ledger.Attach(hooks)

	// ---- Quest service ----
	repo := snapshot.NewRepository(db)
	writer := snapshot.NewWriter(repo, snapshot.WriterConfig{
		QueueSize: cfg.Quest.SnapshotQueueSize,
		BatchSize: cfg.Quest.SnapshotBatchSize,
	}, lg)
	svc := quest.NewService(quest.Deps{
		Registry: registry,
		Conditions: condition.Options{
			Resolver: script.NewResolver(cfg.Script.VMPoolSize, cfg.Script.Timeout, lg),
		},
		Hooks:   hooks,
		PubSub:  pubsub,
		Channel: cfg.Quest.ProgressChannel,
		Tokens:  token.NewStore(c),
		Store:   repo,
		Queue:   writer,
	}, lg)
	restored, err := svc.Load(context.Background())
	if err != nil {
		lg.Fatal("quest instances load failed", zap.Error(err))
	}
	lg.Info("quest instances restored", zap.Int("count", restored))

	// ---- Scheduler ----
	limiter := mw.NewLimiter(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst)
	sched := scheduler.New(lg)
	sched.AddTicker("quest_autosave", cfg.Quest.AutosaveInterval, func(ctx context.Context) {
		svc.Snapshot()
	})
	sched.AddTicker("ratelimit_sweep", 5*time.Minute, func(ctx context.Context) {
		if n := limiter.Sweep(10 * time.Minute); n > 0 {
			lg.Debug("rate limiter swept", zap.Int("ips", n))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(lg, "/health"), mw.Recovery(lg))
	r.Use(limiter.Middleware())

	sseH := sse.NewHandler(pubsub, cfg.Quest.ProgressChannel, lg)
	apirest.Register(r, apirest.Handlers{
		Quest:   apirest.NewQuestHandler(svc),
		Player:  apirest.NewPlayerHandler(svc, lg),
		Session: apirest.NewSessionHandler(c, cfg.Security, lg),
		Admin:   apirest.NewAdminHandler(svc, sched, ledger, lg),
		Events:  sseH.ServeSSE,
	}, cfg.Server.AdminKey, mw.PlayerAuth(cfg.Security.JWTSecret, c))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		lg.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
	if err := svc.Shutdown(ctx); err != nil {
		lg.Error("quest shutdown", zap.Error(err))
	}
	ledger.Stop()
}
