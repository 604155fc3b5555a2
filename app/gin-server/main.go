package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yoockh/casecoach/config"
	"github.com/yoockh/casecoach/internal/app"
	"github.com/yoockh/casecoach/internal/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	cfg := config.LoadApp()
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(cfg.MongoDB); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	log.Info("MongoDB connected")

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.MigratePostgres(); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}
	log.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	log.Info("Redis connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := app.NewProviders(ctx, cfg, log)
	if err != nil {
		log.Fatalf("providers: %v", err)
	}
	defer providers.Close()

	stores := app.Stores{
		Mongo:    config.MongoDatabase(cfg.MongoDB),
		Postgres: config.PostgresDB,
		Redis:    config.RedisClient,
	}
	core, err := app.NewCore(cfg, log, stores, providers)
	if err != nil {
		log.Fatalf("core: %v", err)
	}
	srv, err := app.NewServer(cfg, log, stores, core, providers)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	go srv.Sweep(ctx, time.Minute, cfg.IdleTakeTTL)
	go func() {
		if err := core.Matcher.Warm(ctx); err != nil {
			log.WithError(err).Warn("framework embeddings not warmed, retrying on first match")
		}
	}()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	srv.Close()

	_ = config.MongoClient.Disconnect(shutdownCtx)
	_ = config.RedisClient.Close()
}
