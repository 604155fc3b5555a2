package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/config"
	"github.com/yoockh/casecoach/internal/api/handlers"
	"github.com/yoockh/casecoach/internal/api/middleware"
	"github.com/yoockh/casecoach/internal/api/routes"
	"github.com/yoockh/casecoach/internal/notify"
	"github.com/yoockh/casecoach/internal/realtime"
	"github.com/yoockh/casecoach/internal/workers"
)

type Server struct {
	Engine     *gin.Engine
	Pipeline   *realtime.Pipeline
	Dispatcher *notify.Dispatcher

	log *logrus.Logger
}

// Notifier picks the event sink and the subscriber feed for NOTIFY_BACKEND.
// "redis" fans events out through Pub/Sub so any instance can serve a
// session's WebSocket; "memory" keeps them in process.
func Notifier(cfg config.App, log *logrus.Logger, st Stores) (*notify.Dispatcher, notify.Feed) {
	if cfg.NotifyBackend == "memory" || st.Redis == nil {
		hub := notify.NewHub(cfg.WebSocketBufferSize)
		return notify.NewDispatcher(log, hub), hub
	}
	return notify.NewDispatcher(log, notify.NewRedisSink(st.Redis)), notify.NewRedisFeed(st.Redis)
}

// NewPipeline builds the realtime pipeline around core's processor.
func NewPipeline(cfg config.App, log *logrus.Logger, core *Core, pv *Providers, events notify.Publisher) (*realtime.Pipeline, error) {
	store, err := realtime.NewChunkStore(filepath.Join(cfg.TempDir, "realtime"), core.FFmpeg, log)
	if err != nil {
		return nil, err
	}
	rc := realtime.Config{
		Registry:    realtime.NewRegistry(events),
		Store:       store,
		Combiner:    realtime.NewCombiner(realtime.ParseCombineMode(cfg.CombineMode), core.FFmpeg, store.Dir(), log),
		Processor:   core.Processor,
		Events:      events,
		Results:     core.Results,
		Journal:     core.Journal,
		History:     realtime.NewHistory(cfg.HistorySize),
		TakeTimeout: cfg.TakeTimeout,
		Sync:        !cfg.Async,
		Log:         log,
	}
	if pv != nil && pv.Archive != nil {
		rc.Archive = pv.Archive
	}
	return realtime.NewPipeline(rc)
}

func NewServer(cfg config.App, log *logrus.Logger, st Stores, core *Core, pv *Providers) (*Server, error) {
	dispatcher, feed := Notifier(cfg, log, st)

	pipeline, err := NewPipeline(cfg, log, core, pv, dispatcher)
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("realtime pipeline: %w", err)
	}

	var queue handlers.JobQueue
	if st.Redis != nil {
		queue = &workers.StreamQueue{Redis: st.Redis, Stream: cfg.ProcessStream}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Session:   handlers.NewSessionHandler(core.Sessions, core.Vectors, queue),
		Realtime:  handlers.NewRealtimeHandler(pipeline, core.Sessions, cfg.MaxChunkBytes),
		Analysis:  handlers.NewAnalysisHandler(core.Analysis, core.Sessions, cfg.TempDir),
		Admin:     handlers.NewAdminHandler(pipeline),
		WS:        handlers.NewWSHandler(core.Sessions, pipeline, feed, log, cfg.MaxChunkBytes),
		Framework: handlers.NewFrameworkHandler(core.Catalog),
		Auth:      middleware.JWTAuth(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
	})

	return &Server{Engine: r, Pipeline: pipeline, Dispatcher: dispatcher, log: log}, nil
}

// Sweep evicts takes idle for longer than idle, checking every interval,
// until ctx is done.
func (s *Server) Sweep(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Pipeline.Sweep(idle); n > 0 {
				s.log.WithField("evicted", n).Info("idle takes swept")
			}
		}
	}
}

// Close waits for running takes, then flushes pending events.
func (s *Server) Close() {
	s.Pipeline.Wait()
	s.Dispatcher.Close()
}
