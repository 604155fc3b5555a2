package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/config"
	"github.com/yoockh/casecoach/internal/analysis"
	"github.com/yoockh/casecoach/internal/cache"
	"github.com/yoockh/casecoach/internal/media"
	"github.com/yoockh/casecoach/internal/providers/bodylang"
	"github.com/yoockh/casecoach/internal/providers/embedding"
	"github.com/yoockh/casecoach/internal/realtime"
	mongorepo "github.com/yoockh/casecoach/internal/repositories/mongo"
	pgrepo "github.com/yoockh/casecoach/internal/repositories/postgres"
	"github.com/yoockh/casecoach/internal/services"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

type Stores struct {
	Mongo    *mongo.Database
	Postgres *gorm.DB
	Redis    *redis.Client
}

// Core is what the server and the worker share.
type Core struct {
	Sessions  services.SessionService
	Results   services.ResultService
	Journal   services.JournalService
	Vectors   services.VectorService
	Analysis  services.AnalysisService
	Processor *realtime.Processor
	FFmpeg    *media.FFmpeg
	Catalog   *analysis.Catalog
	Matcher   *analysis.Matcher
}

func NewCore(cfg config.App, log *logrus.Logger, st Stores, pv *Providers) (*Core, error) {
	if st.Mongo == nil || st.Postgres == nil || st.Redis == nil {
		return nil, fmt.Errorf("core needs Mongo, Postgres and Redis")
	}

	sessionRepo := mongorepo.NewSessionRepo(st.Mongo)
	vectorRepo := pgrepo.NewVectorRepo(st.Postgres)
	sessionCache := cache.NewRedisCache(st.Redis, "casecoach")

	builder := embedding.NewBuilder(pv.Embedder, cfg.EmbeddingDim, log)
	feedback := &analysis.FeedbackGenerator{LLM: pv.LLM, Log: log}
	body := bodylang.Seeded{}

	proc := &realtime.Processor{
		STT:          pv.STT,
		Body:         body,
		Vectors:      builder,
		Feedback:     feedback,
		StageTimeout: cfg.StageTimeout,
		Log:          log,
	}

	catalog, err := analysis.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("framework catalog: %w", err)
	}
	var matchEmbedder analysis.Embedder
	if pv.Embedder != nil {
		matchEmbedder = pv.Embedder
	}
	matcher := analysis.NewMatcher(catalog, matchEmbedder, log)
	analyzer := &analysis.Analyzer{
		Catalog:  catalog,
		Matcher:  matcher,
		Mindmap:  &analysis.Mindmapper{LLM: pv.LLM, Log: log},
		Grader:   &analysis.Grader{LLM: pv.LLM, Log: log},
		Feedback: feedback,
	}

	return &Core{
		Sessions:  services.NewSessionService(sessionRepo, sessionCache, cfg.SessionCacheTTL),
		Results:   services.NewResultService(sessionRepo, vectorRepo, pgrepo.NewFeedbackRepo(st.Postgres), sessionCache),
		Journal:   services.NewJournalService(mongorepo.NewChunkRepo(st.Mongo), cfg.ChunkJournalTTL),
		Vectors:   services.NewVectorService(vectorRepo),
		Analysis:  services.NewAnalysisService(sessionRepo, analyzer, pv.STT, body, sessionCache),
		Processor: proc,
		FFmpeg:    media.NewFFmpeg(cfg.FFmpegPath),
		Catalog:   catalog,
		Matcher:   matcher,
	}, nil
}
