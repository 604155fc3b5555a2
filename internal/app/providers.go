// Package app assembles the HTTP server and the batch worker from config.App.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/config"
	"github.com/yoockh/casecoach/internal/providers/embedding"
	"github.com/yoockh/casecoach/internal/providers/llm"
	"github.com/yoockh/casecoach/internal/providers/stt"
	"github.com/yoockh/casecoach/internal/realtime"
	"github.com/yoockh/casecoach/internal/storage"
)

// Providers are the external model clients. Any of them may be nil; the
// pipeline and analysis fall back to heuristics for the missing ones.
type Providers struct {
	STT      realtime.Transcriber
	LLM      llm.Provider
	Embedder embedding.Embedder
	Archive  realtime.Archiver

	closers []func() error
}

func NewProviders(ctx context.Context, cfg config.App, log *logrus.Logger) (*Providers, error) {
	p := &Providers{}

	switch cfg.STTProvider {
	case "google":
		g, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("google speech: %w", err)
		}
		p.closers = append(p.closers, g.Close)
		p.STT = &stt.FileTranscriber{Provider: g, Language: cfg.STTLanguage}
	case "", "none":
	default:
		return nil, fmt.Errorf("unknown STT_PROVIDER %q", cfg.STTProvider)
	}

	switch cfg.LLMProvider {
	case "vertex":
		if cfg.GCPProjectID == "" {
			log.Warn("GCP_PROJECT_ID is not set, running without an LLM")
			break
		}
		v, err := llm.NewVertexGemini(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.VertexModel)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("vertex gemini: %w", err)
		}
		p.closers = append(p.closers, v.Close)
		p.LLM = v
	case "openai":
		c := llm.NewOpenAIChat(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIChatModel)
		p.closers = append(p.closers, c.Close)
		p.LLM = c
	case "", "none":
	default:
		p.Close()
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	if cfg.OpenAIAPIKey != "" {
		p.Embedder = embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbedModel, cfg.EmbeddingDim)
	}

	if cfg.GCSBucket != "" {
		u, err := storage.NewGCSUploader(ctx, cfg.GCSBucket, cfg.GCSPublic)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("gcs: %w", err)
		}
		p.closers = append(p.closers, u.Close)
		p.Archive = storage.NewRecordingArchiver(u)
	}

	log.WithFields(logrus.Fields{
		"stt":       cfg.STTProvider,
		"llm":       cfg.LLMProvider,
		"embedder":  p.Embedder != nil,
		"archiving": p.Archive != nil,
	}).Info("providers ready")
	return p, nil
}

func (p *Providers) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i]()
	}
	p.closers = nil
}
