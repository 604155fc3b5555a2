package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yoockh/casecoach/internal/analysis"
	"github.com/yoockh/casecoach/internal/cache"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/realtime"
	mongorepo "github.com/yoockh/casecoach/internal/repositories/mongo"
	"github.com/yoockh/casecoach/internal/utils"
)

type AnalyzeInput struct {
	Transcript string
	// AudioHandle is transcribed when Transcript is empty.
	AudioHandle  string
	BodyLanguage *models.BodyLanguage
}

type AnalysisService interface {
	Analyze(ctx context.Context, sessionID string, questionIndex int, in AnalyzeInput) (*models.QuestionResult, error)
}

type analysisService struct {
	sessions mongorepo.SessionRepository
	analyzer *analysis.Analyzer
	stt      realtime.Transcriber
	body     realtime.BodyAnalyzer
	cache    cache.Cache
}

func NewAnalysisService(sessions mongorepo.SessionRepository, a *analysis.Analyzer, stt realtime.Transcriber, body realtime.BodyAnalyzer, c cache.Cache) AnalysisService {
	return &analysisService{sessions: sessions, analyzer: a, stt: stt, body: body, cache: c}
}

func (s *analysisService) Analyze(ctx context.Context, sessionID string, questionIndex int, in AnalyzeInput) (*models.QuestionResult, error) {
	const op = "AnalysisService.Analyze"

	if sessionID == "" || questionIndex < 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and question_index are required", nil)
	}
	if _, err := s.sessions.GetBySessionID(ctx, sessionID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	transcript := strings.TrimSpace(in.Transcript)
	if transcript == "" && in.AudioHandle != "" {
		if s.stt == nil {
			return nil, utils.E(utils.CodeUnavailable, op, "speech-to-text is not configured", nil)
		}
		text, err := s.stt.Transcribe(ctx, in.AudioHandle)
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "transcription failed", err)
		}
		transcript = text
	}
	if transcript == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio or transcript is required", nil)
	}

	var bl models.BodyLanguage
	switch {
	case in.BodyLanguage != nil:
		bl = *in.BodyLanguage
	case s.body != nil:
		v, err := s.body.Analyze(ctx, fmt.Sprintf("%s-q%d", sessionID, questionIndex))
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "body language analysis failed", err)
		}
		bl = v
	}

	res, err := s.analyzer.Analyze(ctx, sessionID, questionIndex, transcript, bl)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetAnalysis(ctx, sessionID, questionIndex, res); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store analysis", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, sessionKey(sessionID))
	}
	return res, nil
}
