package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/yoockh/casecoach/internal/cache"
	"github.com/yoockh/casecoach/internal/models"
	mongorepo "github.com/yoockh/casecoach/internal/repositories/mongo"
	pgrepo "github.com/yoockh/casecoach/internal/repositories/postgres"
	"github.com/yoockh/casecoach/internal/utils"
	"gorm.io/datatypes"
)

// ResultService writes processed takes onto the session question and, when
// configured, into the vector and feedback tables.
type ResultService interface {
	SaveResult(ctx context.Context, sessionID string, take uint64, res *models.ProcessedResult) error
}

type resultService struct {
	sessions mongorepo.SessionRepository
	vectors  pgrepo.VectorRepository
	feedback pgrepo.FeedbackRepository
	cache    cache.Cache
	now      func() time.Time
}

// NewResultService accepts nil vectors, feedback and cache.
func NewResultService(sessions mongorepo.SessionRepository, vectors pgrepo.VectorRepository, feedback pgrepo.FeedbackRepository, c cache.Cache) ResultService {
	return &resultService{sessions: sessions, vectors: vectors, feedback: feedback, cache: c, now: time.Now}
}

func (s *resultService) SaveResult(ctx context.Context, sessionID string, take uint64, res *models.ProcessedResult) error {
	const op = "ResultService.SaveResult"

	if sessionID == "" || res == nil {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and result are required", nil)
	}

	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	now := s.now().UTC()
	q := models.Question{Index: res.QuestionIndex}
	if existing := sess.Question(res.QuestionIndex); existing != nil {
		q = *existing
	}
	q.Status = string(res.Status)
	q.Transcript = res.Transcript
	q.BodyLanguage = res.BodyLanguage
	q.Vector = res.Vector
	q.VectorLength = len(res.Vector)
	q.Feedback = res.Feedback
	q.ErrorMessage = res.ErrorMessage
	q.RecordingURL = res.RecordingURL
	q.ProcessedAt = &now

	if err := s.sessions.SaveQuestion(ctx, sessionID, q); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save question result", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, sessionKey(sessionID))
	}

	if s.vectors != nil && res.Complete() {
		bl, _ := json.Marshal(res.BodyLanguage)
		row := &models.QuestionVector{
			ID:            uuid.NewString(),
			UserID:        sess.UserID,
			SessionID:     sessionID,
			QuestionIndex: res.QuestionIndex,
			Transcript:    res.Transcript,
			Embedding:     pgvector.NewVector(res.Vector),
			BodyLanguage:  datatypes.JSON(bl),
			CreatedAt:     now,
		}
		if err := s.vectors.Insert(ctx, row); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to store vector", err)
		}
	}

	if s.feedback != nil && res.Feedback != nil {
		fb := res.Feedback
		row := &models.QuestionFeedback{
			SessionID:     sessionID,
			QuestionIndex: res.QuestionIndex,
			UserID:        sess.UserID,
			Strengths:     fb.Strengths,
			Improvements:  fb.Improvements,
			Suggestions:   fb.Suggestions,
			OverallScore:  fb.OverallScore,
			Narrative:     fb.Narrative,
			UpdatedAt:     now,
		}
		if err := s.feedback.Upsert(ctx, row); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to store feedback", err)
		}
	}
	return nil
}
