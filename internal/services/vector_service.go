package services

import (
	"context"
	"encoding/json"

	"github.com/yoockh/casecoach/internal/models"
	pgrepo "github.com/yoockh/casecoach/internal/repositories/postgres"
	"github.com/yoockh/casecoach/internal/utils"
)

type VectorService interface {
	Summaries(ctx context.Context, sessionID string) ([]models.VectorSummary, error)
	// Similar finds the user's past answers closest to the latest vector of
	// the given question.
	Similar(ctx context.Context, sessionID string, questionIndex, limit int) ([]models.VectorSummary, error)
}

type vectorService struct {
	vectors pgrepo.VectorRepository
}

func NewVectorService(vectors pgrepo.VectorRepository) VectorService {
	return &vectorService{vectors: vectors}
}

func summarize(v models.QuestionVector) models.VectorSummary {
	out := models.VectorSummary{
		SessionID:     v.SessionID,
		QuestionIndex: v.QuestionIndex,
		VectorLength:  len(v.Embedding.Slice()),
		Transcript:    v.Transcript,
		CreatedAt:     v.CreatedAt,
	}
	if len(v.BodyLanguage) > 0 {
		var bl models.BodyLanguage
		if err := json.Unmarshal(v.BodyLanguage, &bl); err == nil {
			out.BodyLanguage = &bl
		}
	}
	return out
}

func (s *vectorService) Summaries(ctx context.Context, sessionID string) ([]models.VectorSummary, error) {
	const op = "VectorService.Summaries"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	rows, err := s.vectors.ListBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list vectors", err)
	}
	out := make([]models.VectorSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, summarize(r))
	}
	return out, nil
}

func (s *vectorService) Similar(ctx context.Context, sessionID string, questionIndex, limit int) ([]models.VectorSummary, error) {
	const op = "VectorService.Similar"

	if sessionID == "" || questionIndex < 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and question_index are required", nil)
	}
	rows, err := s.vectors.ListBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list vectors", err)
	}

	// rows are ordered by question, newest first
	var anchor *models.QuestionVector
	for i := range rows {
		if rows[i].QuestionIndex == questionIndex {
			anchor = &rows[i]
			break
		}
	}
	if anchor == nil {
		return nil, utils.E(utils.CodeNotFound, op, "question has no vector yet", nil)
	}

	hits, err := s.vectors.Nearest(ctx, anchor.UserID, anchor.Embedding.Slice(), sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "similarity search failed", err)
	}
	out := make([]models.VectorSummary, 0, len(hits))
	for _, h := range hits {
		sum := summarize(h.QuestionVector)
		d := h.Distance
		sum.Distance = &d
		out = append(out, sum)
	}
	return out, nil
}
