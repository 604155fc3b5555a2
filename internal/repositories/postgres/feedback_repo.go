package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FeedbackRepository interface {
	Get(ctx context.Context, sessionID string, questionIndex int) (*models.QuestionFeedback, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.QuestionFeedback, error)
	Upsert(ctx context.Context, f *models.QuestionFeedback) error
}

type feedbackRepo struct {
	db *gorm.DB
}

func NewFeedbackRepo(db *gorm.DB) FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Get(ctx context.Context, sessionID string, questionIndex int) (*models.QuestionFeedback, error) {
	var f models.QuestionFeedback
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND question_index = ?", sessionID, questionIndex).
		Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &f, err
}

func (r *feedbackRepo) ListBySession(ctx context.Context, sessionID string) ([]models.QuestionFeedback, error) {
	var rows []models.QuestionFeedback
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_index ASC").
		Find(&rows).Error
	return rows, err
}

func (r *feedbackRepo) Upsert(ctx context.Context, f *models.QuestionFeedback) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "strengths", "improvements", "suggestions", "overall_score", "narrative", "updated_at"}),
		}).
		Create(f).Error
}
