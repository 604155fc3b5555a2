package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/yoockh/casecoach/internal/models"
	"gorm.io/gorm"
)

type VectorHit struct {
	models.QuestionVector `gorm:"embedded"`
	Distance              float64 `gorm:"column:distance"`
}

type VectorRepository interface {
	Insert(ctx context.Context, v *models.QuestionVector) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.QuestionVector, error)
	// Nearest returns the user's answers closest to embedding by cosine
	// distance, skipping the given session.
	Nearest(ctx context.Context, userID string, embedding []float32, excludeSession string, limit int) ([]VectorHit, error)
}

type vectorRepo struct {
	db *gorm.DB
}

func NewVectorRepo(db *gorm.DB) VectorRepository {
	return &vectorRepo{db: db}
}

func (r *vectorRepo) Insert(ctx context.Context, v *models.QuestionVector) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *vectorRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.QuestionVector, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.QuestionVector
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_index ASC, created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *vectorRepo) Nearest(ctx context.Context, userID string, embedding []float32, excludeSession string, limit int) ([]VectorHit, error) {
	if limit <= 0 {
		limit = 5
	}

	var hits []VectorHit
	err := r.db.WithContext(ctx).
		Model(&models.QuestionVector{}).
		Select("*, embedding <=> ? AS distance", pgvector.NewVector(embedding)).
		Where("user_id = ? AND session_id <> ? AND vector_dims(embedding) = ?", userID, excludeSession, len(embedding)).
		Order("distance ASC").
		Limit(limit).
		Scan(&hits).Error
	return hits, err
}
