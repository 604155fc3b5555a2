package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error
	SetStatus(ctx context.Context, sessionID, status string) error
	// SaveQuestion replaces the question slot with the same index, or appends it.
	SaveQuestion(ctx context.Context, sessionID string, q models.Question) error
	SetAnalysis(ctx context.Context, sessionID string, questionIndex int, res *models.QuestionResult) error
	MarkProcessed(ctx context.Context, sessionID string, at time.Time) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	if mongo.IsDuplicateKeyError(err) {
		return utils.E(utils.CodeConflict, "SessionRepo.Create", "session already exists", err)
	}
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error {
	return r.update(ctx, bson.M{"session_id": sessionID}, bson.M{"$set": bson.M{
		"status":           "ended",
		"ended_at":         endedAt.UTC(),
		"duration_seconds": durationSeconds,
	}})
}

func (r *sessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	return r.update(ctx, bson.M{"session_id": sessionID}, bson.M{"$set": bson.M{"status": status}})
}

func (r *sessionRepo) SaveQuestion(ctx context.Context, sessionID string, q models.Question) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "questions.index": q.Index},
		bson.M{"$set": bson.M{"questions.$": q}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return r.update(ctx, bson.M{"session_id": sessionID}, bson.M{"$push": bson.M{"questions": q}})
}

func (r *sessionRepo) SetAnalysis(ctx context.Context, sessionID string, questionIndex int, res *models.QuestionResult) error {
	err := r.update(ctx,
		bson.M{"session_id": sessionID, "questions.index": questionIndex},
		bson.M{"$set": bson.M{"questions.$.analysis": res}},
	)
	if !errors.Is(err, utils.ErrNotFound) {
		return err
	}
	return r.update(ctx, bson.M{"session_id": sessionID}, bson.M{"$push": bson.M{
		"questions": models.Question{Index: questionIndex, Transcript: res.Transcript, Analysis: res},
	}})
}

func (r *sessionRepo) MarkProcessed(ctx context.Context, sessionID string, at time.Time) error {
	return r.update(ctx, bson.M{"session_id": sessionID}, bson.M{"$set": bson.M{"processed_at": at.UTC()}})
}

func (r *sessionRepo) update(ctx context.Context, filter, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
