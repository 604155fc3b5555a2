package mongo

import (
	"context"
	"time"

	"github.com/yoockh/casecoach/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChunkRepository interface {
	// Upsert writes the chunk keyed by session/question/take/chunk, so a resent
	// chunk replaces the earlier entry.
	Upsert(ctx context.Context, c *models.RealtimeChunk) error
	SetTakeStatus(ctx context.Context, sessionID string, questionIndex int, take uint64, status string) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.RealtimeChunk, error)
}

type chunkRepo struct {
	col *mongo.Collection
}

func NewChunkRepo(db *mongo.Database) ChunkRepository {
	return &chunkRepo{col: db.Collection("realtime_chunks")}
}

func (r *chunkRepo) Upsert(ctx context.Context, c *models.RealtimeChunk) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	_, err := r.col.ReplaceOne(ctx,
		bson.M{
			"session_id":     c.SessionID,
			"question_index": c.QuestionIndex,
			"take":           c.Take,
			"chunk_index":    c.ChunkIndex,
		},
		c,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *chunkRepo) SetTakeStatus(ctx context.Context, sessionID string, questionIndex int, take uint64, status string) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{"session_id": sessionID, "question_index": questionIndex, "take": take},
		bson.M{"$set": bson.M{"take_status": status}},
	)
	return err
}

func (r *chunkRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.RealtimeChunk, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "question_index", Value: 1}, {Key: "take", Value: 1}, {Key: "chunk_index", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RealtimeChunk
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
