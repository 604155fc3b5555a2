package services

import (
	"context"
	"time"

	"github.com/yoockh/casecoach/internal/models"
	mongorepo "github.com/yoockh/casecoach/internal/repositories/mongo"
	"github.com/yoockh/casecoach/internal/utils"
)

// JournalService keeps the realtime chunk journal. Entries expire after ttl.
type JournalService interface {
	Record(ctx context.Context, c *models.RealtimeChunk) error
	MarkTake(ctx context.Context, sessionID string, questionIndex int, take uint64, status string) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.RealtimeChunk, error)
}

type journalService struct {
	chunks mongorepo.ChunkRepository
	ttl    time.Duration
}

func NewJournalService(chunks mongorepo.ChunkRepository, ttl time.Duration) JournalService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &journalService{chunks: chunks, ttl: ttl}
}

func (s *journalService) Record(ctx context.Context, c *models.RealtimeChunk) error {
	const op = "JournalService.Record"

	if c == nil || c.SessionID == "" || c.ChunkIndex < 0 {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required and chunk_index must be >= 0", nil)
	}

	now := time.Now().UTC()
	c.Timestamp = now
	c.ExpiresAt = now.Add(s.ttl)
	if err := s.chunks.Upsert(ctx, c); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to journal chunk", err)
	}
	return nil
}

func (s *journalService) MarkTake(ctx context.Context, sessionID string, questionIndex int, take uint64, status string) error {
	const op = "JournalService.MarkTake"

	if sessionID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and status are required", nil)
	}
	if err := s.chunks.SetTakeStatus(ctx, sessionID, questionIndex, take, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update take status", err)
	}
	return nil
}

func (s *journalService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.RealtimeChunk, error) {
	const op = "JournalService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.chunks.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list chunk journal", err)
	}
	return out, nil
}
