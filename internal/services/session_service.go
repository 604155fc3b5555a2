package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/yoockh/casecoach/internal/cache"
	"github.com/yoockh/casecoach/internal/models"
	mongorepo "github.com/yoockh/casecoach/internal/repositories/mongo"
	"github.com/yoockh/casecoach/internal/utils"

	"github.com/google/uuid"
)

type SessionService interface {
	Create(ctx context.Context, userID, mediaPath string, questions []models.QuestionBoundary) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	End(ctx context.Context, sessionID string) (*models.Session, error)
	SetStatus(ctx context.Context, sessionID, status string) error
	MarkProcessed(ctx context.Context, sessionID string) error
}

type sessionService struct {
	sessions mongorepo.SessionRepository
	cache    cache.Cache
	ttl      time.Duration
}

// NewSessionService caches Get results for ttl when c is not nil.
func NewSessionService(sessions mongorepo.SessionRepository, c cache.Cache, ttl time.Duration) SessionService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &sessionService{sessions: sessions, cache: c, ttl: ttl}
}

func sessionKey(sessionID string) string { return cache.Key("session", sessionID) }

func (s *sessionService) Create(ctx context.Context, userID, mediaPath string, questions []models.QuestionBoundary) (*models.Session, error) {
	const op = "SessionService.Create"

	mediaPath = strings.TrimSpace(mediaPath)
	if mediaPath == "" {
		mediaPath = models.StreamingMediaPath
	}

	qs := make([]models.Question, 0, len(questions))
	seen := map[int]bool{}
	for _, b := range questions {
		if b.Index < 1 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "question index must be >= 1", nil)
		}
		if seen[b.Index] {
			return nil, utils.E(utils.CodeInvalidArgument, op, "question indexes must be unique", nil)
		}
		if b.StartTs < 0 || b.EndTs < b.StartTs {
			return nil, utils.E(utils.CodeInvalidArgument, op, "question boundaries need 0 <= start_ts <= end_ts", nil)
		}
		seen[b.Index] = true
		qs = append(qs, models.Question{Index: b.Index, StartTs: b.StartTs, EndTs: b.EndTs})
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].Index < qs[j].Index })

	session := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		MediaPath: mediaPath,
		Status:    "active",
		Questions: qs,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	out, err := cache.Remember(ctx, s.cache, sessionKey(sessionID), s.ttl, func(ctx context.Context) (*models.Session, error) {
		return s.sessions.GetBySessionID(ctx, sessionID)
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *sessionService) End(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.End"

	ss, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dur := int64(now.Sub(ss.CreatedAt).Seconds())
	if dur < 0 {
		dur = 0
	}

	if err := s.sessions.End(ctx, sessionID, now, dur); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end session", err)
	}
	s.forget(ctx, sessionID)

	ss.Status = "ended"
	ss.EndedAt = &now
	ss.DurationSeconds = dur
	return ss, nil
}

func (s *sessionService) SetStatus(ctx context.Context, sessionID, status string) error {
	const op = "SessionService.SetStatus"

	if sessionID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and status are required", nil)
	}
	if err := s.sessions.SetStatus(ctx, sessionID, status); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	s.forget(ctx, sessionID)
	return nil
}

func (s *sessionService) MarkProcessed(ctx context.Context, sessionID string) error {
	const op = "SessionService.MarkProcessed"

	if err := s.sessions.MarkProcessed(ctx, sessionID, time.Now()); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to mark session processed", err)
	}
	s.forget(ctx, sessionID)
	return nil
}

func (s *sessionService) forget(ctx context.Context, sessionID string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, sessionKey(sessionID))
	}
}
