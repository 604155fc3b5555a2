package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yoockh/casecoach/internal/models"
	pgrepo "github.com/yoockh/casecoach/internal/repositories/postgres"
	"github.com/yoockh/casecoach/internal/utils"
)

type memSessions struct {
	mu    sync.Mutex
	byID  map[string]*models.Session
	gets  int
	fails error
}

func newMemSessions(seed ...*models.Session) *memSessions {
	m := &memSessions{byID: map[string]*models.Session{}}
	for _, s := range seed {
		m.byID[s.SessionID] = s
	}
	return m
}

func (m *memSessions) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails != nil {
		return m.fails
	}
	cp := *s
	m.byID[s.SessionID] = &cp
	return nil
}

func (m *memSessions) GetBySessionID(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	s, ok := m.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *s
	cp.Questions = append([]models.Question(nil), s.Questions...)
	return &cp, nil
}

func (m *memSessions) with(id string, fn func(s *models.Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	fn(s)
	return nil
}

func (m *memSessions) End(_ context.Context, id string, at time.Time, dur int64) error {
	return m.with(id, func(s *models.Session) {
		s.Status = "ended"
		s.EndedAt = &at
		s.DurationSeconds = dur
	})
}

func (m *memSessions) SetStatus(_ context.Context, id, status string) error {
	return m.with(id, func(s *models.Session) { s.Status = status })
}

func (m *memSessions) SaveQuestion(_ context.Context, id string, q models.Question) error {
	return m.with(id, func(s *models.Session) {
		if existing := s.Question(q.Index); existing != nil {
			*existing = q
			return
		}
		s.Questions = append(s.Questions, q)
	})
}

func (m *memSessions) SetAnalysis(_ context.Context, id string, idx int, res *models.QuestionResult) error {
	return m.with(id, func(s *models.Session) {
		if q := s.Question(idx); q != nil {
			q.Analysis = res
			return
		}
		s.Questions = append(s.Questions, models.Question{Index: idx, Transcript: res.Transcript, Analysis: res})
	})
}

func (m *memSessions) MarkProcessed(_ context.Context, id string, at time.Time) error {
	return m.with(id, func(s *models.Session) { s.ProcessedAt = &at })
}

type memChunks struct {
	rows     []models.RealtimeChunk
	statuses map[uint64]string
}

func (m *memChunks) Upsert(_ context.Context, c *models.RealtimeChunk) error {
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memChunks) SetTakeStatus(_ context.Context, _ string, _ int, take uint64, status string) error {
	if m.statuses == nil {
		m.statuses = map[uint64]string{}
	}
	m.statuses[take] = status
	return nil
}

func (m *memChunks) ListBySession(_ context.Context, sid string, _ int64) ([]models.RealtimeChunk, error) {
	var out []models.RealtimeChunk
	for _, r := range m.rows {
		if r.SessionID == sid {
			out = append(out, r)
		}
	}
	return out, nil
}

type memVectors struct {
	rows      []models.QuestionVector
	hits      []pgrepo.VectorHit
	nearestTo []float32
	fail      error
}

func (m *memVectors) Insert(_ context.Context, v *models.QuestionVector) error {
	if m.fail != nil {
		return m.fail
	}
	m.rows = append(m.rows, *v)
	return nil
}

func (m *memVectors) ListBySession(_ context.Context, sid string, _ int) ([]models.QuestionVector, error) {
	var out []models.QuestionVector
	for _, r := range m.rows {
		if r.SessionID == sid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memVectors) Nearest(_ context.Context, _ string, emb []float32, _ string, _ int) ([]pgrepo.VectorHit, error) {
	m.nearestTo = emb
	return m.hits, nil
}

type memFeedback struct {
	rows map[int]models.QuestionFeedback
}

func (m *memFeedback) Get(_ context.Context, _ string, q int) (*models.QuestionFeedback, error) {
	f, ok := m.rows[q]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &f, nil
}

func (m *memFeedback) ListBySession(_ context.Context, _ string) ([]models.QuestionFeedback, error) {
	var out []models.QuestionFeedback
	for _, f := range m.rows {
		out = append(out, f)
	}
	return out, nil
}

func (m *memFeedback) Upsert(_ context.Context, f *models.QuestionFeedback) error {
	if m.rows == nil {
		m.rows = map[int]models.QuestionFeedback{}
	}
	m.rows[f.QuestionIndex] = *f
	return nil
}

type fakeSTT struct {
	text string
	err  error
	got  string
}

func (f *fakeSTT) Transcribe(_ context.Context, handle string) (string, error) {
	f.got = handle
	return f.text, f.err
}

var errDown = errors.New("down")
