package realtime

import (
	"sync"
	"time"

	"github.com/yoockh/casecoach/internal/models"
)

// FinishedTake summarizes an evicted take.
type FinishedTake struct {
	SessionID     string              `json:"session_id"`
	QuestionIndex int                 `json:"question_index"`
	Take          uint64              `json:"take"`
	Status        models.ResultStatus `json:"status"`
	Error         string              `json:"error,omitempty"`
	Transcript    string              `json:"transcript,omitempty"`
	AudioChunks   int                 `json:"audio_chunks"`
	VideoChunks   int                 `json:"video_chunks"`
	LateChunks    int                 `json:"late_chunks"`
	DurationMS    int64               `json:"duration_ms"`
	FinishedAt    time.Time           `json:"finished_at"`
}

// History keeps the most recent finished takes, newest first.
type History struct {
	mu    sync.Mutex
	size  int
	items []FinishedTake
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = 100
	}
	return &History{size: size}
}

func (h *History) Add(snap Snapshot, took time.Duration) {
	ft := FinishedTake{
		SessionID:     snap.Key.SessionID,
		QuestionIndex: snap.Key.QuestionIndex,
		Take:          snap.Take,
		AudioChunks:   len(snap.Audio),
		VideoChunks:   len(snap.Video),
		LateChunks:    len(snap.Late),
		DurationMS:    took.Milliseconds(),
		FinishedAt:    snap.UpdatedAt,
	}
	if r := snap.LastResult; r != nil {
		ft.Status = r.Status
		ft.Error = r.ErrorMessage
		ft.Transcript = r.Transcript
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append([]FinishedTake{ft}, h.items...)
	if len(h.items) > h.size {
		h.items = h.items[:h.size]
	}
}

func (h *History) Recent(limit int) []FinishedTake {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.items) {
		limit = len(h.items)
	}
	out := make([]FinishedTake, limit)
	copy(out, h.items[:limit])
	return out
}

// ForSession returns finished takes of one session, newest first.
func (h *History) ForSession(sessionID string) []FinishedTake {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []FinishedTake
	for _, it := range h.items {
		if it.SessionID == sessionID {
			out = append(out, it)
		}
	}
	return out
}
