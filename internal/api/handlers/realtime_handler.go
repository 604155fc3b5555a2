package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/realtime"
	"github.com/yoockh/casecoach/internal/services"
	"github.com/yoockh/casecoach/internal/utils"
)

const defaultMaxChunkBytes = 25 << 20

type RealtimeHandler struct {
	pipeline *realtime.Pipeline
	sessions services.SessionService
	maxBytes int64
}

func NewRealtimeHandler(p *realtime.Pipeline, sessions services.SessionService, maxChunkBytes int64) *RealtimeHandler {
	if maxChunkBytes <= 0 {
		maxChunkBytes = defaultMaxChunkBytes
	}
	return &RealtimeHandler{pipeline: p, sessions: sessions, maxBytes: maxChunkBytes}
}

func (h *RealtimeHandler) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > h.maxBytes {
		return nil, utils.E(utils.CodeInvalidArgument, "RealtimeHandler.Chunk", "chunk exceeds size limit", nil)
	}
	return b, nil
}

func formInt(c *gin.Context, name string, def int) (int, bool) {
	v := strings.TrimSpace(c.PostForm(name))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// Chunk accepts one multipart chunk (audio and/or video part).
func (h *RealtimeHandler) Chunk(c *gin.Context) {
	const op = "RealtimeHandler.Chunk"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID := c.Param("session_id")
	if _, err := ownedSession(c.Request.Context(), h.sessions, op, sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	qi, ok1 := formInt(c, "question_index", -1)
	ci, ok2 := formInt(c, "chunk_index", -1)
	if !ok1 || !ok2 {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "question_index and chunk_index must be integers", nil))
		return
	}
	ts, _ := strconv.ParseFloat(c.PostForm("timestamp"), 64)
	final, _ := strconv.ParseBool(c.PostForm("is_final"))

	env := &models.ChunkEnvelope{
		SessionID:      sessionID,
		QuestionIndex:  qi,
		ChunkIndex:     ci,
		CapturedAt:     ts,
		IsFinal:        final,
		TranscriptHint: c.PostForm("transcript"),
	}
	for name, dst := range map[string]*[]byte{"audio": &env.Audio, "video": &env.Video} {
		fh, err := c.FormFile(name)
		if err != nil {
			continue
		}
		b, err := h.readPart(fh)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "could not read "+name+" part", err))
			return
		}
		*dst = b
	}

	ack, err := h.pipeline.HandleChunk(c.Request.Context(), env)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

type questionStatus struct {
	Index        int       `json:"index"`
	Processed    bool      `json:"processed"`
	Status       string    `json:"status,omitempty"`
	Error        string    `json:"error,omitempty"`
	VectorLength int       `json:"vector_length,omitempty"`
	ActiveTake   *takeView `json:"active_take,omitempty"`
}

type takeView struct {
	SessionID     string         `json:"session_id"`
	QuestionIndex int            `json:"question_index"`
	Take          uint64         `json:"take"`
	Phase         realtime.Phase `json:"phase"`
	AudioChunks   int            `json:"audio_chunks"`
	VideoChunks   int            `json:"video_chunks"`
	LateChunks    int            `json:"late_chunks"`
	StartedAt     string         `json:"started_at"`
	UpdatedAt     string         `json:"updated_at"`
}

func viewOf(s realtime.Snapshot) *takeView {
	return &takeView{
		SessionID:     s.Key.SessionID,
		QuestionIndex: s.Key.QuestionIndex,
		Take:          s.Take,
		Phase:         s.Phase,
		AudioChunks:   len(s.Audio),
		VideoChunks:   len(s.Video),
		LateChunks:    len(s.Late),
		StartedAt:     s.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Status reports per-question processing state plus takes still in flight.
func (h *RealtimeHandler) Status(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID := c.Param("session_id")
	sess, err := ownedSession(c.Request.Context(), h.sessions, "RealtimeHandler.Status", sessionID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	active := map[int]realtime.Snapshot{}
	for _, s := range h.pipeline.Registry().Active() {
		if s.Key.SessionID == sessionID {
			active[s.Key.QuestionIndex] = s
		}
	}

	out := make([]questionStatus, 0, len(sess.Questions)+len(active))
	seen := map[int]bool{}
	for _, q := range sess.Questions {
		qs := questionStatus{
			Index:        q.Index,
			Processed:    q.ProcessedAt != nil,
			Status:       q.Status,
			Error:        q.ErrorMessage,
			VectorLength: q.VectorLength,
		}
		if s, ok := active[q.Index]; ok {
			qs.ActiveTake = viewOf(s)
		}
		seen[q.Index] = true
		out = append(out, qs)
	}
	for idx, s := range active {
		if !seen[idx] {
			out = append(out, questionStatus{Index: idx, ActiveTake: viewOf(s)})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	resp := gin.H{"session_id": sessionID, "questions": out}
	if hist := h.pipeline.History(); hist != nil {
		resp["recent_takes"] = hist.ForSession(sessionID)
	}
	c.JSON(http.StatusOK, resp)
}
