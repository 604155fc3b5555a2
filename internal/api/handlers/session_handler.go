package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/services"
	"github.com/yoockh/casecoach/internal/utils"
)

// JobQueue hands a session to the batch workers.
type JobQueue interface {
	Enqueue(ctx context.Context, sessionID string) (string, error)
}

type SessionHandler struct {
	svc     services.SessionService
	vectors services.VectorService
	queue   JobQueue
}

func NewSessionHandler(svc services.SessionService, vectors services.VectorService, queue JobQueue) *SessionHandler {
	return &SessionHandler{svc: svc, vectors: vectors, queue: queue}
}

type CreateSessionRequest struct {
	MediaPath string                    `json:"media_path"`
	Questions []models.QuestionBoundary `json:"questions"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	MediaPath string `json:"media_path"`
	Questions int    `json:"questions"`
	CreatedAt string `json:"created_at"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Create", "invalid request body", err))
			return
		}
	}

	sess, err := h.svc.Create(c.Request.Context(), userID, req.MediaPath, req.Questions)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: sess.SessionID,
		Status:    sess.Status,
		MediaPath: sess.MediaPath,
		Questions: len(sess.Questions),
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, err := ownedSession(c.Request.Context(), h.svc, "SessionHandler.Get", c.Param("session_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) End(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if _, err := ownedSession(c.Request.Context(), h.svc, "SessionHandler.End", sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	ended, err := h.svc.End(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ended)
}

// Process queues batch processing of the session's full recording.
func (h *SessionHandler) Process(c *gin.Context) {
	const op = "SessionHandler.Process"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, err := ownedSession(c.Request.Context(), h.svc, op, sessionID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.IsStreaming() {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "session has no recording; use realtime chunks instead", nil))
		return
	}
	if len(sess.Questions) == 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "session has no question boundaries", nil))
		return
	}
	if h.queue == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "batch processing is not configured", nil))
		return
	}

	jobID, err := h.queue.Enqueue(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to queue processing", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"session_id": sessionID,
		"job_id":     jobID,
		"status":     "queued",
		"questions":  len(sess.Questions),
	})
}

func (h *SessionHandler) Vectors(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if _, err := ownedSession(c.Request.Context(), h.svc, "SessionHandler.Vectors", sessionID, userID); err != nil {
		writeError(c, err)
		return
	}
	if h.vectors == nil {
		writeError(c, utils.E(utils.CodeUnavailable, "SessionHandler.Vectors", "vector storage is not configured", nil))
		return
	}

	out, err := h.vectors.Summaries(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "vectors": out})
}

func (h *SessionHandler) Similar(c *gin.Context) {
	const op = "SessionHandler.Similar"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	qi, err := intParam(c, op, "question_index")
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := ownedSession(c.Request.Context(), h.svc, op, sessionID, userID); err != nil {
		writeError(c, err)
		return
	}
	if h.vectors == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "vector storage is not configured", nil))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	out, err := h.vectors.Similar(c.Request.Context(), sessionID, qi, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "question_index": qi, "similar": out})
}
