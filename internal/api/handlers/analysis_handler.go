package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/services"
	"github.com/yoockh/casecoach/internal/utils"
)

type AnalysisHandler struct {
	svc      services.AnalysisService
	sessions services.SessionService
	tempDir  string
}

func NewAnalysisHandler(svc services.AnalysisService, sessions services.SessionService, tempDir string) *AnalysisHandler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &AnalysisHandler{svc: svc, sessions: sessions, tempDir: tempDir}
}

// Analyze grades one answer from an uploaded audio part or a transcript field.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	const op = "AnalysisHandler.Analyze"

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
	if _, err := ownedSession(c.Request.Context(), h.sessions, op, sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	in := services.AnalyzeInput{Transcript: c.PostForm("transcript")}
	if raw := c.PostForm("body_language"); raw != "" {
		var bl models.BodyLanguage
		if err := json.Unmarshal([]byte(raw), &bl); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "body_language must be a JSON object", err))
			return
		}
		in.BodyLanguage = &bl
	}

	if fh, err := c.FormFile("audio"); err == nil && in.Transcript == "" {
		dst := filepath.Join(h.tempDir, fmt.Sprintf("analyze-%s-q%d-%s%s", sessionID, qi, uuid.NewString()[:8], filepath.Ext(fh.Filename)))
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			writeError(c, utils.E(utils.CodeUnavailable, op, "could not store audio", err))
			return
		}
		defer os.Remove(dst)
		in.AudioHandle = dst
	}

	res, err := h.svc.Analyze(c.Request.Context(), sessionID, qi, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
