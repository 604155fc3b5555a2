package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/casecoach/internal/realtime"
)

type AdminHandler struct {
	pipeline *realtime.Pipeline
}

func NewAdminHandler(p *realtime.Pipeline) *AdminHandler {
	return &AdminHandler{pipeline: p}
}

// Takes lists in-flight takes and the most recent finished ones.
func (h *AdminHandler) Takes(c *gin.Context) {
	active := h.pipeline.Registry().Active()
	views := make([]*takeView, 0, len(active))
	for _, s := range active {
		views = append(views, viewOf(s))
	}

	resp := gin.H{"active": views, "count": len(views)}
	if hist := h.pipeline.History(); hist != nil {
		limit, _ := strconv.Atoi(c.DefaultQuery("recent", "20"))
		resp["recent"] = hist.Recent(limit)
	}
	c.JSON(http.StatusOK, resp)
}
