package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/casecoach/internal/api/handlers"
	"github.com/yoockh/casecoach/internal/api/middleware"
)

type Deps struct {
	Session   *handlers.SessionHandler
	Realtime  *handlers.RealtimeHandler
	Analysis  *handlers.AnalysisHandler
	Admin     *handlers.AdminHandler
	WS        *handlers.WSHandler
	Framework *handlers.FrameworkHandler

	// Auth guards every route except /ping.
	Auth gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	auth := r.Group("/")
	auth.Use(d.Auth)

	auth.POST("/sessions", d.Session.Create)
	auth.GET("/sessions/:session_id", d.Session.Get)
	auth.POST("/sessions/:session_id/end", d.Session.End)
	auth.POST("/sessions/:session_id/process", d.Session.Process)
	auth.GET("/sessions/:session_id/vectors", d.Session.Vectors)
	auth.GET("/sessions/:session_id/questions/:question_index/similar", d.Session.Similar)
	auth.POST("/sessions/:session_id/questions/:question_index/analyze", d.Analysis.Analyze)

	auth.GET("/frameworks", d.Framework.List)
	auth.GET("/frameworks/:framework_id", d.Framework.Get)

	auth.POST("/realtime/sessions/:session_id/chunk", d.Realtime.Chunk)
	auth.GET("/realtime/sessions/:session_id/status", d.Realtime.Status)

	// WebSocket
	auth.GET("/ws/session/:session_id", d.WS.SessionWS)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/realtime/takes", d.Admin.Takes)
}
