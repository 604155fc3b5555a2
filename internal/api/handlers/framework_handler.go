package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/casecoach/internal/analysis"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/utils"
)

type FrameworkHandler struct {
	catalog *analysis.Catalog
}

func NewFrameworkHandler(c *analysis.Catalog) *FrameworkHandler {
	return &FrameworkHandler{catalog: c}
}

type frameworkSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

type frameworkDetail struct {
	frameworkSummary
	Domain string             `json:"domain,omitempty"`
	Source string             `json:"source,omitempty"`
	Tags   []string           `json:"tags"`
	Tree   models.MindmapTree `json:"tree"`
}

func (h *FrameworkHandler) List(c *gin.Context) {
	all := h.catalog.All()
	out := make([]frameworkSummary, 0, len(all))
	for _, f := range all {
		out = append(out, frameworkSummary{ID: f.ID, Name: f.Name, Description: f.Description, Category: f.Category})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "frameworks": out})
}

func (h *FrameworkHandler) Get(c *gin.Context) {
	const op = "FrameworkHandler.Get"
	f, ok := h.catalog.Get(c.Param("framework_id"))
	if !ok {
		writeError(c, utils.E(utils.CodeNotFound, op, "framework not found", nil))
		return
	}
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	c.JSON(http.StatusOK, frameworkDetail{
		frameworkSummary: frameworkSummary{ID: f.ID, Name: f.Name, Description: f.Description, Category: f.Category},
		Domain:           f.Domain,
		Source:           f.Source,
		Tags:             tags,
		Tree:             f.Tree(),
	})
}
