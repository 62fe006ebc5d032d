package http

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// LanguageHandler lists the built-in language profiles.
type LanguageHandler struct{}

// NewLanguageHandler creates a new LanguageHandler.
func NewLanguageHandler() *LanguageHandler {
	return &LanguageHandler{}
}

// List handles GET /languages
func (h *LanguageHandler) List(c *gin.Context) {
	languages := make([]domain.LanguageProfile, 0, len(domain.Languages))
	for _, lang := range domain.Languages {
		languages = append(languages, lang)
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i].Name < languages[j].Name })

	c.JSON(http.StatusOK, gin.H{
		"languages": languages,
		"spj": gin.H{
			"compile": domain.CSPJCompile,
			"run":     domain.CSPJRun,
		},
	})
}
