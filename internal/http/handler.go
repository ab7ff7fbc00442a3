package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/rmshkv/mom6-tools/internal/usecase"
)

// Handler serves computed reductions for one diagnosed case.
type Handler struct {
	diag *usecase.Diagnostics

	mu    sync.Mutex
	cache map[string]*usecase.VariableStats // keyed by variable name
}

// NewHandler creates an HTTP handler around a diagnostics use case.
func NewHandler(diag *usecase.Diagnostics) *Handler {
	return &Handler{
		diag:  diag,
		cache: make(map[string]*usecase.VariableStats),
	}
}

// GetStats handles GET /v1/stats?variable=thetao.
func (h *Handler) GetStats(c *gin.Context) {
	varName := c.Query("variable")
	if varName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variable parameter is required"})
		return
	}
	if !h.knownVariable(varName) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unknown variable %s (configured: %s)", varName, strings.Join(h.diag.Variables(), ", ")),
		})
		return
	}

	stats, err := h.statsFor(varName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// statsFor computes a variable's reductions once and caches them; the
// inputs are static for the lifetime of the server.
func (h *Handler) statsFor(varName string) (*usecase.VariableStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.cache[varName]; ok {
		return s, nil
	}
	s, err := h.diag.ResidualStats(varName)
	if err != nil {
		return nil, err
	}
	h.cache[varName] = s
	return s, nil
}

func (h *Handler) knownVariable(varName string) bool {
	for _, v := range h.diag.Variables() {
		if v == varName {
			return true
		}
	}
	return false
}

// GetBasins handles GET /v1/basins.
func (h *Handler) GetBasins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"regions": h.diag.Regions()})
}

// GetSections handles GET /v1/sections.
func (h *Handler) GetSections(c *gin.Context) {
	sections, failures := h.diag.TransportSections()

	type sectionJSON struct {
		Label string    `json:"label"`
		Time  []float64 `json:"time"`
		Data  []float64 `json:"data_sv"`
		Mean  float64   `json:"mean_sv"`
	}
	out := make([]sectionJSON, 0, len(sections))
	for _, s := range sections {
		out = append(out, sectionJSON{
			Label: s.Label,
			Time:  s.Time,
			Data:  s.Data,
			Mean:  s.Mean(),
		})
	}
	warnings := make([]string, 0, len(failures))
	for _, err := range failures {
		warnings = append(warnings, err.Error())
	}
	c.JSON(http.StatusOK, gin.H{"sections": out, "warnings": warnings})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
