package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

type conflictService interface {
	Detect(ctx context.Context, id string) (*dto.ConflictReportResponse, error)
	Resolve(ctx context.Context, id, actor string) (*dto.ResolveResponse, error)
}

// ConflictHandler exposes conflict detection and resolution.
type ConflictHandler struct {
	service conflictService
}

// NewConflictHandler constructs the handler.
func NewConflictHandler(svc conflictService) *ConflictHandler {
	return &ConflictHandler{service: svc}
}

// Detect godoc
// @Summary Detect conflicts in a timetable version
// @Tags Conflicts
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/conflicts [get]
func (h *ConflictHandler) Detect(c *gin.Context) {
	report, err := h.service.Detect(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Cached)
	middleware.SetMeta(c, "conflicts", len(report.Conflicts))
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

// Resolve godoc
// @Summary Resolve conflicts by relocating slots
// @Description Moves conflicting slots into free cells and stores the result as a new draft version.
// @Tags Conflicts
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	result, err := h.service.Resolve(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Timetable != nil {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil)
}
