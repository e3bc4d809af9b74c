package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

const maxSlotEdits = 64

type timetableService interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerationResponse, error)
	Simulate(ctx context.Context, req dto.SimulateTimetableRequest) (*dto.GenerationResponse, error)
	Scenario(ctx context.Context, req dto.ScenarioRequest) (*dto.GenerationResponse, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error)
	Get(ctx context.Context, id string) (*dto.TimetableDetail, error)
	UpdateSlots(ctx context.Context, id string, req dto.UpdateSlotsRequest, actor string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
	Publish(ctx context.Context, id, actor string) (*models.Timetable, error)
}

// TimetableHandler exposes generation and version management endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Generate godoc
// @Summary Generate a cohort timetable
// @Description Runs the scheduling engine against the stored catalog and persists the result as a new draft version.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "phase", result.Phase)
	middleware.SetMeta(c, "seed", result.Seed)
	response.JSON(c, http.StatusCreated, result, nil, middleware.ExtractMeta(c))
}

// Simulate godoc
// @Summary Simulate a cohort timetable
// @Description Runs the engine without persisting. An inline snapshot replaces the stored catalog.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SimulateTimetableRequest true "Simulation payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/simulate [post]
func (h *TimetableHandler) Simulate(c *gin.Context) {
	var req dto.SimulateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid simulation payload"))
		return
	}
	result, err := h.service.Simulate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "mode", "preview")
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Scenario godoc
// @Summary Run a what-if scenario
// @Description Applies course, room and instructor changes to the cohort snapshot and simulates the outcome.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.ScenarioRequest true "Scenario payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/scenarios [post]
func (h *TimetableHandler) Scenario(c *gin.Context) {
	var req dto.ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scenario payload"))
		return
	}
	result, err := h.service.Scenario(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "mode", "preview")
	if req.Scenario.Name != "" {
		middleware.SetMeta(c, "scenario", req.Scenario.Name)
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// List godoc
// @Summary List timetable versions of a cohort
// @Tags Timetables
// @Produce json
// @Param year query int true "Year"
// @Param branch query string true "Branch"
// @Param division query string true "Division"
// @Param program query string true "Program"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable query"))
		return
	}
	result, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get a timetable version
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Slots godoc
// @Summary Get the slots of a timetable version
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots [get]
func (h *TimetableHandler) Slots(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Slots, nil)
}

// UpdateSlots godoc
// @Summary Manually edit a timetable
// @Description Replaces the slots of a version and stores the edit as a new draft version.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.UpdateSlotsRequest true "Slots"
// @Success 201 {object} response.Envelope
// @Router /timetables/{id}/slots [put]
func (h *TimetableHandler) UpdateSlots(c *gin.Context) {
	var req dto.UpdateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slots payload"))
		return
	}
	if len(req.Slots) > maxSlotEdits {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "slots exceeds supported limit"))
		return
	}
	result, err := h.service.UpdateSlots(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Delete godoc
// @Summary Delete a draft timetable version
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Publish godoc
// @Summary Publish a timetable version
// @Description Archives the previously published version of the cohort. Published slots are honoured by later generations of other cohorts.
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	result, err := h.service.Publish(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
