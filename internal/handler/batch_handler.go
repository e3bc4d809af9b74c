package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

type batchService interface {
	Submit(ctx context.Context, req dto.BatchGenerateRequest, actor string) (*dto.BatchJobResponse, error)
	Get(ctx context.Context, id string) (*dto.BatchJobResponse, error)
}

// BatchHandler exposes multi-cohort generation jobs.
type BatchHandler struct {
	service batchService
}

// NewBatchHandler constructs the handler.
func NewBatchHandler(svc batchService) *BatchHandler {
	return &BatchHandler{service: svc}
}

// Submit godoc
// @Summary Generate timetables for several cohorts
// @Description Cohorts are generated by a worker pool; poll the job for progress.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Batch payload"
// @Success 202 {object} response.Envelope
// @Router /timetables/batch [post]
func (h *BatchHandler) Submit(c *gin.Context) {
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	job, err := h.service.Submit(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Get batch job progress
// @Tags Timetables
// @Produce json
// @Param jobId path string true "Batch job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/batch/{jobId} [get]
func (h *BatchHandler) Status(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
