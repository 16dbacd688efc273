package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/internal/service"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
	"github.com/mlehner/gymclub-api/pkg/response"
)

// CancellationHandler exposes the cancellation ledger endpoints.
type CancellationHandler struct {
	cancellations *service.CancellationService
	settings      *service.SettingsService
}

// NewCancellationHandler constructs CancellationHandler.
func NewCancellationHandler(cancellations *service.CancellationService, settings *service.SettingsService) *CancellationHandler {
	return &CancellationHandler{cancellations: cancellations, settings: settings}
}

func (h *CancellationHandler) respond(c *gin.Context, status int, result *service.CancellationResult) {
	var meta map[string]interface{}
	if result.DeadlinePassed {
		meta = map[string]interface{}{"deadline_passed": true}
	}
	response.JSON(c, status, result.Cancellation, nil, meta)
}

// Create godoc
// @Summary Cancel attendance for one session
// @Tags Cancellations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateCancellationRequest true "Cancellation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /cancellations [post]
func (h *CancellationHandler) Create(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancellation payload"))
		return
	}

	result, err := h.cancellations.Create(c.Request.Context(), settings, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, http.StatusCreated, result)
}

// Edit godoc
// @Summary Edit the reason of an active cancellation
// @Tags Cancellations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cancellation ID"
// @Param payload body service.EditCancellationRequest true "Reason payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /cancellations/{id} [put]
func (h *CancellationHandler) Edit(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.EditCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancellation payload"))
		return
	}

	result, err := h.cancellations.Edit(c.Request.Context(), settings, c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, http.StatusOK, result)
}

// Undo godoc
// @Summary Undo a cancellation
// @Tags Cancellations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cancellation ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /cancellations/{id}/undo [post]
func (h *CancellationHandler) Undo(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.cancellations.Undo(c.Request.Context(), settings, c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, http.StatusOK, result)
}

// BulkCreate godoc
// @Summary Cancel all matching sessions in a date range
// @Tags Cancellations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkCreateCancellationRequest true "Bulk payload"
// @Success 201 {object} response.Envelope
// @Router /cancellations/bulk [post]
func (h *CancellationHandler) BulkCreate(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.BulkCreateCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk cancellation payload"))
		return
	}

	created, err := h.cancellations.BulkCreate(c.Request.Context(), settings, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, map[string]int{"created": created}, nil)
}

// List godoc
// @Summary List cancellations
// @Tags Cancellations
// @Produce json
// @Security BearerAuth
// @Param sessionId query string false "Filter by session"
// @Param personId query string false "Filter by person"
// @Param state query string false "Filter by state"
// @Param from query string false "Session date from (YYYY-MM-DD)"
// @Param to query string false "Session date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /cancellations [get]
func (h *CancellationHandler) List(c *gin.Context) {
	var filter models.CancellationFilter
	filter.SessionID = c.Query("sessionId")
	filter.PersonID = c.Query("personId")
	if state := c.Query("state"); state != "" {
		v := models.LifecycleState(state)
		filter.State = &v
	}
	filter.DateFrom = parseDateQuery(c, "from")
	filter.DateTo = parseDateQuery(c, "to")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	rows, total, err := h.cancellations.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, paginationOf(filter.Page, filter.PageSize, total))
}
