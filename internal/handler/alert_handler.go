package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/internal/service"
	"github.com/mlehner/gymclub-api/pkg/response"
)

// AlertHandler exposes absence alert endpoints.
type AlertHandler struct {
	alerts   *service.AlertService
	settings *service.SettingsService
}

// NewAlertHandler constructs AlertHandler.
func NewAlertHandler(alerts *service.AlertService, settings *service.SettingsService) *AlertHandler {
	return &AlertHandler{alerts: alerts, settings: settings}
}

// LiveCounts godoc
// @Summary Athletes at or above the absence threshold
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /alerts/live [get]
func (h *AlertHandler) LiveCounts(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	counts, err := h.alerts.LiveCounts(c.Request.Context(), settings, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// Evaluate godoc
// @Summary Run the alert evaluation now
// @Description Persists alerts for athletes over the threshold, honoring the cooldown
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /alerts/evaluate [post]
func (h *AlertHandler) Evaluate(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.alerts.EvaluateAndPersist(c.Request.Context(), settings, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, created, nil)
}

// List godoc
// @Summary List persisted alerts
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param athleteId query string false "Filter by athlete"
// @Param acknowledged query bool false "Filter by acknowledgement"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	var filter models.AbsenceAlertFilter
	filter.AthleteID = c.Query("athleteId")
	if ack := c.Query("acknowledged"); ack != "" {
		v := ack == "true"
		filter.Acknowledged = &v
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	rows, total, err := h.alerts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, paginationOf(filter.Page, filter.PageSize, total))
}

// Acknowledge godoc
// @Summary Acknowledge an alert
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /alerts/{id}/acknowledge [post]
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	alert, err := h.alerts.Acknowledge(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}
