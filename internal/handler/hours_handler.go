package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/internal/service"
	"github.com/mlehner/gymclub-api/pkg/response"
)

// HoursHandler exposes trainer hour accounting endpoints.
type HoursHandler struct {
	hours *service.HoursService
}

// NewHoursHandler constructs HoursHandler.
func NewHoursHandler(hours *service.HoursService) *HoursHandler {
	return &HoursHandler{hours: hours}
}

func (h *HoursHandler) filterFromQuery(c *gin.Context) models.TrainerHoursFilter {
	var filter models.TrainerHoursFilter
	filter.TrainerID = c.Query("trainerId")
	filter.From = parseDateQuery(c, "from")
	filter.To = parseDateQuery(c, "to")
	return filter
}

// List godoc
// @Summary Trainer hours per month
// @Tags Hours
// @Produce json
// @Security BearerAuth
// @Param trainerId query string false "Filter by trainer (admin only)"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /hours [get]
func (h *HoursHandler) List(c *gin.Context) {
	rows, err := h.hours.List(c.Request.Context(), h.filterFromQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ExportCSV godoc
// @Summary Trainer hours as CSV
// @Tags Hours
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /hours/export/csv [get]
func (h *HoursHandler) ExportCSV(c *gin.Context) {
	out, filename, err := h.hours.ExportCSV(c.Request.Context(), h.filterFromQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", out)
}

// ExportPDF godoc
// @Summary Trainer hours as PDF
// @Tags Hours
// @Produce application/pdf
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /hours/export/pdf [get]
func (h *HoursHandler) ExportPDF(c *gin.Context) {
	out, filename, err := h.hours.ExportPDF(c.Request.Context(), h.filterFromQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", out)
}
