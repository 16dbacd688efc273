package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mlehner/gymclub-api/internal/service"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
	"github.com/mlehner/gymclub-api/pkg/response"
)

// AttendanceHandler exposes attendance marking and history endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Mark godoc
// @Summary Mark attendance for one session
// @Description Upserts statuses per athlete; re-marking overwrites
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.MarkAttendanceRequest true "Attendance sheet"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	records, err := h.attendance.Mark(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ListBySession godoc
// @Summary List attendance of one session
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
func (h *AttendanceHandler) ListBySession(c *gin.Context) {
	rows, err := h.attendance.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// History godoc
// @Summary One athlete's attendance history
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Athlete ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /athletes/{id}/attendance [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	rows, err := h.attendance.History(c.Request.Context(), c.Param("id"), parseDateQuery(c, "from"), parseDateQuery(c, "to"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// SheetPDF godoc
// @Summary Attendance sheet of one session as PDF
// @Tags Attendance
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Router /sessions/{id}/attendance/pdf [get]
func (h *AttendanceHandler) SheetPDF(c *gin.Context) {
	out, err := h.attendance.SessionSheetPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "attendance.pdf"))
	c.Data(http.StatusOK, "application/pdf", out)
}
