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

// SessionHandler exposes schedule and session lifecycle endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	settings *service.SettingsService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *service.SessionService, settings *service.SettingsService) *SessionHandler {
	return &SessionHandler{sessions: sessions, settings: settings}
}

// Schedule godoc
// @Summary The caller's schedule
// @Description Materializes due sessions, then lists sessions scoped to the caller's role
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param trainingId query string false "Filter by template"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param includeCancelled query bool false "Include cancelled sessions"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) Schedule(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.SessionFilter
	filter.TrainingID = c.Query("trainingId")
	filter.DateFrom = parseDateQuery(c, "from")
	filter.DateTo = parseDateQuery(c, "to")
	filter.IncludeCancelled = c.Query("includeCancelled") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	sessions, total, err := h.sessions.Schedule(c.Request.Context(), settings, filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, paginationOf(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get one session with its groups
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// CreateAdHoc godoc
// @Summary Create a one-off session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAdHocSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) CreateAdHoc(c *gin.Context) {
	var req service.CreateAdHocSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.sessions.CreateAdHoc(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Cancel godoc
// @Summary Cancel a whole session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.CancelSessionRequest true "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	var req service.CancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "a cancellation reason is required"))
		return
	}

	session, err := h.sessions.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Restore godoc
// @Summary Undo a session-level cancellation
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/restore [post]
func (h *SessionHandler) Restore(c *gin.Context) {
	session, err := h.sessions.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Complete godoc
// @Summary Mark a session as held
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) Complete(c *gin.Context) {
	session, err := h.sessions.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// UpdateGroup godoc
// @Summary Edit exercises and notes of one session group
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Session group ID"
// @Param payload body service.UpdateSessionGroupRequest true "Group edits"
// @Success 200 {object} response.Envelope
// @Router /session-groups/{groupId} [put]
func (h *SessionHandler) UpdateGroup(c *gin.Context) {
	var req service.UpdateSessionGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}

	group, err := h.sessions.UpdateGroup(c.Request.Context(), c.Param("groupId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// ReplaceGroupTrainers godoc
// @Summary Replace the trainer roster of one session group
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Session group ID"
// @Param payload body service.ReplaceGroupTrainersRequest true "Trainer roster"
// @Success 200 {object} response.Envelope
// @Router /session-groups/{groupId}/trainers [put]
func (h *SessionHandler) ReplaceGroupTrainers(c *gin.Context) {
	var req service.ReplaceGroupTrainersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid trainer roster payload"))
		return
	}

	roster, err := h.sessions.ReplaceGroupTrainers(c.Request.Context(), c.Param("groupId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// MoveAthlete godoc
// @Summary Move an athlete to another group for one session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.MoveAthleteRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/moves [post]
func (h *SessionHandler) MoveAthlete(c *gin.Context) {
	var req service.MoveAthleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}

	move, err := h.sessions.MoveAthlete(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, move, nil)
}

// ListAthleteMoves godoc
// @Summary List one-session group overrides
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/moves [get]
func (h *SessionHandler) ListAthleteMoves(c *gin.Context) {
	moves, err := h.sessions.ListAthleteMoves(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, moves, nil)
}
