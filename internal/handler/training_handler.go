package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/internal/service"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
	"github.com/mlehner/gymclub-api/pkg/response"
)

// TrainingHandler exposes recurring training template endpoints.
type TrainingHandler struct {
	trainings *service.TrainingService
}

// NewTrainingHandler constructs TrainingHandler.
func NewTrainingHandler(trainings *service.TrainingService) *TrainingHandler {
	return &TrainingHandler{trainings: trainings}
}

// List godoc
// @Summary List training templates
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param state query string false "Filter by lifecycle state"
// @Param dayOfWeek query int false "Filter by weekday (0=Sunday)"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /trainings [get]
func (h *TrainingHandler) List(c *gin.Context) {
	var filter models.TrainingFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if state := c.Query("state"); state != "" {
		v := models.LifecycleState(state)
		filter.State = &v
	}
	if day := c.Query("dayOfWeek"); day != "" {
		if v, err := strconv.Atoi(day); err == nil {
			filter.DayOfWeek = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	trainings, total, err := h.trainings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trainings, paginationOf(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get one training template
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [get]
func (h *TrainingHandler) Get(c *gin.Context) {
	training, err := h.trainings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// Create godoc
// @Summary Create a training template
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.TrainingRequest true "Training payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /trainings [post]
func (h *TrainingHandler) Create(c *gin.Context) {
	var req service.TrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid training payload"))
		return
	}

	training, err := h.trainings.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, training)
}

// Update godoc
// @Summary Update a training template
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Param payload body service.TrainingRequest true "Training payload"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [put]
func (h *TrainingHandler) Update(c *gin.Context) {
	var req service.TrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid training payload"))
		return
	}

	training, err := h.trainings.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// Retire godoc
// @Summary Retire a training template
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 204 {object} response.Envelope
// @Router /trainings/{id} [delete]
func (h *TrainingHandler) Retire(c *gin.Context) {
	if err := h.trainings.Retire(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListGroups godoc
// @Summary List groups of a template
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id}/groups [get]
func (h *TrainingHandler) ListGroups(c *gin.Context) {
	groups, err := h.trainings.ListGroups(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// CreateGroup godoc
// @Summary Add a group to a template
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Param payload body service.GroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Router /trainings/{id}/groups [post]
func (h *TrainingHandler) CreateGroup(c *gin.Context) {
	var req service.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}

	group, err := h.trainings.CreateGroup(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// UpdateGroup godoc
// @Summary Update a group
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param payload body service.GroupRequest true "Group payload"
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId} [put]
func (h *TrainingHandler) UpdateGroup(c *gin.Context) {
	var req service.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}

	group, err := h.trainings.UpdateGroup(c.Request.Context(), c.Param("groupId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// ListGroupAthletes godoc
// @Summary List athletes of a group
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId}/athletes [get]
func (h *TrainingHandler) ListGroupAthletes(c *gin.Context) {
	athletes, err := h.trainings.ListGroupAthletes(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, athletes, nil)
}

// AssignAthlete godoc
// @Summary Assign an athlete to a group
// @Description Fails when the athlete already belongs to another group of the same template
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param athleteId path string true "Athlete ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{groupId}/athletes/{athleteId} [put]
func (h *TrainingHandler) AssignAthlete(c *gin.Context) {
	if err := h.trainings.AssignAthlete(c.Request.Context(), c.Param("groupId"), c.Param("athleteId"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveAthlete godoc
// @Summary Remove an athlete from a group
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param athleteId path string true "Athlete ID"
// @Success 204 {object} response.Envelope
// @Router /groups/{groupId}/athletes/{athleteId} [delete]
func (h *TrainingHandler) RemoveAthlete(c *gin.Context) {
	if err := h.trainings.RemoveAthlete(c.Request.Context(), c.Param("groupId"), c.Param("athleteId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListGroupTrainers godoc
// @Summary List trainers of a group
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId}/trainers [get]
func (h *TrainingHandler) ListGroupTrainers(c *gin.Context) {
	trainers, err := h.trainings.ListGroupTrainers(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trainers, nil)
}

// AssignTrainer godoc
// @Summary Assign a trainer to a group
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param trainerId path string true "Trainer ID"
// @Success 204 {object} response.Envelope
// @Router /groups/{groupId}/trainers/{trainerId} [put]
func (h *TrainingHandler) AssignTrainer(c *gin.Context) {
	var payload struct {
		IsPrimary bool `json:"is_primary"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid trainer payload"))
			return
		}
	}

	if err := h.trainings.AssignTrainer(c.Request.Context(), c.Param("groupId"), c.Param("trainerId"), payload.IsPrimary, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveTrainer godoc
// @Summary Remove a trainer from a group
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param trainerId path string true "Trainer ID"
// @Success 204 {object} response.Envelope
// @Router /groups/{groupId}/trainers/{trainerId} [delete]
func (h *TrainingHandler) RemoveTrainer(c *gin.Context) {
	if err := h.trainings.RemoveTrainer(c.Request.Context(), c.Param("groupId"), c.Param("trainerId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
