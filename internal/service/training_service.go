package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

type trainingRepository interface {
	Create(ctx context.Context, t *models.RecurringTraining) error
	Update(ctx context.Context, t *models.RecurringTraining) error
	SetState(ctx context.Context, id string, state models.LifecycleState) error
	FindByID(ctx context.Context, id string) (*models.RecurringTraining, error)
	List(ctx context.Context, filter models.TrainingFilter) ([]models.RecurringTraining, int, error)
	CreateGroup(ctx context.Context, g *models.TrainingGroup) error
	UpdateGroup(ctx context.Context, g *models.TrainingGroup) error
	FindGroupByID(ctx context.Context, id string) (*models.TrainingGroup, error)
	ListGroups(ctx context.Context, trainingID string) ([]models.TrainingGroup, error)
	FindAthleteConflict(ctx context.Context, trainingID, athleteID string) (*models.GroupAssignmentConflict, error)
	AssignAthlete(ctx context.Context, a *models.GroupAthlete) error
	RemoveAthlete(ctx context.Context, groupID, athleteID string) error
	ListGroupAthletes(ctx context.Context, groupID string) ([]models.GroupAthlete, error)
	AssignTrainer(ctx context.Context, t *models.GroupTrainer) error
	RemoveTrainer(ctx context.Context, groupID, trainerID string) error
	ListGroupTrainers(ctx context.Context, groupID string) ([]models.GroupTrainer, error)
}

type trainingMemberReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// TrainingService manages recurring training templates and their groups.
type TrainingService struct {
	trainings trainingRepository
	users     trainingMemberReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTrainingService constructs the training service.
func NewTrainingService(trainings trainingRepository, users trainingMemberReader, validate *validator.Validate, logger *zap.Logger) *TrainingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{trainings: trainings, users: users, validator: validate, logger: logger}
}

// TrainingRequest carries the template payload for create and update.
type TrainingRequest struct {
	Name        string     `json:"name" validate:"required,min=2,max=120"`
	DayOfWeek   int        `json:"day_of_week" validate:"min=0,max=6"`
	StartTime   string     `json:"start_time" validate:"required"`
	EndTime     string     `json:"end_time" validate:"required"`
	Recurrence  string     `json:"recurrence" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
	ActiveFrom  time.Time  `json:"active_from" validate:"required"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
}

func (s *TrainingService) validateTrainingRequest(req TrainingRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training payload")
	}
	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be in HH:MM format")
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be in HH:MM format")
	}
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if req.ActiveUntil != nil && req.ActiveUntil.Before(req.ActiveFrom) {
		return appErrors.Clone(appErrors.ErrValidation, "active_until must not precede active_from")
	}
	return nil
}

// Create adds a new recurring training template.
func (s *TrainingService) Create(ctx context.Context, req TrainingRequest, claims *models.JWTClaims) (*models.RecurringTraining, error) {
	if err := s.validateTrainingRequest(req); err != nil {
		return nil, err
	}

	training := &models.RecurringTraining{
		Name:        req.Name,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Recurrence:  models.Recurrence(req.Recurrence),
		ActiveFrom:  models.NormalizeDate(req.ActiveFrom),
		State:       models.LifecycleActive,
		CreatedBy:   claims.UserID,
	}
	if req.ActiveUntil != nil {
		until := models.NormalizeDate(*req.ActiveUntil)
		training.ActiveUntil = &until
	}
	if err := s.trainings.Create(ctx, training); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create training")
	}

	s.logger.Info("training created",
		zap.String("training_id", training.ID),
		zap.String("name", training.Name))
	return training, nil
}

// Update rewrites a template. Already materialized sessions are not
// touched; only future materialization picks up the change.
func (s *TrainingService) Update(ctx context.Context, id string, req TrainingRequest) (*models.RecurringTraining, error) {
	if err := s.validateTrainingRequest(req); err != nil {
		return nil, err
	}

	training, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	training.Name = req.Name
	training.DayOfWeek = req.DayOfWeek
	training.StartTime = req.StartTime
	training.EndTime = req.EndTime
	training.Recurrence = models.Recurrence(req.Recurrence)
	training.ActiveFrom = models.NormalizeDate(req.ActiveFrom)
	training.ActiveUntil = nil
	if req.ActiveUntil != nil {
		until := models.NormalizeDate(*req.ActiveUntil)
		training.ActiveUntil = &until
	}
	if err := s.trainings.Update(ctx, training); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update training")
	}
	return training, nil
}

// Retire moves a template out of materialization without deleting its
// history.
func (s *TrainingService) Retire(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.trainings.SetState(ctx, id, models.LifecycleRetired); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire training")
	}
	s.logger.Info("training retired", zap.String("training_id", id))
	return nil
}

// Get returns one template.
func (s *TrainingService) Get(ctx context.Context, id string) (*models.RecurringTraining, error) {
	training, err := s.trainings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	return training, nil
}

// List returns templates matching the filter.
func (s *TrainingService) List(ctx context.Context, filter models.TrainingFilter) ([]models.RecurringTraining, int, error) {
	trainings, total, err := s.trainings.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainings")
	}
	return trainings, total, nil
}

// GroupRequest carries the group payload for create and update.
type GroupRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=80"`
	SortOrder int    `json:"sort_order" validate:"min=0"`
}

// CreateGroup adds a group to a template.
func (s *TrainingService) CreateGroup(ctx context.Context, trainingID string, req GroupRequest) (*models.TrainingGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if _, err := s.Get(ctx, trainingID); err != nil {
		return nil, err
	}

	group := &models.TrainingGroup{TrainingID: trainingID, Name: req.Name, SortOrder: req.SortOrder}
	if err := s.trainings.CreateGroup(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return group, nil
}

// UpdateGroup rewrites a group's name and order.
func (s *TrainingService) UpdateGroup(ctx context.Context, groupID string, req GroupRequest) (*models.TrainingGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	group.Name = req.Name
	group.SortOrder = req.SortOrder
	if err := s.trainings.UpdateGroup(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	return group, nil
}

// ListGroups returns the groups of one template.
func (s *TrainingService) ListGroups(ctx context.Context, trainingID string) ([]models.TrainingGroup, error) {
	if _, err := s.Get(ctx, trainingID); err != nil {
		return nil, err
	}
	groups, err := s.trainings.ListGroups(ctx, trainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// AssignAthlete links an athlete to a group. An athlete may belong to at
// most one group per template; the conflicting group is named in the
// rejection.
func (s *TrainingService) AssignAthlete(ctx context.Context, groupID, athleteID string, claims *models.JWTClaims) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireRole(ctx, athleteID, models.RoleAthlete); err != nil {
		return err
	}

	conflict, err := s.trainings.FindAthleteConflict(ctx, group.TrainingID, athleteID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group assignment")
	}
	if conflict != nil {
		if conflict.GroupID == groupID {
			// Already a member of this exact group; assignment is idempotent.
			return nil
		}
		conflictErr := &models.GroupAssignmentConflictError{AthleteID: athleteID, Conflict: *conflict}
		return appErrors.Wrap(conflictErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictErr.Error())
	}

	assignment := &models.GroupAthlete{GroupID: groupID, AthleteID: athleteID, AssignedBy: claims.UserID}
	if err := s.trainings.AssignAthlete(ctx, assignment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign athlete")
	}
	return nil
}

// RemoveAthlete unlinks an athlete from a group.
func (s *TrainingService) RemoveAthlete(ctx context.Context, groupID, athleteID string) error {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.trainings.RemoveAthlete(ctx, groupID, athleteID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove athlete")
	}
	return nil
}

// ListGroupAthletes returns the athletes assigned to a group.
func (s *TrainingService) ListGroupAthletes(ctx context.Context, groupID string) ([]models.GroupAthlete, error) {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return nil, err
	}
	athletes, err := s.trainings.ListGroupAthletes(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group athletes")
	}
	return athletes, nil
}

// AssignTrainer links a trainer to a group. Trainers may cover several
// groups per template, so no exclusivity applies.
func (s *TrainingService) AssignTrainer(ctx context.Context, groupID, trainerID string, isPrimary bool, claims *models.JWTClaims) error {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.requireRole(ctx, trainerID, models.RoleTrainer); err != nil {
		return err
	}

	assignment := &models.GroupTrainer{GroupID: groupID, TrainerID: trainerID, IsPrimary: isPrimary, AssignedBy: claims.UserID}
	if err := s.trainings.AssignTrainer(ctx, assignment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign trainer")
	}
	return nil
}

// RemoveTrainer unlinks a trainer from a group.
func (s *TrainingService) RemoveTrainer(ctx context.Context, groupID, trainerID string) error {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.trainings.RemoveTrainer(ctx, groupID, trainerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove trainer")
	}
	return nil
}

// ListGroupTrainers returns the trainers assigned to a group.
func (s *TrainingService) ListGroupTrainers(ctx context.Context, groupID string) ([]models.GroupTrainer, error) {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return nil, err
	}
	trainers, err := s.trainings.ListGroupTrainers(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group trainers")
	}
	return trainers, nil
}

func (s *TrainingService) getGroup(ctx context.Context, groupID string) (*models.TrainingGroup, error) {
	group, err := s.trainings.FindGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

func (s *TrainingService) requireRole(ctx context.Context, userID string, role models.UserRole) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role {
		return appErrors.Clone(appErrors.ErrValidation, "user does not hold the required role")
	}
	if user.ApprovalState != models.ApprovalApproved {
		return appErrors.Clone(appErrors.ErrValidation, "user account is not approved")
	}
	return nil
}
