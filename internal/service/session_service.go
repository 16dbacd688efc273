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

type sessionRepository interface {
	CreateAdHoc(ctx context.Context, session *models.TrainingSession, groups []models.SessionGroup) error
	FindByID(ctx context.Context, id string) (*models.TrainingSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	SetCancelled(ctx context.Context, id string, cancelled bool, reason *string) error
	SetCompleted(ctx context.Context, id string, completed bool) error
	ListSessionGroups(ctx context.Context, sessionID string) ([]models.SessionGroup, error)
	FindSessionGroup(ctx context.Context, id string) (*models.SessionGroup, error)
	UpdateSessionGroup(ctx context.Context, id string, exercises, notes *string) error
	ListSessionTrainers(ctx context.Context, sessionGroupID string) ([]models.SessionTrainer, error)
	ReplaceSessionTrainers(ctx context.Context, sessionGroupID string, trainers []models.SessionTrainer) error
	UpsertAthleteMove(ctx context.Context, m *models.SessionAthleteMove) error
	ListAthleteMoves(ctx context.Context, sessionID string) ([]models.SessionAthleteMove, error)
	ListParticipantEmails(ctx context.Context, sessionID string) ([]string, error)
}

type scheduleMaterializer interface {
	MaterializeAll(ctx context.Context, settings models.ClubSettings, now time.Time) (int, error)
}

type sessionNotifier interface {
	SessionCancelled(ctx context.Context, trainingName string, session *models.TrainingSession, reason string, recipients []string)
}

type sessionTrainingReader interface {
	FindByID(ctx context.Context, id string) (*models.RecurringTraining, error)
}

// SessionService covers the concrete session lifecycle: schedule views,
// ad hoc sessions, cancellation, completion and per-occurrence edits.
// Sessions are never deleted; a called-off session stays visible as
// cancelled so attendance history survives.
type SessionService struct {
	sessions     sessionRepository
	trainings    sessionTrainingReader
	materializer scheduleMaterializer
	notifier     sessionNotifier
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewSessionService constructs the session service.
func NewSessionService(sessions sessionRepository, trainings sessionTrainingReader, materializer scheduleMaterializer, notifier sessionNotifier, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{sessions: sessions, trainings: trainings, materializer: materializer, notifier: notifier, validator: validate, logger: logger}
}

// Schedule materializes due sessions and returns the caller's schedule.
// Athletes and trainers only see sessions they are scheduled for; admins
// see everything.
func (s *SessionService) Schedule(ctx context.Context, settings models.ClubSettings, filter models.SessionFilter, claims *models.JWTClaims) ([]models.SessionDetail, int, error) {
	if s.materializer != nil {
		if _, err := s.materializer.MaterializeAll(ctx, settings, time.Now().UTC()); err != nil {
			return nil, 0, err
		}
	}

	switch claims.Role {
	case models.RoleAthlete:
		filter.AthleteID = claims.UserID
		filter.TrainerID = ""
	case models.RoleTrainer:
		filter.TrainerID = claims.UserID
		filter.AthleteID = ""
	}

	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	for i := range sessions {
		groups, err := s.sessions.ListSessionGroups(ctx, sessions[i].ID)
		if err != nil {
			return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session groups")
		}
		sessions[i].Groups = groups
	}
	return sessions, total, nil
}

// Get returns one session with its groups.
func (s *SessionService) Get(ctx context.Context, id string) (*models.SessionDetail, error) {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.SessionDetail{TrainingSession: *session}
	if session.TrainingID != nil {
		if training, err := s.trainings.FindByID(ctx, *session.TrainingID); err == nil {
			detail.TrainingName = &training.Name
		}
	}
	groups, err := s.sessions.ListSessionGroups(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session groups")
	}
	detail.Groups = groups
	return detail, nil
}

// AdHocGroupRequest describes one group of an ad hoc session.
type AdHocGroupRequest struct {
	Name      string  `json:"name" validate:"required,min=1,max=80"`
	SortOrder int     `json:"sort_order" validate:"min=0"`
	Exercises *string `json:"exercises,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// CreateAdHocSessionRequest carries the one-off session payload.
type CreateAdHocSessionRequest struct {
	Date      time.Time           `json:"date" validate:"required"`
	StartTime string              `json:"start_time" validate:"required"`
	EndTime   string              `json:"end_time" validate:"required"`
	Groups    []AdHocGroupRequest `json:"groups" validate:"required,min=1,dive"`
}

// CreateAdHoc creates a one-off session that is not backed by a template.
func (s *SessionService) CreateAdHoc(ctx context.Context, req CreateAdHocSessionRequest) (*models.TrainingSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be in HH:MM format")
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be in HH:MM format")
	}
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	session := &models.TrainingSession{
		Date:      models.NormalizeDate(req.Date),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	groups := make([]models.SessionGroup, 0, len(req.Groups))
	for _, g := range req.Groups {
		groups = append(groups, models.SessionGroup{
			Name:      g.Name,
			SortOrder: g.SortOrder,
			Exercises: g.Exercises,
			Notes:     g.Notes,
		})
	}
	if err := s.sessions.CreateAdHoc(ctx, session, groups); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.logger.Info("ad hoc session created",
		zap.String("session_id", session.ID),
		zap.Time("date", session.Date))
	return session, nil
}

// CancelSessionRequest carries the cancellation reason for a whole session.
type CancelSessionRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// Cancel calls off a whole session and notifies its participants. The row
// is kept; only the cancelled flag flips.
func (s *SessionService) Cancel(ctx context.Context, id string, req CancelSessionRequest) (*models.TrainingSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a cancellation reason is required")
	}
	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Cancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is already cancelled")
	}

	if err := s.sessions.SetCancelled(ctx, id, true, &req.Reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	session.Cancelled = true
	session.CancelReason = &req.Reason

	if s.notifier != nil {
		recipients, err := s.sessions.ListParticipantEmails(ctx, id)
		if err != nil {
			s.logger.Warn("failed to resolve session participants", zap.Error(err))
		} else {
			name := "Ad hoc session"
			if session.TrainingID != nil {
				if training, err := s.trainings.FindByID(ctx, *session.TrainingID); err == nil {
					name = training.Name
				}
			}
			s.notifier.SessionCancelled(ctx, name, session, req.Reason, recipients)
		}
	}

	s.logger.Info("session cancelled", zap.String("session_id", id))
	return session, nil
}

// Restore undoes a session-level cancellation.
func (s *SessionService) Restore(ctx context.Context, id string) (*models.TrainingSession, error) {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Cancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is not cancelled")
	}
	if err := s.sessions.SetCancelled(ctx, id, false, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore session")
	}
	session.Cancelled = false
	session.CancelReason = nil
	return session, nil
}

// Complete marks a session as held.
func (s *SessionService) Complete(ctx context.Context, id string) (*models.TrainingSession, error) {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Cancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a cancelled session cannot be completed")
	}
	if session.Completed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is already completed")
	}
	if err := s.sessions.SetCompleted(ctx, id, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete session")
	}
	session.Completed = true
	return session, nil
}

// UpdateSessionGroupRequest carries per-occurrence exercise and note edits.
type UpdateSessionGroupRequest struct {
	Exercises *string `json:"exercises,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// UpdateGroup edits the exercises and notes of one session group. The
// template group stays untouched; this change covers one occurrence only.
func (s *SessionService) UpdateGroup(ctx context.Context, sessionGroupID string, req UpdateSessionGroupRequest) (*models.SessionGroup, error) {
	group, err := s.findSessionGroup(ctx, sessionGroupID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateSessionGroup(ctx, sessionGroupID, req.Exercises, req.Notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session group")
	}
	group.Exercises = req.Exercises
	group.Notes = req.Notes
	return group, nil
}

// SessionTrainerRequest names one trainer on a session group roster.
type SessionTrainerRequest struct {
	TrainerID string `json:"trainer_id" validate:"required,uuid4"`
	IsPrimary bool   `json:"is_primary"`
}

// ReplaceGroupTrainersRequest swaps the whole trainer roster of one
// session group.
type ReplaceGroupTrainersRequest struct {
	Trainers []SessionTrainerRequest `json:"trainers" validate:"dive"`
}

// ReplaceGroupTrainers rewrites the trainer roster of one session group
// for this occurrence only.
func (s *SessionService) ReplaceGroupTrainers(ctx context.Context, sessionGroupID string, req ReplaceGroupTrainersRequest) ([]models.SessionTrainer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid trainer roster payload")
	}
	if _, err := s.findSessionGroup(ctx, sessionGroupID); err != nil {
		return nil, err
	}

	trainers := make([]models.SessionTrainer, 0, len(req.Trainers))
	for _, t := range req.Trainers {
		trainers = append(trainers, models.SessionTrainer{
			SessionGroupID: sessionGroupID,
			TrainerID:      t.TrainerID,
			IsPrimary:      t.IsPrimary,
		})
	}
	if err := s.sessions.ReplaceSessionTrainers(ctx, sessionGroupID, trainers); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace session trainers")
	}

	roster, err := s.sessions.ListSessionTrainers(ctx, sessionGroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session trainers")
	}
	return roster, nil
}

// MoveAthleteRequest puts an athlete into a different group for one
// session.
type MoveAthleteRequest struct {
	AthleteID      string `json:"athlete_id" validate:"required,uuid4"`
	SessionGroupID string `json:"session_group_id" validate:"required,uuid4"`
	Reason         string `json:"reason" validate:"required,min=3"`
}

// MoveAthlete records a one-session group override. Moving the same
// athlete again replaces the earlier override.
func (s *SessionService) MoveAthlete(ctx context.Context, sessionID string, req MoveAthleteRequest, claims *models.JWTClaims) (*models.SessionAthleteMove, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	if _, err := s.findSession(ctx, sessionID); err != nil {
		return nil, err
	}
	group, err := s.findSessionGroup(ctx, req.SessionGroupID)
	if err != nil {
		return nil, err
	}
	if group.SessionID != sessionID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target group does not belong to this session")
	}

	move := &models.SessionAthleteMove{
		SessionID:      sessionID,
		AthleteID:      req.AthleteID,
		SessionGroupID: req.SessionGroupID,
		Reason:         req.Reason,
		MovedBy:        claims.UserID,
	}
	if err := s.sessions.UpsertAthleteMove(ctx, move); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move athlete")
	}
	return move, nil
}

// ListAthleteMoves returns the overrides recorded for one session.
func (s *SessionService) ListAthleteMoves(ctx context.Context, sessionID string) ([]models.SessionAthleteMove, error) {
	if _, err := s.findSession(ctx, sessionID); err != nil {
		return nil, err
	}
	moves, err := s.sessions.ListAthleteMoves(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list athlete moves")
	}
	return moves, nil
}

func (s *SessionService) findSession(ctx context.Context, id string) (*models.TrainingSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) findSessionGroup(ctx context.Context, id string) (*models.SessionGroup, error) {
	group, err := s.sessions.FindSessionGroup(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session group")
	}
	return group, nil
}
