package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/internal/repository"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

type cancellationRepository interface {
	Create(ctx context.Context, c *models.Cancellation) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, c *models.Cancellation) error
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	FindByID(ctx context.Context, id string) (*models.Cancellation, error)
	FindActive(ctx context.Context, sessionID, personID string) (*models.Cancellation, error)
	UpdateReason(ctx context.Context, id, reason string) error
	Undo(ctx context.Context, id string) error
	List(ctx context.Context, filter models.CancellationFilter) ([]models.Cancellation, int, error)
}

type cancellationSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.TrainingSession, error)
	ListForPersonInRange(ctx context.Context, personID string, from, to time.Time, trainingID string) ([]models.TrainingSession, error)
}

// CancellationResult pairs a cancellation with an advisory flag set when a
// trainer or admin acted past the deadline.
type CancellationResult struct {
	Cancellation   *models.Cancellation `json:"cancellation"`
	DeadlinePassed bool                 `json:"deadline_passed,omitempty"`
}

// CancellationService manages the cancellation ledger. The deadline policy
// applies to Edit and Undo and is asymmetric on purpose: athletes are
// blocked once the deadline has passed, trainers and admins go through
// with a warning flag.
type CancellationService struct {
	cancellations cancellationRepository
	sessions      cancellationSessionReader
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCancellationService constructs the cancellation service.
func NewCancellationService(cancellations cancellationRepository, sessions cancellationSessionReader, validate *validator.Validate, logger *zap.Logger) *CancellationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CancellationService{cancellations: cancellations, sessions: sessions, validator: validate, logger: logger}
}

// CreateCancellationRequest carries a single opt-out.
type CreateCancellationRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Reason    string `json:"reason" validate:"required"`
}

// Create records an opt-out for the caller. The reason must meet the
// configured minimum length and the session must not have started yet.
// The deadline does not apply here; it governs Edit and Undo only, so a
// last-minute opt-out is always possible while the session lies ahead.
func (s *CancellationService) Create(ctx context.Context, settings models.ClubSettings, req CreateCancellationRequest, claims *models.JWTClaims) (*CancellationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if err := s.checkReason(reason, settings); err != nil {
		return nil, err
	}

	session, err := s.findSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !session.StartInstant().After(now) {
		return nil, appErrors.ErrSessionInPast
	}

	existing, err := s.cancellations.FindActive(ctx, req.SessionID, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing cancellation")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active cancellation for this session already exists")
	}

	cancellation := &models.Cancellation{
		SessionID: req.SessionID,
		PersonID:  claims.UserID,
		Reason:    reason,
	}
	if err := s.cancellations.Create(ctx, cancellation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create cancellation")
	}

	s.logger.Info("cancellation created",
		zap.String("cancellation_id", cancellation.ID),
		zap.String("session_id", req.SessionID))
	return &CancellationResult{Cancellation: cancellation}, nil
}

// EditCancellationRequest carries a reason rewrite.
type EditCancellationRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Edit rewrites the reason of an active cancellation owned by the caller.
func (s *CancellationService) Edit(ctx context.Context, settings models.ClubSettings, id string, req EditCancellationRequest, claims *models.JWTClaims) (*CancellationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if err := s.checkReason(reason, settings); err != nil {
		return nil, err
	}

	cancellation, session, err := s.loadOwned(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if cancellation.State != models.LifecycleActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancellation has been undone")
	}

	warning, err := s.applyDeadline(session, settings, claims.Role, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.cancellations.UpdateReason(ctx, id, reason); err != nil {
		if errors.Is(err, repository.ErrNoRowsUpdated) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cancellation has been undone")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to edit cancellation")
	}
	cancellation.Reason = reason
	return &CancellationResult{Cancellation: cancellation, DeadlinePassed: warning}, nil
}

// Undo retires an active cancellation, putting the person back on the
// roster. The ledger row survives as RETIRED.
func (s *CancellationService) Undo(ctx context.Context, settings models.ClubSettings, id string, claims *models.JWTClaims) (*CancellationResult, error) {
	cancellation, session, err := s.loadOwned(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if cancellation.State != models.LifecycleActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancellation has already been undone")
	}

	warning, err := s.applyDeadline(session, settings, claims.Role, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.cancellations.Undo(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNoRowsUpdated) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cancellation has already been undone")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to undo cancellation")
	}
	cancellation.State = models.LifecycleRetired
	now := time.Now().UTC()
	cancellation.UndoneAt = &now

	s.logger.Info("cancellation undone", zap.String("cancellation_id", id))
	return &CancellationResult{Cancellation: cancellation, DeadlinePassed: warning}, nil
}

// BulkCreateCancellationRequest opts the caller out of every matching
// session in a date range, e.g. for an injury break.
type BulkCreateCancellationRequest struct {
	From       time.Time `json:"from" validate:"required"`
	To         time.Time `json:"to" validate:"required"`
	TrainingID string    `json:"training_id,omitempty" validate:"omitempty,uuid4"`
	Reason     string    `json:"reason" validate:"required"`
}

// BulkCreate writes one cancellation per upcoming session in the range,
// all in a single transaction. Sessions already cancelled by the caller
// and sessions that have started are skipped, not errors.
func (s *CancellationService) BulkCreate(ctx context.Context, settings models.ClubSettings, req BulkCreateCancellationRequest, claims *models.JWTClaims) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk cancellation payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if err := s.checkReason(reason, settings); err != nil {
		return 0, err
	}
	from := models.NormalizeDate(req.From)
	to := models.NormalizeDate(req.To)
	if to.Before(from) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}

	sessions, err := s.sessions.ListForPersonInRange(ctx, claims.UserID, from, to, req.TrainingID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions in range")
	}

	now := time.Now().UTC()
	var pending []*models.Cancellation
	for _, session := range sessions {
		if !session.StartInstant().After(now) {
			continue
		}
		existing, err := s.cancellations.FindActive(ctx, session.ID, claims.UserID)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing cancellation")
		}
		if existing != nil {
			continue
		}
		pending = append(pending, &models.Cancellation{
			SessionID: session.ID,
			PersonID:  claims.UserID,
			Reason:    reason,
		})
	}
	if len(pending) == 0 {
		return 0, nil
	}

	tx, err := s.cancellations.BeginTx(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin bulk cancellation")
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	for _, c := range pending {
		if err := s.cancellations.CreateTx(ctx, tx, c); err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create cancellation")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit bulk cancellation")
	}
	commit = true

	s.logger.Info("bulk cancellation created",
		zap.String("person_id", claims.UserID),
		zap.Int("count", len(pending)))
	return len(pending), nil
}

// List returns ledger entries. Athletes only see their own rows.
func (s *CancellationService) List(ctx context.Context, filter models.CancellationFilter, claims *models.JWTClaims) ([]models.Cancellation, int, error) {
	if claims.Role == models.RoleAthlete {
		filter.PersonID = claims.UserID
	}
	rows, total, err := s.cancellations.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cancellations")
	}
	return rows, total, nil
}

func (s *CancellationService) checkReason(reason string, settings models.ClubSettings) error {
	if len([]rune(reason)) < settings.CancellationReasonMinLength {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("reason must be at least %d characters long", settings.CancellationReasonMinLength))
	}
	return nil
}

// applyDeadline enforces the configured deadline. Athletes are rejected
// after it; trainers and admins proceed and get the advisory flag back.
func (s *CancellationService) applyDeadline(session *models.TrainingSession, settings models.ClubSettings, role models.UserRole, now time.Time) (bool, error) {
	deadline := settings.CancellationDeadline(session.StartInstant())
	if now.Before(deadline) {
		return false, nil
	}
	if role == models.RoleAthlete {
		return false, appErrors.ErrDeadlinePassed
	}
	return true, nil
}

func (s *CancellationService) loadOwned(ctx context.Context, id string, claims *models.JWTClaims) (*models.Cancellation, *models.TrainingSession, error) {
	cancellation, err := s.cancellations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "cancellation not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cancellation")
	}
	if cancellation.PersonID != claims.UserID && claims.Role != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "cancellation belongs to another person")
	}
	session, err := s.findSession(ctx, cancellation.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return cancellation, session, nil
}

func (s *CancellationService) findSession(ctx context.Context, id string) (*models.TrainingSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}
