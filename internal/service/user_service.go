package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/internal/repository"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Approve(ctx context.Context, userID string, assign *models.GroupAthlete, log *models.AuditLog) error
	Reject(ctx context.Context, userID, reason string, log *models.AuditLog) error
}

type userGroupReader interface {
	FindGroupByID(ctx context.Context, id string) (*models.TrainingGroup, error)
	FindAthleteConflict(ctx context.Context, trainingID, athleteID string) (*models.GroupAssignmentConflict, error)
}

type approvalNotifier interface {
	ApprovalDecision(ctx context.Context, user *models.User, approved bool, reason string)
}

// UserService covers the admin side of the registration workflow.
type UserService struct {
	users     userRepository
	groups    userGroupReader
	notifier  approvalNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(users userRepository, groups userGroupReader, notifier approvalNotifier, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, groups: groups, notifier: notifier, validator: validate, logger: logger}
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// ApproveUserRequest carries the approval payload. An initial group may be
// assigned in the same step for athletes.
type ApproveUserRequest struct {
	GroupID *string `json:"group_id,omitempty" validate:"omitempty,uuid4"`
}

// Approve transitions a pending account to APPROVED, optionally assigning
// an initial group, and notifies the applicant.
func (s *UserService) Approve(ctx context.Context, userID string, req ApproveUserRequest, claims *models.JWTClaims) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ApprovalState != models.ApprovalPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account has already been reviewed")
	}

	var assign *models.GroupAthlete
	if req.GroupID != nil {
		if user.Role != models.RoleAthlete {
			return nil, appErrors.Clone(appErrors.ErrValidation, "initial group assignment is only supported for athletes")
		}
		group, err := s.groups.FindGroupByID(ctx, *req.GroupID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
		}
		conflict, err := s.groups.FindAthleteConflict(ctx, group.TrainingID, userID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group assignment")
		}
		if conflict != nil {
			conflictErr := &models.GroupAssignmentConflictError{AthleteID: userID, Conflict: *conflict}
			return nil, appErrors.Wrap(conflictErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictErr.Error())
		}
		assign = &models.GroupAthlete{GroupID: group.ID, AthleteID: userID, AssignedBy: claims.UserID}
	}

	values, _ := json.Marshal(map[string]interface{}{"approval_state": models.ApprovalApproved, "group_id": req.GroupID})
	log := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionApproveUser,
		Resource:   "user",
		ResourceID: &userID,
		NewValues:  values,
	}
	if err := s.users.Approve(ctx, userID, assign, log); err != nil {
		if errors.Is(err, repository.ErrNoRowsUpdated) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "account has already been reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve user")
	}

	user.ApprovalState = models.ApprovalApproved
	user.RejectionReason = nil
	if s.notifier != nil {
		s.notifier.ApprovalDecision(ctx, user, true, "")
	}
	s.logger.Info("user approved",
		zap.String("user_id", userID),
		zap.String("approved_by", claims.UserID))
	return user, nil
}

// RejectUserRequest carries the mandatory rejection reason.
type RejectUserRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// Reject transitions a pending account to REJECTED with a stored reason
// and notifies the applicant.
func (s *UserService) Reject(ctx context.Context, userID string, req RejectUserRequest, claims *models.JWTClaims) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ApprovalState != models.ApprovalPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account has already been reviewed")
	}

	values, _ := json.Marshal(map[string]interface{}{"approval_state": models.ApprovalRejected, "reason": req.Reason})
	log := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionRejectUser,
		Resource:   "user",
		ResourceID: &userID,
		NewValues:  values,
	}
	if err := s.users.Reject(ctx, userID, req.Reason, log); err != nil {
		if errors.Is(err, repository.ErrNoRowsUpdated) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "account has already been reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject user")
	}

	user.ApprovalState = models.ApprovalRejected
	user.RejectionReason = &req.Reason
	if s.notifier != nil {
		s.notifier.ApprovalDecision(ctx, user, false, req.Reason)
	}
	s.logger.Info("user rejected",
		zap.String("user_id", userID),
		zap.String("rejected_by", claims.UserID))
	return user, nil
}
