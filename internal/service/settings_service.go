package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/pkg/config"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (*models.ClubSettings, error)
	Upsert(ctx context.Context, s *models.ClubSettings) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SettingsService loads and updates the club settings record. Other
// services never read settings themselves; the handler layer loads the
// value object once per request and passes it down.
type SettingsService struct {
	repo      settingsRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	defaults  config.ClubConfig
}

// NewSettingsService constructs the settings service.
func NewSettingsService(repo settingsRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger, defaults config.ClubConfig) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, audit: audit, validator: validate, logger: logger, defaults: defaults}
}

// Load returns the current settings, writing the configured defaults on
// first read.
func (s *SettingsService) Load(ctx context.Context) (models.ClubSettings, error) {
	stored, err := s.repo.Get(ctx)
	if err != nil {
		return models.ClubSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	if stored != nil {
		return *stored, nil
	}

	seeded := models.ClubSettings{
		CancellationDeadlineHours:   s.defaults.CancellationDeadlineHours,
		CancellationReasonMinLength: s.defaults.CancellationReasonMinLen,
		AbsenceAlertThreshold:       s.defaults.AbsenceAlertThreshold,
		AbsenceAlertWindowDays:      s.defaults.AbsenceAlertWindowDays,
		AbsenceAlertCooldownDays:    s.defaults.AbsenceAlertCooldownDays,
		SessionGenerationDaysAhead:  s.defaults.SessionGenerationDaysAhead,
		MaxUploadSizeMB:             s.defaults.MaxUploadSizeMB,
	}
	if err := s.repo.Upsert(ctx, &seeded); err != nil {
		return models.ClubSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed settings")
	}
	s.logger.Info("club settings seeded from defaults")
	return seeded, nil
}

// UpdateSettingsRequest carries the admin-editable tunables.
type UpdateSettingsRequest struct {
	CancellationDeadlineHours   int `json:"cancellation_deadline_hours" validate:"required,min=0,max=168"`
	CancellationReasonMinLength int `json:"cancellation_reason_min_length" validate:"required,min=1,max=100"`
	AbsenceAlertThreshold       int `json:"absence_alert_threshold" validate:"required,min=1,max=50"`
	AbsenceAlertWindowDays      int `json:"absence_alert_window_days" validate:"required,min=1,max=365"`
	AbsenceAlertCooldownDays    int `json:"absence_alert_cooldown_days" validate:"required,min=1,max=365"`
	SessionGenerationDaysAhead  int `json:"session_generation_days_ahead" validate:"required,min=1,max=365"`
	MaxUploadSizeMB             int `json:"max_upload_size_mb" validate:"required,min=1,max=100"`
}

// Update rewrites the settings row and records an audit entry.
func (s *SettingsService) Update(ctx context.Context, req UpdateSettingsRequest, claims *models.JWTClaims) (*models.ClubSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	updated := models.ClubSettings{
		CancellationDeadlineHours:   req.CancellationDeadlineHours,
		CancellationReasonMinLength: req.CancellationReasonMinLength,
		AbsenceAlertThreshold:       req.AbsenceAlertThreshold,
		AbsenceAlertWindowDays:      req.AbsenceAlertWindowDays,
		AbsenceAlertCooldownDays:    req.AbsenceAlertCooldownDays,
		SessionGenerationDaysAhead:  req.SessionGenerationDaysAhead,
		MaxUploadSizeMB:             req.MaxUploadSizeMB,
	}
	if claims != nil {
		updated.UpdatedBy = &claims.UserID
	}
	if err := s.repo.Upsert(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settings")
	}

	if s.audit != nil && claims != nil {
		values, _ := json.Marshal(req)
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &claims.UserID,
			Action:    models.AuditActionUpdateSettings,
			Resource:  "settings",
			NewValues: values,
		}); err != nil {
			s.logger.Warn("failed to record settings audit log", zap.Error(err))
		}
	}

	return &updated, nil
}
