package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mlehner/gymclub-api/internal/models"
)

// settingsRowID is the fixed primary key of the single settings row.
const settingsRowID = 1

// SettingsRepository handles persistence for the club settings record.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

const settingsColumns = `id, cancellation_deadline_hours, cancellation_reason_min_length, absence_alert_threshold, absence_alert_window_days, absence_alert_cooldown_days, session_generation_days_ahead, max_upload_size_mb, updated_by, updated_at`

// Get returns the settings row, or nil when it has never been written.
func (r *SettingsRepository) Get(ctx context.Context) (*models.ClubSettings, error) {
	var s models.ClubSettings
	query := fmt.Sprintf("SELECT %s FROM club_settings WHERE id = $1", settingsColumns)
	if err := r.db.GetContext(ctx, &s, query, settingsRowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get club settings: %w", err)
	}
	return &s, nil
}

// Upsert writes the settings row, creating it on first use.
func (r *SettingsRepository) Upsert(ctx context.Context, s *models.ClubSettings) error {
	s.ID = settingsRowID
	s.UpdatedAt = time.Now().UTC()
	query := `INSERT INTO club_settings (id, cancellation_deadline_hours, cancellation_reason_min_length, absence_alert_threshold, absence_alert_window_days, absence_alert_cooldown_days, session_generation_days_ahead, max_upload_size_mb, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id)
DO UPDATE SET cancellation_deadline_hours = EXCLUDED.cancellation_deadline_hours,
	cancellation_reason_min_length = EXCLUDED.cancellation_reason_min_length,
	absence_alert_threshold = EXCLUDED.absence_alert_threshold,
	absence_alert_window_days = EXCLUDED.absence_alert_window_days,
	absence_alert_cooldown_days = EXCLUDED.absence_alert_cooldown_days,
	session_generation_days_ahead = EXCLUDED.session_generation_days_ahead,
	max_upload_size_mb = EXCLUDED.max_upload_size_mb,
	updated_by = EXCLUDED.updated_by,
	updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.CancellationDeadlineHours, s.CancellationReasonMinLength, s.AbsenceAlertThreshold, s.AbsenceAlertWindowDays, s.AbsenceAlertCooldownDays, s.SessionGenerationDaysAhead, s.MaxUploadSizeMB, s.UpdatedBy, s.UpdatedAt); err != nil {
		return fmt.Errorf("upsert club settings: %w", err)
	}
	return nil
}
