package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehner/gymclub-api/internal/models"
)

func newSettingsRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestSettingsRepositoryGet(t *testing.T) {
	db, mock, cleanup := newSettingsRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "cancellation_deadline_hours", "cancellation_reason_min_length",
		"absence_alert_threshold", "absence_alert_window_days", "absence_alert_cooldown_days",
		"session_generation_days_ahead", "max_upload_size_mb", "updated_by", "updated_at",
	}).AddRow(1, 24, 10, 3, 30, 14, 28, 10, nil, time.Now())
	mock.ExpectQuery("SELECT id, cancellation_deadline_hours").
		WithArgs(settingsRowID).
		WillReturnRows(rows)

	settings, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, 24, settings.CancellationDeadlineHours)
	assert.Equal(t, 28, settings.SessionGenerationDaysAhead)
}

func TestSettingsRepositoryGetNeverWritten(t *testing.T) {
	db, mock, cleanup := newSettingsRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	mock.ExpectQuery("SELECT id, cancellation_deadline_hours").
		WithArgs(settingsRowID).
		WillReturnError(sql.ErrNoRows)

	settings, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestSettingsRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newSettingsRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	mock.ExpectExec("INSERT INTO club_settings").
		WithArgs(settingsRowID, 48, 10, 3, 30, 14, 28, 10, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := &models.ClubSettings{
		CancellationDeadlineHours:   48,
		CancellationReasonMinLength: 10,
		AbsenceAlertThreshold:       3,
		AbsenceAlertWindowDays:      30,
		AbsenceAlertCooldownDays:    14,
		SessionGenerationDaysAhead:  28,
		MaxUploadSizeMB:             10,
	}
	require.NoError(t, repo.Upsert(context.Background(), s))
	assert.Equal(t, settingsRowID, s.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
