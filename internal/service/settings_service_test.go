package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/pkg/config"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

type mockSettingsRepo struct {
	stored   *models.ClubSettings
	upserted []*models.ClubSettings
}

func (m *mockSettingsRepo) Get(ctx context.Context) (*models.ClubSettings, error) {
	if m.stored == nil {
		return nil, nil
	}
	cp := *m.stored
	return &cp, nil
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, s *models.ClubSettings) error {
	cp := *s
	m.stored = &cp
	m.upserted = append(m.upserted, s)
	return nil
}

type mockAuditLogger struct {
	entries []*models.AuditLog
}

func (m *mockAuditLogger) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func testClubDefaults() config.ClubConfig {
	return config.ClubConfig{
		CancellationDeadlineHours:  24,
		CancellationReasonMinLen:   10,
		AbsenceAlertThreshold:      3,
		AbsenceAlertWindowDays:     30,
		AbsenceAlertCooldownDays:   14,
		SessionGenerationDaysAhead: 28,
		MaxUploadSizeMB:            10,
	}
}

func TestSettingsLoadSeedsDefaultsOnFirstRead(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, &mockAuditLogger{}, nil, nil, testClubDefaults())

	settings, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24, settings.CancellationDeadlineHours)
	assert.Equal(t, 28, settings.SessionGenerationDaysAhead)
	assert.Len(t, repo.upserted, 1)
}

func TestSettingsLoadReturnsStoredRow(t *testing.T) {
	repo := &mockSettingsRepo{stored: &models.ClubSettings{
		CancellationDeadlineHours: 48,
		AbsenceAlertThreshold:     5,
	}}
	svc := NewSettingsService(repo, &mockAuditLogger{}, nil, nil, testClubDefaults())

	settings, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 48, settings.CancellationDeadlineHours)
	assert.Empty(t, repo.upserted)
}

func TestSettingsUpdateWritesAuditLog(t *testing.T) {
	repo := &mockSettingsRepo{}
	audit := &mockAuditLogger{}
	svc := NewSettingsService(repo, audit, nil, nil, testClubDefaults())

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	updated, err := svc.Update(context.Background(), UpdateSettingsRequest{
		CancellationDeadlineHours:   12,
		CancellationReasonMinLength: 5,
		AbsenceAlertThreshold:       4,
		AbsenceAlertWindowDays:      21,
		AbsenceAlertCooldownDays:    7,
		SessionGenerationDaysAhead:  42,
		MaxUploadSizeMB:             20,
	}, claims)
	require.NoError(t, err)
	assert.Equal(t, 12, updated.CancellationDeadlineHours)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, "admin-1", *updated.UpdatedBy)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionUpdateSettings, audit.entries[0].Action)
}

func TestSettingsUpdateRejectsOutOfRangeValues(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, &mockAuditLogger{}, nil, nil, testClubDefaults())

	_, err := svc.Update(context.Background(), UpdateSettingsRequest{
		CancellationDeadlineHours:   400,
		CancellationReasonMinLength: 5,
		AbsenceAlertThreshold:       4,
		AbsenceAlertWindowDays:      21,
		AbsenceAlertCooldownDays:    7,
		SessionGenerationDaysAhead:  42,
		MaxUploadSizeMB:             20,
	}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.upserted)
}
