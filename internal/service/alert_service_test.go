package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehner/gymclub-api/internal/models"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

type mockAlertRepo struct {
	items        map[string]*models.AbsenceAlert
	recent       map[string]*models.AbsenceAlert
	created      []*models.AbsenceAlert
	acknowledged []string
}

func (m *mockAlertRepo) Create(ctx context.Context, alert *models.AbsenceAlert) error {
	alert.ID = "generated"
	alert.CreatedAt = time.Now().UTC()
	m.created = append(m.created, alert)
	return nil
}

func (m *mockAlertRepo) FindByID(ctx context.Context, id string) (*models.AbsenceAlert, error) {
	if a, ok := m.items[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAlertRepo) FindRecentUnacknowledged(ctx context.Context, athleteID string, since time.Time) (*models.AbsenceAlert, error) {
	if a, ok := m.recent[athleteID]; ok && a.CreatedAt.After(since) {
		return a, nil
	}
	return nil, nil
}

func (m *mockAlertRepo) Acknowledge(ctx context.Context, id, byUserID string) error {
	m.acknowledged = append(m.acknowledged, id)
	return nil
}

func (m *mockAlertRepo) List(ctx context.Context, filter models.AbsenceAlertFilter) ([]models.AbsenceAlert, int, error) {
	var rows []models.AbsenceAlert
	for _, a := range m.items {
		rows = append(rows, *a)
	}
	return rows, len(rows), nil
}

type mockAbsenceCounter struct {
	counts []models.AbsenceCount
}

func (m *mockAbsenceCounter) UnexcusedCounts(ctx context.Context, since time.Time) ([]models.AbsenceCount, error) {
	return m.counts, nil
}

type mockAlertNotifier struct {
	notified []string
}

func (m *mockAlertNotifier) AbsenceAlert(ctx context.Context, athleteName string, count, windowDays int) {
	m.notified = append(m.notified, athleteName)
}

func TestAlertLiveCountsFiltersBelowThreshold(t *testing.T) {
	counter := &mockAbsenceCounter{counts: []models.AbsenceCount{
		{AthleteID: "a1", AthleteName: "Mia Weber", Count: 4},
		{AthleteID: "a2", AthleteName: "Jonas Keller", Count: 2},
		{AthleteID: "a3", AthleteName: "Lena Fischer", Count: 3},
	}}
	svc := NewAlertService(&mockAlertRepo{}, counter, nil, nil, nil, nil)

	counts, err := svc.LiveCounts(context.Background(), testSettings(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "a1", counts[0].AthleteID)
	assert.Equal(t, "a3", counts[1].AthleteID)
}

func TestAlertEvaluatePersistsAndNotifies(t *testing.T) {
	repo := &mockAlertRepo{}
	counter := &mockAbsenceCounter{counts: []models.AbsenceCount{
		{AthleteID: "a1", AthleteName: "Mia Weber", Count: 4},
	}}
	notifier := &mockAlertNotifier{}
	svc := NewAlertService(repo, counter, notifier, nil, nil, nil)

	created, err := svc.EvaluateAndPersist(context.Background(), testSettings(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "a1", created[0].AthleteID)
	assert.Equal(t, 4, created[0].AbsenceCount)
	assert.Equal(t, 30, created[0].WindowDays)
	assert.Equal(t, []string{"Mia Weber"}, notifier.notified)
}

func TestAlertEvaluateHonorsCooldown(t *testing.T) {
	now := time.Now().UTC()
	repo := &mockAlertRepo{recent: map[string]*models.AbsenceAlert{
		"a1": {ID: "old", AthleteID: "a1", CreatedAt: now.AddDate(0, 0, -3)},
	}}
	counter := &mockAbsenceCounter{counts: []models.AbsenceCount{
		{AthleteID: "a1", AthleteName: "Mia Weber", Count: 5},
	}}
	svc := NewAlertService(repo, counter, nil, nil, nil, nil)

	created, err := svc.EvaluateAndPersist(context.Background(), testSettings(), now)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, repo.created)
}

func TestAlertEvaluateFiresAfterCooldownExpires(t *testing.T) {
	now := time.Now().UTC()
	repo := &mockAlertRepo{recent: map[string]*models.AbsenceAlert{
		"a1": {ID: "old", AthleteID: "a1", CreatedAt: now.AddDate(0, 0, -20)},
	}}
	counter := &mockAbsenceCounter{counts: []models.AbsenceCount{
		{AthleteID: "a1", AthleteName: "Mia Weber", Count: 5},
	}}
	svc := NewAlertService(repo, counter, nil, nil, nil, nil)

	created, err := svc.EvaluateAndPersist(context.Background(), testSettings(), now)
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestAlertAcknowledge(t *testing.T) {
	repo := &mockAlertRepo{items: map[string]*models.AbsenceAlert{
		"al1": {ID: "al1", AthleteID: "a1", AbsenceCount: 4},
	}}
	svc := NewAlertService(repo, &mockAbsenceCounter{}, nil, nil, nil, nil)

	alert, err := svc.Acknowledge(context.Background(), "al1", trainerClaims())
	require.NoError(t, err)
	assert.True(t, alert.Acknowledged)
	require.NotNil(t, alert.AcknowledgedBy)
	assert.Equal(t, testTrainerID, *alert.AcknowledgedBy)
	assert.Equal(t, []string{"al1"}, repo.acknowledged)
}

func TestAlertAcknowledgeTwiceRejected(t *testing.T) {
	repo := &mockAlertRepo{items: map[string]*models.AbsenceAlert{
		"al1": {ID: "al1", AthleteID: "a1", Acknowledged: true},
	}}
	svc := NewAlertService(repo, &mockAbsenceCounter{}, nil, nil, nil, nil)

	_, err := svc.Acknowledge(context.Background(), "al1", trainerClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAlertAcknowledgeMissing(t *testing.T) {
	svc := NewAlertService(&mockAlertRepo{}, &mockAbsenceCounter{}, nil, nil, nil, nil)

	_, err := svc.Acknowledge(context.Background(), "nope", trainerClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
