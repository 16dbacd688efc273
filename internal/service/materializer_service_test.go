package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehner/gymclub-api/internal/models"
)

type mockTrainingReader struct {
	trainings []models.RecurringTraining
	groups    map[string][]models.TrainingGroup
	trainers  map[string][]models.GroupTrainer
}

func (m *mockTrainingReader) ListActive(ctx context.Context) ([]models.RecurringTraining, error) {
	return m.trainings, nil
}

func (m *mockTrainingReader) ListGroups(ctx context.Context, trainingID string) ([]models.TrainingGroup, error) {
	return m.groups[trainingID], nil
}

func (m *mockTrainingReader) ListGroupTrainers(ctx context.Context, groupID string) ([]models.GroupTrainer, error) {
	return m.trainers[groupID], nil
}

type mockSessionWriter struct {
	existing map[string][]time.Time
	created  []*models.TrainingSession
	groups   [][]models.SessionGroup
	trainers []map[int][]models.SessionTrainer
}

func (m *mockSessionWriter) ExistingDates(ctx context.Context, trainingID string, from, to time.Time) ([]time.Time, error) {
	return m.existing[trainingID], nil
}

func (m *mockSessionWriter) CreateMaterialized(ctx context.Context, session *models.TrainingSession, groups []models.SessionGroup, trainers map[int][]models.SessionTrainer) (bool, error) {
	for _, existing := range m.created {
		if *existing.TrainingID == *session.TrainingID && existing.Date.Equal(session.Date) {
			return false, nil
		}
	}
	m.created = append(m.created, session)
	m.groups = append(m.groups, groups)
	m.trainers = append(m.trainers, trainers)
	return true, nil
}

func mondayTraining(recurrence models.Recurrence) models.RecurringTraining {
	return models.RecurringTraining{
		ID:         "t1",
		Name:       "Leistungsturnen",
		DayOfWeek:  1,
		StartTime:  "17:30",
		EndTime:    "19:00",
		Recurrence: recurrence,
		ActiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		State:      models.LifecycleActive,
	}
}

func TestMaterializeWeeklyWithinHorizon(t *testing.T) {
	training := mondayTraining(models.RecurrenceWeekly)
	writer := &mockSessionWriter{}
	svc := NewMaterializerService(&mockTrainingReader{}, writer, nil, nil)

	// 2025-01-06 is the first Monday on or after 2025-01-01.
	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	created, err := svc.MaterializeTemplate(context.Background(), &training, testSettings(), now)
	require.NoError(t, err)
	assert.Equal(t, 5, created)

	var dates []time.Time
	for _, s := range writer.created {
		dates = append(dates, s.Date)
	}
	assert.Equal(t, []time.Time{
		time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
	}, dates)
	assert.Equal(t, "17:30", writer.created[0].StartTime)
}

func TestMaterializeFollowsLocalCalendarDay(t *testing.T) {
	// Session dates track the caller's wall-clock date, not the UTC
	// instant. Shortly after midnight in UTC+13 the UTC clock still shows
	// the previous day; the Monday that just passed locally must not be
	// materialized.
	training := mondayTraining(models.RecurrenceWeekly)
	writer := &mockSessionWriter{}
	svc := NewMaterializerService(&mockTrainingReader{}, writer, nil, nil)

	auckland := time.FixedZone("NZDT", 13*3600)
	now := time.Date(2025, 1, 7, 1, 0, 0, 0, auckland)
	created, err := svc.MaterializeTemplate(context.Background(), &training, testSettings(), now)
	require.NoError(t, err)
	assert.Equal(t, 4, created)
	assert.Equal(t, time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), writer.created[0].Date)

	// The mirror case: late evening in UTC-5 is already the next day in
	// UTC, yet the local Monday still counts.
	lima := time.FixedZone("PET", -5*3600)
	writer = &mockSessionWriter{}
	svc = NewMaterializerService(&mockTrainingReader{}, writer, nil, nil)
	now = time.Date(2025, 1, 6, 23, 0, 0, 0, lima)
	created, err = svc.MaterializeTemplate(context.Background(), &training, testSettings(), now)
	require.NoError(t, err)
	assert.Equal(t, 5, created)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), writer.created[0].Date)
}

func TestMaterializeExtendedHorizonAddsOnlyNewDates(t *testing.T) {
	training := mondayTraining(models.RecurrenceWeekly)
	writer := &mockSessionWriter{}
	svc := NewMaterializerService(&mockTrainingReader{}, writer, nil, nil)

	// Tuesday the 7th with a 28-day horizon covers four Mondays.
	now := time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC)
	created, err := svc.MaterializeTemplate(context.Background(), &training, testSettings(), now)
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	// Raising the horizon to 35 days and re-running adds exactly the one
	// Monday that the wider window uncovers.
	wider := testSettings()
	wider.SessionGenerationDaysAhead = 35
	created, err = svc.MaterializeTemplate(context.Background(), &training, wider, now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, writer.created, 5)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), writer.created[4].Date)
}

func TestMaterializeMonthlyUsesFourWeekStep(t *testing.T) {
	training := mondayTraining(models.RecurrenceMonthly)
	writer := &mockSessionWriter{}
	svc := NewMaterializerService(&mockTrainingReader{}, writer, nil, nil)

	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	settings := testSettings()
	settings.SessionGenerationDaysAhead = 56
	created, err := svc.MaterializeTemplate(context.Background(), &training, settings, now)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), writer.created[1].Date)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), writer.created[2].Date)
}

func TestMaterializeIdempotent(t *testing.T) {
	training := mondayTraining(models.RecurrenceWeekly)
	writer := &mockSessionWriter{existing: map[string][]time.Time{
		"t1": {
			time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		},
	}}
	svc := NewMaterializerService(&mockTrainingReader{}, writer, nil, nil)

	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	created, err := svc.MaterializeTemplate(context.Background(), &training, testSettings(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), writer.created[0].Date)
}

func TestMaterializeSkipsRetiredTemplate(t *testing.T) {
	training := mondayTraining(models.RecurrenceWeekly)
	training.State = models.LifecycleRetired
	writer := &mockSessionWriter{}
	svc := NewMaterializerService(&mockTrainingReader{}, writer, nil, nil)

	created, err := svc.MaterializeTemplate(context.Background(), &training, testSettings(), time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, writer.created)
}

func TestMaterializeHonorsActiveUntil(t *testing.T) {
	training := mondayTraining(models.RecurrenceWeekly)
	until := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	training.ActiveUntil = &until
	writer := &mockSessionWriter{}
	svc := NewMaterializerService(&mockTrainingReader{}, writer, nil, nil)

	created, err := svc.MaterializeTemplate(context.Background(), &training, testSettings(), time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestMaterializeSnapshotsGroupsAndTrainers(t *testing.T) {
	training := mondayTraining(models.RecurrenceWeekly)
	reader := &mockTrainingReader{
		groups: map[string][]models.TrainingGroup{
			"t1": {
				{ID: "g1", TrainingID: "t1", Name: "Anfänger", SortOrder: 0},
				{ID: "g2", TrainingID: "t1", Name: "Fortgeschrittene", SortOrder: 1},
			},
		},
		trainers: map[string][]models.GroupTrainer{
			"g1": {{GroupID: "g1", TrainerID: testTrainerID, IsPrimary: true}},
		},
	}
	writer := &mockSessionWriter{}
	svc := NewMaterializerService(reader, writer, nil, nil)

	settings := testSettings()
	settings.SessionGenerationDaysAhead = 7
	created, err := svc.MaterializeTemplate(context.Background(), &training, settings, time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	require.Len(t, writer.groups[0], 2)
	assert.Equal(t, "Anfänger", writer.groups[0][0].Name)
	require.Len(t, writer.trainers[0][0], 1)
	assert.Equal(t, testTrainerID, writer.trainers[0][0][0].TrainerID)
	assert.True(t, writer.trainers[0][0][0].IsPrimary)
	assert.Empty(t, writer.trainers[0][1])
}

func TestMaterializeAllSkipsFailingTemplate(t *testing.T) {
	healthy := mondayTraining(models.RecurrenceWeekly)
	broken := mondayTraining(models.RecurrenceWeekly)
	broken.ID = "t2"
	broken.Recurrence = models.Recurrence("DAILY")
	reader := &mockTrainingReader{trainings: []models.RecurringTraining{broken, healthy}}
	writer := &mockSessionWriter{}
	svc := NewMaterializerService(reader, writer, nil, nil)

	settings := testSettings()
	settings.SessionGenerationDaysAhead = 7
	created, err := svc.MaterializeAll(context.Background(), settings, time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}
