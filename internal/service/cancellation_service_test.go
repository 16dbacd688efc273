package service

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
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

const (
	testSessionID = "3f6b8a0e-9c1d-4f2a-8b3c-5d7e9f1a2b3c"
	testAthleteID = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	testTrainerID = "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e"
)

type mockCancellationRepo struct {
	items    map[string]*models.Cancellation
	active   map[string]*models.Cancellation
	created  []*models.Cancellation
	undone   []string
	reworded map[string]string
	db       *sqlx.DB
}

func (m *mockCancellationRepo) Create(ctx context.Context, c *models.Cancellation) error {
	c.ID = "generated"
	c.State = models.LifecycleActive
	m.created = append(m.created, c)
	return nil
}

func (m *mockCancellationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, c *models.Cancellation) error {
	c.State = models.LifecycleActive
	m.created = append(m.created, c)
	return nil
}

func (m *mockCancellationRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, nil)
}

func (m *mockCancellationRepo) FindByID(ctx context.Context, id string) (*models.Cancellation, error) {
	if c, ok := m.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCancellationRepo) FindActive(ctx context.Context, sessionID, personID string) (*models.Cancellation, error) {
	if c, ok := m.active[sessionID+"/"+personID]; ok {
		return c, nil
	}
	return nil, nil
}

func (m *mockCancellationRepo) UpdateReason(ctx context.Context, id, reason string) error {
	if m.reworded == nil {
		m.reworded = make(map[string]string)
	}
	m.reworded[id] = reason
	return nil
}

func (m *mockCancellationRepo) Undo(ctx context.Context, id string) error {
	m.undone = append(m.undone, id)
	return nil
}

func (m *mockCancellationRepo) List(ctx context.Context, filter models.CancellationFilter) ([]models.Cancellation, int, error) {
	var rows []models.Cancellation
	for _, c := range m.items {
		if filter.PersonID != "" && c.PersonID != filter.PersonID {
			continue
		}
		rows = append(rows, *c)
	}
	return rows, len(rows), nil
}

type mockSessionReader struct {
	sessions map[string]*models.TrainingSession
	inRange  []models.TrainingSession
}

func (m *mockSessionReader) FindByID(ctx context.Context, id string) (*models.TrainingSession, error) {
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionReader) ListForPersonInRange(ctx context.Context, personID string, from, to time.Time, trainingID string) ([]models.TrainingSession, error) {
	return m.inRange, nil
}

func testSettings() models.ClubSettings {
	return models.ClubSettings{
		CancellationDeadlineHours:   24,
		CancellationReasonMinLength: 10,
		AbsenceAlertThreshold:       3,
		AbsenceAlertWindowDays:      30,
		AbsenceAlertCooldownDays:    14,
		SessionGenerationDaysAhead:  28,
		MaxUploadSizeMB:             10,
	}
}

// sessionStartingIn builds a session whose start instant lies the given
// duration from now.
func sessionStartingIn(id string, d time.Duration) *models.TrainingSession {
	start := time.Now().UTC().Add(d)
	return &models.TrainingSession{
		ID:        id,
		Date:      models.NormalizeDate(start),
		StartTime: start.Format("15:04"),
		EndTime:   start.Add(90 * time.Minute).Format("15:04"),
	}
}

func athleteClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: testAthleteID, Role: models.RoleAthlete}
}

func trainerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: testTrainerID, Role: models.RoleTrainer}
}

func TestCancellationCreate(t *testing.T) {
	repo := &mockCancellationRepo{}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 72*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	result, err := svc.Create(context.Background(), testSettings(), CreateCancellationRequest{
		SessionID: testSessionID,
		Reason:    "Verletzung im Training",
	}, athleteClaims())
	require.NoError(t, err)
	assert.False(t, result.DeadlinePassed)
	assert.Equal(t, testAthleteID, result.Cancellation.PersonID)
	assert.Len(t, repo.created, 1)
}

func TestCancellationCreateReasonTooShort(t *testing.T) {
	repo := &mockCancellationRepo{}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 72*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	_, err := svc.Create(context.Background(), testSettings(), CreateCancellationRequest{
		SessionID: testSessionID,
		Reason:    "krank",
	}, athleteClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestCancellationCreateSessionInPast(t *testing.T) {
	repo := &mockCancellationRepo{}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, -2*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	_, err := svc.Create(context.Background(), testSettings(), CreateCancellationRequest{
		SessionID: testSessionID,
		Reason:    "Verletzung im Training",
	}, athleteClaims())
	require.ErrorIs(t, err, appErrors.ErrSessionInPast)
}

func TestCancellationCreateDuplicate(t *testing.T) {
	repo := &mockCancellationRepo{active: map[string]*models.Cancellation{
		testSessionID + "/" + testAthleteID: {ID: "c1", State: models.LifecycleActive},
	}}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 72*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	_, err := svc.Create(context.Background(), testSettings(), CreateCancellationRequest{
		SessionID: testSessionID,
		Reason:    "Verletzung im Training",
	}, athleteClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCancellationCreateInsideDeadlineWindow(t *testing.T) {
	repo := &mockCancellationRepo{}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 4*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	// The deadline governs Edit and Undo; a fresh opt-out 4h before the
	// session still goes through for athletes.
	result, err := svc.Create(context.Background(), testSettings(), CreateCancellationRequest{
		SessionID: testSessionID,
		Reason:    "kurzfristig erkrankt heute",
	}, athleteClaims())
	require.NoError(t, err)
	assert.False(t, result.DeadlinePassed)
	assert.Len(t, repo.created, 1)
}

func TestCancellationEditDeadlineBlocksAthlete(t *testing.T) {
	repo := &mockCancellationRepo{items: map[string]*models.Cancellation{
		"c1": {ID: "c1", SessionID: testSessionID, PersonID: testAthleteID, State: models.LifecycleActive},
	}}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 4*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	_, err := svc.Edit(context.Background(), testSettings(), "c1", EditCancellationRequest{
		Reason: "Termin beim Physiotherapeuten",
	}, athleteClaims())
	require.ErrorIs(t, err, appErrors.ErrDeadlinePassed)
	assert.Empty(t, repo.reworded)
}

func TestCancellationUndoDeadlineWarnsTrainer(t *testing.T) {
	repo := &mockCancellationRepo{items: map[string]*models.Cancellation{
		"c1": {ID: "c1", SessionID: testSessionID, PersonID: testTrainerID, State: models.LifecycleActive},
	}}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 4*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	result, err := svc.Undo(context.Background(), testSettings(), "c1", trainerClaims())
	require.NoError(t, err)
	assert.True(t, result.DeadlinePassed)
	assert.Equal(t, []string{"c1"}, repo.undone)
}

func TestCancellationEditDeadlineBoundary(t *testing.T) {
	// Deadline is start minus 24h; check a few minutes either side of it.
	newService := func(startsIn time.Duration) (*CancellationService, *mockCancellationRepo) {
		repo := &mockCancellationRepo{items: map[string]*models.Cancellation{
			"c1": {ID: "c1", SessionID: testSessionID, PersonID: testAthleteID, State: models.LifecycleActive},
		}}
		sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
			testSessionID: sessionStartingIn(testSessionID, startsIn),
		}}
		return NewCancellationService(repo, sessions, nil, nil), repo
	}

	svc, repo := newService(24*time.Hour + 5*time.Minute)
	result, err := svc.Edit(context.Background(), testSettings(), "c1", EditCancellationRequest{
		Reason: "Termin beim Physiotherapeuten",
	}, athleteClaims())
	require.NoError(t, err)
	assert.False(t, result.DeadlinePassed)
	assert.Equal(t, "Termin beim Physiotherapeuten", repo.reworded["c1"])

	svc, repo = newService(24*time.Hour - 5*time.Minute)
	_, err = svc.Edit(context.Background(), testSettings(), "c1", EditCancellationRequest{
		Reason: "Termin beim Physiotherapeuten",
	}, athleteClaims())
	require.ErrorIs(t, err, appErrors.ErrDeadlinePassed)
	assert.Empty(t, repo.reworded)
}

func TestCancellationUndo(t *testing.T) {
	repo := &mockCancellationRepo{items: map[string]*models.Cancellation{
		"c1": {ID: "c1", SessionID: testSessionID, PersonID: testAthleteID, State: models.LifecycleActive},
	}}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 72*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	result, err := svc.Undo(context.Background(), testSettings(), "c1", athleteClaims())
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleRetired, result.Cancellation.State)
	assert.Equal(t, []string{"c1"}, repo.undone)
}

func TestCancellationUndoAlreadyUndone(t *testing.T) {
	repo := &mockCancellationRepo{items: map[string]*models.Cancellation{
		"c1": {ID: "c1", SessionID: testSessionID, PersonID: testAthleteID, State: models.LifecycleRetired},
	}}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 72*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	_, err := svc.Undo(context.Background(), testSettings(), "c1", athleteClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCancellationEditForeignRowForbidden(t *testing.T) {
	repo := &mockCancellationRepo{items: map[string]*models.Cancellation{
		"c1": {ID: "c1", SessionID: testSessionID, PersonID: testTrainerID, State: models.LifecycleActive},
	}}
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{
		testSessionID: sessionStartingIn(testSessionID, 72*time.Hour),
	}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	_, err := svc.Edit(context.Background(), testSettings(), "c1", EditCancellationRequest{
		Reason: "Verletzung im Training",
	}, athleteClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCancellationBulkCreateSkipsStartedAndDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	mock.ExpectBegin()
	mock.ExpectCommit()

	upcoming := *sessionStartingIn("11111111-2222-4333-8444-555555555555", 48*time.Hour)
	duplicate := *sessionStartingIn("22222222-3333-4444-8555-666666666666", 72*time.Hour)
	started := *sessionStartingIn("33333333-4444-4555-8666-777777777777", -1*time.Hour)

	repo := &mockCancellationRepo{
		db: sqlx.NewDb(db, "sqlmock"),
		active: map[string]*models.Cancellation{
			duplicate.ID + "/" + testAthleteID: {ID: "c0", State: models.LifecycleActive},
		},
	}
	sessions := &mockSessionReader{inRange: []models.TrainingSession{upcoming, duplicate, started}}
	svc := NewCancellationService(repo, sessions, nil, nil)

	created, err := svc.BulkCreate(context.Background(), testSettings(), BulkCreateCancellationRequest{
		From:   time.Now().UTC(),
		To:     time.Now().UTC().AddDate(0, 0, 14),
		Reason: "Verletzungspause nach Arztbesuch",
	}, athleteClaims())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, repo.created, 1)
	assert.Equal(t, upcoming.ID, repo.created[0].SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancellationListScopesAthleteToOwnRows(t *testing.T) {
	repo := &mockCancellationRepo{items: map[string]*models.Cancellation{
		"c1": {ID: "c1", PersonID: testAthleteID, State: models.LifecycleActive},
		"c2": {ID: "c2", PersonID: testTrainerID, State: models.LifecycleActive},
	}}
	svc := NewCancellationService(repo, &mockSessionReader{}, nil, nil)

	rows, total, err := svc.List(context.Background(), models.CancellationFilter{}, athleteClaims())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, testAthleteID, rows[0].PersonID)
}
