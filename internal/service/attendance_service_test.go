package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehner/gymclub-api/internal/models"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
	"github.com/mlehner/gymclub-api/pkg/export"
)

type mockAttendanceRepo struct {
	records map[string]*models.AttendanceRecord
	history []models.AttendanceHistoryRow
	details []models.AttendanceRecordDetail
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if m.records == nil {
		m.records = make(map[string]*models.AttendanceRecord)
	}
	key := record.SessionID + "/" + record.AthleteID
	if existing, ok := m.records[key]; ok {
		existing.Status = record.Status
		existing.Notes = record.Notes
		modifiedBy := record.MarkedBy
		existing.LastModifiedBy = &modifiedBy
		cp := *existing
		return &cp, nil
	}
	record.ID = "generated-" + record.AthleteID
	record.MarkedAt = time.Now().UTC()
	cp := *record
	m.records[key] = &cp
	return record, nil
}

func (m *mockAttendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error) {
	return m.details, nil
}

func (m *mockAttendanceRepo) History(ctx context.Context, athleteID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	return m.history, nil
}

type mockCountInvalidator struct {
	invalidations int
}

func (m *mockCountInvalidator) InvalidateLiveCounts(ctx context.Context) {
	m.invalidations++
}

func attendanceSessions(cancelled bool) *mockSessionReader {
	session := sessionStartingIn(testSessionID, -30*time.Minute)
	session.Cancelled = cancelled
	return &mockSessionReader{sessions: map[string]*models.TrainingSession{testSessionID: session}}
}

func TestAttendanceMark(t *testing.T) {
	repo := &mockAttendanceRepo{}
	counts := &mockCountInvalidator{}
	svc := NewAttendanceService(repo, attendanceSessions(false), counts, export.NewPDFExporter(), nil, nil)

	records, err := svc.Mark(context.Background(), testSessionID, MarkAttendanceRequest{
		Items: []MarkAttendanceItem{
			{AthleteID: testAthleteID, Status: "PRESENT"},
		},
	}, trainerClaims())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttendancePresent, records[0].Status)
	assert.Equal(t, testTrainerID, records[0].MarkedBy)
	assert.Equal(t, 1, counts.invalidations)
}

func TestAttendanceMarkDoesNotPersistAlerts(t *testing.T) {
	repo := &mockAttendanceRepo{}
	alerts := &mockAlertRepo{}
	alertSvc := NewAlertService(alerts, &mockAbsenceCounter{counts: []models.AbsenceCount{
		{AthleteID: testAthleteID, AthleteName: "Mia Weber", Count: 4},
	}}, nil, nil, nil, nil)
	svc := NewAttendanceService(repo, attendanceSessions(false), alertSvc, export.NewPDFExporter(), nil, nil)

	// Marking an unexcused absence must not write alert rows; those are
	// only created when the evaluation endpoint is called.
	_, err := svc.Mark(context.Background(), testSessionID, MarkAttendanceRequest{
		Items: []MarkAttendanceItem{{AthleteID: testAthleteID, Status: "ABSENT_UNEXCUSED"}},
	}, trainerClaims())
	require.NoError(t, err)
	assert.Empty(t, alerts.created)
}

func TestAttendanceRemarkOverwrites(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, attendanceSessions(false), &mockCountInvalidator{}, export.NewPDFExporter(), nil, nil)

	_, err := svc.Mark(context.Background(), testSessionID, MarkAttendanceRequest{
		Items: []MarkAttendanceItem{{AthleteID: testAthleteID, Status: "ABSENT_UNEXCUSED"}},
	}, trainerClaims())
	require.NoError(t, err)

	records, err := svc.Mark(context.Background(), testSessionID, MarkAttendanceRequest{
		Items: []MarkAttendanceItem{{AthleteID: testAthleteID, Status: "ABSENT_EXCUSED"}},
	}, trainerClaims())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttendanceAbsentExcused, records[0].Status)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceMarkRejectsUnknownStatus(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, attendanceSessions(false), nil, export.NewPDFExporter(), nil, nil)

	_, err := svc.Mark(context.Background(), testSessionID, MarkAttendanceRequest{
		Items: []MarkAttendanceItem{{AthleteID: testAthleteID, Status: "LATE"}},
	}, trainerClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAttendanceMarkCancelledSession(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, attendanceSessions(true), nil, export.NewPDFExporter(), nil, nil)

	_, err := svc.Mark(context.Background(), testSessionID, MarkAttendanceRequest{
		Items: []MarkAttendanceItem{{AthleteID: testAthleteID, Status: "PRESENT"}},
	}, trainerClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceMarkMissingSession(t *testing.T) {
	sessions := &mockSessionReader{sessions: map[string]*models.TrainingSession{}}
	svc := NewAttendanceService(&mockAttendanceRepo{}, sessions, nil, export.NewPDFExporter(), nil, nil)

	_, err := svc.Mark(context.Background(), testSessionID, MarkAttendanceRequest{
		Items: []MarkAttendanceItem{{AthleteID: testAthleteID, Status: "PRESENT"}},
	}, trainerClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttendanceHistorySelfOnly(t *testing.T) {
	repo := &mockAttendanceRepo{history: []models.AttendanceHistoryRow{
		{SessionID: testSessionID, Status: models.AttendancePresent},
	}}
	svc := NewAttendanceService(repo, attendanceSessions(false), nil, export.NewPDFExporter(), nil, nil)

	rows, err := svc.History(context.Background(), testAthleteID, nil, nil, athleteClaims())
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = svc.History(context.Background(), testTrainerID, nil, nil, athleteClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAttendanceSheetPDF(t *testing.T) {
	notes := "Handgelenk tapen"
	repo := &mockAttendanceRepo{details: []models.AttendanceRecordDetail{
		{
			AttendanceRecord: models.AttendanceRecord{Status: models.AttendancePresent},
			AthleteName:      "Mia Weber",
		},
		{
			AttendanceRecord: models.AttendanceRecord{Status: models.AttendanceAbsentExcused, Notes: &notes},
			AthleteName:      "Jonas Keller",
		},
	}}
	svc := NewAttendanceService(repo, attendanceSessions(false), nil, export.NewPDFExporter(), nil, nil)

	out, err := svc.SessionSheetPDF(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}
