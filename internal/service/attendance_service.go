package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
	"github.com/mlehner/gymclub-api/pkg/export"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error)
	History(ctx context.Context, athleteID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error)
}

type attendanceSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.TrainingSession, error)
}

type absenceCountInvalidator interface {
	InvalidateLiveCounts(ctx context.Context)
}

// AttendanceService records trainer-entered attendance. Re-marking a pair
// overwrites the earlier status instead of stacking rows. Alerting is not
// triggered from here; marking only drops the cached live absence counts
// and alerts are computed when someone asks for them.
type AttendanceService struct {
	attendance attendanceRepository
	sessions   attendanceSessionReader
	counts     absenceCountInvalidator
	pdf        *export.PDFExporter
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(attendance attendanceRepository, sessions attendanceSessionReader, counts absenceCountInvalidator, pdf *export.PDFExporter, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{attendance: attendance, sessions: sessions, counts: counts, pdf: pdf, validator: validate, logger: logger}
}

// MarkAttendanceItem is one athlete's status in a bulk marking call.
type MarkAttendanceItem struct {
	AthleteID string  `json:"athlete_id" validate:"required,uuid4"`
	Status    string  `json:"status" validate:"required,oneof=PRESENT ABSENT_EXCUSED ABSENT_UNEXCUSED"`
	Notes     *string `json:"notes,omitempty"`
}

// MarkAttendanceRequest carries a whole marking sheet for one session.
type MarkAttendanceRequest struct {
	Items []MarkAttendanceItem `json:"items" validate:"required,min=1,dive"`
}

// Mark upserts the given statuses for one session and invalidates the
// cached live absence counts so the next dashboard read is fresh.
func (s *AttendanceService) Mark(ctx context.Context, sessionID string, req MarkAttendanceRequest, claims *models.JWTClaims) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Cancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance cannot be marked on a cancelled session")
	}

	records := make([]models.AttendanceRecord, 0, len(req.Items))
	for _, item := range req.Items {
		stored, err := s.attendance.Upsert(ctx, &models.AttendanceRecord{
			SessionID: sessionID,
			AthleteID: item.AthleteID,
			Status:    models.AttendanceStatus(item.Status),
			Notes:     item.Notes,
			MarkedBy:  claims.UserID,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
		}
		records = append(records, *stored)
	}

	if s.counts != nil {
		s.counts.InvalidateLiveCounts(ctx)
	}

	s.logger.Info("attendance marked",
		zap.String("session_id", sessionID),
		zap.Int("records", len(records)))
	return records, nil
}

// ListBySession returns all records of one session.
func (s *AttendanceService) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error) {
	rows, err := s.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, nil
}

// History returns one athlete's attendance in a date range. Athletes may
// only read their own history.
func (s *AttendanceService) History(ctx context.Context, athleteID string, from, to *time.Time, claims *models.JWTClaims) ([]models.AttendanceHistoryRow, error) {
	if claims.Role == models.RoleAthlete && claims.UserID != athleteID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "athletes may only read their own history")
	}
	rows, err := s.attendance.History(ctx, athleteID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return rows, nil
}

// SessionSheetPDF renders the marked attendance of one session as a PDF.
func (s *AttendanceService) SessionSheetPDF(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	rows, err := s.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}

	data := export.Dataset{Headers: []string{"Athlete", "Status", "Notes"}}
	for _, row := range rows {
		notes := ""
		if row.Notes != nil {
			notes = *row.Notes
		}
		data.Rows = append(data.Rows, map[string]string{
			"Athlete": row.AthleteName,
			"Status":  string(row.Status),
			"Notes":   notes,
		})
	}
	title := fmt.Sprintf("Attendance %s %s-%s", session.Date.Format("2006-01-02"), session.StartTime, session.EndTime)
	out, err := s.pdf.Render(data, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance sheet")
	}
	return out, nil
}
