package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mlehner/gymclub-api/internal/models"
)

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts or updates one record keyed by (athlete_id, session_id).
// Updates stamp last_modified_by/at; the original marked_by/at is kept.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MarkedAt.IsZero() {
		record.MarkedAt = now
	}
	query := `INSERT INTO attendance_records (id, session_id, athlete_id, status, notes, marked_by, marked_at, last_modified_by, last_modified_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL)
ON CONFLICT (session_id, athlete_id)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, last_modified_by = EXCLUDED.marked_by, last_modified_at = EXCLUDED.marked_at
RETURNING id, session_id, athlete_id, status, notes, marked_by, marked_at, last_modified_by, last_modified_at`
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.SessionID, record.AthleteID, record.Status, record.Notes, record.MarkedBy, record.MarkedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	return &stored, nil
}

// ListBySession returns all records of one session with athlete names.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecordDetail, error) {
	query := `SELECT ar.id, ar.session_id, ar.athlete_id, ar.status, ar.notes, ar.marked_by, ar.marked_at,
ar.last_modified_by, ar.last_modified_at, u.full_name AS athlete_name
FROM attendance_records ar
JOIN users u ON u.id = ar.athlete_id
WHERE ar.session_id = $1
ORDER BY u.full_name`
	var rows []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return rows, nil
}

// History returns an athlete's attendance ordered by session date.
func (r *AttendanceRepository) History(ctx context.Context, athleteID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	where := []string{"ar.athlete_id = $1"}
	args := []interface{}{athleteID}
	if from != nil {
		where = append(where, fmt.Sprintf("ts.date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("ts.date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT ar.session_id, ts.date, ar.status, ar.notes
FROM attendance_records ar
JOIN training_sessions ts ON ts.id = ar.session_id
WHERE %s
ORDER BY ts.date DESC`, strings.Join(where, " AND "))
	var rows []models.AttendanceHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return rows, nil
}

// UnexcusedCounts tallies ABSENT_UNEXCUSED records marked since the window
// start, grouped per athlete.
func (r *AttendanceRepository) UnexcusedCounts(ctx context.Context, since time.Time) ([]models.AbsenceCount, error) {
	query := `SELECT ar.athlete_id, u.full_name AS athlete_name, COUNT(*) AS count
FROM attendance_records ar
JOIN users u ON u.id = ar.athlete_id
WHERE ar.status = $1 AND ar.marked_at >= $2
GROUP BY ar.athlete_id, u.full_name
ORDER BY count DESC`
	var rows []models.AbsenceCount
	if err := r.db.SelectContext(ctx, &rows, query, models.AttendanceAbsentUnexcused, since); err != nil {
		return nil, fmt.Errorf("unexcused counts: %w", err)
	}
	return rows, nil
}

// UnexcusedCountForAthlete tallies one athlete's unexcused absences since
// the window start.
func (r *AttendanceRepository) UnexcusedCountForAthlete(ctx context.Context, athleteID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM attendance_records WHERE athlete_id = $1 AND status = $2 AND marked_at >= $3`
	if err := r.db.GetContext(ctx, &count, query, athleteID, models.AttendanceAbsentUnexcused, since); err != nil {
		return 0, fmt.Errorf("unexcused count for athlete: %w", err)
	}
	return count, nil
}
