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

// SessionRepository handles persistence for materialized and ad hoc
// training sessions, their per-session groups and rosters.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, training_id, date, start_time, end_time, cancelled, cancel_reason, completed, created_at, updated_at, completed_at`

// ExistingDates returns the dates already materialized for a template in
// the inclusive range.
func (r *SessionRepository) ExistingDates(ctx context.Context, trainingID string, from, to time.Time) ([]time.Time, error) {
	query := `SELECT date FROM training_sessions WHERE training_id = $1 AND date >= $2 AND date <= $3`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, trainingID, from, to); err != nil {
		return nil, fmt.Errorf("existing session dates: %w", err)
	}
	return dates, nil
}

// CreateMaterialized inserts a session with its group copies and trainer
// snapshot in one transaction. The (training_id, date) unique constraint
// makes concurrent materialization idempotent: when the session already
// exists nothing is written and false is returned.
func (r *SessionRepository) CreateMaterialized(ctx context.Context, session *models.TrainingSession, groups []models.SessionGroup, trainers map[int][]models.SessionTrainer) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin materialize session: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO training_sessions (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (training_id, date) DO NOTHING`, sessionColumns)
	res, err := tx.ExecContext(ctx, query, session.ID, session.TrainingID, session.Date, session.StartTime, session.EndTime, session.Cancelled, session.CancelReason, session.Completed, session.CreatedAt, session.UpdatedAt, session.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert session rows: %w", err)
	}
	if affected == 0 {
		// Another materialization run got there first.
		return false, nil
	}

	for i := range groups {
		g := &groups[i]
		g.SessionID = session.ID
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		g.CreatedAt = now
		g.UpdatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_groups (id, session_id, group_id, name, sort_order, exercises, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			g.ID, g.SessionID, g.GroupID, g.Name, g.SortOrder, g.Exercises, g.Notes, g.CreatedAt, g.UpdatedAt); err != nil {
			return false, fmt.Errorf("insert session group: %w", err)
		}
		for _, t := range trainers[i] {
			id := t.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO session_trainers (id, session_group_id, trainer_id, is_primary) VALUES ($1, $2, $3, $4)`,
				id, g.ID, t.TrainerID, t.IsPrimary); err != nil {
				return false, fmt.Errorf("insert session trainer: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit materialize session: %w", err)
	}
	commit = true
	return true, nil
}

// CreateAdHoc inserts a one-off session with its groups.
func (r *SessionRepository) CreateAdHoc(ctx context.Context, session *models.TrainingSession, groups []models.SessionGroup) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ad hoc session: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO training_sessions (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, sessionColumns)
	if _, err := tx.ExecContext(ctx, query, session.ID, session.TrainingID, session.Date, session.StartTime, session.EndTime, session.Cancelled, session.CancelReason, session.Completed, session.CreatedAt, session.UpdatedAt, session.CompletedAt); err != nil {
		return fmt.Errorf("insert ad hoc session: %w", err)
	}

	for i := range groups {
		g := &groups[i]
		g.SessionID = session.ID
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		g.CreatedAt = now
		g.UpdatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_groups (id, session_id, group_id, name, sort_order, exercises, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			g.ID, g.SessionID, g.GroupID, g.Name, g.SortOrder, g.Exercises, g.Notes, g.CreatedAt, g.UpdatedAt); err != nil {
			return fmt.Errorf("insert ad hoc session group: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ad hoc session: %w", err)
	}
	commit = true
	return nil
}

// FindByID returns one session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.TrainingSession, error) {
	var s models.TrainingSession
	query := fmt.Sprintf("SELECT %s FROM training_sessions WHERE id = $1", sessionColumns)
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

// List returns sessions matching the filter ordered by date.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	base := `FROM training_sessions ts
LEFT JOIN recurring_trainings rt ON rt.id = ts.training_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.TrainingID != "" {
		where = append(where, fmt.Sprintf("ts.training_id = $%d", len(args)+1))
		args = append(args, filter.TrainingID)
	}
	if filter.AthleteID != "" {
		where = append(where, fmt.Sprintf(`EXISTS (
SELECT 1 FROM session_groups sg
LEFT JOIN group_athletes ga ON ga.group_id = sg.group_id
LEFT JOIN session_athlete_moves sam ON sam.session_group_id = sg.id
WHERE sg.session_id = ts.id AND (ga.athlete_id = $%d OR sam.athlete_id = $%d))`, len(args)+1, len(args)+1))
		args = append(args, filter.AthleteID)
	}
	if filter.TrainerID != "" {
		where = append(where, fmt.Sprintf(`EXISTS (
SELECT 1 FROM session_groups sg
JOIN session_trainers st ON st.session_group_id = sg.id
WHERE sg.session_id = ts.id AND st.trainer_id = $%d)`, len(args)+1))
		args = append(args, filter.TrainerID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ts.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ts.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if !filter.IncludeCancelled {
		where = append(where, "ts.cancelled = FALSE")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ts.id, ts.training_id, ts.date, ts.start_time, ts.end_time, ts.cancelled, ts.cancel_reason,
ts.completed, ts.created_at, ts.updated_at, ts.completed_at, rt.name AS training_name
%s WHERE %s ORDER BY ts.date ASC, ts.start_time ASC LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []models.SessionDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return rows, total, nil
}

// ListForPersonInRange returns sessions an athlete is scheduled for in the
// inclusive date range, optionally limited to one template.
func (r *SessionRepository) ListForPersonInRange(ctx context.Context, personID string, from, to time.Time, trainingID string) ([]models.TrainingSession, error) {
	where := []string{
		"ts.cancelled = FALSE",
		"ts.date >= $2",
		"ts.date <= $3",
		`EXISTS (
SELECT 1 FROM session_groups sg
LEFT JOIN group_athletes ga ON ga.group_id = sg.group_id
LEFT JOIN group_trainers gt ON gt.group_id = sg.group_id
LEFT JOIN session_trainers st ON st.session_group_id = sg.id
WHERE sg.session_id = ts.id AND (ga.athlete_id = $1 OR gt.trainer_id = $1 OR st.trainer_id = $1))`,
	}
	args := []interface{}{personID, from, to}
	if trainingID != "" {
		where = append(where, fmt.Sprintf("ts.training_id = $%d", len(args)+1))
		args = append(args, trainingID)
	}
	query := fmt.Sprintf(`SELECT ts.%s FROM training_sessions ts WHERE %s ORDER BY ts.date`,
		strings.ReplaceAll(sessionColumns, ", ", ", ts."), strings.Join(where, " AND "))

	var rows []models.TrainingSession
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions for person: %w", err)
	}
	return rows, nil
}

// SetCancelled flips the cancellation flag of one session.
func (r *SessionRepository) SetCancelled(ctx context.Context, id string, cancelled bool, reason *string) error {
	query := `UPDATE training_sessions SET cancelled = $1, cancel_reason = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, cancelled, reason, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set session cancelled: %w", err)
	}
	return nil
}

// SetCompleted flips the completion flag of one session.
func (r *SessionRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	now := time.Now().UTC()
	var completedAt *time.Time
	if completed {
		completedAt = &now
	}
	query := `UPDATE training_sessions SET completed = $1, completed_at = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, completed, completedAt, now, id); err != nil {
		return fmt.Errorf("set session completed: %w", err)
	}
	return nil
}

// HasAttendance reports whether any attendance record exists for a session.
func (r *SessionRepository) HasAttendance(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE session_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, sessionID); err != nil {
		return false, fmt.Errorf("check session attendance: %w", err)
	}
	return exists, nil
}

// ListSessionGroups returns the per-session groups in sort order.
func (r *SessionRepository) ListSessionGroups(ctx context.Context, sessionID string) ([]models.SessionGroup, error) {
	query := `SELECT id, session_id, group_id, name, sort_order, exercises, notes, created_at, updated_at
FROM session_groups WHERE session_id = $1 ORDER BY sort_order, name`
	var rows []models.SessionGroup
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session groups: %w", err)
	}
	return rows, nil
}

// FindSessionGroup returns one per-session group.
func (r *SessionRepository) FindSessionGroup(ctx context.Context, id string) (*models.SessionGroup, error) {
	var g models.SessionGroup
	query := `SELECT id, session_id, group_id, name, sort_order, exercises, notes, created_at, updated_at
FROM session_groups WHERE id = $1`
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		return nil, fmt.Errorf("find session group: %w", err)
	}
	return &g, nil
}

// UpdateSessionGroup rewrites the per-occurrence exercise and note fields.
func (r *SessionRepository) UpdateSessionGroup(ctx context.Context, id string, exercises, notes *string) error {
	query := `UPDATE session_groups SET exercises = $1, notes = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, exercises, notes, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update session group: %w", err)
	}
	return nil
}

// ListSessionTrainers returns the trainer roster of one session group.
func (r *SessionRepository) ListSessionTrainers(ctx context.Context, sessionGroupID string) ([]models.SessionTrainer, error) {
	query := `SELECT id, session_group_id, trainer_id, is_primary FROM session_trainers WHERE session_group_id = $1`
	var rows []models.SessionTrainer
	if err := r.db.SelectContext(ctx, &rows, query, sessionGroupID); err != nil {
		return nil, fmt.Errorf("list session trainers: %w", err)
	}
	return rows, nil
}

// ReplaceSessionTrainers swaps the trainer roster of one session group in a
// transaction.
func (r *SessionRepository) ReplaceSessionTrainers(ctx context.Context, sessionGroupID string, trainers []models.SessionTrainer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace session trainers: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_trainers WHERE session_group_id = $1`, sessionGroupID); err != nil {
		return fmt.Errorf("clear session trainers: %w", err)
	}
	for _, t := range trainers {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_trainers (id, session_group_id, trainer_id, is_primary) VALUES ($1, $2, $3, $4)`,
			id, sessionGroupID, t.TrainerID, t.IsPrimary); err != nil {
			return fmt.Errorf("insert session trainer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace session trainers: %w", err)
	}
	commit = true
	return nil
}

// UpsertAthleteMove records or updates a one-session group override.
func (r *SessionRepository) UpsertAthleteMove(ctx context.Context, m *models.SessionAthleteMove) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MovedAt.IsZero() {
		m.MovedAt = time.Now().UTC()
	}
	query := `INSERT INTO session_athlete_moves (id, session_id, athlete_id, session_group_id, reason, moved_by, moved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (session_id, athlete_id)
DO UPDATE SET session_group_id = EXCLUDED.session_group_id, reason = EXCLUDED.reason, moved_by = EXCLUDED.moved_by, moved_at = EXCLUDED.moved_at`
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.SessionID, m.AthleteID, m.SessionGroupID, m.Reason, m.MovedBy, m.MovedAt); err != nil {
		return fmt.Errorf("upsert athlete move: %w", err)
	}
	return nil
}

// ListParticipantEmails returns the distinct email addresses of everyone
// scheduled for a session, athletes and trainers alike.
func (r *SessionRepository) ListParticipantEmails(ctx context.Context, sessionID string) ([]string, error) {
	query := `SELECT DISTINCT u.email
FROM session_groups sg
LEFT JOIN group_athletes ga ON ga.group_id = sg.group_id
LEFT JOIN session_trainers st ON st.session_group_id = sg.id
JOIN users u ON u.id = ga.athlete_id OR u.id = st.trainer_id
WHERE sg.session_id = $1 AND u.approval_state = $2
ORDER BY u.email`
	var emails []string
	if err := r.db.SelectContext(ctx, &emails, query, sessionID, models.ApprovalApproved); err != nil {
		return nil, fmt.Errorf("list participant emails: %w", err)
	}
	return emails, nil
}

// ListAthleteMoves returns the overrides recorded for one session.
func (r *SessionRepository) ListAthleteMoves(ctx context.Context, sessionID string) ([]models.SessionAthleteMove, error) {
	query := `SELECT id, session_id, athlete_id, session_group_id, reason, moved_by, moved_at
FROM session_athlete_moves WHERE session_id = $1`
	var rows []models.SessionAthleteMove
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list athlete moves: %w", err)
	}
	return rows, nil
}
