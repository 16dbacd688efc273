package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mlehner/gymclub-api/internal/models"
)

// TrainingRepository handles persistence for recurring training templates,
// their groups and group membership.
type TrainingRepository struct {
	db *sqlx.DB
}

// NewTrainingRepository constructs the repository.
func NewTrainingRepository(db *sqlx.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

const trainingColumns = `id, name, day_of_week, start_time, end_time, recurrence, active_from, active_until, state, created_by, created_at, updated_at`

// Create inserts a new template.
func (r *TrainingRepository) Create(ctx context.Context, t *models.RecurringTraining) error {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.State == "" {
		t.State = models.LifecycleActive
	}
	query := fmt.Sprintf(`INSERT INTO recurring_trainings (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, trainingColumns)
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Name, t.DayOfWeek, t.StartTime, t.EndTime, t.Recurrence, t.ActiveFrom, t.ActiveUntil, t.State, t.CreatedBy, t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("create training: %w", err)
	}
	return nil
}

// Update rewrites the mutable template fields.
func (r *TrainingRepository) Update(ctx context.Context, t *models.RecurringTraining) error {
	t.UpdatedAt = time.Now().UTC()
	query := `UPDATE recurring_trainings
SET name = $1, day_of_week = $2, start_time = $3, end_time = $4, recurrence = $5, active_from = $6, active_until = $7, updated_at = $8
WHERE id = $9`
	if _, err := r.db.ExecContext(ctx, query, t.Name, t.DayOfWeek, t.StartTime, t.EndTime, t.Recurrence, t.ActiveFrom, t.ActiveUntil, t.UpdatedAt, t.ID); err != nil {
		return fmt.Errorf("update training: %w", err)
	}
	return nil
}

// SetState retires or reactivates a template.
func (r *TrainingRepository) SetState(ctx context.Context, id string, state models.LifecycleState) error {
	query := `UPDATE recurring_trainings SET state = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, state, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set training state: %w", err)
	}
	return nil
}

// FindByID returns a template by id.
func (r *TrainingRepository) FindByID(ctx context.Context, id string) (*models.RecurringTraining, error) {
	var t models.RecurringTraining
	query := fmt.Sprintf("SELECT %s FROM recurring_trainings WHERE id = $1", trainingColumns)
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		return nil, fmt.Errorf("find training: %w", err)
	}
	return &t, nil
}

// List returns templates matching the filter.
func (r *TrainingRepository) List(ctx context.Context, filter models.TrainingFilter) ([]models.RecurringTraining, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.State != nil {
		where = append(where, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.DayOfWeek != nil {
		where = append(where, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := "day_of_week"
	if filter.SortBy == "name" {
		sortColumn = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM recurring_trainings WHERE %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d`,
		trainingColumns, whereClause, sortColumn, order, size, offset)

	var rows []models.RecurringTraining
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list trainings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM recurring_trainings WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count trainings: %w", err)
	}
	return rows, total, nil
}

// ListActive returns all active templates for materialization.
func (r *TrainingRepository) ListActive(ctx context.Context) ([]models.RecurringTraining, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_trainings WHERE state = $1 ORDER BY day_of_week, start_time", trainingColumns)
	var rows []models.RecurringTraining
	if err := r.db.SelectContext(ctx, &rows, query, models.LifecycleActive); err != nil {
		return nil, fmt.Errorf("list active trainings: %w", err)
	}
	return rows, nil
}

// CreateGroup inserts a new group under a template.
func (r *TrainingRepository) CreateGroup(ctx context.Context, g *models.TrainingGroup) error {
	now := time.Now().UTC()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	query := `INSERT INTO training_groups (id, training_id, name, sort_order, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, g.ID, g.TrainingID, g.Name, g.SortOrder, g.CreatedAt, g.UpdatedAt); err != nil {
		return fmt.Errorf("create training group: %w", err)
	}
	return nil
}

// UpdateGroup rewrites a group's name and order.
func (r *TrainingRepository) UpdateGroup(ctx context.Context, g *models.TrainingGroup) error {
	g.UpdatedAt = time.Now().UTC()
	query := `UPDATE training_groups SET name = $1, sort_order = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, g.Name, g.SortOrder, g.UpdatedAt, g.ID); err != nil {
		return fmt.Errorf("update training group: %w", err)
	}
	return nil
}

// FindGroupByID returns one group.
func (r *TrainingRepository) FindGroupByID(ctx context.Context, id string) (*models.TrainingGroup, error) {
	var g models.TrainingGroup
	query := `SELECT id, training_id, name, sort_order, created_at, updated_at FROM training_groups WHERE id = $1`
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		return nil, fmt.Errorf("find training group: %w", err)
	}
	return &g, nil
}

// ListGroups returns the groups of one template in sort order.
func (r *TrainingRepository) ListGroups(ctx context.Context, trainingID string) ([]models.TrainingGroup, error) {
	query := `SELECT id, training_id, name, sort_order, created_at, updated_at
FROM training_groups WHERE training_id = $1 ORDER BY sort_order, name`
	var rows []models.TrainingGroup
	if err := r.db.SelectContext(ctx, &rows, query, trainingID); err != nil {
		return nil, fmt.Errorf("list training groups: %w", err)
	}
	return rows, nil
}

// FindAthleteConflict reports the group the athlete already belongs to
// within the given template, or nil.
func (r *TrainingRepository) FindAthleteConflict(ctx context.Context, trainingID, athleteID string) (*models.GroupAssignmentConflict, error) {
	query := `SELECT tg.training_id, tg.id AS group_id, tg.name AS group_name
FROM group_athletes ga
JOIN training_groups tg ON tg.id = ga.group_id
WHERE tg.training_id = $1 AND ga.athlete_id = $2
LIMIT 1`
	var conflict models.GroupAssignmentConflict
	if err := r.db.GetContext(ctx, &conflict, query, trainingID, athleteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find athlete conflict: %w", err)
	}
	return &conflict, nil
}

// AssignAthlete links an athlete to a group.
func (r *TrainingRepository) AssignAthlete(ctx context.Context, a *models.GroupAthlete) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	query := `INSERT INTO group_athletes (id, group_id, athlete_id, assigned_by, assigned_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (group_id, athlete_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, a.ID, a.GroupID, a.AthleteID, a.AssignedBy, a.AssignedAt); err != nil {
		return fmt.Errorf("assign athlete: %w", err)
	}
	return nil
}

// RemoveAthlete unlinks an athlete from a group.
func (r *TrainingRepository) RemoveAthlete(ctx context.Context, groupID, athleteID string) error {
	query := `DELETE FROM group_athletes WHERE group_id = $1 AND athlete_id = $2`
	if _, err := r.db.ExecContext(ctx, query, groupID, athleteID); err != nil {
		return fmt.Errorf("remove athlete: %w", err)
	}
	return nil
}

// ListGroupAthletes returns athlete links for a group.
func (r *TrainingRepository) ListGroupAthletes(ctx context.Context, groupID string) ([]models.GroupAthlete, error) {
	query := `SELECT id, group_id, athlete_id, assigned_by, assigned_at FROM group_athletes WHERE group_id = $1`
	var rows []models.GroupAthlete
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("list group athletes: %w", err)
	}
	return rows, nil
}

// AssignTrainer links a trainer to a group.
func (r *TrainingRepository) AssignTrainer(ctx context.Context, t *models.GroupTrainer) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.AssignedAt.IsZero() {
		t.AssignedAt = time.Now().UTC()
	}
	query := `INSERT INTO group_trainers (id, group_id, trainer_id, is_primary, assigned_by, assigned_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (group_id, trainer_id) DO UPDATE SET is_primary = EXCLUDED.is_primary`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.GroupID, t.TrainerID, t.IsPrimary, t.AssignedBy, t.AssignedAt); err != nil {
		return fmt.Errorf("assign trainer: %w", err)
	}
	return nil
}

// RemoveTrainer unlinks a trainer from a group.
func (r *TrainingRepository) RemoveTrainer(ctx context.Context, groupID, trainerID string) error {
	query := `DELETE FROM group_trainers WHERE group_id = $1 AND trainer_id = $2`
	if _, err := r.db.ExecContext(ctx, query, groupID, trainerID); err != nil {
		return fmt.Errorf("remove trainer: %w", err)
	}
	return nil
}

// ListGroupTrainers returns trainer links for a group.
func (r *TrainingRepository) ListGroupTrainers(ctx context.Context, groupID string) ([]models.GroupTrainer, error) {
	query := `SELECT id, group_id, trainer_id, is_primary, assigned_by, assigned_at FROM group_trainers WHERE group_id = $1`
	var rows []models.GroupTrainer
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("list group trainers: %w", err)
	}
	return rows, nil
}
