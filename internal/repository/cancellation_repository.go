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

// CancellationRepository handles persistence for the cancellation ledger.
type CancellationRepository struct {
	db *sqlx.DB
}

// NewCancellationRepository constructs the repository.
func NewCancellationRepository(db *sqlx.DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

const cancellationColumns = `id, session_id, person_id, reason, state, undone_at, created_at, updated_at`

// Create inserts an active cancellation. A partial unique index on
// (session_id, person_id) WHERE state = 'ACTIVE' backs the at-most-one
// invariant; a violation surfaces as an error.
func (r *CancellationRepository) Create(ctx context.Context, c *models.Cancellation) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.State = models.LifecycleActive
	c.CreatedAt = now
	c.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO cancellations (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, cancellationColumns)
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.SessionID, c.PersonID, c.Reason, c.State, c.UndoneAt, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("create cancellation: %w", err)
	}
	return nil
}

// CreateTx inserts within an existing transaction (bulk create).
func (r *CancellationRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, c *models.Cancellation) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.State = models.LifecycleActive
	c.CreatedAt = now
	c.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO cancellations (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, cancellationColumns)
	if _, err := tx.ExecContext(ctx, query, c.ID, c.SessionID, c.PersonID, c.Reason, c.State, c.UndoneAt, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("create cancellation: %w", err)
	}
	return nil
}

// BeginTx opens a transaction for multi-row writes.
func (r *CancellationRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

// FindByID returns one cancellation.
func (r *CancellationRepository) FindByID(ctx context.Context, id string) (*models.Cancellation, error) {
	var c models.Cancellation
	query := fmt.Sprintf("SELECT %s FROM cancellations WHERE id = $1", cancellationColumns)
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, fmt.Errorf("find cancellation: %w", err)
	}
	return &c, nil
}

// FindActive returns the active cancellation for a (person, session) pair,
// or nil when none exists.
func (r *CancellationRepository) FindActive(ctx context.Context, sessionID, personID string) (*models.Cancellation, error) {
	var c models.Cancellation
	query := fmt.Sprintf("SELECT %s FROM cancellations WHERE session_id = $1 AND person_id = $2 AND state = $3", cancellationColumns)
	if err := r.db.GetContext(ctx, &c, query, sessionID, personID, models.LifecycleActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active cancellation: %w", err)
	}
	return &c, nil
}

// UpdateReason rewrites the reason of an active cancellation.
func (r *CancellationRepository) UpdateReason(ctx context.Context, id, reason string) error {
	query := `UPDATE cancellations SET reason = $1, updated_at = $2 WHERE id = $3 AND state = $4`
	res, err := r.db.ExecContext(ctx, query, reason, time.Now().UTC(), id, models.LifecycleActive)
	if err != nil {
		return fmt.Errorf("update cancellation reason: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cancellation rows: %w", err)
	}
	if affected == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}

// Undo retires an active cancellation.
func (r *CancellationRepository) Undo(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `UPDATE cancellations SET state = $1, undone_at = $2, updated_at = $3 WHERE id = $4 AND state = $5`
	res, err := r.db.ExecContext(ctx, query, models.LifecycleRetired, now, now, id, models.LifecycleActive)
	if err != nil {
		return fmt.Errorf("undo cancellation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("undo cancellation rows: %w", err)
	}
	if affected == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}

// List returns cancellations matching the filter.
func (r *CancellationRepository) List(ctx context.Context, filter models.CancellationFilter) ([]models.Cancellation, int, error) {
	base := `FROM cancellations c JOIN training_sessions ts ON ts.id = c.session_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SessionID != "" {
		where = append(where, fmt.Sprintf("c.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.PersonID != "" {
		where = append(where, fmt.Sprintf("c.person_id = $%d", len(args)+1))
		args = append(args, filter.PersonID)
	}
	if filter.State != nil {
		where = append(where, fmt.Sprintf("c.state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ts.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ts.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	query := fmt.Sprintf(`SELECT c.id, c.session_id, c.person_id, c.reason, c.state, c.undone_at, c.created_at, c.updated_at
%s WHERE %s ORDER BY ts.date DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []models.Cancellation
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list cancellations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count cancellations: %w", err)
	}
	return rows, total, nil
}
