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

// AlertRepository handles persistence for absence alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, athlete_id, absence_count, window_days, acknowledged, acknowledged_by, acknowledged_at, created_at`

// Create persists a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *models.AbsenceAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO absence_alerts (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, alertColumns)
	if _, err := r.db.ExecContext(ctx, query, alert.ID, alert.AthleteID, alert.AbsenceCount, alert.WindowDays, alert.Acknowledged, alert.AcknowledgedBy, alert.AcknowledgedAt, alert.CreatedAt); err != nil {
		return fmt.Errorf("create absence alert: %w", err)
	}
	return nil
}

// FindByID returns one alert.
func (r *AlertRepository) FindByID(ctx context.Context, id string) (*models.AbsenceAlert, error) {
	var alert models.AbsenceAlert
	query := fmt.Sprintf("SELECT %s FROM absence_alerts WHERE id = $1", alertColumns)
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, fmt.Errorf("find absence alert: %w", err)
	}
	return &alert, nil
}

// FindRecentUnacknowledged returns the newest unacknowledged alert for an
// athlete created at or after the cooldown start, or nil.
func (r *AlertRepository) FindRecentUnacknowledged(ctx context.Context, athleteID string, since time.Time) (*models.AbsenceAlert, error) {
	var alert models.AbsenceAlert
	query := fmt.Sprintf(`SELECT %s FROM absence_alerts
WHERE athlete_id = $1 AND acknowledged = FALSE AND created_at >= $2
ORDER BY created_at DESC LIMIT 1`, alertColumns)
	if err := r.db.GetContext(ctx, &alert, query, athleteID, since); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find recent alert: %w", err)
	}
	return &alert, nil
}

// Acknowledge marks an alert acknowledged; re-acknowledging is rejected.
func (r *AlertRepository) Acknowledge(ctx context.Context, id, byUserID string) error {
	now := time.Now().UTC()
	query := `UPDATE absence_alerts SET acknowledged = TRUE, acknowledged_by = $1, acknowledged_at = $2
WHERE id = $3 AND acknowledged = FALSE`
	res, err := r.db.ExecContext(ctx, query, byUserID, now, id)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acknowledge alert rows: %w", err)
	}
	if affected == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}

// List returns alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter models.AbsenceAlertFilter) ([]models.AbsenceAlert, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.AthleteID != "" {
		where = append(where, fmt.Sprintf("athlete_id = $%d", len(args)+1))
		args = append(args, filter.AthleteID)
	}
	if filter.Acknowledged != nil {
		where = append(where, fmt.Sprintf("acknowledged = $%d", len(args)+1))
		args = append(args, *filter.Acknowledged)
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

	query := fmt.Sprintf(`SELECT %s FROM absence_alerts WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		alertColumns, whereClause, size, offset)

	var rows []models.AbsenceAlert
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list absence alerts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM absence_alerts WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count absence alerts: %w", err)
	}
	return rows, total, nil
}
