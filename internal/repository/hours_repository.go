package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/mlehner/gymclub-api/internal/models"
)

// HoursRepository aggregates trainer hours from session rosters.
type HoursRepository struct {
	db *sqlx.DB
}

// NewHoursRepository constructs the repository.
func NewHoursRepository(db *sqlx.DB) *HoursRepository {
	return &HoursRepository{db: db}
}

// TrainerHours sums held sessions and slot hours per trainer and month.
// Cancelled sessions are excluded; a trainer on several groups of the same
// session is counted once.
func (r *HoursRepository) TrainerHours(ctx context.Context, filter models.TrainerHoursFilter) ([]models.TrainerHoursRow, error) {
	where := []string{"ts.cancelled = FALSE"}
	args := []interface{}{}
	if filter.TrainerID != "" {
		where = append(where, fmt.Sprintf("st.trainer_id = $%d", len(args)+1))
		args = append(args, filter.TrainerID)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("ts.date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("ts.date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	query := fmt.Sprintf(`SELECT held.trainer_id, u.full_name AS trainer_name,
TO_CHAR(held.date, 'YYYY-MM') AS month,
COUNT(*) AS sessions,
SUM(held.hours) AS hours
FROM (
	SELECT DISTINCT st.trainer_id, ts.id AS session_id, ts.date,
	EXTRACT(EPOCH FROM (ts.end_time::time - ts.start_time::time)) / 3600.0 AS hours
	FROM session_trainers st
	JOIN session_groups sg ON sg.id = st.session_group_id
	JOIN training_sessions ts ON ts.id = sg.session_id
	WHERE %s
) held
JOIN users u ON u.id = held.trainer_id
GROUP BY held.trainer_id, u.full_name, TO_CHAR(held.date, 'YYYY-MM')
ORDER BY u.full_name, month`, strings.Join(where, " AND "))

	var rows []models.TrainerHoursRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("trainer hours: %w", err)
	}
	return rows, nil
}
