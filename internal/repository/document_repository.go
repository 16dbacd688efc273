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

// DocumentRepository handles persistence for training plan documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, title, filename, stored_path, size_bytes, mime_type, group_id, state, uploaded_by, created_at, updated_at`

// Create inserts a new document row.
func (r *DocumentRepository) Create(ctx context.Context, d *models.TrainingPlanDocument) error {
	now := time.Now().UTC()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.State == "" {
		d.State = models.LifecycleActive
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO training_plan_documents (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, documentColumns)
	if _, err := r.db.ExecContext(ctx, query, d.ID, d.Title, d.Filename, d.StoredPath, d.SizeBytes, d.MimeType, d.GroupID, d.State, d.UploadedBy, d.CreatedAt, d.UpdatedAt); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// FindByID returns one document.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.TrainingPlanDocument, error) {
	var d models.TrainingPlanDocument
	query := fmt.Sprintf("SELECT %s FROM training_plan_documents WHERE id = $1", documentColumns)
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &d, nil
}

// List returns documents matching the filter, newest first.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.TrainingPlanDocument, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("(group_id = $%d OR group_id IS NULL)", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.State != nil {
		where = append(where, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
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

	query := fmt.Sprintf(`SELECT %s FROM training_plan_documents WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		documentColumns, whereClause, size, offset)

	var rows []models.TrainingPlanDocument
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM training_plan_documents WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return rows, total, nil
}

// SetState retires or restores a document.
func (r *DocumentRepository) SetState(ctx context.Context, id string, state models.LifecycleState) error {
	query := `UPDATE training_plan_documents SET state = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, state, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set document state: %w", err)
	}
	return nil
}
