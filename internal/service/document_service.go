package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
	"github.com/mlehner/gymclub-api/pkg/storage"
)

type documentRepository interface {
	Create(ctx context.Context, d *models.TrainingPlanDocument) error
	FindByID(ctx context.Context, id string) (*models.TrainingPlanDocument, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.TrainingPlanDocument, int, error)
	SetState(ctx context.Context, id string, state models.LifecycleState) error
}

type documentNotifier interface {
	DocumentUploaded(ctx context.Context, doc *models.TrainingPlanDocument, recipients []string)
}

type documentRecipientResolver interface {
	ListEmailsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

// DocumentService manages training plan uploads. Only PDFs are accepted
// and the size cap comes from the club settings. Retired documents keep
// their file on disk so the audit trail stays complete.
type DocumentService struct {
	documents documentRepository
	files     *storage.LocalStorage
	notifier  documentNotifier
	directory documentRecipientResolver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(documents documentRepository, files *storage.LocalStorage, notifier documentNotifier, directory documentRecipientResolver, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{documents: documents, files: files, notifier: notifier, directory: directory, validator: validate, logger: logger}
}

// UploadDocumentRequest carries the upload metadata.
type UploadDocumentRequest struct {
	Title   string  `json:"title" validate:"required,min=2,max=160"`
	GroupID *string `json:"group_id,omitempty" validate:"omitempty,uuid4"`
}

// Upload validates and stores a PDF, records its row and notifies athletes
// best effort.
func (s *DocumentService) Upload(ctx context.Context, settings models.ClubSettings, req UploadDocumentRequest, filename, mimeType string, size int64, content io.Reader, claims *models.JWTClaims) (*models.TrainingPlanDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if !strings.EqualFold(mimeType, "application/pdf") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only PDF documents are accepted")
	}
	maxBytes := int64(settings.MaxUploadSizeMB) * 1024 * 1024
	if size <= 0 || size > maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("document must be between 1 byte and %d MB", settings.MaxUploadSizeMB))
	}

	storedName := fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("2006/01"), uuid.NewString(), filepath.Ext(filename))
	storedPath, err := s.files.SaveStream(storedName, io.LimitReader(content, maxBytes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	doc := &models.TrainingPlanDocument{
		Title:      req.Title,
		Filename:   filepath.Base(filename),
		StoredPath: storedPath,
		SizeBytes:  size,
		MimeType:   "application/pdf",
		GroupID:    req.GroupID,
		UploadedBy: claims.UserID,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		if cleanupErr := s.files.Delete(storedPath); cleanupErr != nil {
			s.logger.Warn("failed to clean up orphaned document file", zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}

	if s.notifier != nil && s.directory != nil {
		recipients, err := s.directory.ListEmailsByRole(ctx, models.RoleAthlete)
		if err != nil {
			s.logger.Warn("failed to resolve document recipients", zap.Error(err))
		} else {
			s.notifier.DocumentUploaded(ctx, doc, recipients)
		}
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("title", doc.Title))
	return doc, nil
}

// Get returns one document's metadata.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.TrainingPlanDocument, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// List returns documents visible under the filter. Non-admin callers only
// see active documents.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter, claims *models.JWTClaims) ([]models.TrainingPlanDocument, int, error) {
	if claims.Role != models.RoleAdmin && filter.State == nil {
		active := models.LifecycleActive
		filter.State = &active
	}
	rows, total, err := s.documents.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return rows, total, nil
}

// Download opens the stored file of an active document for streaming. The
// caller is responsible for closing the handle.
func (s *DocumentService) Download(ctx context.Context, id string, claims *models.JWTClaims) (*models.TrainingPlanDocument, *os.File, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.State != models.LifecycleActive && claims.Role != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	file, err := s.files.Open(doc.StoredPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return doc, file, nil
}

// Retire hides a document from listings. Only the uploader or an admin may
// retire it; the file stays on disk.
func (s *DocumentService) Retire(ctx context.Context, id string, claims *models.JWTClaims) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.UploadedBy != claims.UserID && claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "document belongs to another uploader")
	}
	if doc.State == models.LifecycleRetired {
		return appErrors.Clone(appErrors.ErrConflict, "document is already retired")
	}
	if err := s.documents.SetState(ctx, id, models.LifecycleRetired); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire document")
	}
	s.logger.Info("document retired", zap.String("document_id", id))
	return nil
}
