package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
	"github.com/mlehner/gymclub-api/pkg/export"
)

type hoursRepository interface {
	TrainerHours(ctx context.Context, filter models.TrainerHoursFilter) ([]models.TrainerHoursRow, error)
}

// HoursService aggregates trainer hours for payroll support. Trainers only
// see their own figures; admins see everyone.
type HoursService struct {
	hours  hoursRepository
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewHoursService constructs the hours service.
func NewHoursService(hours hoursRepository, csv *export.CSVExporter, pdf *export.PDFExporter, logger *zap.Logger) *HoursService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HoursService{hours: hours, csv: csv, pdf: pdf, logger: logger}
}

// List returns the aggregation scoped to the caller.
func (s *HoursService) List(ctx context.Context, filter models.TrainerHoursFilter, claims *models.JWTClaims) ([]models.TrainerHoursRow, error) {
	if claims.Role == models.RoleTrainer {
		filter.TrainerID = claims.UserID
	}
	rows, err := s.hours.TrainerHours(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate trainer hours")
	}
	return rows, nil
}

// ExportCSV renders the aggregation as CSV.
func (s *HoursService) ExportCSV(ctx context.Context, filter models.TrainerHoursFilter, claims *models.JWTClaims) ([]byte, string, error) {
	rows, err := s.List(ctx, filter, claims)
	if err != nil {
		return nil, "", err
	}
	out, err := s.csv.Render(s.dataset(rows))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render hours csv")
	}
	return out, "trainer-hours.csv", nil
}

// ExportPDF renders the aggregation as a tabular PDF.
func (s *HoursService) ExportPDF(ctx context.Context, filter models.TrainerHoursFilter, claims *models.JWTClaims) ([]byte, string, error) {
	rows, err := s.List(ctx, filter, claims)
	if err != nil {
		return nil, "", err
	}
	out, err := s.pdf.Render(s.dataset(rows), "Trainer Hours")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render hours pdf")
	}
	return out, "trainer-hours.pdf", nil
}

func (s *HoursService) dataset(rows []models.TrainerHoursRow) export.Dataset {
	data := export.Dataset{Headers: []string{"Trainer", "Month", "Sessions", "Hours"}}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Trainer":  row.TrainerName,
			"Month":    row.Month,
			"Sessions": fmt.Sprintf("%d", row.Sessions),
			"Hours":    fmt.Sprintf("%.2f", row.Hours),
		})
	}
	return data
}
