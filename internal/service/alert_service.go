package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/internal/repository"
	"github.com/mlehner/gymclub-api/pkg/cache"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

const absenceCountsCacheKey = "absence:counts"

type alertRepository interface {
	Create(ctx context.Context, alert *models.AbsenceAlert) error
	FindByID(ctx context.Context, id string) (*models.AbsenceAlert, error)
	FindRecentUnacknowledged(ctx context.Context, athleteID string, since time.Time) (*models.AbsenceAlert, error)
	Acknowledge(ctx context.Context, id, byUserID string) error
	List(ctx context.Context, filter models.AbsenceAlertFilter) ([]models.AbsenceAlert, int, error)
}

type absenceCounter interface {
	UnexcusedCounts(ctx context.Context, since time.Time) ([]models.AbsenceCount, error)
}

type alertNotifier interface {
	AbsenceAlert(ctx context.Context, athleteName string, count, windowDays int)
}

// AlertService implements the absence alert engine. Live counts answer
// dashboard queries; persisted alerts are only written when an athlete
// crosses the threshold and no unacknowledged alert exists within the
// cooldown, which keeps repeated evaluations from spamming trainers.
type AlertService struct {
	alerts     alertRepository
	attendance absenceCounter
	notifier   alertNotifier
	counts     *cache.JSONCache
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewAlertService constructs the alert service.
func NewAlertService(alerts alertRepository, attendance absenceCounter, notifier alertNotifier, counts *cache.JSONCache, metrics *MetricsService, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{alerts: alerts, attendance: attendance, notifier: notifier, counts: counts, metrics: metrics, logger: logger}
}

// LiveCounts returns the athletes at or above the unexcused absence
// threshold within the rolling window. Results are cached briefly since
// dashboards poll this.
func (s *AlertService) LiveCounts(ctx context.Context, settings models.ClubSettings, now time.Time) ([]models.AbsenceCount, error) {
	var cached []models.AbsenceCount
	if err := s.counts.Get(ctx, absenceCountsCacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("absence count cache read failed", zap.Error(err))
	}

	flagged, err := s.countsAboveThreshold(ctx, settings, now)
	if err != nil {
		return nil, err
	}
	if err := s.counts.Set(ctx, absenceCountsCacheKey, flagged); err != nil {
		s.logger.Warn("absence count cache write failed", zap.Error(err))
	}
	return flagged, nil
}

// InvalidateLiveCounts drops the cached dashboard counts. Attendance
// marking calls this so freshly marked absences show up on the next read
// instead of waiting for the cache TTL.
func (s *AlertService) InvalidateLiveCounts(ctx context.Context) {
	if err := s.counts.Invalidate(ctx, absenceCountsCacheKey); err != nil {
		s.logger.Warn("absence count cache invalidation failed", zap.Error(err))
	}
}

// EvaluateAndPersist writes an alert for every athlete at or above the
// threshold, unless an unacknowledged alert already exists within the
// cooldown window. Returns the alerts created by this run.
func (s *AlertService) EvaluateAndPersist(ctx context.Context, settings models.ClubSettings, now time.Time) ([]models.AbsenceAlert, error) {
	flagged, err := s.countsAboveThreshold(ctx, settings, now)
	if err != nil {
		return nil, err
	}

	cooldownStart := now.AddDate(0, 0, -settings.AbsenceAlertCooldownDays)
	var created []models.AbsenceAlert
	for _, count := range flagged {
		recent, err := s.alerts.FindRecentUnacknowledged(ctx, count.AthleteID, cooldownStart)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check recent alerts")
		}
		if recent != nil {
			continue
		}

		alert := models.AbsenceAlert{
			AthleteID:    count.AthleteID,
			AbsenceCount: count.Count,
			WindowDays:   settings.AbsenceAlertWindowDays,
		}
		if err := s.alerts.Create(ctx, &alert); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create alert")
		}
		created = append(created, alert)

		if s.notifier != nil {
			s.notifier.AbsenceAlert(ctx, count.AthleteName, count.Count, settings.AbsenceAlertWindowDays)
		}
		s.logger.Info("absence alert created",
			zap.String("athlete_id", count.AthleteID),
			zap.Int("count", count.Count))
	}

	if len(created) > 0 {
		s.metrics.AddAlertsCreated(len(created))
		if err := s.counts.Invalidate(ctx, absenceCountsCacheKey); err != nil {
			s.logger.Warn("absence count cache invalidation failed", zap.Error(err))
		}
	}
	return created, nil
}

// Acknowledge marks an alert as handled. The transition is one way; a
// second acknowledgement is rejected.
func (s *AlertService) Acknowledge(ctx context.Context, id string, claims *models.JWTClaims) (*models.AbsenceAlert, error) {
	alert, err := s.alerts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alert")
	}
	if alert.Acknowledged {
		return nil, appErrors.Clone(appErrors.ErrConflict, "alert is already acknowledged")
	}

	if err := s.alerts.Acknowledge(ctx, id, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrNoRowsUpdated) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "alert is already acknowledged")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acknowledge alert")
	}

	now := time.Now().UTC()
	alert.Acknowledged = true
	alert.AcknowledgedBy = &claims.UserID
	alert.AcknowledgedAt = &now
	return alert, nil
}

// List returns persisted alerts matching the filter.
func (s *AlertService) List(ctx context.Context, filter models.AbsenceAlertFilter) ([]models.AbsenceAlert, int, error) {
	rows, total, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	return rows, total, nil
}

func (s *AlertService) countsAboveThreshold(ctx context.Context, settings models.ClubSettings, now time.Time) ([]models.AbsenceCount, error) {
	since := now.AddDate(0, 0, -settings.AbsenceAlertWindowDays)
	counts, err := s.attendance.UnexcusedCounts(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count absences")
	}
	flagged := make([]models.AbsenceCount, 0, len(counts))
	for _, c := range counts {
		if c.Count >= settings.AbsenceAlertThreshold {
			flagged = append(flagged, c)
		}
	}
	return flagged, nil
}
