package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

type materializerTrainingReader interface {
	ListActive(ctx context.Context) ([]models.RecurringTraining, error)
	ListGroups(ctx context.Context, trainingID string) ([]models.TrainingGroup, error)
	ListGroupTrainers(ctx context.Context, groupID string) ([]models.GroupTrainer, error)
}

type materializerSessionWriter interface {
	ExistingDates(ctx context.Context, trainingID string, from, to time.Time) ([]time.Time, error)
	CreateMaterialized(ctx context.Context, session *models.TrainingSession, groups []models.SessionGroup, trainers map[int][]models.SessionTrainer) (bool, error)
}

// MaterializerService turns recurring templates into concrete session rows
// on demand. There is no background job; materialization runs lazily when a
// schedule is requested and is idempotent, so concurrent requests cannot
// duplicate sessions.
type MaterializerService struct {
	trainings materializerTrainingReader
	sessions  materializerSessionWriter
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewMaterializerService constructs the materializer.
func NewMaterializerService(trainings materializerTrainingReader, sessions materializerSessionWriter, metrics *MetricsService, logger *zap.Logger) *MaterializerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterializerService{trainings: trainings, sessions: sessions, metrics: metrics, logger: logger}
}

// MaterializeAll materializes every active template up to the generation
// horizon. A failing template is logged and skipped so one broken row does
// not block the whole schedule.
func (s *MaterializerService) MaterializeAll(ctx context.Context, settings models.ClubSettings, now time.Time) (int, error) {
	trainings, err := s.trainings.ListActive(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active trainings")
	}

	created := 0
	for i := range trainings {
		n, err := s.MaterializeTemplate(ctx, &trainings[i], settings, now)
		if err != nil {
			s.logger.Error("failed to materialize training",
				zap.String("training_id", trainings[i].ID),
				zap.Error(err))
			continue
		}
		created += n
	}
	s.metrics.AddSessionsMaterialized(created)
	return created, nil
}

// MaterializeTemplate creates the missing sessions of one template between
// now and the generation horizon. Retired templates are skipped. Each
// session copies the template slot and snapshots the current group layout
// and trainer assignments.
func (s *MaterializerService) MaterializeTemplate(ctx context.Context, training *models.RecurringTraining, settings models.ClubSettings, now time.Time) (int, error) {
	if training.State != models.LifecycleActive {
		return 0, nil
	}
	if !training.Recurrence.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, "training has an unknown recurrence")
	}

	today := models.NormalizeDate(now)
	horizon := today.AddDate(0, 0, settings.SessionGenerationDaysAhead)

	first := firstOccurrence(models.NormalizeDate(training.ActiveFrom), training.DayOfWeek)
	step := training.Recurrence.IntervalDays()

	var candidates []time.Time
	for date := first; !date.After(horizon); date = date.AddDate(0, 0, step) {
		if date.Before(today) {
			continue
		}
		if training.ActiveUntil != nil && date.After(models.NormalizeDate(*training.ActiveUntil)) {
			break
		}
		candidates = append(candidates, date)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	existing, err := s.sessions.ExistingDates(ctx, training.ID, candidates[0], candidates[len(candidates)-1])
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing sessions")
	}
	have := make(map[time.Time]bool, len(existing))
	for _, d := range existing {
		have[models.NormalizeDate(d)] = true
	}

	groups, trainers, err := s.snapshotGroups(ctx, training.ID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, date := range candidates {
		if have[date] {
			continue
		}
		session := &models.TrainingSession{
			TrainingID: &training.ID,
			Date:       date,
			StartTime:  training.StartTime,
			EndTime:    training.EndTime,
		}
		sessionGroups := make([]models.SessionGroup, len(groups))
		copy(sessionGroups, groups)
		inserted, err := s.sessions.CreateMaterialized(ctx, session, sessionGroups, trainers)
		if err != nil {
			return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to materialize session")
		}
		if inserted {
			created++
		}
	}

	if created > 0 {
		s.logger.Info("sessions materialized",
			zap.String("training_id", training.ID),
			zap.Int("created", created))
	}
	return created, nil
}

// snapshotGroups copies the template's group layout into per-session group
// templates plus the trainer roster per group index.
func (s *MaterializerService) snapshotGroups(ctx context.Context, trainingID string) ([]models.SessionGroup, map[int][]models.SessionTrainer, error) {
	templateGroups, err := s.trainings.ListGroups(ctx, trainingID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training groups")
	}

	groups := make([]models.SessionGroup, 0, len(templateGroups))
	trainers := make(map[int][]models.SessionTrainer, len(templateGroups))
	for i, tg := range templateGroups {
		groupID := tg.ID
		groups = append(groups, models.SessionGroup{
			GroupID:   &groupID,
			Name:      tg.Name,
			SortOrder: tg.SortOrder,
		})
		assigned, err := s.trainings.ListGroupTrainers(ctx, tg.ID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group trainers")
		}
		for _, gt := range assigned {
			trainers[i] = append(trainers[i], models.SessionTrainer{
				TrainerID: gt.TrainerID,
				IsPrimary: gt.IsPrimary,
			})
		}
	}
	return groups, trainers, nil
}

// firstOccurrence returns the first date on or after start that falls on
// the given weekday (0 = Sunday).
func firstOccurrence(start time.Time, dayOfWeek int) time.Time {
	offset := (dayOfWeek - int(start.Weekday()) + 7) % 7
	return start.AddDate(0, 0, offset)
}
