package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/pkg/mailer"
)

type recipientDirectory interface {
	ListEmailsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

// NotificationService sends best-effort emails. A failed delivery is
// logged and swallowed; it never fails the triggering operation.
type NotificationService struct {
	mail      mailer.Sender
	directory recipientDirectory
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(mail mailer.Sender, directory recipientDirectory, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mail: mail, directory: directory, metrics: metrics, logger: logger}
}

// ApprovalDecision informs an applicant about the outcome of their
// registration review.
func (s *NotificationService) ApprovalDecision(ctx context.Context, user *models.User, approved bool, reason string) {
	subject := "Your registration has been approved"
	body := fmt.Sprintf("<p>Hello %s,</p><p>your account has been approved. You can now log in.</p>", user.FullName)
	if !approved {
		subject = "Your registration has been rejected"
		body = fmt.Sprintf("<p>Hello %s,</p><p>your registration was rejected.</p><p>Reason: %s</p>", user.FullName, reason)
	}
	s.send(ctx, []string{user.Email}, subject, body)
}

// SessionCancelled informs participants that a session was called off.
func (s *NotificationService) SessionCancelled(ctx context.Context, trainingName string, session *models.TrainingSession, reason string, recipients []string) {
	subject := fmt.Sprintf("Training cancelled: %s on %s", trainingName, session.Date.Format("2006-01-02"))
	body := fmt.Sprintf("<p>The session %s on %s (%s-%s) has been cancelled.</p><p>Reason: %s</p>",
		trainingName, session.Date.Format("2006-01-02"), session.StartTime, session.EndTime, reason)
	s.send(ctx, recipients, subject, body)
}

// DocumentUploaded informs recipients that a new training plan is available.
func (s *NotificationService) DocumentUploaded(ctx context.Context, doc *models.TrainingPlanDocument, recipients []string) {
	subject := fmt.Sprintf("New training plan: %s", doc.Title)
	body := fmt.Sprintf("<p>A new training plan %q has been uploaded.</p>", doc.Title)
	s.send(ctx, recipients, subject, body)
}

// AbsenceAlert informs trainers and admins that an athlete crossed the
// unexcused absence threshold.
func (s *NotificationService) AbsenceAlert(ctx context.Context, athleteName string, count, windowDays int) {
	recipients := s.staffEmails(ctx)
	if len(recipients) == 0 {
		return
	}
	subject := fmt.Sprintf("Absence alert: %s", athleteName)
	body := fmt.Sprintf("<p>%s has %d unexcused absences within the last %d days.</p>", athleteName, count, windowDays)
	s.send(ctx, recipients, subject, body)
}

func (s *NotificationService) staffEmails(ctx context.Context) []string {
	var recipients []string
	for _, role := range []models.UserRole{models.RoleAdmin, models.RoleTrainer} {
		emails, err := s.directory.ListEmailsByRole(ctx, role)
		if err != nil {
			s.logger.Warn("failed to resolve notification recipients",
				zap.String("role", string(role)), zap.Error(err))
			continue
		}
		recipients = append(recipients, emails...)
	}
	return recipients
}

func (s *NotificationService) send(ctx context.Context, to []string, subject, html string) {
	if s.mail == nil || len(to) == 0 {
		return
	}
	err := s.mail.Send(ctx, mailer.Message{To: to, Subject: subject, HTML: html})
	if err != nil {
		s.metrics.IncMailFailure()
		s.logger.Warn("failed to send notification email",
			zap.String("subject", subject), zap.Error(err))
	}
}
