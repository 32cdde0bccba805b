// Package reminder реализует проход напоминаний об истекающем доступе.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/metrics"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/services/sender"
)

// Repository - методы хранилища, нужные проходу напоминаний.
type Repository interface {
	ListExpiringMembers(ctx context.Context, now time.Time, horizon time.Duration) ([]*models.Member, error)
	MarkTrialReminderSent(ctx context.Context, memberID string, now time.Time) (bool, error)
	MarkPaidReminderSent(ctx context.Context, memberID string, now time.Time) (bool, error)
}

// Notifier - диспетчер уведомлений участникам.
type Notifier interface {
	Dispatch(ctx context.Context, job models.NotificationJob) sender.Result
}

// Service рассылает напоминания об истекающем доступе не более
// одного раза на цикл истечения.
type Service struct {
	repo     Repository
	notifier Notifier
	cfg      func() config.Reconcile
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, notifier Notifier, cfg func() config.Reconcile, log *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, cfg: cfg, log: log}
}

// StartLoop запускает периодический проход напоминаний. Первый проход
// выполняется сразу, далее по интервалу из конфигурации.
func (s *Service) StartLoop(ctx context.Context) {
	s.Run(ctx)

	ticker := time.NewTicker(s.cfg().ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}

// Run выполняет один проход: находит участников с истекающим доступом
// и отправляет напоминание. Отметка об отправке ставится только после
// успешной передачи хотя бы в один канал, иначе участник будет
// повторно рассмотрен на следующем проходе.
func (s *Service) Run(ctx context.Context) {
	const op = "reminder.Run"
	log := s.log.With(slog.String("op", op))

	rc := s.cfg()
	now := time.Now().UTC()
	horizon := time.Duration(rc.ReminderDays) * 24 * time.Hour

	members, err := s.repo.ListExpiringMembers(ctx, now, horizon)
	if err != nil {
		log.Error("failed to list expiring members", sl.Err(err))
		return
	}
	if len(members) == 0 {
		log.Info("no expiring members found")
		return
	}
	log.Info("found expiring members", "count", len(members))

	sent := 0
	for _, m := range members {
		if !m.HasContact() {
			continue
		}
		if s.remindMember(ctx, m, now, horizon, log) {
			sent++
		}
	}
	log.Info("reminder pass finished", "sent", sent)
}

func (s *Service) remindMember(ctx context.Context, m *models.Member, now time.Time, horizon time.Duration, log *slog.Logger) bool {
	kind, expiry := dueReminder(m, now, horizon)
	if kind == "" {
		return false
	}

	subject := "Your media server access expires soon"
	body := fmt.Sprintf("Hi %s, your access expires on %s. Renew to keep watching.",
		m.DisplayTag, expiry.Format("2006-01-02"))
	if kind == "trial" {
		subject = "Your trial expires soon"
		body = fmt.Sprintf("Hi %s, your trial ends on %s. Subscribe to keep access.",
			m.DisplayTag, expiry.Format("2006-01-02"))
	}

	result := s.notifier.Dispatch(ctx, models.NotificationJob{
		MemberID: m.ID,
		Email:    m.Email,
		Mobile:   m.Mobile,
		Channels: []models.Channel{models.ChannelChat, models.ChannelEmail, models.ChannelSMS},
		Subject:  subject,
		Body:     body,
	})
	if !result.Delivered() {
		// Отметка не ставится, следующий проход попробует снова.
		log.Warn("reminder not delivered on any channel", sl.Member(m.ID))
		return false
	}

	var marked bool
	var err error
	switch kind {
	case "trial":
		marked, err = s.repo.MarkTrialReminderSent(ctx, m.ID, now)
	case "paid":
		marked, err = s.repo.MarkPaidReminderSent(ctx, m.ID, now)
	}
	if err != nil {
		log.Error("failed to mark reminder sent", sl.Member(m.ID), sl.Err(err))
		return false
	}
	if !marked {
		// Отметка уже стояла, дубль не считаем отправкой.
		return false
	}

	metrics.RemindersSent.WithLabelValues(kind).Inc()
	log.Info("reminder sent", sl.Member(m.ID), "kind", kind, "expires", expiry)
	return true
}

// dueReminder выбирает, какое напоминание причитается участнику.
// Оплаченный доступ важнее пробного, если истекают оба.
func dueReminder(m *models.Member, now time.Time, horizon time.Duration) (string, time.Time) {
	until := now.Add(horizon)
	if m.PaidUntil != nil && m.PaidReminderSentAt == nil &&
		!m.PaidUntil.Before(now) && !m.PaidUntil.After(until) {
		return "paid", *m.PaidUntil
	}
	if m.TrialEnd != nil && m.TrialReminderSentAt == nil &&
		!m.TrialEnd.Before(now) && !m.TrialEnd.After(until) {
		return "trial", *m.TrialEnd
	}
	return "", time.Time{}
}
