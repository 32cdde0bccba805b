// Package confirmation реализует цикл подтверждения снятия доступа администратором.
package confirmation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// Repository - методы хранилища, нужные циклу подтверждения.
type Repository interface {
	GetDeferral(ctx context.Context, memberID string) (*models.Deferral, error)
	UpsertDeferral(ctx context.Context, d models.Deferral) error
	DeleteDeferral(ctx context.Context, memberID string) error

	CreateConfirmation(ctx context.Context, c models.PendingConfirmation) (bool, error)
	GetConfirmation(ctx context.Context, id string) (*models.PendingConfirmation, error)
	GetConfirmationForMember(ctx context.Context, memberID string) (*models.PendingConfirmation, error)
	ListConfirmationsByStatus(ctx context.Context, status string) ([]*models.PendingConfirmation, error)
	SetConfirmationStatus(ctx context.Context, id, status string) (bool, error)
	DeleteConfirmation(ctx context.Context, id string) error
	DeleteExpiredConfirmations(ctx context.Context, now time.Time) (int, error)
}

// Service управляет запросами подтверждения и отсрочками.
type Service struct {
	repo    Repository
	channel rabbitmq.Channel
	log     *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, channel rabbitmq.Channel, log *slog.Logger) *Service {
	return &Service{repo: repo, channel: channel, log: log}
}

// PromptOutcome - результат попытки запросить подтверждение.
type PromptOutcome string

// Возможные результаты Prompt.
const (
	// OutcomePrompted - создан новый запрос и отправлено уведомление.
	OutcomePrompted PromptOutcome = "prompted"
	// OutcomeAlreadyPending - запрос для участника уже ожидает ответа.
	OutcomeAlreadyPending PromptOutcome = "already_pending"
	// OutcomeDeferred - действует отсрочка, запрос подавлен.
	OutcomeDeferred PromptOutcome = "deferred"
)

// Prompt запрашивает у администратора подтверждение снятия доступа у участника.
// Активная отсрочка подавляет запрос. Для участника одновременно
// существует не больше одного ожидающего запроса.
func (s *Service) Prompt(ctx context.Context, m *models.Member, reason string, now time.Time, rc config.Reconcile) (PromptOutcome, error) {
	const op = "confirmation.Prompt"
	log := s.log.With(slog.String("op", op), sl.Member(m.ID))

	deferral, err := s.repo.GetDeferral(ctx, m.ID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if deferral != nil {
		if deferral.Active(now, rc.DeferralWindow()) {
			log.Info("downgrade deferred by admin, skipping prompt",
				"admin", deferral.AdminName, "deferred_at", deferral.DeferredAt)
			return OutcomeDeferred, nil
		}
		if err := s.repo.DeleteDeferral(ctx, m.ID); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		log.Info("deferral window elapsed, member is a candidate again")
	}

	pending := models.PendingConfirmation{
		ID:         uuid.NewString(),
		MemberID:   m.ID,
		AdminName:  rc.AdminName,
		Reason:     reason,
		Status:     models.ConfirmationPending,
		PromptedAt: now,
		ExpiresAt:  now.Add(rc.ConfirmationTTL),
	}
	created, err := s.repo.CreateConfirmation(ctx, pending)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !created {
		log.Info("confirmation already pending for member")
		return OutcomeAlreadyPending, nil
	}

	job := models.NotificationJob{
		MemberID: m.ID,
		Channels: []models.Channel{models.ChannelAdmin},
		Subject:  "Access removal needs confirmation",
		Body: fmt.Sprintf("Member %s lost entitlement (%s). Confirm removal with id %s or defer.",
			m.DisplayTag, reason, pending.ID),
	}
	if err := rabbitmq.PublishMessage(s.channel, rabbitmq.NotificationsExchange, rabbitmq.KeyAdminNotify, job); err != nil {
		// Запрос остаётся в базе: просроченный он будет удалён
		// и отправлен заново на следующем проходе.
		log.Error("failed to publish admin prompt", sl.Err(err))
	}

	log.Info("admin confirmation prompted", "confirmation_id", pending.ID, "reason", reason)
	return OutcomePrompted, nil
}

// Approve помечает запрос подтверждённым. Снятие доступа выполнит
// следующий проход принудительной сверки.
func (s *Service) Approve(ctx context.Context, id string) error {
	const op = "confirmation.Approve"

	ok, err := s.repo.SetConfirmationStatus(ctx, id, models.ConfirmationApproved)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: confirmation is not pending", op)
	}
	s.log.Info("confirmation approved", "confirmation_id", id)
	return nil
}

// Defer откладывает решение: участник получает отсрочку на окно из
// конфигурации, а сам запрос удаляется — его состояние полностью
// описывает запись отсрочки. Когда окно истечёт, следующий проход
// создаст новый запрос и переспросит администратора.
func (s *Service) Defer(ctx context.Context, id, adminName string, now time.Time) error {
	const op = "confirmation.Defer"

	pending, err := s.repo.GetConfirmation(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.repo.SetConfirmationStatus(ctx, id, models.ConfirmationDeferred)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: confirmation is not pending", op)
	}

	err = s.repo.UpsertDeferral(ctx, models.Deferral{
		MemberID:   pending.MemberID,
		AdminName:  adminName,
		DeferredAt: now,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = s.repo.DeleteConfirmation(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("confirmation deferred", "confirmation_id", id, sl.Member(pending.MemberID), "admin", adminName)
	return nil
}

// ListPending возвращает запросы, ожидающие ответа администратора.
func (s *Service) ListPending(ctx context.Context) ([]*models.PendingConfirmation, error) {
	const op = "confirmation.ListPending"

	list, err := s.repo.ListConfirmationsByStatus(ctx, models.ConfirmationPending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Approved возвращает подтверждённые запросы, готовые к исполнению.
func (s *Service) Approved(ctx context.Context) ([]*models.PendingConfirmation, error) {
	const op = "confirmation.Approved"

	list, err := s.repo.ListConfirmationsByStatus(ctx, models.ConfirmationApproved)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Complete удаляет исполненный запрос.
func (s *Service) Complete(ctx context.Context, id string) error {
	const op = "confirmation.Complete"

	if err := s.repo.DeleteConfirmation(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ExpireStale удаляет просроченные запросы без ответа. Участники снова
// станут кандидатами на следующем проходе.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	const op = "confirmation.ExpireStale"

	n, err := s.repo.DeleteExpiredConfirmations(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		s.log.Info("expired stale confirmations", "count", n)
	}
	return n, nil
}
