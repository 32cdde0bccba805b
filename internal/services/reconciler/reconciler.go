// Package reconciler реализует проходы сверки прав доступа:
// аудит расхождений с медиасервером и принудительное снятие
// истёкших прав.
package reconciler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/gateway"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/services/confirmation"
	"github.com/magabrotheeeer/access-reconciler/internal/services/sender"
)

// Repository - методы хранилища, нужные проходам сверки.
type Repository interface {
	ListMembersNeedingAudit(ctx context.Context) ([]*models.Member, error)
	ListMembersWithEntitlements(ctx context.Context) ([]*models.Member, error)
	GetMember(ctx context.Context, memberID string) (*models.Member, error)
	StartTrial(ctx context.Context, memberID string, now time.Time, days int) error
	ApplyDowngrade(ctx context.Context, memberID string, now time.Time) error
	SyncTrialEnds(ctx context.Context, now time.Time, days int) ([]string, int, error)
}

// Confirmer - цикл подтверждения снятия доступа администратором.
type Confirmer interface {
	Prompt(ctx context.Context, m *models.Member, reason string, now time.Time, rc config.Reconcile) (confirmation.PromptOutcome, error)
	Approved(ctx context.Context) ([]*models.PendingConfirmation, error)
	Complete(ctx context.Context, id string) error
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// Notifier - диспетчер уведомлений участникам и администратору.
type Notifier interface {
	Dispatch(ctx context.Context, job models.NotificationJob) sender.Result
	NotifyAdmin(ctx context.Context, subject, body string) error
}

// Service запускает проходы сверки по расписанию и по запросу.
type Service struct {
	repo     Repository
	gw       gateway.AccessGateway
	confirm  Confirmer
	notifier Notifier
	cfg      func() config.Reconcile
	log      *slog.Logger

	auditRunning   atomic.Bool
	enforceRunning atomic.Bool
}

// New создает новый экземпляр Service. cfg возвращает снимок настроек,
// который фиксируется на каждый проход целиком.
func New(repo Repository, gw gateway.AccessGateway, confirm Confirmer, notifier Notifier,
	cfg func() config.Reconcile, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gw:       gw,
		confirm:  confirm,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// StartAuditLoop запускает периодический проход аудита. Первый проход
// выполняется сразу, далее по интервалу из конфигурации.
func (s *Service) StartAuditLoop(ctx context.Context) {
	s.RunAudit(ctx)

	ticker := time.NewTicker(s.cfg().AuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunAudit(ctx)
		}
	}
}

// StartEnforceLoop запускает периодический проход принуждения.
func (s *Service) StartEnforceLoop(ctx context.Context) {
	s.RunEnforce(ctx)

	ticker := time.NewTicker(s.cfg().EnforceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunEnforce(ctx)
		}
	}
}

// SyncTrialDurations пересчитывает даты окончания пробных периодов после
// смены длительности в конфигурации. Если укорочение сделало чьи-то
// пробные периоды уже истёкшими, сразу запускается проход принуждения.
func (s *Service) SyncTrialDurations(ctx context.Context) (int, error) {
	const op = "reconciler.SyncTrialDurations"
	log := s.log.With(slog.String("op", op))

	rc := s.cfg()
	now := time.Now().UTC()

	expiredIDs, updated, err := s.repo.SyncTrialEnds(ctx, now, rc.TrialDays)
	if err != nil {
		return 0, err
	}
	log.Info("trial durations synced", "updated", updated, "now_expired", len(expiredIDs))

	if len(expiredIDs) > 0 {
		go s.RunEnforce(context.WithoutCancel(ctx))
	}
	return updated, nil
}
