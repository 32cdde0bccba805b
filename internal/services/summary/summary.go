// Package summary отправляет ежедневную сводку по реестру
// и выполняет регламентную очистку хранилища.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/storage/repository"
)

// Repository - методы хранилища, нужные сводке и очистке.
type Repository interface {
	CountMemberStats(ctx context.Context, now time.Time) (*repository.MemberStats, error)
	DeleteExpiredDeferrals(ctx context.Context, now time.Time, window time.Duration) (int, error)
}

// Notifier - административный канал уведомлений.
type Notifier interface {
	NotifyAdmin(ctx context.Context, subject, body string) error
}

// Service собирает и отправляет ежедневную сводку.
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

// StartLoop запускает периодическую отправку сводки.
func (s *Service) StartLoop(ctx context.Context) {
	s.Run(ctx)

	ticker := time.NewTicker(s.cfg().SummaryInterval)
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

// Run выполняет один цикл: очистка истёкших отсрочек и отправка сводки.
func (s *Service) Run(ctx context.Context) {
	const op = "summary.Run"
	log := s.log.With(slog.String("op", op))

	rc := s.cfg()
	now := time.Now().UTC()

	pruned, err := s.repo.DeleteExpiredDeferrals(ctx, now, rc.DeferralWindow())
	if err != nil {
		log.Error("failed to prune expired deferrals", sl.Err(err))
	} else if pruned > 0 {
		log.Info("expired deferrals pruned", "count", pruned)
	}

	stats, err := s.repo.CountMemberStats(ctx, now)
	if err != nil {
		log.Error("failed to count member stats", sl.Err(err))
		return
	}

	body := fmt.Sprintf(
		"Daily summary for %s\nMembers total: %d\nActive payers: %d\nActive trials: %d\nLifetime: %d\nExpired: %d",
		now.Format("2006-01-02"),
		stats.Total, stats.ActivePayers, stats.ActiveTrials, stats.Lifetime, stats.Expired)

	if err := s.notifier.NotifyAdmin(ctx, "Daily member summary", body); err != nil {
		log.Error("failed to send daily summary", sl.Err(err))
		return
	}
	log.Info("daily summary sent", "total", stats.Total)
}
