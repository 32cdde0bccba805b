package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/entitlement"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/metrics"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/storage/repository"
)

// RunEnforce выполняет один проход принуждения: снимает истёкшие по
// времени права и исполняет подтверждённые администратором снятия.
// Если предыдущий проход ещё идёт, запуск пропускается.
func (s *Service) RunEnforce(ctx context.Context) {
	const op = "reconciler.RunEnforce"
	log := s.log.With(slog.String("op", op))

	if !s.enforceRunning.CompareAndSwap(false, true) {
		log.Warn("previous enforce pass still running, skipping")
		return
	}
	defer s.enforceRunning.Store(false)

	rc := s.cfg()
	now := time.Now().UTC()
	started := now
	log.Info("starting enforce pass", "mode", rc.Mode)

	if _, err := s.confirm.ExpireStale(ctx, now); err != nil {
		log.Error("failed to expire stale confirmations", sl.Err(err))
	}

	members, err := s.repo.ListMembersWithEntitlements(ctx)
	if err != nil {
		log.Error("failed to list members for enforcement", sl.Err(err))
		return
	}

	var downgrades, prompted, failures atomic.Int64

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		sem <- struct{}{}
		go func(m *models.Member) {
			defer wg.Done()
			defer func() { <-sem }()

			decision := entitlement.DecideEnforce(m, now)
			if decision.Action == entitlement.ActionNone {
				return
			}
			if m.Email == "" {
				log.Warn("member has no linked email, skipping enforcement", sl.Member(m.ID))
				return
			}

			res, err := s.applyOrPromptDowngrade(ctx, m, decision.Reason, now, rc)
			if err != nil {
				failures.Add(1)
				metrics.MemberFailures.WithLabelValues("enforce").Inc()
				log.Error("failed to enforce expiry", sl.Member(m.ID), sl.Err(err))
				return
			}
			switch res {
			case entitlement.ActionDowngrade:
				downgrades.Add(1)
			case actionPrompted:
				prompted.Add(1)
			}
		}(m)
	}
	wg.Wait()

	executed := s.executeApproved(ctx, now, log)

	metrics.PassDuration.WithLabelValues("enforce").Observe(time.Since(started).Seconds())
	log.Info("enforce pass finished",
		"members", len(members),
		"downgrades", downgrades.Load(),
		"prompted", prompted.Load(),
		"approved_executed", executed,
		"failures", failures.Load(),
		"duration", time.Since(started).String())
}

// executeApproved исполняет снятия, подтверждённые администратором
// с прошлого прохода.
func (s *Service) executeApproved(ctx context.Context, now time.Time, log *slog.Logger) int {
	approved, err := s.confirm.Approved(ctx)
	if err != nil {
		log.Error("failed to list approved confirmations", sl.Err(err))
		return 0
	}

	executed := 0
	for _, c := range approved {
		m, err := s.repo.GetMember(ctx, c.MemberID)
		if errors.Is(err, repository.ErrMemberNotFound) {
			// Участник удалён, пока запрос ждал ответа.
			if err := s.confirm.Complete(ctx, c.ID); err != nil {
				log.Error("failed to complete orphaned confirmation", sl.Err(err))
			}
			continue
		}
		if err != nil {
			log.Error("failed to load member for approved removal", sl.Member(c.MemberID), sl.Err(err))
			continue
		}

		if err := s.downgradeMember(ctx, m, c.Reason, now); err != nil {
			metrics.MemberFailures.WithLabelValues("enforce").Inc()
			log.Error("failed to execute approved removal", sl.Member(m.ID), sl.Err(err))
			continue
		}
		if err := s.confirm.Complete(ctx, c.ID); err != nil {
			log.Error("failed to complete confirmation", sl.Err(err))
			continue
		}
		executed++
	}
	return executed
}

// downgradeMember отзывает доступ на медиасервере и очищает истёкшие
// метки. Повторный вызов для уже сниженного участника безопасен.
func (s *Service) downgradeMember(ctx context.Context, m *models.Member, reason string, now time.Time) error {
	res, err := s.gw.RevokeAccess(ctx, m.Email)
	if err != nil {
		return fmt.Errorf("revoke access: %w", err)
	}
	if err := s.repo.ApplyDowngrade(ctx, m.ID, now); err != nil {
		return fmt.Errorf("apply downgrade: %w", err)
	}
	metrics.TransitionsApplied.WithLabelValues(string(entitlement.ActionDowngrade)).Inc()
	s.log.Info("member downgraded", sl.Member(m.ID), "reason", reason, "revoke_result", string(res))

	if reason != models.ReasonAccessLost {
		s.notifier.Dispatch(ctx, models.NotificationJob{
			MemberID: m.ID,
			Email:    m.Email,
			Mobile:   m.Mobile,
			Channels: []models.Channel{models.ChannelChat, models.ChannelEmail},
			Subject:  "Your media server access has ended",
			Body: fmt.Sprintf("Hi %s, your access has expired (%s). Renew any time to get it back.",
				m.DisplayTag, reason),
		})
	}
	if err := s.notifier.NotifyAdmin(ctx, "Member downgraded",
		fmt.Sprintf("Member %s (%s) was downgraded: %s, revoke result %s.", m.DisplayTag, m.ID, reason, res)); err != nil {
		s.log.Error("failed to notify admin about downgrade", sl.Member(m.ID), sl.Err(err))
	}
	return nil
}
