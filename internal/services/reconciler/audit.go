package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/entitlement"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/metrics"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/services/confirmation"
)

// RunAudit выполняет один проход аудита: сравнивает вычисленное право
// каждого участника с фактическим доступом на медиасервере и устраняет
// расхождения. Если предыдущий проход ещё идёт, запуск пропускается.
func (s *Service) RunAudit(ctx context.Context) {
	const op = "reconciler.RunAudit"
	log := s.log.With(slog.String("op", op))

	if !s.auditRunning.CompareAndSwap(false, true) {
		log.Warn("previous audit pass still running, skipping")
		return
	}
	defer s.auditRunning.Store(false)

	rc := s.cfg()
	now := time.Now().UTC()
	started := now
	log.Info("starting audit pass", "mode", rc.Mode)

	members, err := s.repo.ListMembersNeedingAudit(ctx)
	if err != nil {
		log.Error("failed to list members for audit", sl.Err(err))
		return
	}

	var trialsStarted, downgrades, prompted, failures atomic.Int64

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		sem <- struct{}{}
		go func(m *models.Member) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := s.auditMember(ctx, m, now, rc)
			if err != nil {
				failures.Add(1)
				metrics.MemberFailures.WithLabelValues("audit").Inc()
				log.Error("failed to audit member", sl.Member(m.ID), sl.Err(err))
				return
			}
			switch res {
			case entitlement.ActionStartTrial:
				trialsStarted.Add(1)
			case entitlement.ActionDowngrade:
				downgrades.Add(1)
			case actionPrompted:
				prompted.Add(1)
			}
		}(m)
	}
	wg.Wait()

	metrics.PassDuration.WithLabelValues("audit").Observe(time.Since(started).Seconds())
	log.Info("audit pass finished",
		"members", len(members),
		"trials_started", trialsStarted.Load(),
		"downgrades", downgrades.Load(),
		"prompted", prompted.Load(),
		"failures", failures.Load(),
		"duration", time.Since(started).String())
}

// actionPrompted - внутренний маркер: снятие передано на подтверждение.
const actionPrompted = entitlement.Action("prompted")

func (s *Service) auditMember(ctx context.Context, m *models.Member, now time.Time, rc config.Reconcile) (entitlement.Action, error) {
	if m.Email == "" {
		// Без email участник не привязан к медиасерверу, сверять нечего.
		s.log.Warn("member has no linked email, skipping audit", sl.Member(m.ID))
		return entitlement.ActionNone, nil
	}
	hasAccess, err := s.gw.QueryAccess(ctx, m.Email)
	if err != nil {
		return entitlement.ActionNone, fmt.Errorf("query access: %w", err)
	}

	decision := entitlement.DecideAudit(m, hasAccess, now)
	switch decision.Action {
	case entitlement.ActionStartTrial:
		return s.applyStartTrial(ctx, m, now, rc)
	case entitlement.ActionDowngrade:
		return s.applyOrPromptDowngrade(ctx, m, decision.Reason, now, rc)
	default:
		return entitlement.ActionNone, nil
	}
}

// applyStartTrial выдаёт пробный период участнику, появившемуся на
// медиасервере. Апгрейды никогда не требуют подтверждения.
func (s *Service) applyStartTrial(ctx context.Context, m *models.Member, now time.Time, rc config.Reconcile) (entitlement.Action, error) {
	if err := s.repo.StartTrial(ctx, m.ID, now, rc.TrialDays); err != nil {
		return entitlement.ActionNone, fmt.Errorf("start trial: %w", err)
	}
	metrics.TransitionsApplied.WithLabelValues(string(entitlement.ActionStartTrial)).Inc()
	s.log.Info("trial started", sl.Member(m.ID), "days", rc.TrialDays)

	s.notifier.Dispatch(ctx, models.NotificationJob{
		MemberID: m.ID,
		Email:    m.Email,
		Mobile:   m.Mobile,
		Channels: []models.Channel{models.ChannelChat, models.ChannelEmail},
		Subject:  "Welcome to the media server",
		Body: fmt.Sprintf("Hi %s! Your %d-day trial has started. Enjoy the library.",
			m.DisplayTag, rc.TrialDays),
	})
	return entitlement.ActionStartTrial, nil
}

// applyOrPromptDowngrade снимает право либо запрашивает подтверждение,
// в зависимости от режима работы.
func (s *Service) applyOrPromptDowngrade(ctx context.Context, m *models.Member, reason string, now time.Time, rc config.Reconcile) (entitlement.Action, error) {
	if rc.Manual() {
		outcome, err := s.confirm.Prompt(ctx, m, reason, now, rc)
		if err != nil {
			return entitlement.ActionNone, fmt.Errorf("prompt confirmation: %w", err)
		}
		if outcome == confirmation.OutcomePrompted {
			return actionPrompted, nil
		}
		return entitlement.ActionNone, nil
	}

	if err := s.downgradeMember(ctx, m, reason, now); err != nil {
		return entitlement.ActionNone, err
	}
	return entitlement.ActionDowngrade, nil
}
