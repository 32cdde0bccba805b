// Package payment обрабатывает события оплаты: продление доступа,
// промо-цены, реферальные бонусы и пожизненный доступ.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/entitlement"
	"github.com/magabrotheeeer/access-reconciler/internal/gateway"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/services/sender"
)

// Repository - методы хранилища, нужные обработке оплат.
type Repository interface {
	GetMember(ctx context.Context, memberID string) (*models.Member, error)
	ExtendPaid(ctx context.Context, memberID string, now time.Time, days int) (time.Time, error)
	SetLifetime(ctx context.Context, memberID string) error
	MarkPromoUsed(ctx context.Context, memberID string) error
}

// Deduper отсекает повторные доставки одного платёжного события.
type Deduper interface {
	Acquire(key string, ttl time.Duration) (bool, error)
	Release(key string) error
}

// Notifier - диспетчер уведомлений.
type Notifier interface {
	Dispatch(ctx context.Context, job models.NotificationJob) sender.Result
	NotifyAdmin(ctx context.Context, subject, body string) error
}

// Service зачисляет оплаты и ведёт реферальную бухгалтерию.
type Service struct {
	repo     Repository
	gw       gateway.AccessGateway
	dedup    Deduper
	notifier Notifier
	cfg      func() config.Reconcile
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, gw gateway.AccessGateway, dedup Deduper, notifier Notifier,
	cfg func() config.Reconcile, log *slog.Logger) *Service {
	return &Service{repo: repo, gw: gw, dedup: dedup, notifier: notifier, cfg: cfg, log: log}
}

// dedupTTL - сколько держать ключ транзакции. Провайдеры не
// ретранслируют события дольше нескольких суток.
const dedupTTL = 7 * 24 * time.Hour

// Process зачисляет одно платёжное событие. Повторная доставка того же
// TxnID не продлевает доступ второй раз.
func (s *Service) Process(ctx context.Context, event models.PaymentEvent) error {
	const op = "payment.Process"
	log := s.log.With(slog.String("op", op), sl.Member(event.MemberID), "txn_id", event.TxnID)

	key := "payment:txn:" + event.TxnID
	fresh, err := s.dedup.Acquire(key, dedupTTL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !fresh {
		log.Warn("duplicate payment event ignored")
		return nil
	}

	m, err := s.repo.GetMember(ctx, event.MemberID)
	if err != nil {
		s.releaseDedup(key, log)
		return fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	var procErr error
	switch event.Kind {
	case models.PaymentLifetime:
		procErr = s.processLifetime(ctx, m, event, log)
	case models.PaymentRenewal:
		procErr = s.processRenewal(ctx, m, event, now, log)
	default:
		procErr = fmt.Errorf("%s: unknown payment kind: %s", op, event.Kind)
	}
	if procErr != nil {
		// Незачисленный платёж не должен оставаться за ключом:
		// повторная доставка от провайдера обработает его заново.
		s.releaseDedup(key, log)
		return procErr
	}
	return nil
}

func (s *Service) releaseDedup(key string, log *slog.Logger) {
	if err := s.dedup.Release(key); err != nil {
		log.Error("failed to release dedup key", "key", key, sl.Err(err))
	}
}

func (s *Service) processLifetime(ctx context.Context, m *models.Member, event models.PaymentEvent, log *slog.Logger) error {
	const op = "payment.processLifetime"

	if err := s.repo.SetLifetime(ctx, m.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.gw.GrantAccess(ctx, m.Email); err != nil {
		log.Error("failed to grant access after lifetime purchase", sl.Err(err))
	}
	log.Info("lifetime access granted")

	if err := s.notifier.NotifyAdmin(ctx, "Lifetime purchase",
		fmt.Sprintf("Member %s (%s) purchased lifetime access, gross %s.", m.DisplayTag, m.ID, event.Gross)); err != nil {
		log.Error("failed to notify admin", sl.Err(err))
	}
	return nil
}

func (s *Service) processRenewal(ctx context.Context, m *models.Member, event models.PaymentEvent, now time.Time, log *slog.Logger) error {
	const op = "payment.processRenewal"

	if event.Months <= 0 {
		return fmt.Errorf("%s: renewal without months", op)
	}

	rc := s.cfg()
	wasPayer := entitlement.StateOf(m, now) == entitlement.StatePayer

	if event.Promo {
		if entitlement.PromoEligible(m, now) {
			if err := s.repo.MarkPromoUsed(ctx, m.ID); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			log.Info("promo price applied")
		} else if err := s.notifier.NotifyAdmin(ctx, "Promo price misuse",
			fmt.Sprintf("Member %s (%s) paid the promo price without being eligible, gross %s.",
				m.DisplayTag, m.ID, event.Gross)); err != nil {
			log.Error("failed to notify admin about promo misuse", sl.Err(err))
		}
	}

	days := entitlement.MonthsDays(event.Months)
	paidUntil, err := s.repo.ExtendPaid(ctx, m.ID, now, days)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("paid access extended", "months", event.Months, "paid_until", paidUntil)

	if _, err := s.gw.GrantAccess(ctx, m.Email); err != nil {
		log.Error("failed to grant access after payment", sl.Err(err))
	}

	s.notifier.Dispatch(ctx, models.NotificationJob{
		MemberID: m.ID,
		Email:    m.Email,
		Mobile:   m.Mobile,
		Channels: []models.Channel{models.ChannelChat, models.ChannelEmail},
		Subject:  "Payment received",
		Body: fmt.Sprintf("Thanks %s! Your access is paid until %s.",
			m.DisplayTag, paidUntil.Format("2006-01-02")),
	})

	subject := "Subscription renewed"
	if !wasPayer {
		subject = "New paying member"
	}
	if err := s.notifier.NotifyAdmin(ctx, subject,
		fmt.Sprintf("Member %s (%s) paid for %d month(s), gross %s, access until %s.",
			m.DisplayTag, m.ID, event.Months, event.Gross, paidUntil.Format("2006-01-02"))); err != nil {
		log.Error("failed to notify admin", sl.Err(err))
	}

	s.creditReferrer(ctx, m, event.Months, now, rc, log)
	return nil
}

// creditReferrer начисляет бонусные дни пригласившему участнику.
// Бонус выдаётся за каждую завершённую оплату приглашённого.
func (s *Service) creditReferrer(ctx context.Context, m *models.Member, months int, now time.Time, rc config.Reconcile, log *slog.Logger) {
	if m.ReferrerID == nil {
		return
	}

	bonus := entitlement.BonusDays(rc.BonusTable(), months)
	if bonus == 0 {
		return
	}

	referrer, err := s.repo.GetMember(ctx, *m.ReferrerID)
	if err != nil {
		log.Error("failed to load referrer", "referrer_id", *m.ReferrerID, sl.Err(err))
		return
	}
	if referrer.Lifetime {
		// Пожизненному доступу бонусные дни ничего не добавляют.
		return
	}

	paidUntil, err := s.repo.ExtendPaid(ctx, referrer.ID, now, bonus)
	if err != nil {
		log.Error("failed to credit referral bonus", "referrer_id", referrer.ID, sl.Err(err))
		return
	}
	log.Info("referral bonus credited", "referrer_id", referrer.ID, "bonus_days", bonus)

	s.notifier.Dispatch(ctx, models.NotificationJob{
		MemberID: referrer.ID,
		Email:    referrer.Email,
		Mobile:   referrer.Mobile,
		Channels: []models.Channel{models.ChannelChat, models.ChannelEmail},
		Subject:  "Referral bonus",
		Body: fmt.Sprintf("Thanks for the referral, %s! %d bonus days added, access until %s.",
			referrer.DisplayTag, bonus, paidUntil.Format("2006-01-02")),
	})
}
