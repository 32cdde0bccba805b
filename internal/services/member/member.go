// Package member реализует операции реестра участников для
// административного API.
package member

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/gateway"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// Repository - методы хранилища, нужные реестру участников.
type Repository interface {
	SaveMember(ctx context.Context, m models.Member) error
	GetMember(ctx context.Context, memberID string) (*models.Member, error)
	RemoveMember(ctx context.Context, memberID string) (int, error)
	ListMembers(ctx context.Context, limit, offset int) ([]*models.Member, error)
	SetReferrer(ctx context.Context, memberID, referrerID string) error
	UpdateInviteSent(ctx context.Context, memberID string, now time.Time) error
}

// Cacher - кеш чтения записей участников.
type Cacher interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service обслуживает CRUD операции реестра участников.
type Service struct {
	repo  Repository
	gw    gateway.AccessGateway
	cache Cacher
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, gw gateway.AccessGateway, cache Cacher, log *slog.Logger) *Service {
	return &Service{repo: repo, gw: gw, cache: cache, log: log}
}

const cacheTTL = 5 * time.Minute

func cacheKey(memberID string) string {
	return "member:" + memberID
}

// Register заводит участника в реестре. Для участников с origin invite
// сразу расшаривается медиасервер и фиксируется момент приглашения.
func (s *Service) Register(ctx context.Context, dm models.DummyMember) (*models.Member, error) {
	const op = "member.Register"
	log := s.log.With(slog.String("op", op), sl.Member(dm.ID))

	m := models.Member{
		ID:         dm.ID,
		DisplayTag: dm.DisplayTag,
		Email:      dm.Email,
		Mobile:     dm.Mobile,
		Origin:     dm.Origin,
		Lifetime:   dm.Lifetime,
	}
	if m.Origin == "" {
		m.Origin = models.OriginManual
	}
	if dm.ReferrerID != "" {
		m.ReferrerID = &dm.ReferrerID
	}

	if err := s.repo.SaveMember(ctx, m); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if m.Origin == models.OriginInvite && m.Email != "" {
		res, err := s.gw.GrantAccess(ctx, m.Email)
		if err != nil {
			log.Error("failed to send media server invite", sl.Err(err))
		} else {
			now := time.Now().UTC()
			if err := s.repo.UpdateInviteSent(ctx, m.ID, now); err != nil {
				log.Error("failed to record invite timestamp", sl.Err(err))
			}
			log.Info("media server invite sent", "result", string(res))
		}
	}

	if err := s.cache.Invalidate(cacheKey(m.ID)); err != nil {
		log.Warn("failed to invalidate member cache", sl.Err(err))
	}
	log.Info("member registered", "origin", m.Origin)

	return s.repo.GetMember(ctx, m.ID)
}

// Get возвращает участника, по возможности из кеша.
func (s *Service) Get(ctx context.Context, memberID string) (*models.Member, error) {
	const op = "member.Get"

	var cached models.Member
	found, err := s.cache.Get(cacheKey(memberID), &cached)
	if err != nil {
		s.log.Warn("member cache read failed", sl.Member(memberID), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(cacheKey(memberID), m, cacheTTL); err != nil {
		s.log.Warn("member cache write failed", sl.Member(memberID), sl.Err(err))
	}
	return m, nil
}

// List возвращает страницу реестра.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.Member, error) {
	const op = "member.List"

	members, err := s.repo.ListMembers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return members, nil
}

// SetReferrer привязывает пригласившего к участнику.
func (s *Service) SetReferrer(ctx context.Context, memberID, referrerID string) error {
	const op = "member.SetReferrer"

	if memberID == referrerID {
		return fmt.Errorf("%s: member cannot refer themselves", op)
	}
	if _, err := s.repo.GetMember(ctx, referrerID); err != nil {
		return fmt.Errorf("%s: referrer: %w", op, err)
	}
	if err := s.repo.SetReferrer(ctx, memberID, referrerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(cacheKey(memberID)); err != nil {
		s.log.Warn("failed to invalidate member cache", sl.Member(memberID), sl.Err(err))
	}
	return nil
}

// Remove удаляет участника: отзывает доступ на медиасервере и убирает
// запись вместе с отсрочками и запросами подтверждения.
func (s *Service) Remove(ctx context.Context, memberID string) error {
	const op = "member.Remove"
	log := s.log.With(slog.String("op", op), sl.Member(memberID))

	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if m.Email != "" {
		res, err := s.gw.RevokeAccess(ctx, m.Email)
		if err != nil {
			// Запись всё равно удаляется: следующий аудит не увидит
			// участника и доступ будет снят вручную.
			log.Error("failed to revoke access on removal", sl.Err(err))
		} else {
			log.Info("access revoked on removal", "result", string(res))
		}
	}

	if _, err := s.repo.RemoveMember(ctx, memberID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(cacheKey(memberID)); err != nil {
		log.Warn("failed to invalidate member cache", sl.Err(err))
	}
	log.Info("member removed")
	return nil
}
