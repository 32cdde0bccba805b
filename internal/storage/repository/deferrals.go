package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// UpsertDeferral записывает или обновляет отсрочку по участнику.
// На участника существует не более одной отсрочки: повторное решение
// администратора сдвигает окно, а не создаёт вторую запись.
func (s *Storage) UpsertDeferral(ctx context.Context, d models.Deferral) error {
	const op = "storage.UpsertDeferral"

	query := `INSERT INTO deferrals (member_id, admin_name, deferred_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (member_id) DO UPDATE SET
			      admin_name = excluded.admin_name,
			      deferred_at = excluded.deferred_at;`
	if _, err := s.DB.ExecContext(ctx, query, d.MemberID, d.AdminName, d.DeferredAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetDeferral возвращает отсрочку по участнику, nil — если её нет.
func (s *Storage) GetDeferral(ctx context.Context, memberID string) (*models.Deferral, error) {
	const op = "storage.GetDeferral"

	d := &models.Deferral{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT member_id, admin_name, deferred_at FROM deferrals WHERE member_id = $1`,
		memberID).Scan(&d.MemberID, &d.AdminName, &d.DeferredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// DeleteDeferral снимает отсрочку с участника (например, после
// подтверждённого снятия доступа).
func (s *Storage) DeleteDeferral(ctx context.Context, memberID string) error {
	const op = "storage.DeleteDeferral"

	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM deferrals WHERE member_id = $1`, memberID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteExpiredDeferrals удаляет отсрочки, чьё окно истекло к моменту now,
// возвращает число удалённых записей. Используется проходом обслуживания.
func (s *Storage) DeleteExpiredDeferrals(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	const op = "storage.DeleteExpiredDeferrals"

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM deferrals WHERE deferred_at < $1`, now.Add(-window))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(count), nil
}
