package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// ErrConfirmationNotFound возвращается при обращении к несуществующему запросу.
var ErrConfirmationNotFound = errors.New("confirmation not found")

// CreateConfirmation создаёт запрос подтверждения снятия доступа.
// На пару участник+администратор допустим не более одного запроса,
// поэтому повторная попытка на том же проходе молча игнорируется:
// возвращаемое значение сообщает, была ли запись создана.
func (s *Storage) CreateConfirmation(ctx context.Context, c models.PendingConfirmation) (bool, error) {
	const op = "storage.CreateConfirmation"

	query := `INSERT INTO pending_confirmations (id, member_id, admin_name, reason, status, prompted_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (member_id, admin_name) DO NOTHING;`
	res, err := s.DB.ExecContext(ctx, query,
		c.ID, c.MemberID, c.AdminName, c.Reason, c.Status, c.PromptedAt, c.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}

func scanConfirmation(row interface{ Scan(...any) error }) (*models.PendingConfirmation, error) {
	c := &models.PendingConfirmation{}
	if err := row.Scan(&c.ID, &c.MemberID, &c.AdminName, &c.Reason,
		&c.Status, &c.PromptedAt, &c.ExpiresAt); err != nil {
		return nil, err
	}
	return c, nil
}

const confirmationColumns = `id, member_id, admin_name, reason, status, prompted_at, expires_at`

// GetConfirmation возвращает запрос по его ID.
func (s *Storage) GetConfirmation(ctx context.Context, id string) (*models.PendingConfirmation, error) {
	const op = "storage.GetConfirmation"

	c, err := scanConfirmation(s.DB.QueryRowContext(ctx,
		`SELECT `+confirmationColumns+` FROM pending_confirmations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrConfirmationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// GetConfirmationForMember возвращает запрос по участнику, nil — если его нет.
func (s *Storage) GetConfirmationForMember(ctx context.Context, memberID string) (*models.PendingConfirmation, error) {
	const op = "storage.GetConfirmationForMember"

	c, err := scanConfirmation(s.DB.QueryRowContext(ctx,
		`SELECT `+confirmationColumns+` FROM pending_confirmations WHERE member_id = $1`, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// ListConfirmationsByStatus возвращает запросы в заданном статусе.
func (s *Storage) ListConfirmationsByStatus(ctx context.Context, status string) ([]*models.PendingConfirmation, error) {
	const op = "storage.ListConfirmationsByStatus"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+confirmationColumns+` FROM pending_confirmations WHERE status = $1 ORDER BY prompted_at`,
		status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PendingConfirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SetConfirmationStatus переводит запрос из pending в новый статус.
// Условие по текущему статусу исключает гонку двух одновременных ответов.
func (s *Storage) SetConfirmationStatus(ctx context.Context, id, status string) (bool, error) {
	const op = "storage.SetConfirmationStatus"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE pending_confirmations SET status = $2 WHERE id = $1 AND status = $3`,
		id, status, models.ConfirmationPending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}

// DeleteConfirmation удаляет запрос после его исполнения.
func (s *Storage) DeleteConfirmation(ctx context.Context, id string) error {
	const op = "storage.DeleteConfirmation"

	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM pending_confirmations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteExpiredConfirmations удаляет просроченные неотвеченные запросы —
// таймаут ответа администратора не ошибка, участник будет переспрошен
// на следующем проходе принуждения.
func (s *Storage) DeleteExpiredConfirmations(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.DeleteExpiredConfirmations"

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM pending_confirmations WHERE status = $1 AND expires_at <= $2`,
		models.ConfirmationPending, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(count), nil
}
