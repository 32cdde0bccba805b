package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// ErrMemberNotFound возвращается, когда участник отсутствует в реестре.
var ErrMemberNotFound = errors.New("member not found")

const memberColumns = `id, display_tag, email, mobile, origin, referrer_id,
	       lifetime, had_trial, used_promo, invite_sent_at, trial_start,
	       trial_end, paid_until, trial_reminder_sent_at, paid_reminder_sent_at`

func scanMember(row interface{ Scan(...any) error }) (*models.Member, error) {
	m := &models.Member{}
	var referrerID sql.NullString
	var inviteSentAt, trialStart, trialEnd, paidUntil sql.NullTime
	var trialRemAt, paidRemAt sql.NullTime

	if err := row.Scan(&m.ID, &m.DisplayTag, &m.Email, &m.Mobile, &m.Origin,
		&referrerID, &m.Lifetime, &m.HadTrial, &m.UsedPromo,
		&inviteSentAt, &trialStart, &trialEnd, &paidUntil,
		&trialRemAt, &paidRemAt); err != nil {
		return nil, err
	}

	if referrerID.Valid {
		m.ReferrerID = &referrerID.String
	}
	if inviteSentAt.Valid {
		m.InviteSentAt = &inviteSentAt.Time
	}
	if trialStart.Valid {
		m.TrialStart = &trialStart.Time
	}
	if trialEnd.Valid {
		m.TrialEnd = &trialEnd.Time
	}
	if paidUntil.Valid {
		m.PaidUntil = &paidUntil.Time
	}
	if trialRemAt.Valid {
		m.TrialReminderSentAt = &trialRemAt.Time
	}
	if paidRemAt.Valid {
		m.PaidReminderSentAt = &paidRemAt.Time
	}
	return m, nil
}

func collectMembers(rows *sql.Rows) ([]*models.Member, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveMember сохраняет нового участника или обновляет контактные данные
// существующего. Источник записи (origin) выставляется один раз и
// повторной записью не перетирается.
func (s *Storage) SaveMember(ctx context.Context, m models.Member) error {
	const op = "storage.SaveMember"

	query := `INSERT INTO members (id, display_tag, email, mobile, origin, referrer_id, lifetime)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (id) DO UPDATE SET
			      display_tag = excluded.display_tag,
			      email = excluded.email,
			      mobile = excluded.mobile,
			      origin = members.origin,
			      lifetime = excluded.lifetime,
			      updated_at = now();`
	if _, err := s.DB.ExecContext(ctx, query,
		m.ID, m.DisplayTag, m.Email, m.Mobile, m.Origin, m.ReferrerID, m.Lifetime); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetMember возвращает участника по его идентификатору.
func (s *Storage) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	const op = "storage.GetMember"

	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	m, err := scanMember(s.DB.QueryRowContext(ctx, query, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrMemberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// RemoveMember удаляет участника из реестра, возвращает число удалённых строк.
// Отсрочки и ожидающие подтверждения удаляются каскадно.
func (s *Storage) RemoveMember(ctx context.Context, memberID string) (int, error) {
	const op = "storage.RemoveMember"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, memberID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(count), nil
}

// ListMembers возвращает список участников с пагинацией.
func (s *Storage) ListMembers(ctx context.Context, limit, offset int) ([]*models.Member, error) {
	const op = "storage.ListMembers"

	query := `SELECT ` + memberColumns + ` FROM members ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := collectMembers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListMembersNeedingAudit возвращает участников для прохода сверки:
// с заполненным контактом и без пожизненного доступа.
func (s *Storage) ListMembersNeedingAudit(ctx context.Context) ([]*models.Member, error) {
	const op = "storage.ListMembersNeedingAudit"

	query := `SELECT ` + memberColumns + `
			  FROM members
			  WHERE NOT lifetime AND (email <> '' OR mobile <> '')`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := collectMembers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListMembersWithEntitlements возвращает участников с хотя бы одной
// временной меткой доступа — кандидатов для прохода принуждения.
func (s *Storage) ListMembersWithEntitlements(ctx context.Context) ([]*models.Member, error) {
	const op = "storage.ListMembersWithEntitlements"

	query := `SELECT ` + memberColumns + `
			  FROM members
			  WHERE NOT lifetime AND (trial_end IS NOT NULL OR paid_until IS NOT NULL)`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := collectMembers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListExpiringMembers возвращает участников, чей пробный период или
// оплаченный доступ истекает в окне [now, now+horizon] и кому ещё
// не отправлялось соответствующее напоминание.
func (s *Storage) ListExpiringMembers(ctx context.Context, now time.Time, horizon time.Duration) ([]*models.Member, error) {
	const op = "storage.ListExpiringMembers"

	until := now.Add(horizon)
	query := `SELECT ` + memberColumns + `
			  FROM members
			  WHERE NOT lifetime AND (
			      (trial_end IS NOT NULL AND trial_end BETWEEN $1 AND $2 AND trial_reminder_sent_at IS NULL)
			      OR
			      (paid_until IS NOT NULL AND paid_until BETWEEN $1 AND $2 AND paid_reminder_sent_at IS NULL)
			  )`
	rows, err := s.DB.QueryContext(ctx, query, now, until)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := collectMembers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// StartTrial запускает пробный период: фиксирует границы, помечает
// пробный период использованным и сбрасывает флаг напоминания,
// чтобы новый цикл истечения разрешил новое напоминание.
func (s *Storage) StartTrial(ctx context.Context, memberID string, now time.Time, days int) error {
	const op = "storage.StartTrial"

	query := `UPDATE members
			  SET trial_start = $2,
			      trial_end = $2 + make_interval(days => $3),
			      had_trial = TRUE,
			      trial_reminder_sent_at = NULL,
			      updated_at = now()
			  WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, memberID, now, days); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApplyDowngrade снимает право доступа: очищает trial_end всегда,
// а paid_until — только если он уже в прошлом относительно now
// (будущую оплату снятие по сверке трогать не должно).
func (s *Storage) ApplyDowngrade(ctx context.Context, memberID string, now time.Time) error {
	const op = "storage.ApplyDowngrade"

	query := `UPDATE members
			  SET trial_end = NULL,
			      paid_until = CASE
			          WHEN paid_until IS NOT NULL AND paid_until <= $2 THEN NULL
			          ELSE paid_until
			      END,
			      updated_at = now()
			  WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, memberID, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ExtendPaid продлевает оплаченный доступ на days дней от
// max(now, paid_until) и очищает пробный период. Вычисление базы
// выполняется в SQL одним оператором, чтобы параллельный вебхук
// оплаты и проход принуждения не потеряли обновления друг друга.
func (s *Storage) ExtendPaid(ctx context.Context, memberID string, now time.Time, days int) (time.Time, error) {
	const op = "storage.ExtendPaid"

	query := `UPDATE members
			  SET paid_until = GREATEST(COALESCE(paid_until, $2), $2) + make_interval(days => $3),
			      trial_end = NULL,
			      paid_reminder_sent_at = NULL,
			      updated_at = now()
			  WHERE id = $1
			  RETURNING paid_until`
	var paidUntil time.Time
	err := s.DB.QueryRowContext(ctx, query, memberID, now, days).Scan(&paidUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrMemberNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return paidUntil, nil
}

// SetLifetime выставляет пожизненный доступ и очищает обе временные метки.
func (s *Storage) SetLifetime(ctx context.Context, memberID string) error {
	const op = "storage.SetLifetime"

	query := `UPDATE members
			  SET lifetime = TRUE, trial_end = NULL, paid_until = NULL, updated_at = now()
			  WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, memberID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkPromoUsed помечает промо-цену использованной, повторно право не возвращается.
func (s *Storage) MarkPromoUsed(ctx context.Context, memberID string) error {
	const op = "storage.MarkPromoUsed"

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE members SET used_promo = TRUE, updated_at = now() WHERE id = $1`, memberID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetReferrer записывает, кто пригласил участника.
func (s *Storage) SetReferrer(ctx context.Context, memberID, referrerID string) error {
	const op = "storage.SetReferrer"

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE members SET referrer_id = $2, updated_at = now() WHERE id = $1`,
		memberID, referrerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateInviteSent фиксирует момент отправки приглашения на медиасервер.
func (s *Storage) UpdateInviteSent(ctx context.Context, memberID string, now time.Time) error {
	const op = "storage.UpdateInviteSent"

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE members SET invite_sent_at = $2, updated_at = now() WHERE id = $1`,
		memberID, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkTrialReminderSent помечает напоминание о пробном периоде отправленным.
// Условие IS NULL делает отметку идемпотентной: повторный проход
// не перезапишет метку и вернёт 0 затронутых строк.
func (s *Storage) MarkTrialReminderSent(ctx context.Context, memberID string, now time.Time) (bool, error) {
	const op = "storage.MarkTrialReminderSent"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE members SET trial_reminder_sent_at = $2, updated_at = now()
		 WHERE id = $1 AND trial_reminder_sent_at IS NULL`,
		memberID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}

// MarkPaidReminderSent помечает напоминание об оплате отправленным,
// с той же идемпотентной семантикой, что и MarkTrialReminderSent.
func (s *Storage) MarkPaidReminderSent(ctx context.Context, memberID string, now time.Time) (bool, error) {
	const op = "storage.MarkPaidReminderSent"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE members SET paid_reminder_sent_at = $2, updated_at = now()
		 WHERE id = $1 AND paid_reminder_sent_at IS NULL`,
		memberID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}

// SyncTrialEnds пересчитывает trial_end как trial_start + days для всех
// активных пробных периодов после смены длительности в конфиге.
// Возвращает идентификаторы участников, чей пробный период после
// пересчёта оказался уже истёкшим — их нужно передать проходу
// принуждения немедленно, не дожидаясь следующего тика.
func (s *Storage) SyncTrialEnds(ctx context.Context, now time.Time, days int) ([]string, int, error) {
	const op = "storage.SyncTrialEnds"

	query := `UPDATE members
			  SET trial_end = trial_start + make_interval(days => $1),
			      updated_at = now()
			  WHERE trial_start IS NOT NULL
			    AND trial_end IS NOT NULL
			    AND trial_end <> trial_start + make_interval(days => $1)
			  RETURNING id, trial_end`
	rows, err := s.DB.QueryContext(ctx, query, days)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var expired []string
	updated := 0
	for rows.Next() {
		var id string
		var trialEnd time.Time
		if err = rows.Scan(&id, &trialEnd); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		updated++
		if !trialEnd.After(now) {
			expired = append(expired, id)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return expired, updated, nil
}

// MemberStats — агрегаты по реестру для ежедневной сводки.
type MemberStats struct {
	Total        int
	ActivePayers int
	ActiveTrials int
	Lifetime     int
	Expired      int
}

// CountMemberStats считает агрегаты по реестру на момент now.
func (s *Storage) CountMemberStats(ctx context.Context, now time.Time) (*MemberStats, error) {
	const op = "storage.CountMemberStats"

	query := `SELECT
			      count(*),
			      count(*) FILTER (WHERE paid_until > $1),
			      count(*) FILTER (WHERE trial_end > $1 AND (paid_until IS NULL OR paid_until <= $1)),
			      count(*) FILTER (WHERE lifetime),
			      count(*) FILTER (WHERE NOT lifetime
			          AND (trial_end <= $1 OR paid_until <= $1)
			          AND COALESCE(trial_end, 'epoch'::timestamptz) <= $1
			          AND COALESCE(paid_until, 'epoch'::timestamptz) <= $1)
			  FROM members`
	stats := &MemberStats{}
	if err := s.DB.QueryRowContext(ctx, query, now).Scan(
		&stats.Total, &stats.ActivePayers, &stats.ActiveTrials,
		&stats.Lifetime, &stats.Expired); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
