package models

import "time"

// Статусы запроса подтверждения у администратора.
const (
	// ConfirmationPending — запрос отправлен, ответа ещё нет.
	ConfirmationPending = "pending"
	// ConfirmationApproved — администратор подтвердил снятие доступа.
	ConfirmationApproved = "approved"
	// ConfirmationDeferred — администратор отложил решение на окно отсрочки.
	ConfirmationDeferred = "deferred"
)

// Причины, по которым участник стал кандидатом на снятие доступа.
const (
	ReasonTrialExpired = "trial_expired"
	ReasonPaidExpired  = "paid_expired"
	ReasonAccessLost   = "access_lost"
)

// PendingConfirmation — запрос подтверждения снятия доступа, ожидающий
// ответа администратора. Заменяет блокирующее ожидание ответа в чате:
// запрос коррелируется с ответом по ID, истекает по ExpiresAt
// и после истечения отправляется заново на следующем проходе.
type PendingConfirmation struct {
	ID         string    // UUID запроса
	MemberID   string    // Участник, которого касается решение
	AdminName  string    // Адресат запроса
	Reason     string    // Причина: trial_expired, paid_expired или access_lost
	Status     string    // pending, approved или deferred
	PromptedAt time.Time // Когда отправлен запрос
	ExpiresAt  time.Time // Когда запрос считается просроченным (24 часа)
}

// Expired сообщает, истёк ли запрос к моменту now.
func (p *PendingConfirmation) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
