// Package models содержит доменные структуры участников медиасервера,
// их права доступа и вспомогательные типы для обмена данными
// между сервисами, хранилищем и HTTP-обработчиками.
package models

import "time"

// Origin — источник появления записи участника.
const (
	// OriginInvite — участник создан через приглашение.
	OriginInvite = "invite"
	// OriginSync — участник появился при административной синхронизации с медиасервером.
	OriginSync = "sync"
	// OriginManual — участник заведён администратором вручную.
	OriginManual = "manual"
)

// Member представляет участника, чьим доступом к медиасерверу управляет система.
// Текущее право доступа не хранится отдельным полем — оно вычисляется
// из временных меток (см. пакет entitlement).
type Member struct {
	ID         string     // Внешний стабильный идентификатор участника
	DisplayTag string     // Отображаемое имя (опционально)
	Email      string     // Электронная почта (может отсутствовать)
	Mobile     string     // Мобильный номер (может отсутствовать)
	Origin     string     // Источник записи: invite, sync или manual
	ReferrerID *string    // Идентификатор пригласившего участника (опционально)
	Lifetime   bool       // Пожизненный доступ, отключает все проверки по времени
	HadTrial   bool       // Пробный период уже использован, повторно не выдаётся
	UsedPromo  bool       // Промо-цена уже использована, повторно недоступна

	InviteSentAt *time.Time // Когда было отправлено приглашение на медиасервер
	TrialStart   *time.Time // Начало пробного периода
	TrialEnd     *time.Time // Окончание пробного периода, nil — пробный период не активен
	PaidUntil    *time.Time // Окончание оплаченного доступа, nil — оплаты нет

	TrialReminderSentAt *time.Time // Когда отправлено напоминание об окончании пробного периода
	PaidReminderSentAt  *time.Time // Когда отправлено напоминание об окончании оплаченного доступа
}

// HasContact сообщает, есть ли у участника хотя бы один канал для связи
// и привязки к медиасерверу.
func (m *Member) HasContact() bool {
	return m.Email != "" || m.Mobile != ""
}

// DummyMember используется для приёма данных из JSON-запроса,
// прежде чем конвертировать их в Member. Даты приходят строками,
// чтобы их можно было валидировать и парсить вручную.
type DummyMember struct {
	ID         string `json:"id" validate:"required"`           // Внешний идентификатор
	DisplayTag string `json:"display_tag"`                      // Отображаемое имя
	Email      string `json:"email" validate:"omitempty,email"` // Электронная почта
	Mobile     string `json:"mobile"`                           // Мобильный номер
	Origin     string `json:"origin" validate:"omitempty,oneof=invite sync manual"`
	ReferrerID string `json:"referrer_id"` // Кто пригласил (опционально)
	Lifetime   bool   `json:"lifetime"`    // Пожизненный доступ
}
