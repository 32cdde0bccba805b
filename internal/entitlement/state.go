// Package entitlement реализует чистую логику прав доступа участника:
// вычисление текущего состояния из временных меток, решение о переходе
// по результатам сверки с медиасервером и арифметику продления доступа.
// Пакет не имеет побочных эффектов и не обращается к хранилищу.
package entitlement

import (
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// State — вычисляемое состояние доступа участника.
type State string

const (
	// StateNoAccess — ни пробного периода, ни оплаты, ни пожизненного доступа.
	StateNoAccess State = "no_access"
	// StateTrial — активен пробный период.
	StateTrial State = "trial"
	// StatePayer — активен оплаченный доступ.
	StatePayer State = "payer"
	// StateLifetime — пожизненный доступ, терминальное состояние.
	StateLifetime State = "lifetime"
)

// StateOf вычисляет состояние участника на момент now.
// Приоритет: Lifetime > Payer > Trial > NoAccess, поэтому запись
// с одновременно активными пробным периодом и оплатой трактуется
// как Payer, а не считается ошибкой данных.
func StateOf(m *models.Member, now time.Time) State {
	if m.Lifetime {
		return StateLifetime
	}
	if m.PaidUntil != nil && m.PaidUntil.After(now) {
		return StatePayer
	}
	if m.TrialEnd != nil && m.TrialEnd.After(now) {
		return StateTrial
	}
	return StateNoAccess
}
