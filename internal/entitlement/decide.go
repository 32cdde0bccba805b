package entitlement

import (
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// Action — требуемый переход по итогам одной оценки участника.
type Action string

const (
	// ActionNone — расхождений нет, ничего делать не нужно.
	ActionNone Action = "none"
	// ActionStartTrial — участник получил доступ на медиасервере, выдаём пробный период.
	ActionStartTrial Action = "start_trial"
	// ActionDowngrade — участник потерял доступ на медиасервере, отзываем права.
	ActionDowngrade Action = "downgrade"
	// ActionExpireTrial — пробный период истёк по времени.
	ActionExpireTrial Action = "expire_trial"
	// ActionExpirePaid — оплаченный доступ истёк по времени.
	ActionExpirePaid Action = "expire_paid"
)

// Decision — результат оценки одного участника: какой переход требуется
// и по какой причине (для журналов и запросов подтверждения).
type Decision struct {
	Action Action
	State  State
	Reason string
}

// DecideAudit вычисляет переход для прохода сверки: сравнивает
// вычисленное состояние с фактическим доступом на медиасервере.
// Участники с пожизненным доступом никогда не оцениваются.
// Момент now фиксируется один раз на весь проход.
func DecideAudit(m *models.Member, hasExternalAccess bool, now time.Time) Decision {
	state := StateOf(m, now)
	if state == StateLifetime {
		return Decision{Action: ActionNone, State: state}
	}

	if state == StateNoAccess && hasExternalAccess {
		return Decision{Action: ActionStartTrial, State: state}
	}
	if (state == StateTrial || state == StatePayer) && !hasExternalAccess {
		return Decision{Action: ActionDowngrade, State: state, Reason: models.ReasonAccessLost}
	}
	return Decision{Action: ActionNone, State: state}
}

// DecideEnforce вычисляет переход для прохода принуждения: только
// истечения по времени, без обращения к медиасерверу.
func DecideEnforce(m *models.Member, now time.Time) Decision {
	state := StateOf(m, now)
	if state == StateLifetime {
		return Decision{Action: ActionNone, State: state}
	}

	// Пока есть активное право (оплата или пробный период), просроченные
	// остатки других меток не трогаем — их очищает применение перехода
	// либо логика оплаты.
	if state == StatePayer || state == StateTrial {
		return Decision{Action: ActionNone, State: state}
	}
	if m.PaidUntil != nil && !m.PaidUntil.After(now) {
		return Decision{Action: ActionExpirePaid, State: state, Reason: models.ReasonPaidExpired}
	}
	if m.TrialEnd != nil && !m.TrialEnd.After(now) {
		return Decision{Action: ActionExpireTrial, State: state, Reason: models.ReasonTrialExpired}
	}
	return Decision{Action: ActionNone, State: state}
}
