package models

import "time"

// Deferral фиксирует решение администратора отложить снятие доступа
// у участника. Отсрочка действует фиксированное окно (7 дней),
// после чего участник снова становится кандидатом на подтверждение.
// Создаётся только явным решением администратора, никогда системой.
type Deferral struct {
	MemberID   string    // Идентификатор участника
	AdminName  string    // Кто отложил решение
	DeferredAt time.Time // Момент решения, UTC
}

// Active сообщает, действует ли ещё отсрочка в момент now при окне window.
func (d *Deferral) Active(now time.Time, window time.Duration) bool {
	return now.Sub(d.DeferredAt) < window
}
