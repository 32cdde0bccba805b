package entitlement

import (
	"time"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// PromoEligible сообщает, доступна ли участнику разовая промо-цена.
// Право есть только у участников, созданных через приглашение,
// ещё не использовавших промо и не имеющих активного пробного периода
// или оплаченного доступа. Отсутствующая запись трактуется как новый
// участник и право даёт.
func PromoEligible(m *models.Member, now time.Time) bool {
	if m == nil {
		return true
	}
	if m.Origin != models.OriginInvite {
		return false
	}
	if m.UsedPromo {
		return false
	}
	switch StateOf(m, now) {
	case StateTrial, StatePayer, StateLifetime:
		return false
	}
	return true
}
