package models

// Виды платёжных событий.
const (
	PaymentRenewal  = "renewal"
	PaymentLifetime = "lifetime"
)

// PaymentEvent — событие от платёжного провайдера, принятое вебхуком.
// Дедуплицируется по TxnID: повтор доставки не продлевает доступ дважды.
type PaymentEvent struct {
	TxnID    string `json:"txn_id" validate:"required"`          // Идентификатор транзакции у провайдера
	MemberID string `json:"member_id" validate:"required"`       // Кому зачислить оплату
	Kind     string `json:"kind" validate:"oneof=renewal lifetime"` // Вид события
	Months   int    `json:"months" validate:"omitempty,min=1"`   // Сколько месяцев оплачено (для renewal)
	Promo    bool   `json:"promo"`                               // Оплата по промо-цене
	Gross    string `json:"gross"`                               // Сумма, как её прислал провайдер
}
