package models

// Channel — имя канала доставки уведомления.
type Channel = string

// Каналы доставки уведомлений.
const (
	ChannelChat  = "chat"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelAdmin = "admin"
)

// NotificationJob — сообщение для очереди уведомлений. Публикуется
// сервисами и доставляется воркером-отправителем по указанным каналам.
type NotificationJob struct {
	MemberID string    `json:"member_id"`        // Кому адресовано (пусто для админских алертов)
	Email    string    `json:"email,omitempty"`  // Адрес для канала email
	Mobile   string    `json:"mobile,omitempty"` // Номер для канала sms
	Channels []Channel `json:"channels"`         // Какие каналы задействовать
	Subject  string    `json:"subject"`          // Тема сообщения
	Body     string    `json:"body"`             // Текст сообщения
}

// Admin представляет учётную запись администратора панели управления.
type Admin struct {
	Name         string // Уникальное имя администратора
	Email        string // Электронная почта
	PasswordHash string // bcrypt-хэш пароля
}
