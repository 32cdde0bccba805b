// Package config предоставляет структуры и функцию для парсинга и загрузки конфига.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек сервиса.
type Config struct {
	Env                     string        `yaml:"env" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string"`
	MigrationsPath          string        `yaml:"migrations_path" env-default:"./migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"10"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`

	RedisConnection `yaml:"redis_connection"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
	MediaServer     `yaml:"media_server"`
	Notify          `yaml:"notify"`
	Reconcile       `yaml:"reconcile"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном администратора.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// MediaServer структура для подключения к API медиасервера.
type MediaServer struct {
	APIURL     string        `yaml:"api_url"`
	APIToken   string        `yaml:"api_token"`
	ServerName string        `yaml:"server_name"`
	APITimeout time.Duration `yaml:"api_timeout" env-default:"10s"`
}

// Notify структура настроек каналов уведомлений.
type Notify struct {
	SMTPHost         string `yaml:"smtp_host"`
	SMTPPort         int    `yaml:"smtp_port" env-default:"587"`
	SMTPUser         string `yaml:"smtp_user"`
	SMTPPassword     string `yaml:"smtp_password"`
	ChatWebhookURL   string `yaml:"chat_webhook_url"`
	AdminWebhookURL  string `yaml:"admin_webhook_url"`
	SMSGatewayURL    string `yaml:"sms_gateway_url"`
	SMSGatewayToken  string `yaml:"sms_gateway_token"`
	WebhookSecret    string `yaml:"webhook_secret"`
	NotifyChat       bool   `yaml:"notify_chat" env-default:"true"`
	NotifyEmail      bool   `yaml:"notify_email" env-default:"true"`
	NotifySMS        bool   `yaml:"notify_sms" env-default:"false"`
}

// Reconcile — снимок настроек сверки прав доступа. Передаётся по значению
// в каждый запуск прохода, чтобы смена конфигурации посреди прохода
// не давала противоречивых решений внутри одного батча.
type Reconcile struct {
	Mode               string        `yaml:"mode" env-default:"auto"` // auto или manual
	TrialDays          int           `yaml:"trial_days" env-default:"30"`
	ReminderDays       int           `yaml:"reminder_days" env-default:"3"`
	AuditInterval      time.Duration `yaml:"audit_interval" env-default:"10m"`
	EnforceInterval    time.Duration `yaml:"enforce_interval" env-default:"30m"`
	ReminderInterval   time.Duration `yaml:"reminder_interval" env-default:"12h"`
	SummaryInterval    time.Duration `yaml:"summary_interval" env-default:"24h"`
	DeferralWindowDays int           `yaml:"deferral_window_days" env-default:"7"`
	ConfirmationTTL    time.Duration `yaml:"confirmation_ttl" env-default:"24h"`
	AdminName          string        `yaml:"admin_name" env-default:"admin"`
	ReferralBonusDays  map[int]int   `yaml:"referral_bonus_days"`
}

// Manual сообщает, включён ли режим ручного подтверждения снятий доступа.
func (r Reconcile) Manual() bool {
	return r.Mode == "manual"
}

// DeferralWindow возвращает окно отсрочки как длительность.
func (r Reconcile) DeferralWindow() time.Duration {
	return time.Duration(r.DeferralWindowDays) * 24 * time.Hour
}

// BonusTable возвращает таблицу реферальных бонусов, подставляя
// значения по умолчанию, если секция не задана в конфиге.
func (r Reconcile) BonusTable() map[int]int {
	if len(r.ReferralBonusDays) > 0 {
		return r.ReferralBonusDays
	}
	return map[int]int{1: 7, 3: 14, 6: 30, 12: 60}
}

// MustLoad загружает конфиг по пути из CONFIG_PATH, при ошибке завершает процесс.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
