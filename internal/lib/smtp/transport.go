// Package smtp предоставляет транспорт отправки почты поверх net/smtp
// с поддержкой STARTTLS. Интерфейсы Client и TransportInterface выделены
// для подмены соединения в тестах отправителя.
package smtp

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
)

// Client — операции SMTP-сессии, используемые отправителем писем.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface устанавливает SMTP-сессию и сообщает адрес отправителя.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}

// smtpClientWrapper оборачивает стандартный smtp.Client под интерфейс Client.
type smtpClientWrapper struct {
	client *smtp.Client
}

func (w *smtpClientWrapper) Mail(from string) error { return w.client.Mail(from) }
func (w *smtpClientWrapper) Rcpt(to string) error   { return w.client.Rcpt(to) }
func (w *smtpClientWrapper) Data() (io.WriteCloser, error) {
	return w.client.Data()
}
func (w *smtpClientWrapper) Quit() error  { return w.client.Quit() }
func (w *smtpClientWrapper) Close() error { return w.client.Close() }

// Transport устанавливает соединение с SMTP сервером.
type Transport struct {
	host     string
	port     int
	user     string
	password string
	log      *slog.Logger
}

// NewTransport создает новый SMTP транспорт из конфигурации уведомлений.
func NewTransport(cfg config.Notify, log *slog.Logger) *Transport {
	return &Transport{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		log:      log,
	}
}

// Connect открывает соединение, выполняет STARTTLS и аутентификацию.
func (t *Transport) Connect() (Client, error) {
	const op = "lib.smtp.Connect"

	addr := net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: dial smtp server: %w", op, err)
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: create smtp client: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: t.host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%s: starttls: %w", op, err)
		}
	}

	if t.user != "" {
		auth := smtp.PlainAuth("", t.user, t.password, t.host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%s: auth: %w", op, err)
		}
	}

	return &smtpClientWrapper{client: client}, nil
}

// GetSMTPUser возвращает адрес отправителя.
func (t *Transport) GetSMTPUser() string {
	return t.user
}
