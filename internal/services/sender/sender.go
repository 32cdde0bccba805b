// Package sender реализует диспетчер уведомлений по каналам chat, email, sms и admin.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/smtp"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// Service рассылает уведомления по настроенным каналам.
type Service struct {
	cfg        config.Notify
	transport  smtp.TransportInterface
	httpClient *http.Client
	log        *slog.Logger
}

// New создает новый экземпляр Service.
func New(cfg config.Notify, transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		transport:  transport,
		httpClient: http.DefaultClient,
		log:        log,
	}
}

// Result - результат доставки уведомления по каждому каналу.
type Result map[models.Channel]bool

// Delivered сообщает, был ли хотя бы один канал успешным.
func (r Result) Delivered() bool {
	for _, ok := range r {
		if ok {
			return true
		}
	}
	return false
}

// Dispatch доставляет уведомление по всем запрошенным каналам.
// Отказ одного канала не мешает остальным.
func (s *Service) Dispatch(ctx context.Context, job models.NotificationJob) Result {
	const op = "sender.Dispatch"
	log := s.log.With(slog.String("op", op), sl.Member(job.MemberID))

	result := make(Result, len(job.Channels))
	for _, ch := range job.Channels {
		var err error
		switch ch {
		case models.ChannelChat:
			if !s.cfg.NotifyChat {
				continue
			}
			err = s.sendWebhook(ctx, s.cfg.ChatWebhookURL, job)
		case models.ChannelEmail:
			if !s.cfg.NotifyEmail || job.Email == "" {
				continue
			}
			err = s.sendEmail(job.Email, job.Subject, job.Body)
		case models.ChannelSMS:
			if !s.cfg.NotifySMS || job.Mobile == "" {
				continue
			}
			err = s.sendSMS(ctx, job.Mobile, job.Body)
		case models.ChannelAdmin:
			err = s.sendWebhook(ctx, s.cfg.AdminWebhookURL, job)
		default:
			log.Warn("unknown notification channel", "channel", string(ch))
			continue
		}

		result[ch] = err == nil
		if err != nil {
			log.Error("failed to deliver notification", "channel", string(ch), sl.Err(err))
		}
	}
	return result
}

// SendMemberNotification обрабатывает задание из очереди уведомлений
// участников. Возвращает ошибку, только если ни один из запрошенных
// каналов не доставил сообщение, чтобы задание ушло на повтор.
func (s *Service) SendMemberNotification(body []byte) error {
	var job models.NotificationJob
	if err := json.Unmarshal(body, &job); err != nil {
		s.log.Error("failed to unmarshal notification job", sl.Err(err))
		return fmt.Errorf("unmarshal notification job: %w", err)
	}

	result := s.Dispatch(context.Background(), job)
	if len(result) > 0 && !result.Delivered() {
		return fmt.Errorf("notification for member %s not delivered on any channel", job.MemberID)
	}
	return nil
}

// SendAdminNotification обрабатывает задание из административной очереди.
func (s *Service) SendAdminNotification(body []byte) error {
	var job models.NotificationJob
	if err := json.Unmarshal(body, &job); err != nil {
		s.log.Error("failed to unmarshal admin notification", sl.Err(err))
		return fmt.Errorf("unmarshal admin notification: %w", err)
	}
	return s.sendWebhook(context.Background(), s.cfg.AdminWebhookURL, job)
}

// NotifyAdmin отправляет сообщение в административный канал.
func (s *Service) NotifyAdmin(ctx context.Context, subject, body string) error {
	return s.sendWebhook(ctx, s.cfg.AdminWebhookURL, models.NotificationJob{
		Channels: []models.Channel{models.ChannelAdmin},
		Subject:  subject,
		Body:     body,
	})
}

type webhookPayload struct {
	Subject string `json:"subject,omitempty"`
	Text    string `json:"text"`
}

func (s *Service) sendWebhook(ctx context.Context, url string, job models.NotificationJob) error {
	if url == "" {
		return fmt.Errorf("webhook url is not configured")
	}

	payload, err := json.Marshal(webhookPayload{Subject: job.Subject, Text: job.Body})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

type smsPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (s *Service) sendSMS(ctx context.Context, mobile, text string) error {
	if s.cfg.SMSGatewayURL == "" {
		return fmt.Errorf("sms gateway url is not configured")
	}

	payload, err := json.Marshal(smsPayload{To: mobile, Text: text})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SMSGatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.SMSGatewayToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

func (s *Service) sendEmail(to, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		return fmt.Errorf("set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set rcpt to: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("get data writer: %w", err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write email body: %w", err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}
	if err = client.Quit(); err != nil {
		return fmt.Errorf("quit smtp client: %w", err)
	}
	return nil
}
