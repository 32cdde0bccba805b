// Package notifier реализует публикацию уведомлений в очередь RabbitMQ.
// Доставку по каналам выполняет отдельный воркер-отправитель.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/access-reconciler/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/services/sender"
)

// Queue публикует задания на уведомления в обменник notifications.
type Queue struct {
	channel rabbitmq.Channel
	log     *slog.Logger
}

// NewQueue создает новый экземпляр Queue.
func NewQueue(channel rabbitmq.Channel, log *slog.Logger) *Queue {
	return &Queue{channel: channel, log: log}
}

// Dispatch ставит задание в очередь уведомлений участников.
// Успешная публикация считается успехом всех запрошенных каналов:
// фактическую доставку выполняет воркер, при полном провале он
// возвращает задание в очередь через nack и пробует снова. Если
// политика брокера уводит задание в dead-letter, уведомление
// теряется, хотя напоминание уже помечено отправленным.
func (q *Queue) Dispatch(_ context.Context, job models.NotificationJob) sender.Result {
	result := make(sender.Result, len(job.Channels))
	if err := rabbitmq.PublishMessage(q.channel, rabbitmq.NotificationsExchange, rabbitmq.KeyMemberNotify, job); err != nil {
		q.log.Error("failed to publish member notification", sl.Member(job.MemberID), sl.Err(err))
		for _, ch := range job.Channels {
			result[ch] = false
		}
		return result
	}
	for _, ch := range job.Channels {
		result[ch] = true
	}
	return result
}

// NotifyAdmin ставит задание в административную очередь.
func (q *Queue) NotifyAdmin(_ context.Context, subject, body string) error {
	job := models.NotificationJob{
		Channels: []models.Channel{models.ChannelAdmin},
		Subject:  subject,
		Body:     body,
	}
	if err := rabbitmq.PublishMessage(q.channel, rabbitmq.NotificationsExchange, rabbitmq.KeyAdminNotify, job); err != nil {
		return fmt.Errorf("publish admin notification: %w", err)
	}
	return nil
}
