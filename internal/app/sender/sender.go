// Package sender собирает воркер доставки уведомлений: подключение к
// RabbitMQ и потребителей очередей участников и администратора.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/access-reconciler/internal/services/sender"
)

// App инкапсулирует зависимости воркера-отправителя.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New создает воркер-отправитель уведомлений.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.Notify, logger)
	senderService := senderservice.New(cfg.Notify, transport, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителей очередей и ждёт завершения контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueueMemberNotify, a.senderService.SendMemberNotification)
	if err != nil {
		a.logger.Error("failed to start member notification consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueueAdminNotify, a.senderService.SendAdminNotification)
	if err != nil {
		a.logger.Error("failed to start admin notification consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender worker shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
