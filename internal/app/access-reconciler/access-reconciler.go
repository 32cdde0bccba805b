// Package accessreconciler собирает основной сервис: хранилище, кеш,
// очередь уведомлений, клиент медиасервера, проходы сверки и HTTP API.
package accessreconciler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/access-reconciler/internal/cache"
	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/gateway"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/jwt"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/migrations"
	authservice "github.com/magabrotheeeer/access-reconciler/internal/services/auth"
	confirmationservice "github.com/magabrotheeeer/access-reconciler/internal/services/confirmation"
	memberservice "github.com/magabrotheeeer/access-reconciler/internal/services/member"
	"github.com/magabrotheeeer/access-reconciler/internal/services/notifier"
	paymentservice "github.com/magabrotheeeer/access-reconciler/internal/services/payment"
	reconcilerservice "github.com/magabrotheeeer/access-reconciler/internal/services/reconciler"
	reminderservice "github.com/magabrotheeeer/access-reconciler/internal/services/reminder"
	summaryservice "github.com/magabrotheeeer/access-reconciler/internal/services/summary"
	"github.com/magabrotheeeer/access-reconciler/internal/storage/repository"
	"github.com/magabrotheeeer/access-reconciler/internal/tasks"
)

// App инкапсулирует все зависимости основного сервиса.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel

	reconciler *reconcilerservice.Service
	reminder   *reminderservice.Service
	summary    *summaryservice.Service
}

// New создает и связывает все компоненты основного сервиса.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	gw := gateway.NewClient(cfg.MediaServer)
	queueNotifier := notifier.NewQueue(ch, logger)

	// Снимок настроек фиксируется на каждый проход целиком.
	reconcileCfg := func() config.Reconcile { return cfg.Reconcile }

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authSvc := authservice.New(db, jwtMaker)
	confirmSvc := confirmationservice.New(db, ch, logger)
	reconcilerSvc := reconcilerservice.New(db, gw, confirmSvc, queueNotifier, reconcileCfg, logger)
	reminderSvc := reminderservice.New(db, queueNotifier, reconcileCfg, logger)
	summarySvc := summaryservice.New(db, queueNotifier, reconcileCfg, logger)
	paymentSvc := paymentservice.New(db, gw, cacheRedis, queueNotifier, reconcileCfg, logger)
	memberSvc := memberservice.New(db, gw, cacheRedis, logger)

	registry := tasks.NewRegistry()
	registry.Register(tasks.Task{
		Name:        "audit",
		Description: "reconcile entitlements with the media server",
		Run: func(ctx context.Context) error {
			reconcilerSvc.RunAudit(ctx)
			return nil
		},
	})
	registry.Register(tasks.Task{
		Name:        "enforce",
		Description: "downgrade expired entitlements",
		Run: func(ctx context.Context) error {
			reconcilerSvc.RunEnforce(ctx)
			return nil
		},
	})
	registry.Register(tasks.Task{
		Name:        "reminders",
		Description: "send expiry reminders",
		Run: func(ctx context.Context) error {
			reminderSvc.Run(ctx)
			return nil
		},
	})
	registry.Register(tasks.Task{
		Name:        "summary",
		Description: "send the daily member summary",
		Run: func(ctx context.Context) error {
			summarySvc.Run(ctx)
			return nil
		},
	})
	registry.Register(tasks.Task{
		Name:        "sync-trials",
		Description: "recompute trial end dates after a duration change",
		Run: func(ctx context.Context) error {
			_, err := reconcilerSvc.SyncTrialDurations(ctx)
			return err
		},
	})

	router := chi.NewRouter()
	RegisterRoutes(router, logger, RouteServices{
		Auth:         authSvc,
		Member:       memberSvc,
		Confirmation: confirmSvc,
		Payment:      paymentSvc,
		Health:       db,
		Tasks:        registry,
	}, cfg.WebhookSecret)
	router.Get("/docs/*", httpSwagger.WrapHandler)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		conn:       conn,
		ch:         ch,
		reconciler: reconcilerSvc,
		reminder:   reminderSvc,
		summary:    summarySvc,
	}, nil
}

// Run запускает проходы сверки и HTTP сервер, затем ждёт завершения.
func (a *App) Run(ctx context.Context) error {
	// Если длительность триала в конфиге изменилась с прошлого запуска,
	// пересчёт должен отработать до первого прохода принуждения.
	if _, err := a.reconciler.SyncTrialDurations(ctx); err != nil {
		a.logger.Error("failed to sync trial durations", sl.Err(err))
	}

	go a.reconciler.StartAuditLoop(ctx)
	go a.reconciler.StartEnforceLoop(ctx)
	go a.reminder.StartLoop(ctx)
	go a.summary.StartLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.ch.Close()
		_ = a.conn.Close()
		_ = a.db.DB.Close()
		return err
	}
}
