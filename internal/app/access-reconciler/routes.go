// Package accessreconciler предоставляет маршруты основного сервиса.
package accessreconciler

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/access-reconciler/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/access-reconciler/internal/http/handlers/auth/register"
	confirmationlist "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/confirmation/list"
	confirmationreply "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/confirmation/reply"
	"github.com/magabrotheeeer/access-reconciler/internal/http/handlers/health"
	membercreate "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/member/create"
	memberlist "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/member/list"
	memberread "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/member/read"
	memberreferrer "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/member/referrer"
	memberremove "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/member/remove"
	"github.com/magabrotheeeer/access-reconciler/internal/http/handlers/payment/paymentwebhook"
	tasklist "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/task/list"
	taskrun "github.com/magabrotheeeer/access-reconciler/internal/http/handlers/task/run"
	"github.com/magabrotheeeer/access-reconciler/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/access-reconciler/internal/services/auth"
	confirmationservice "github.com/magabrotheeeer/access-reconciler/internal/services/confirmation"
	memberservice "github.com/magabrotheeeer/access-reconciler/internal/services/member"
	paymentservice "github.com/magabrotheeeer/access-reconciler/internal/services/payment"
	"github.com/magabrotheeeer/access-reconciler/internal/storage/repository"
	"github.com/magabrotheeeer/access-reconciler/internal/tasks"
)

// RouteServices собирает сервисы, которые нужны маршрутам API.
type RouteServices struct {
	Auth         *authservice.Service
	Member       *memberservice.Service
	Confirmation *confirmationservice.Service
	Payment      *paymentservice.Service
	Health       *repository.Storage
	Tasks        *tasks.Registry
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc RouteServices, webhookSecret string) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, svc.Auth).ServeHTTP)
		r.Post("/login", login.New(logger, svc.Auth).ServeHTTP)
		r.Get("/health", health.New(logger, svc.Health).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/members", membercreate.New(logger, svc.Member).ServeHTTP)
			r.Get("/members", memberlist.New(logger, svc.Member).ServeHTTP)
			r.Get("/members/{id}", memberread.New(logger, svc.Member).ServeHTTP)
			r.Delete("/members/{id}", memberremove.New(logger, svc.Member).ServeHTTP)
			r.Put("/members/{id}/referrer", memberreferrer.New(logger, svc.Member).ServeHTTP)

			r.Get("/confirmations", confirmationlist.New(logger, svc.Confirmation).ServeHTTP)
			r.Post("/confirmations/{id}", confirmationreply.New(logger, svc.Confirmation).ServeHTTP)

			r.Get("/tasks", tasklist.New(logger, svc.Tasks).ServeHTTP)
			r.Post("/tasks/{name}/run", taskrun.New(logger, svc.Tasks).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, подпись проверяется отдельно)
		r.Post("/payments/webhook", paymentwebhook.New(logger, svc.Payment, webhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
}
