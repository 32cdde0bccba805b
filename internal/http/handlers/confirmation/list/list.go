// Package list реализует HTTP-обработчик списка запросов подтверждения.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/access-reconciler/internal/http/response"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// Service описывает интерфейс чтения запросов подтверждения.
type Service interface {
	ListPending(ctx context.Context) ([]*models.PendingConfirmation, error)
}

// Handler управляет HTTP-запросами на чтение ожидающих запросов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Ожидающие подтверждения
// @Description Возвращает запросы на снятие доступа, ожидающие решения администратора.
// @Tags Confirmations
// @Produce  json
// @Success 200 {object} map[string]any "Список запросов"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /confirmations [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.confirmation.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	pending, err := h.service.ListPending(r.Context())
	if err != nil {
		log.Error("failed to list pending confirmations", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list confirmations"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"confirmations": pending,
		"count":         len(pending),
	}))
}
