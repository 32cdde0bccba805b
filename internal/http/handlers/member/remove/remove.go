// Package remove реализует HTTP-обработчик удаления участника.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/access-reconciler/internal/http/response"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/storage/repository"
)

// Service описывает интерфейс удаления участника.
type Service interface {
	Remove(ctx context.Context, memberID string) error
}

// Handler управляет HTTP-запросами на удаление участников.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Удалить участника
// @Description Отзывает доступ на медиасервере и удаляет запись вместе с отсрочками и запросами подтверждения.
// @Tags Members
// @Produce  json
// @Param id path string true "Идентификатор участника"
// @Success 200 {object} map[string]any "Участник удалён"
// @Failure 404 {object} response.ErrorResponse "Участник не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /members/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.remove"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	memberID := chi.URLParam(r, "id")
	if memberID == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("member id is required"))
		return
	}

	err := h.service.Remove(r.Context(), memberID)
	if errors.Is(err, repository.ErrMemberNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("member not found"))
		return
	}
	if err != nil {
		log.Error("failed to remove member", sl.Member(memberID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not remove member"))
		return
	}

	log.Info("member removed", sl.Member(memberID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"removed": memberID,
	}))
}
