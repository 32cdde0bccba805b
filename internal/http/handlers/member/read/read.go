// Package read реализует HTTP-обработчик чтения записи участника.
package read

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
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/storage/repository"
)

// Service описывает интерфейс чтения участника.
type Service interface {
	Get(ctx context.Context, memberID string) (*models.Member, error)
}

// Handler управляет HTTP-запросами на чтение участника.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить участника
// @Description Возвращает запись участника по идентификатору.
// @Tags Members
// @Produce  json
// @Param id path string true "Идентификатор участника"
// @Success 200 {object} map[string]any "Запись участника"
// @Failure 404 {object} response.ErrorResponse "Участник не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /members/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.read"
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

	m, err := h.service.Get(r.Context(), memberID)
	if errors.Is(err, repository.ErrMemberNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("member not found"))
		return
	}
	if err != nil {
		log.Error("failed to read member", sl.Member(memberID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read member"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(m))
}
