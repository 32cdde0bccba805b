// Package referrer реализует HTTP-обработчик привязки пригласившего участника.
package referrer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/access-reconciler/internal/http/response"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/storage/repository"
)

// Service описывает интерфейс привязки пригласившего.
type Service interface {
	SetReferrer(ctx context.Context, memberID, referrerID string) error
}

// Handler управляет HTTP-запросами на привязку пригласившего.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Request — тело запроса привязки пригласившего.
type Request struct {
	ReferrerID string `json:"referrer_id" validate:"required"`
}

// ServeHTTP godoc
// @Summary Привязать пригласившего
// @Description Записывает, кто пригласил участника, для реферальных бонусов.
// @Tags Members
// @Accept  json
// @Produce  json
// @Param id path string true "Идентификатор участника"
// @Param request body Request true "Идентификатор пригласившего"
// @Success 200 {object} map[string]any "Пригласивший привязан"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Участник не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /members/{id}/referrer [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.referrer"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.SetReferrer(r.Context(), memberID, req.ReferrerID)
	if errors.Is(err, repository.ErrMemberNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("member not found"))
		return
	}
	if err != nil {
		log.Error("failed to set referrer", sl.Member(memberID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not set referrer"))
		return
	}

	log.Info("referrer set", sl.Member(memberID), "referrer_id", req.ReferrerID)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"member_id":   memberID,
		"referrer_id": req.ReferrerID,
	}))
}
