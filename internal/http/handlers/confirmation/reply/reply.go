// Package reply реализует HTTP-обработчик ответа администратора на запрос
// подтверждения: подтвердить снятие доступа или отложить решение.
package reply

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/access-reconciler/internal/http/middlewarectx"
	"github.com/magabrotheeeer/access-reconciler/internal/http/response"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
)

// Service описывает интерфейс цикла подтверждения.
type Service interface {
	Approve(ctx context.Context, id string) error
	Defer(ctx context.Context, id, adminName string, now time.Time) error
}

// Handler управляет HTTP-запросами с решением администратора.
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

// Request — тело ответа администратора.
type Request struct {
	Decision string `json:"decision" validate:"required,oneof=approve defer"`
}

// ServeHTTP godoc
// @Summary Ответить на запрос подтверждения
// @Description Подтверждает снятие доступа или откладывает решение на окно отсрочки.
// @Tags Confirmations
// @Accept  json
// @Produce  json
// @Param id path string true "Идентификатор запроса"
// @Param request body Request true "Решение: approve или defer"
// @Success 200 {object} map[string]any "Решение принято"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 409 {object} response.ErrorResponse "Запрос уже закрыт"
// @Router /confirmations/{id} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.confirmation.reply"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("confirmation id is required"))
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

	adminName, ok := r.Context().Value(middlewarectx.Admin).(string)
	if !ok || adminName == "" {
		log.Error("admin name not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var err error
	switch req.Decision {
	case "approve":
		err = h.service.Approve(r.Context(), id)
	case "defer":
		err = h.service.Defer(r.Context(), id, adminName, time.Now().UTC())
	}
	if err != nil {
		log.Error("failed to apply decision", "confirmation_id", id, sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("confirmation is not pending"))
		return
	}

	log.Info("confirmation resolved", "confirmation_id", id, "decision", req.Decision, "admin", adminName)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"confirmation_id": id,
		"decision":        req.Decision,
	}))
}
