// Package create реализует HTTP-обработчик регистрации участника.
//
// Handler принимает JSON-запрос с данными участника, валидирует их,
// вызывает бизнес-логику реестра и возвращает созданную запись.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/access-reconciler/internal/http/response"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// Service описывает интерфейс бизнес-логики регистрации участника.
type Service interface {
	Register(ctx context.Context, dm models.DummyMember) (*models.Member, error)
}

// Handler управляет HTTP-запросами на регистрацию участников.
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

// ServeHTTP godoc
// @Summary Зарегистрировать участника
// @Description Заводит участника в реестре. Для origin invite сразу расшаривает медиасервер.
// @Tags Members
// @Accept  json
// @Produce  json
// @Param request body models.DummyMember true "Данные участника"
// @Success 200 {object} map[string]any "Созданный участник"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /members [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyMember
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	m, err := h.service.Register(r.Context(), req)
	if err != nil {
		log.Error("failed to register member", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register member"))
		return
	}

	log.Info("member registered", sl.Member(m.ID))
	render.JSON(w, r, response.StatusOKWithData(m))
}
