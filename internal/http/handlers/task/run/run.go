// Package run реализует HTTP-обработчик ручного запуска фоновой задачи.
package run

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/access-reconciler/internal/http/response"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
)

// Registry описывает интерфейс запуска задачи по имени.
type Registry interface {
	Run(ctx context.Context, name string) error
}

// Handler управляет HTTP-запросами на ручной запуск задач.
type Handler struct {
	log      *slog.Logger
	registry Registry
}

// New создает новый Handler.
func New(log *slog.Logger, registry Registry) *Handler {
	return &Handler{log: log, registry: registry}
}

// ServeHTTP godoc
// @Summary Запустить задачу
// @Description Запускает фоновую задачу по имени вне расписания.
// @Tags Tasks
// @Produce  json
// @Param name path string true "Имя задачи"
// @Success 200 {object} map[string]any "Задача выполнена"
// @Failure 500 {object} response.ErrorResponse "Задача завершилась с ошибкой"
// @Router /tasks/{name}/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.task.run"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	name := chi.URLParam(r, "name")
	if name == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("task name is required"))
		return
	}

	if err := h.registry.Run(r.Context(), name); err != nil {
		log.Error("task run failed", "task", name, sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("task run failed"))
		return
	}

	log.Info("task executed", "task", name)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"task": name,
	}))
}
