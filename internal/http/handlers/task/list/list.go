// Package list реализует HTTP-обработчик списка фоновых задач.
package list

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/access-reconciler/internal/http/response"
	"github.com/magabrotheeeer/access-reconciler/internal/tasks"
)

// Registry описывает интерфейс реестра задач.
type Registry interface {
	List() []tasks.Status
}

// Handler управляет HTTP-запросами на чтение реестра задач.
type Handler struct {
	log      *slog.Logger
	registry Registry
}

// New создает новый Handler.
func New(log *slog.Logger, registry Registry) *Handler {
	return &Handler{log: log, registry: registry}
}

// ServeHTTP godoc
// @Summary Список фоновых задач
// @Description Возвращает зарегистрированные задачи и время их последнего запуска.
// @Tags Tasks
// @Produce  json
// @Success 200 {object} map[string]any "Список задач"
// @Router /tasks [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"tasks": h.registry.List(),
	}))
}
