// Package tasks реализует реестр фоновых задач сервиса с возможностью
// ручного запуска через административное API.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Task - фоновая задача, доступная для ручного запуска.
type Task struct {
	Name        string
	Description string
	Run         func(ctx context.Context) error
}

// Status - состояние задачи для выдачи через API.
type Status struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Registry хранит зарегистрированные задачи и время их последнего запуска.
type Registry struct {
	mu      sync.Mutex
	tasks   map[string]Task
	lastRun map[string]time.Time
	lastErr map[string]string
}

// NewRegistry создает пустой реестр задач.
func NewRegistry() *Registry {
	return &Registry{
		tasks:   make(map[string]Task),
		lastRun: make(map[string]time.Time),
		lastErr: make(map[string]string),
	}
}

// Register добавляет задачу в реестр. Повторная регистрация имени
// перезаписывает предыдущую задачу.
func (r *Registry) Register(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Name] = t
}

// Run запускает задачу по имени и фиксирует результат.
func (r *Registry) Run(ctx context.Context, name string) error {
	r.mu.Lock()
	t, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task: %s", name)
	}

	err := t.Run(ctx)

	r.mu.Lock()
	r.lastRun[name] = time.Now().UTC()
	if err != nil {
		r.lastErr[name] = err.Error()
	} else {
		delete(r.lastErr, name)
	}
	r.mu.Unlock()
	return err
}

// List возвращает состояние всех задач, отсортированное по имени.
func (r *Registry) List() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.tasks))
	for name, t := range r.tasks {
		st := Status{Name: name, Description: t.Description}
		if ts, ok := r.lastRun[name]; ok {
			tsCopy := ts
			st.LastRun = &tsCopy
		}
		st.LastError = r.lastErr[name]
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
