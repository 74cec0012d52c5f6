package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andreyv/supplybot/go/internal/models"
)

// Memory is an in-process store used by tests and the demo wiring. Snapshots
// are copied on the way in and out so runners never share task memory.
type Memory struct {
	mu     sync.Mutex
	tasks  map[string]models.Task
	orders []models.CompletedOrder
}

var _ TaskStore = (*Memory)(nil)
var _ OrderStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]models.Task)}
}

func key(userID int64, taskID string) string {
	return fmt.Sprintf("%d/%s", userID, taskID)
}

func (m *Memory) Save(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[key(task.UserID, task.TaskID)] = *task
	return nil
}

func (m *Memory) Find(_ context.Context, userID int64, taskID string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[key(userID, taskID)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := t
	return &copied, nil
}

func (m *Memory) List(_ context.Context, userID int64) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.UserID == userID {
			copied := t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

func (m *Memory) Delete(_ context.Context, userID int64, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, key(userID, taskID))
	return nil
}

func (m *Memory) Complete(_ context.Context, order *models.CompletedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, *order)
	delete(m.tasks, key(order.UserID, order.TaskID))
	return nil
}

func (m *Memory) ListCompleted(_ context.Context, userID int64) ([]*models.CompletedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CompletedOrder
	for i := range m.orders {
		if m.orders[i].UserID == userID {
			copied := m.orders[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}
