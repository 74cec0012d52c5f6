// Package store persists task snapshots and completed orders. The engine
// snapshots after every state transition so a restart can resume any
// non-terminal task; nothing lives only in process memory.
package store

import (
	"context"
	"errors"

	"github.com/andreyv/supplybot/go/internal/models"
)

// ErrNotFound is returned when a task snapshot does not exist.
var ErrNotFound = errors.New("task not found")

// TaskStore keeps pending task snapshots.
type TaskStore interface {
	Save(ctx context.Context, task *models.Task) error
	Find(ctx context.Context, userID int64, taskID string) (*models.Task, error)
	List(ctx context.Context, userID int64) ([]*models.Task, error)
	Delete(ctx context.Context, userID int64, taskID string) error
}

// OrderStore keeps records of supplies that were actually booked.
type OrderStore interface {
	// Complete stores the order and removes the pending task snapshot in
	// one step.
	Complete(ctx context.Context, order *models.CompletedOrder) error
	ListCompleted(ctx context.Context, userID int64) ([]*models.CompletedOrder, error)
}
