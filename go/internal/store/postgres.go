package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andreyv/supplybot/go/internal/models"
)

// Postgres stores snapshots as JSONB rows keyed by (user_id, task_id).
type Postgres struct {
	pool *pgxpool.Pool
}

var _ TaskStore = (*Postgres)(nil)
var _ OrderStore = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the two tables if they are missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	user_id    BIGINT      NOT NULL,
	task_id    TEXT        NOT NULL,
	state      TEXT        NOT NULL,
	snapshot   JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, task_id)
);
CREATE TABLE IF NOT EXISTS completed_orders (
	order_id     BIGINT      NOT NULL,
	operation_id TEXT        NOT NULL,
	user_id      BIGINT      NOT NULL,
	task_id      TEXT        NOT NULL,
	payload      JSONB       NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, task_id, order_id)
);`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction: rollback on error, commit otherwise.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Save(ctx context.Context, task *models.Task) error {
	snapshot, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task snapshot: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO tasks (user_id, task_id, state, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, task_id)
		DO UPDATE SET state = EXCLUDED.state, snapshot = EXCLUDED.snapshot, updated_at = now()`,
		task.UserID, task.TaskID, string(task.State), snapshot)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (p *Postgres) Find(ctx context.Context, userID int64, taskID string) (*models.Task, error) {
	var snapshot []byte
	err := p.pool.QueryRow(ctx,
		`SELECT snapshot FROM tasks WHERE user_id = $1 AND task_id = $2`,
		userID, taskID).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	var task models.Task
	if err := json.Unmarshal(snapshot, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task snapshot: %w", err)
	}
	return &task, nil
}

func (p *Postgres) List(ctx context.Context, userID int64) ([]*models.Task, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT snapshot FROM tasks WHERE user_id = $1 ORDER BY task_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		var task models.Task
		if err := json.Unmarshal(snapshot, &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task snapshot: %w", err)
		}
		out = append(out, &task)
	}
	return out, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, userID int64, taskID string) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND task_id = $2`, userID, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// Complete inserts the order and removes the pending snapshot atomically, so
// a crash between the two cannot leave a booked supply looking pending.
func (p *Postgres) Complete(ctx context.Context, order *models.CompletedOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal completed order: %w", err)
	}
	return withTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO completed_orders (order_id, operation_id, user_id, task_id, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, task_id, order_id) DO NOTHING`,
			order.OrderID, order.OperationID, order.UserID, order.TaskID, payload); err != nil {
			return fmt.Errorf("failed to insert completed order: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM tasks WHERE user_id = $1 AND task_id = $2`,
			order.UserID, order.TaskID); err != nil {
			return fmt.Errorf("failed to delete pending task: %w", err)
		}
		return nil
	})
}

func (p *Postgres) ListCompleted(ctx context.Context, userID int64) ([]*models.CompletedOrder, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT payload FROM completed_orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed orders: %w", err)
	}
	defer rows.Close()

	var out []*models.CompletedOrder
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		var order models.CompletedOrder
		if err := json.Unmarshal(payload, &order); err != nil {
			return nil, fmt.Errorf("failed to unmarshal completed order: %w", err)
		}
		out = append(out, &order)
	}
	return out, rows.Err()
}
