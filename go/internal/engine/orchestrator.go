// Package engine drives supply-booking tasks against the Seller API: it owns
// the draft lifecycle, the timeslot search and the single atomic supply
// creation, with one cooperative runner per task.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/andreyv/supplybot/go/clients/ozon"
	"github.com/andreyv/supplybot/go/internal/events"
	"github.com/andreyv/supplybot/go/internal/models"
	"github.com/andreyv/supplybot/go/internal/msk"
	"github.com/andreyv/supplybot/go/internal/ratelimit"
	"github.com/andreyv/supplybot/go/internal/registry"
	"github.com/andreyv/supplybot/go/internal/store"
)

var errAlreadyOrdered = errors.New("task already produced a supply order")

// Orchestrator runs tasks. Runners share the registry, the per-credential
// rate limiter and the stores; each runner owns its task state exclusively.
type Orchestrator struct {
	newAPI     APIFactory
	limiter    *ratelimit.Limiter
	registry   *registry.Registry
	tasks      store.TaskStore
	orders     store.OrderStore
	bus        events.Bus
	clock      clockwork.Clock
	cfg        Config
	instanceID string
}

// NewOrchestrator wires the engine. A nil clock means wall time.
func NewOrchestrator(newAPI APIFactory, tasks store.TaskStore, orders store.OrderStore, bus events.Bus, cfg Config, clock clockwork.Clock) *Orchestrator {
	if clock == nil {
		clock = msk.NewRealClock()
	}
	if bus == nil {
		bus = events.NopBus{}
	}
	return &Orchestrator{
		newAPI:     newAPI,
		limiter:    ratelimit.NewLimiter(cfg.RateLimit, clock),
		registry:   registry.New(),
		tasks:      tasks,
		orders:     orders,
		bus:        bus,
		clock:      clock,
		cfg:        cfg,
		instanceID: uuid.New().String()[:8],
	}
}

// runner is the per-task execution state. It lives for exactly one Run call;
// nothing about the draft or the search survives outside the task snapshot.
type runner struct {
	o          *Orchestrator
	cfg        Config
	api        MarketplaceAPI
	limiterKey string
	task       *models.Task

	// Emission throttles that span draft recreations within one run.
	warehousePending bool
	missingEmitted   bool
}

func taskKey(userID int64, taskID string) string {
	return fmt.Sprintf("%d/%s", userID, taskID)
}

// Run executes one task to a terminal state. It blocks until the task
// completes, expires, fails or is cancelled; callers start it in a goroutine
// per task. Registering a task that is already running aborts the old runner.
func (o *Orchestrator) Run(ctx context.Context, task *models.Task, creds ozon.Credentials) error {
	if task.OrderFlag {
		return errAlreadyOrdered
	}
	if task.State == "" {
		task.State = models.TaskStateCreated
	}
	if err := task.Validate(o.clock.Now()); err != nil {
		o.emit(ctx, task, events.Event{Type: events.TypeError, Message: err.Error()})
		return fmt.Errorf("invalid task: %w", err)
	}

	key := taskKey(task.UserID, task.TaskID)
	runCtx, handle := o.registry.Register(ctx, key)
	defer o.registry.Clear(key, handle)

	metricActiveRunners.Inc()
	defer metricActiveRunners.Dec()

	log.Info().
		Str("instance", o.instanceID).
		Str("task_id", task.TaskID).
		Int64("user_id", task.UserID).
		Str("supply_type", string(task.SupplyType)).
		Msg("task runner started")

	r := &runner{
		o:          o,
		cfg:        o.cfg,
		api:        o.newAPI(creds),
		limiterKey: creds.ClientID,
		task:       task,
	}
	err := r.run(runCtx)

	// Terminal handling happens on a detached context so snapshots and
	// record deletion survive the cancellation that ended the run.
	cleanupCtx := context.WithoutCancel(ctx)

	switch {
	case err == nil:
		return nil

	case errors.Is(err, context.Canceled):
		task.State = models.TaskStateCancelled
		o.deletePending(cleanupCtx, task)
		o.emit(cleanupCtx, task, events.Event{Type: events.TypeCancelled})
		log.Info().Str("task_id", task.TaskID).Msg("task cancelled")
		return err

	case errors.Is(err, errWindowExpired):
		task.State = models.TaskStateExpired
		o.deletePending(cleanupCtx, task)
		o.emit(cleanupCtx, task, events.Event{Type: events.TypeWindowExpired})
		log.Info().Str("task_id", task.TaskID).Msg("search window expired")
		return err

	case errors.Is(err, ozon.ErrAPIKeyDeactivated):
		task.State = models.TaskStateFailed
		r.snapshot(cleanupCtx)
		o.emit(cleanupCtx, task, events.Event{Type: events.TypeNoCredentials, Message: "api-key is deactivated"})
		return err

	case errors.Is(err, errDraftRetriesExhausted):
		task.State = models.TaskStateFailed
		r.snapshot(cleanupCtx)
		o.emit(cleanupCtx, task, events.Event{Type: events.TypeDraftError, Message: "draft recreate attempts exhausted"})
		return err

	default:
		// Input and supply-creation failures already emitted their
		// terminal event inside the runner.
		return err
	}
}

// Cancel aborts a running task. Safe to call twice; the runner emits a single
// Cancelled event.
func (o *Orchestrator) Cancel(userID int64, taskID string) bool {
	return o.registry.Cancel(taskKey(userID, taskID))
}

// Running reports whether a runner currently holds the task.
func (o *Orchestrator) Running(userID int64, taskID string) bool {
	return o.registry.Active(taskKey(userID, taskID))
}

// Resume loads a persisted snapshot and runs it. Drafts bound to the snapshot
// are probed before any recreation, so resuming is idempotent.
func (o *Orchestrator) Resume(ctx context.Context, userID int64, taskID string, creds ozon.Credentials) error {
	task, err := o.tasks.Find(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.State.Terminal() || task.OrderFlag {
		return errAlreadyOrdered
	}
	return o.Run(ctx, task, creds)
}

// CancelOrder asks the marketplace to cancel a booked supply order and polls
// the cancellation operation for its outcome.
func (o *Orchestrator) CancelOrder(ctx context.Context, creds ozon.Credentials, orderID int64) (bool, error) {
	api := o.newAPI(creds)
	resp, err := api.CancelSupply(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel supply order %d: %w", orderID, err)
	}
	for attempt := 0; attempt < o.cfg.OrderIDPollAttempts; attempt++ {
		status, err := api.CancelStatus(ctx, resp.OperationID)
		if err == nil && status.Result.IsOrderCancelled {
			return true, nil
		}
		if err != nil {
			log.Warn().Err(err).Int64("order_id", orderID).Msg("cancel status poll failed")
		}
		timer := o.clock.NewTimer(o.cfg.OrderIDPollDelay)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		}
	}
	return false, nil
}

// run is the task state machine body. Terminal event emission for cancel,
// window expiry, credential loss and the draft cap happens in Run.
func (r *runner) run(ctx context.Context) error {
	items, err := resolveSKUs(ctx, r.api, r.task.Items)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ozon.ErrAPIKeyDeactivated) {
			return err
		}
		r.task.State = models.TaskStateFailed
		r.snapshot(context.WithoutCancel(ctx))
		r.o.emit(ctx, r.task, events.Event{Type: events.TypeError, Message: err.Error()})
		return fmt.Errorf("sku resolution: %w", err)
	}
	r.task.Items = items
	r.task.State = models.TaskStateDraftPending
	r.snapshot(ctx)

	for {
		warehouseID, err := r.ensureDraftReady(ctx)
		if err != nil {
			return err
		}

		r.task.State = models.TaskStatePolling
		r.snapshot(ctx)

		slot, err := r.pollTimeslots(ctx, warehouseID)
		switch {
		case err == nil:
			return r.createSupply(ctx, warehouseID, slot)
		case errors.Is(err, errRecreateDraft):
			r.task.ResetDraft()
			r.snapshot(ctx)
			continue
		default:
			return err
		}
	}
}

// createSupply commits the slot. The order flag makes the commit one-shot:
// once set, no path can issue another create call for this task.
func (r *runner) createSupply(ctx context.Context, warehouseID int64, slot *models.Timeslot) error {
	if r.task.OrderFlag {
		return errAlreadyOrdered
	}

	r.task.SelectedTimeslot = slot
	r.task.State = models.TaskStateSupplyCreating
	r.snapshot(ctx)

	resp, err := r.api.CreateSupply(ctx, ozon.CreateSupplyRequest{
		DraftID:     r.task.DraftID,
		WarehouseID: warehouseID,
		Timeslot: ozon.TimeslotInterval{
			FromInTimezone: slot.From.Format(time.RFC3339),
			ToInTimezone:   slot.To.Format(time.RFC3339),
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ozon.ErrAPIKeyDeactivated) {
			return err
		}
		// The draft stays bound so the user can retry by hand; automatic
		// retries here could book the supply twice.
		r.task.State = models.TaskStateFailed
		r.snapshot(context.WithoutCancel(ctx))
		r.o.emit(ctx, r.task, events.Event{Type: events.TypeError, Message: err.Error()})
		return fmt.Errorf("failed to create supply: %w", err)
	}

	r.task.OrderFlag = true
	r.snapshot(ctx)

	orderID := r.resolveOrderID(ctx, resp.OperationID)
	order := &models.CompletedOrder{
		OrderID:            orderID,
		OperationID:        resp.OperationID,
		UserID:             r.task.UserID,
		TaskID:             r.task.TaskID,
		WarehouseID:        warehouseID,
		DropOffWarehouseID: r.task.DropOffWarehouseID,
		Timeslot:           *slot,
		Items:              r.task.Items,
		CreatedAt:          r.o.clock.Now(),
	}
	if err := r.o.orders.Complete(context.WithoutCancel(ctx), order); err != nil {
		log.Error().Err(err).Str("task_id", r.task.TaskID).Msg("failed to persist completed order")
	}
	r.task.State = models.TaskStateCompleted

	metricSuppliesCreated.Inc()
	r.o.emit(ctx, r.task, events.Event{
		Type:        events.TypeSupplyCreated,
		OperationID: resp.OperationID,
		OrderID:     orderID,
		Message:     fmt.Sprintf("supply booked for %s", slot.From.Format(time.RFC3339)),
	})

	log.Info().
		Str("task_id", r.task.TaskID).
		Int64("order_id", orderID).
		Int64("warehouse_id", warehouseID).
		Msg("supply created")
	return nil
}

// resolveOrderID polls the supply operation for its order id. Best effort:
// after the attempt cap the order exists on the marketplace either way, so a
// zero id is reported rather than failing the task.
func (r *runner) resolveOrderID(ctx context.Context, operationID string) int64 {
	for attempt := 0; attempt < r.cfg.OrderIDPollAttempts; attempt++ {
		status, err := r.api.SupplyStatus(ctx, operationID)
		if err == nil && len(status.Result.OrderIDs) > 0 {
			return status.Result.OrderIDs[0]
		}
		if err != nil {
			log.Debug().Err(err).Str("operation_id", operationID).Msg("supply status not ready")
		}
		if err := r.sleep(ctx, r.cfg.OrderIDPollDelay); err != nil {
			return 0
		}
	}
	return 0
}

func (r *runner) sleep(ctx context.Context, d time.Duration) error {
	timer := r.o.clock.NewTimer(d)
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

// snapshot persists the task after a transition. Failures are logged, not
// propagated: the marketplace state is the source of truth and the next
// transition snapshots again.
// acquire waits for a rate-limiter token and records how long that took.
func (r *runner) acquire(ctx context.Context) error {
	start := r.o.clock.Now()
	if err := r.o.limiter.Acquire(ctx, r.limiterKey); err != nil {
		return err
	}
	metricLimiterWait.Observe(r.o.clock.Now().Sub(start).Seconds())
	return nil
}

func (r *runner) snapshot(ctx context.Context) {
	r.task.UpdatedAt = r.o.clock.Now()
	if err := r.o.tasks.Save(ctx, r.task); err != nil {
		log.Error().Err(err).Str("task_id", r.task.TaskID).Msg("failed to snapshot task")
	}
}

func (r *runner) emit(ctx context.Context, e events.Event) {
	r.o.emit(ctx, r.task, e)
}

func (o *Orchestrator) emit(ctx context.Context, task *models.Task, e events.Event) {
	e.UserID = task.UserID
	e.TaskID = task.TaskID
	e.At = o.clock.Now()
	if e.Terminal() {
		metricTerminalEvents.WithLabelValues(string(e.Type)).Inc()
	}
	if err := o.bus.Emit(ctx, e); err != nil {
		log.Error().
			Err(err).
			Str("task_id", task.TaskID).
			Str("type", string(e.Type)).
			Msg("failed to emit event")
	}
}

func (o *Orchestrator) deletePending(ctx context.Context, task *models.Task) {
	if err := o.tasks.Delete(ctx, task.UserID, task.TaskID); err != nil {
		log.Error().Err(err).Str("task_id", task.TaskID).Msg("failed to delete pending task")
	}
}
