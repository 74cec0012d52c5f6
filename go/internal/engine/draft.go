package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/andreyv/supplybot/go/clients/ozon"
	"github.com/andreyv/supplybot/go/internal/events"
	"github.com/andreyv/supplybot/go/internal/models"
)

// errRecreateDraft signals the current draft is unusable and a fresh one must
// be created; it never leaves the engine.
var errRecreateDraft = errors.New("draft needs recreation")

// errDraftRetriesExhausted ends the run after the recreate cap.
var errDraftRetriesExhausted = errors.New("draft recreate attempts exhausted")

// draft info statuses that mean "keep polling".
func draftInProgress(status string) bool {
	switch status {
	case "", "PENDING", "IN_PROGRESS", "CALCULATING":
		return true
	}
	return false
}

// ensureDraftReady drives the draft sub-state-machine until the task holds a
// SUCCESS draft with a chosen destination warehouse. It recreates expired and
// failed drafts up to the configured cap. Every create and info call consumes
// one rate-limit token.
func (r *runner) ensureDraftReady(ctx context.Context) (int64, error) {
	recreates := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if r.task.DraftOperationID == "" {
			if recreates >= r.cfg.DraftRecreateMaxAttempts {
				return 0, errDraftRetriesExhausted
			}
			if recreates > 0 {
				metricDraftRecreates.Inc()
				if err := r.sleep(ctx, r.cfg.DraftRecreateBackoff); err != nil {
					return 0, err
				}
			}
			recreates++
			if err := r.createDraft(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, ozon.ErrAPIKeyDeactivated) {
					return 0, err
				}
				log.Warn().
					Err(err).
					Str("task_id", r.task.TaskID).
					Msg("draft creation failed, will retry")
				r.task.ResetDraft()
				continue
			}
		}

		warehouseID, err := r.pollDraftInfo(ctx)
		switch {
		case err == nil:
			return warehouseID, nil
		case errors.Is(err, errRecreateDraft):
			r.task.ResetDraft()
			r.snapshot(ctx)
			continue
		default:
			return 0, err
		}
	}
}

// createDraft consumes a token, starts the computation and binds the
// operation id plus the 30-minute lifetime to the task.
func (r *runner) createDraft(ctx context.Context) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}

	items := make([]ozon.DraftItem, len(r.task.Items))
	for i, it := range r.task.Items {
		items[i] = ozon.DraftItem{SKU: it.SKU, Quantity: it.Quantity}
	}
	resp, err := r.api.CreateDraft(ctx, ozon.CreateDraftRequest{
		ClusterIDs:              []string{strconv.FormatInt(r.task.ClusterID, 10)},
		DropOffPointWarehouseID: r.task.DropOffWarehouseID,
		Items:                   items,
		Type:                    string(r.task.SupplyType),
	})
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}

	now := r.o.clock.Now()
	expires := now.Add(r.cfg.DraftLifetime)
	r.task.DraftOperationID = resp.OperationID
	r.task.DraftID = 0
	r.task.DraftCreatedAt = &now
	r.task.DraftExpiresAt = &expires
	r.task.State = models.TaskStateDraftPending
	r.snapshot(ctx)

	metricDraftsCreated.Inc()
	r.emit(ctx, events.Event{Type: events.TypeDraftCreated, OperationID: resp.OperationID})

	log.Info().
		Str("task_id", r.task.TaskID).
		Str("operation_id", resp.OperationID).
		Msg("draft created")
	return nil
}

// pollDraftInfo polls the computation until it succeeds and a warehouse can
// be chosen. Returns errRecreateDraft whenever the draft must be rebuilt.
func (r *runner) pollDraftInfo(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < r.cfg.DraftPollMaxAttempts; attempt++ {
		if r.task.DraftExpired(r.o.clock.Now()) {
			r.emit(ctx, events.Event{Type: events.TypeDraftExpired})
			return 0, errRecreateDraft
		}

		if err := r.acquire(ctx); err != nil {
			return 0, err
		}
		info, err := r.api.DraftInfo(ctx, r.task.DraftOperationID)
		if err != nil {
			switch {
			case errors.Is(err, ozon.ErrDraftExpired):
				r.emit(ctx, events.Event{Type: events.TypeDraftExpired})
				return 0, errRecreateDraft
			case errors.Is(err, ozon.ErrAPIKeyDeactivated), errors.Is(err, context.Canceled):
				return 0, err
			default:
				// Retries inside the client are already exhausted here;
				// a fresh draft is the recovery path.
				log.Warn().
					Err(err).
					Str("task_id", r.task.TaskID).
					Msg("draft info failed, recreating draft")
				return 0, errRecreateDraft
			}
		}

		switch {
		case info.Status == ozon.DraftStatusSuccess:
			warehouseID, ok, pending := r.chooseWarehouse(info)
			if ok {
				r.task.DraftID = info.DraftID
				r.task.State = models.TaskStateDraftReady
				r.snapshot(ctx)
				r.emit(ctx, events.Event{
					Type:    events.TypeDraftValid,
					Message: fmt.Sprintf("draft %d ready, warehouse %d", info.DraftID, warehouseID),
				})
				return warehouseID, nil
			}
			if !pending {
				r.emit(ctx, events.Event{
					Type:    events.TypeDraftError,
					Message: "no fully available warehouse in draft",
				})
				return 0, errRecreateDraft
			}
			// Pinned warehouse exists but is not FULL_AVAILABLE yet; emit
			// only on the transition into the pending condition.
			if !r.warehousePending {
				r.warehousePending = true
				r.emit(ctx, events.Event{
					Type:    events.TypeWarehousePending,
					Message: fmt.Sprintf("warehouse %d is not fully available yet", r.task.WarehouseID),
				})
			}

		case info.Status == ozon.DraftStatusFailed:
			r.emit(ctx, events.Event{Type: events.TypeDraftInvalid, Message: draftErrorMessage(info)})
			return 0, errRecreateDraft

		case info.Status == ozon.DraftStatusExpired:
			r.emit(ctx, events.Event{Type: events.TypeDraftExpired})
			return 0, errRecreateDraft

		case !draftInProgress(info.Status):
			log.Warn().
				Str("task_id", r.task.TaskID).
				Str("status", info.Status).
				Msg("unknown draft status, recreating")
			r.emit(ctx, events.Event{Type: events.TypeDraftInvalid, Message: info.Status})
			return 0, errRecreateDraft
		}

		if err := r.sleep(ctx, r.cfg.DraftPollInterval); err != nil {
			return 0, err
		}
	}
	return 0, errRecreateDraft
}

// chooseWarehouse resolves the destination out of the ranked candidates.
// Returns (id, true, _) when a warehouse is chosen, (0, false, true) when the
// pinned warehouse is present but not yet fully available, and
// (0, false, false) when nothing can serve the draft.
func (r *runner) chooseWarehouse(info *ozon.DraftInfoResponse) (int64, bool, bool) {
	ranked := rankWarehouses(info.Clusters)

	if !r.task.WarehouseAuto && r.task.WarehouseID != 0 {
		for _, w := range ranked {
			if w.Supply.WarehouseID != r.task.WarehouseID {
				continue
			}
			if w.Status.State == ozon.WarehouseStateFullAvailable {
				r.warehousePending = false
				return w.Supply.WarehouseID, true, false
			}
			return 0, false, true
		}
		// Not listed on this poll; keep waiting, the marketplace refreshes
		// candidates between computations.
		return 0, false, true
	}

	for _, w := range ranked {
		if w.Status.State == ozon.WarehouseStateFullAvailable {
			return w.Supply.WarehouseID, true, false
		}
	}
	return 0, false, false
}

// rankWarehouses flattens the cluster forest into a single list ordered by
// (total_rank ASC NULLS LAST, total_score DESC NULLS LAST, name ASC) and
// deduplicated by warehouse id keeping the best-ranked entry.
func rankWarehouses(clusters []ozon.DraftCluster) []ozon.DraftWarehouse {
	var all []ozon.DraftWarehouse
	for _, cl := range clusters {
		all = append(all, cl.Warehouses...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch {
		case a.TotalRank != nil && b.TotalRank != nil && *a.TotalRank != *b.TotalRank:
			return *a.TotalRank < *b.TotalRank
		case (a.TotalRank != nil) != (b.TotalRank != nil):
			return a.TotalRank != nil
		}
		switch {
		case a.TotalScore != nil && b.TotalScore != nil && *a.TotalScore != *b.TotalScore:
			return *a.TotalScore > *b.TotalScore
		case (a.TotalScore != nil) != (b.TotalScore != nil):
			return a.TotalScore != nil
		}
		return a.Supply.Name < b.Supply.Name
	})

	return lo.UniqBy(all, func(w ozon.DraftWarehouse) int64 {
		return w.Supply.WarehouseID
	})
}

func draftErrorMessage(info *ozon.DraftInfoResponse) string {
	for _, e := range info.Errors {
		if e.ErrorMessage != "" {
			return e.ErrorMessage
		}
	}
	return "draft calculation failed"
}
