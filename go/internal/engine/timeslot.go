package engine

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/andreyv/supplybot/go/clients/ozon"
	"github.com/andreyv/supplybot/go/internal/events"
	"github.com/andreyv/supplybot/go/internal/models"
	"github.com/andreyv/supplybot/go/internal/msk"
)

// errWindowExpired ends the run once the search deadline has passed.
var errWindowExpired = errors.New("search window expired")

// pollTimeslots loops until a slot inside the task's window becomes free.
// It returns errRecreateDraft when the draft expires mid-search and
// errWindowExpired when the deadline passes with nothing found.
func (r *runner) pollTimeslots(ctx context.Context, warehouseID int64) (*models.Timeslot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		now := r.o.clock.Now()
		if now.After(r.task.SearchDeadline) {
			return nil, errWindowExpired
		}
		if r.task.DraftExpired(now) {
			r.emit(ctx, events.Event{Type: events.TypeDraftExpired})
			return nil, errRecreateDraft
		}

		window := msk.ComputeSearchWindow(now, r.task.SearchDeadline, r.task.ReadyInDays, r.cfg.TimeslotWindowMaxDays)
		if !window.Valid() {
			return nil, errWindowExpired
		}

		metricTimeslotPolls.Inc()
		resp, err := r.api.DraftTimeslots(ctx, ozon.DraftTimeslotsRequest{
			DraftID:      r.task.DraftID,
			DateFrom:     msk.FormatISO(window.From),
			DateTo:       msk.FormatISO(window.To),
			WarehouseIDs: []string{strconv.FormatInt(warehouseID, 10)},
		})
		if err != nil {
			if errors.Is(err, ozon.ErrAPIKeyDeactivated) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			log.Warn().
				Err(err).
				Str("task_id", r.task.TaskID).
				Msg("timeslot poll failed, retrying")
		} else {
			// The cutoff moves with the clock and must be rechecked on
			// every iteration, not once at loop start.
			cutoff := msk.ReadinessCutoff(now, r.task.ReadyInDays)
			if slot := pickTimeslot(resp, cutoff, r.task.Window); slot != nil {
				return slot, nil
			}
			if !r.missingEmitted {
				r.missingEmitted = true
				r.emit(ctx, events.Event{Type: events.TypeTimeslotMissing})
			}
		}

		if err := r.sleep(ctx, r.cfg.TimeslotPollInterval); err != nil {
			return nil, err
		}
	}
}

// pickTimeslot flattens the warehouse/day forest, deduplicates, sorts by
// start and returns the first slot passing the readiness and hour filters.
func pickTimeslot(resp *ozon.DraftTimeslotsResponse, cutoff time.Time, window models.TimeWindow) *models.Timeslot {
	var slots []models.Timeslot
	for _, wh := range resp.DropOffWarehouseTimeslots {
		for _, day := range wh.Days {
			for _, ts := range day.Timeslots {
				from, err := time.Parse(time.RFC3339, ts.FromInTimezone)
				if err != nil {
					log.Warn().Str("value", ts.FromInTimezone).Msg("unparseable timeslot start")
					continue
				}
				to, err := time.Parse(time.RFC3339, ts.ToInTimezone)
				if err != nil {
					continue
				}
				slots = append(slots, models.Timeslot{From: from, To: to, Timezone: wh.WarehouseTimezone})
			}
		}
	}

	slots = lo.UniqBy(slots, func(s models.Timeslot) string {
		return s.From.Format(time.RFC3339) + "/" + s.To.Format(time.RFC3339) + "/" + s.Timezone
	})
	sort.Slice(slots, func(i, j int) bool { return slots[i].From.Before(slots[j].From) })

	for i := range slots {
		if slots[i].From.Before(cutoff) {
			continue
		}
		if !window.Accepts(slots[i].From.Hour()) {
			continue
		}
		return &slots[i]
	}
	return nil
}
