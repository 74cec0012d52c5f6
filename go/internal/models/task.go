package models

import (
	"errors"
	"fmt"
	"time"
)

// SupplyType defines how goods reach the destination warehouse.
type SupplyType string

const (
	SupplyTypeDirect    SupplyType = "CREATE_TYPE_DIRECT"
	SupplyTypeCrossdock SupplyType = "CREATE_TYPE_CROSSDOCK"
)

// TaskState defines where a task is in its lifecycle.
type TaskState string

const (
	TaskStateCreated        TaskState = "CREATED"
	TaskStateDraftPending   TaskState = "DRAFT_PENDING"
	TaskStateDraftReady     TaskState = "DRAFT_READY"
	TaskStatePolling        TaskState = "POLLING"
	TaskStateSupplyCreating TaskState = "SUPPLY_CREATING"
	TaskStateCompleted      TaskState = "COMPLETED"
	TaskStateExpired        TaskState = "EXPIRED"
	TaskStateCancelled      TaskState = "CANCELLED"
	TaskStateFailed         TaskState = "FAILED"
)

// Terminal reports whether no runner should ever pick the task up again.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateExpired, TaskStateCancelled, TaskStateFailed:
		return true
	}
	return false
}

// TaskItem is one manifest line. SKU may be zero until resolution.
type TaskItem struct {
	Article  string `json:"article"`
	SKU      int64  `json:"sku,omitempty"`
	Quantity int32  `json:"quantity"`
}

// Timeslot is a delivery interval in the warehouse's local timezone.
type Timeslot struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Timezone string    `json:"timezone,omitempty"`
}

// TimeWindow restricts which hour a slot may start at. A nil FromHour means
// "first available". A nil ToHour leaves the range open upwards.
type TimeWindow struct {
	FromHour *int `json:"from_hour,omitempty"`
	ToHour   *int `json:"to_hour,omitempty"`
}

// Accepts reports whether a slot starting at the given local hour passes the window.
func (w TimeWindow) Accepts(hour int) bool {
	if w.FromHour == nil {
		return true
	}
	if hour < *w.FromHour {
		return false
	}
	if w.ToHour != nil && hour > *w.ToHour {
		return false
	}
	return true
}

// Task is the unit of work the engine runs.
type Task struct {
	TaskID string `json:"task_id"`
	UserID int64  `json:"user_id"`

	ClusterID          int64 `json:"cluster_id"`
	DropOffWarehouseID int64 `json:"drop_off_warehouse_id"`
	WarehouseID        int64 `json:"warehouse_id,omitempty"`
	WarehouseAuto      bool  `json:"warehouse_auto_select"`

	SupplyType SupplyType `json:"supply_type"`
	Items      []TaskItem `json:"items"`

	ReadyInDays    int        `json:"ready_in_days"`
	SearchDeadline time.Time  `json:"search_deadline"`
	Window         TimeWindow `json:"time_window"`

	State TaskState `json:"state"`

	DraftOperationID string     `json:"draft_operation_id,omitempty"`
	DraftID          int64      `json:"draft_id,omitempty"`
	DraftCreatedAt   *time.Time `json:"draft_created_at,omitempty"`
	DraftExpiresAt   *time.Time `json:"draft_expires_at,omitempty"`

	SelectedTimeslot *Timeslot `json:"selected_timeslot,omitempty"`

	// OrderFlag is the terminal sentinel: once set the engine must never
	// issue another supply creation for this task.
	OrderFlag bool `json:"order_flag"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CompletedOrder is what persists after a supply is booked.
type CompletedOrder struct {
	OrderID            int64      `json:"order_id"`
	OperationID        string     `json:"operation_id"`
	UserID             int64      `json:"user_id"`
	TaskID             string     `json:"task_id"`
	WarehouseID        int64      `json:"warehouse_id"`
	DropOffWarehouseID int64      `json:"drop_off_warehouse_id"`
	Timeslot           Timeslot   `json:"timeslot"`
	Items              []TaskItem `json:"items"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ResetDraft clears all draft bindings, typically before a recreate.
func (t *Task) ResetDraft() {
	t.DraftOperationID = ""
	t.DraftID = 0
	t.DraftCreatedAt = nil
	t.DraftExpiresAt = nil
}

// DraftExpired reports whether the bound draft has outlived its lifetime.
func (t *Task) DraftExpired(now time.Time) bool {
	return t.DraftExpiresAt != nil && now.After(*t.DraftExpiresAt)
}

const (
	ReadyDaysMin = 0
	ReadyDaysMax = 28
)

var (
	ErrNoItems        = errors.New("task has no items")
	ErrNoDropOff      = errors.New("crossdock supply requires a drop-off warehouse")
	ErrDeadlinePassed = errors.New("search deadline is in the past")
)

// Validate checks the input invariants the engine relies on. It does not
// require SKUs to be resolved; that happens right before draft creation.
func (t *Task) Validate(now time.Time) error {
	if t.TaskID == "" {
		return errors.New("task id is empty")
	}
	if len(t.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range t.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("item %q has non-positive quantity %d", it.Article, it.Quantity)
		}
	}
	if t.ReadyInDays < ReadyDaysMin || t.ReadyInDays > ReadyDaysMax {
		return fmt.Errorf("ready_in_days %d outside [%d, %d]", t.ReadyInDays, ReadyDaysMin, ReadyDaysMax)
	}
	if t.SupplyType == SupplyTypeCrossdock && t.DropOffWarehouseID == 0 {
		return ErrNoDropOff
	}
	if !t.SearchDeadline.IsZero() && t.SearchDeadline.Before(now) {
		return ErrDeadlinePassed
	}
	return nil
}
