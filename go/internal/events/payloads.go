// Package events defines the typed notifications the engine pushes to the
// chat layer and the buses that carry them.
package events

import "time"

// Type enumerates everything the engine can tell the chat layer.
type Type string

const (
	TypeDraftCreated     Type = "DraftCreated"
	TypeDraftValid       Type = "DraftValid"
	TypeDraftExpired     Type = "DraftExpired"
	TypeDraftInvalid     Type = "DraftInvalid"
	TypeDraftError       Type = "DraftError"
	TypeTimeslotMissing  Type = "TimeslotMissing"
	TypeWarehousePending Type = "WarehousePending"
	TypeSupplyCreated    Type = "SupplyCreated"
	TypeWindowExpired    Type = "WindowExpired"
	TypeCancelled        Type = "Cancelled"
	TypeError            Type = "Error"
	TypeNoCredentials    Type = "NoCredentials"
)

// Event is one notification about one task.
type Event struct {
	Type        Type      `json:"type"`
	UserID      int64     `json:"user_id"`
	TaskID      string    `json:"task_id"`
	Message     string    `json:"message,omitempty"`
	OperationID string    `json:"operation_id,omitempty"`
	OrderID     int64     `json:"order_id,omitempty"`
	At          time.Time `json:"at"`
}

// Terminal reports whether the event ends the task's run.
func (e Event) Terminal() bool {
	switch e.Type {
	case TypeSupplyCreated, TypeWindowExpired, TypeCancelled, TypeError, TypeDraftError, TypeNoCredentials:
		return true
	}
	return false
}
