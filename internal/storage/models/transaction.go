// internal/storage/models/transaction.go
package models

import "time"

// Transaction статусы
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

// Transaction is a settlement signature recorded by the relay backend.
type Transaction struct {
	Signature          string     `json:"signature"`
	Status             string     `json:"status"`
	ConfirmationStatus string     `json:"confirmationStatus,omitempty"`
	Slot               uint64     `json:"slot,omitempty"`
	ErrorMessage       string     `json:"error,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	BlockTime          *time.Time `json:"blockTime,omitempty"`
}
