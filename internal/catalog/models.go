package catalog

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutboxKindProject = "project"
	OutboxKindUser    = "user"

	OutboxStatusPending   = "pending"
	OutboxStatusSending   = "sending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusFailed    = "failed"
	// Superseded rows were replaced by a newer copy of the same entity.
	OutboxStatusSuperseded = "superseded"
)

// OutboxEntry is a remote sync that failed and waits for retry. Payload is
// the JSON document that was being sent.
type OutboxEntry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	EntityID  string    `json:"entity_id"`
	Payload   string    `json:"payload"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewID() string {
	return uuid.NewString()
}
