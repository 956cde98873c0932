package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event. EmployeeID comes from the JWT
// and is treated as opaque.
type ActorRef struct {
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
