package contracts

import (
	"encoding/json"
	"time"
)

// WSRequestUpdate mirrors messages sent over the request WebSocket feed.
// The View field carries the full serialized aggregate so subscribers do not
// need a follow-up GET.
type WSRequestUpdate struct {
	Type      string          `json:"type"` // "request_update"
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	View      json.RawMessage `json:"view,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Envelope
}
