package webhook

import "encoding/json"

const (
	// TaskDispatch fans a committed domain event out to matching subscriptions.
	TaskDispatch = "webhook:dispatch"
	// TaskDeliver performs a single delivery attempt for one delivery row.
	TaskDeliver = "webhook:deliver"
)

type DispatchPayload struct {
	ClientID  string          `json:"client_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type DeliverPayload struct {
	DeliveryID string `json:"delivery_id"`
}
