package contracts

import "time"

// RequestStatusMessage is published by Marketplace Service on every status
// transition of a rider request.
// Routing key: "request.status.{status}" on ExchangeMarketTopic.
type RequestStatusMessage struct {
	RequestID      string    `json:"request_id"`
	Status         string    `json:"status"` // OPEN|MATCHED|COMPLETED|CANCELLED
	OwnerID        string    `json:"owner_id"`
	ChosenBidID    string    `json:"chosen_bid_id,omitempty"`
	TotalCostMinor *int64    `json:"total_cost_minor,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Envelope
}
