package contracts

import "time"

// BidMessage is published by Marketplace Service when a driver submits a bid
// or a bid changes status.
// Routing key: "request.bid.{request_id}" on ExchangeMarketTopic.
type BidMessage struct {
	RequestID  string       `json:"request_id"`
	BidID      string       `json:"bid_id"`
	Status     string       `json:"status"` // PENDING|ACCEPTED|REJECTED
	PriceMinor int64        `json:"price_minor"`
	Driver     *DriverBrief `json:"driver,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
	Envelope
}
