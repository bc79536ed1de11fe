package contracts

import "time"

// PaymentInstruction is a charge or refund that could not be delivered to
// the payment gateway inline. It is queued on QueuePaymentReconcile and
// redelivered until the gateway accepts it. ReferenceID is stable across
// retries so deliveries stay idempotent.
// Routing key: RoutePaymentReconcile on ExchangeMarketTopic.
type PaymentInstruction struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	AmountMinor int64     `json:"amount_minor"` // positive = charge, negative = refund
	Kind        string    `json:"kind"`         // "charge" | "refund"
	ReferenceID string    `json:"reference_id"`
	Attempts    int       `json:"attempts"`
	Timestamp   time.Time `json:"timestamp"`
	Envelope
}

const (
	PaymentKindCharge = "charge"
	PaymentKindRefund = "refund"
)
