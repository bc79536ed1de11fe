package ports

import (
	"context"

	"ride-market/internal/domain/money"
)

// PaymentGateway is the payment collaborator. Both calls are idempotent per
// referenceID, so the reconciler may safely retry a delivery that failed
// after an unknown outcome.
type PaymentGateway interface {
	Charge(ctx context.Context, userID string, amount money.Amount, referenceID string) error
	Refund(ctx context.Context, userID string, amount money.Amount, referenceID string) error
}

// PricingProvider supplies the tax rate applied on top of the accepted bid
// price. The rate is read inside the critical section so one recomputation
// sees one consistent rate.
type PricingProvider interface {
	TaxRate(ctx context.Context) money.BasisPoints
}

// MessagePublisher abstracts the broker publisher so services can be tested
// without an AMQP connection. The rabbitmq.MQPublisher satisfies it.
type MessagePublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}
