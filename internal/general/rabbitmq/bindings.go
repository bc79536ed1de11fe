package rabbitmq

import (
	"fmt"

	"ride-market/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareTopology(ch *amqp.Channel) error {
	// 1. Exchanges
	if err := ch.ExchangeDeclare(contracts.ExchangeMarketTopic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeMarketTopic, err)
	}

	// 2. Queues
	queues := []string{
		contracts.QueueRequestStatus,
		contracts.QueueBidActivity,
		contracts.QueuePaymentReconcile,
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	// 3. Bindings
	bindings := []struct {
		queue      string
		exchange   string
		routingKey string
	}{
		{contracts.QueueRequestStatus, contracts.ExchangeMarketTopic, contracts.RouteRequestStatusPrefix + "*"},
		{contracts.QueueBidActivity, contracts.ExchangeMarketTopic, contracts.RouteBidPrefix + "*"},
		{contracts.QueuePaymentReconcile, contracts.ExchangeMarketTopic, contracts.RoutePaymentReconcile},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
