package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ride-market/internal/domain/money"
	"ride-market/internal/general/contracts"
	"ride-market/internal/general/logger"
	"ride-market/internal/general/rabbitmq"
	"ride-market/internal/ports"
)

// reconcileMaxAttempts bounds redelivery before an instruction is parked in
// the log for manual recovery.
const reconcileMaxAttempts = 10

// Reconciler drains the payment reconcile queue: every instruction is a
// charge or refund that failed inline after a committed share change. The
// gateway is idempotent per reference id, so redelivering a possibly-applied
// instruction is safe.
type Reconciler struct {
	logger  *logger.Logger
	client  *rabbitmq.Client
	pub     ports.MessagePublisher
	gateway ports.PaymentGateway
}

// NewReconciler wires a reconciler over the broker and the gateway.
func NewReconciler(logger *logger.Logger, client *rabbitmq.Client, pub ports.MessagePublisher, gateway ports.PaymentGateway) *Reconciler {
	return &Reconciler{logger: logger, client: client, pub: pub, gateway: gateway}
}

// Run consumes until ctx is cancelled. Blocks.
func (rec *Reconciler) Run(ctx context.Context) error {
	return rec.client.Consume(ctx, contracts.QueuePaymentReconcile, "payment-reconciler", 8, rec.handle)
}

// handle processes one instruction. It always returns nil so the delivery is
// acked: a failed gateway call is re-enqueued explicitly with an incremented
// attempt counter rather than nack-requeued, which would spin hot.
func (rec *Reconciler) handle(ctx context.Context, d amqp.Delivery) error {
	var in contracts.PaymentInstruction
	if err := json.Unmarshal(d.Body, &in); err != nil {
		rec.logger.Error(ctx, "reconcile_bad_payload", "Dropping undecodable payment instruction", err, map[string]any{
			"size": len(d.Body),
		})
		return nil
	}

	ctx = rec.logger.WithRiderRequestID(ctx, in.RequestID)

	amount := in.AmountMinor
	if amount < 0 {
		amount = -amount
	}

	var err error
	switch in.Kind {
	case contracts.PaymentKindCharge:
		err = rec.gateway.Charge(ctx, in.UserID, money.Amount(amount), in.ReferenceID)
	case contracts.PaymentKindRefund:
		err = rec.gateway.Refund(ctx, in.UserID, money.Amount(amount), in.ReferenceID)
	default:
		rec.logger.Error(ctx, "reconcile_bad_kind", "Dropping payment instruction with unknown kind", nil, map[string]any{
			"kind":         in.Kind,
			"reference_id": in.ReferenceID,
		})
		return nil
	}

	if err == nil {
		rec.logger.Info(ctx, "reconcile_delivered", "Payment instruction delivered", map[string]any{
			"kind":         in.Kind,
			"user_id":      in.UserID,
			"amount_minor": in.AmountMinor,
			"reference_id": in.ReferenceID,
			"attempts":     in.Attempts,
		})
		return nil
	}

	if in.Attempts >= reconcileMaxAttempts {
		rec.logger.Error(ctx, "reconcile_gave_up", "Payment instruction exceeded max attempts, parking", err, map[string]any{
			"kind":         in.Kind,
			"user_id":      in.UserID,
			"amount_minor": in.AmountMinor,
			"reference_id": in.ReferenceID,
			"attempts":     in.Attempts,
		})
		return nil
	}

	in.Attempts++
	in.Timestamp = time.Now().UTC()

	body, mErr := json.Marshal(in)
	if mErr == nil {
		mErr = rec.pub.Publish(contracts.ExchangeMarketTopic, contracts.RoutePaymentReconcile, body)
	}
	if mErr != nil {
		rec.logger.Error(ctx, "reconcile_requeue_failed", "Failed to requeue payment instruction", mErr, map[string]any{
			"reference_id": in.ReferenceID,
		})
	}

	return nil
}
