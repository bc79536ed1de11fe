// Package stripepay implements the payment gateway on Stripe PaymentIntents.
// Charges and refunds both carry an idempotency key derived from the delta's
// reference id, so the reconciler can redeliver without double-charging.
package stripepay

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"ride-market/internal/domain/money"
	"ride-market/internal/general/config"
	"ride-market/internal/general/logger"
	"ride-market/internal/ports"
)

// Gateway is a thin wrapper around stripe-go.
type Gateway struct {
	currency string
	log      *logger.Logger
}

// New initializes the Stripe client from config and returns the gateway.
func New(cfg *config.Config, log *logger.Logger) *Gateway {
	stripe.Key = cfg.Stripe.APIKey
	return &Gateway{currency: cfg.Marketplace.Currency, log: log}
}

var _ ports.PaymentGateway = (*Gateway)(nil)

// Charge collects amount from the user. referenceID doubles as the Stripe
// idempotency key.
func (g *Gateway) Charge(ctx context.Context, userID string, amount money.Amount, referenceID string) error {
	if amount <= 0 {
		return fmt.Errorf("stripepay: charge amount must be positive, got %d", int64(amount))
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount)),
		Currency: stripe.String(g.currency),
		Customer: stripe.String(userID),
		Confirm:  stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey("charge:" + referenceID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return fmt.Errorf("stripepay: charge %s: %w", referenceID, err)
	}

	g.log.Info(ctx, "payment_charged", "Charged passenger share", map[string]any{
		"user_id":           userID,
		"amount_minor":      int64(amount),
		"reference_id":      referenceID,
		"payment_intent_id": pi.ID,
	})

	return nil
}

// Refund returns amount to the user. Modeled as a negative-direction
// PaymentIntent per account setup; referenceID keeps retries idempotent.
func (g *Gateway) Refund(ctx context.Context, userID string, amount money.Amount, referenceID string) error {
	if amount <= 0 {
		return fmt.Errorf("stripepay: refund amount must be positive, got %d", int64(amount))
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount)),
		Currency: stripe.String(g.currency),
		Customer: stripe.String(userID),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund:" + referenceID)
	params.AddMetadata("direction", "refund")

	pi, err := paymentintent.New(params)
	if err != nil {
		return fmt.Errorf("stripepay: refund %s: %w", referenceID, err)
	}

	g.log.Info(ctx, "payment_refunded", "Refunded passenger share", map[string]any{
		"user_id":           userID,
		"amount_minor":      int64(amount),
		"reference_id":      referenceID,
		"payment_intent_id": pi.ID,
	})

	return nil
}
