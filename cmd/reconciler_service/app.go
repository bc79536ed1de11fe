package reconcilerservice

import (
	"context"
	"fmt"

	"ride-market/internal/general/config"
	"ride-market/internal/general/logger"
	"ride-market/internal/general/rabbitmq"
	"ride-market/internal/general/stripepay"
	"ride-market/internal/software/marketplace/service"
)

// Run starts the payment reconciler and blocks until ctx is cancelled. It
// drains the reconcile queue and re-drives failed charges and refunds
// against the gateway.
func Run(ctx context.Context) error {
	log := logger.New("reconciler-service")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mqClient, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer mqClient.Close()

	pub := rabbitmq.NewMQPublisher(mqClient)
	gateway := stripepay.New(cfg, log)

	rec := service.NewReconciler(log, mqClient, pub, gateway)

	log.Info(ctx, "reconciler_started", "Payment reconciler consuming", nil)
	if err := rec.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume: %w", err)
	}

	log.Info(ctx, "reconciler_stopped", "Payment reconciler stopped", nil)
	return nil
}
