package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/warekiosk/kioskgo/internal/config"
)

// StartConsumer connects to the broker, declares the scan queue (durable),
// and feeds every delivery through the resolver. It runs a reconnect loop
// with exponential backoff and returns only when ctx is cancelled. Rejected
// events are acknowledged and dropped: scans are transient telemetry and the
// next physical tap corrects a missed one.
func StartConsumer(ctx context.Context, cfg config.TelemetryConfig, resolver *Resolver) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Printf("scan-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(ctx, conn, cfg.ScanQueue, resolver); err != nil {
			if errors.Is(err, context.Canceled) {
				_ = conn.Close()
				return err
			}
			log.Printf("scan-consumer: consume loop ended: %v; reconnecting", err)
		}
		_ = conn.Close()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, resolver *Resolver) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("scan-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	log.Printf("✅ Scan consumer listening on queue %q", queue)

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}

			outcome := resolver.Process(ctx, Delivery{
				Body:           d.Body,
				HeaderDeviceID: headerDeviceID(d.Headers),
			})
			if outcome.Rejected() && outcome.Reason != RejectDuplicate {
				log.Printf("scan-consumer: event dropped at %s: %s", outcome.Stage, outcome.Reason)
			}

			// Always ack: rejected telemetry is dropped, never re-queued
			_ = d.Ack(false)
		}
	}
}

// headerDeviceID extracts the broker-stamped device identity, if present
func headerDeviceID(headers amqp.Table) string {
	if headers == nil {
		return ""
	}
	if v, ok := headers[DeviceIDHeader]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
