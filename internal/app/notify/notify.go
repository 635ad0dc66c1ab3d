package notify

import (
	"context"
	"encoding/json"

	"finedine/internal/common/logger"
	"finedine/internal/common/mq"
	"finedine/internal/config"
	"finedine/internal/events"
)

// Run consumes the notifications fanout and turns lifecycle events into log
// lines for staff displays and ops. Malformed payloads are rejected to the
// dead-letter queue instead of being redelivered forever.
func Run(ctx context.Context, cfg config.Config) error {
	lg := logger.New("notifier")

	mqc, err := mq.Dial(cfg.RabbitHost, cfg.RabbitPort, cfg.RabbitUser, cfg.RabbitPass)
	if err != nil {
		return err
	}
	defer mqc.Close()
	if err := mqc.DeclareTopology(); err != nil {
		return err
	}

	deliveries, err := mqc.Consume(mq.NotificationsQueue, "finedine-notifier", 1)
	if err != nil {
		return err
	}
	lg.Info("notifier_started", nil)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var e events.Event
			if err := json.Unmarshal(d.Body, &e); err != nil {
				lg.Error("event_decode_failed", err, nil)
				_ = d.Nack(false, false) // to DLQ
				continue
			}
			lg.Info("notification", map[string]any{
				"type":   e.Type,
				"order":  e.OrderID,
				"number": e.OrderNumber,
				"table":  e.TableID,
				"status": e.Status,
			})
			_ = d.Ack(false)
		}
	}
}
