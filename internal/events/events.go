package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"finedine/internal/common/mq"
	"finedine/internal/domain"
)

// Event types published on the order lifecycle.
const (
	OrderPlaced   = "order.placed"
	OrderApproved = "order.approved"
	OrderAppended = "order.appended"
	ItemServed    = "order.item_served"
	OrderReady    = "order.ready"
	OrderServed   = "order.served"
	OrderArchived = "order.archived"
	HelpRequested = "order.help_requested"
	HelpResolved  = "order.help_resolved"
	SessionEnded  = "session.ended"
)

// Event is the message fanned out to kitchen displays and subscribers.
// It replaces a live-query push: consumers learn that the named order
// changed and re-read it if they need the full document.
type Event struct {
	Type        string        `json:"type"`
	OrderID     string        `json:"order_id"`
	OrderNumber string        `json:"order_number,omitempty"`
	TableID     string        `json:"table_id,omitempty"`
	Status      domain.Status `json:"status,omitempty"`
	TotalPrice  int64         `json:"total_price,omitempty"`
	At          time.Time     `json:"at"`
}

// Publisher is what the services see; faked in tests.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type amqpPublisher struct{ cli *mq.Client }

func NewAMQPPublisher(cli *mq.Client) Publisher { return &amqpPublisher{cli: cli} }

// Publish routes the event on the topic exchange by its type and mirrors it
// onto the notifications fanout. The event stream is advisory; a lost event
// is recovered by the next read, so failures are reported but the triggering
// action is not rolled back.
func (p *amqpPublisher) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	headers := amqp.Table{"x-source": "finedine-api"}
	if err := p.cli.Publish(ctx, mq.OrdersExchange, e.Type, body, headers); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	if err := p.cli.Publish(ctx, mq.NotificationsExchange, "", body, headers); err != nil {
		return fmt.Errorf("publish notification %s: %w", e.Type, err)
	}
	return nil
}

// FromOrder fills the common fields of an event from an order.
func FromOrder(typ string, o *domain.Order) Event {
	return Event{
		Type:        typ,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		TableID:     o.TableID,
		Status:      o.Status,
		TotalPrice:  o.TotalPrice,
		At:          time.Now().UTC(),
	}
}
