package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/collabhub/realtime/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const eventExchange = "realtime.events"

// EventEnvelope is the producer-boundary wire format: the business event
// plus its audience descriptor. Producers publish it after their own
// persistence succeeded.
type EventEnvelope struct {
	Event      domain.NotificationEvent `json:"event"`
	UserIDs    []uint64                 `json:"userIds,omitempty"`
	WorkItemID uint64                   `json:"workItemId,omitempty"`
}

func (e *EventEnvelope) Audience() domain.Audience {
	return domain.Audience{
		UserIDs:    e.UserIDs,
		WorkItemID: e.WorkItemID,
	}
}

// event carries business events between producers and realtime nodes
// over a fanout exchange, so every node can serve its local connections.
type event struct {
	ch  *amqp.Channel
	log *zap.Logger
}

func NewEvent(conn *amqp.Connection, log *zap.Logger) (*event, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		eventExchange,       // name
		amqp.ExchangeFanout, // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return &event{ch: ch, log: log}, nil
}

func (q *event) Publish(ctx context.Context, envelope *EventEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	err = q.ch.PublishWithContext(ctx,
		eventExchange, // exchange
		"",            // routing key (ignored on fanout)
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}

// Consume routes every envelope on the exchange into the local router.
// One bad envelope is rejected and never stops the loop.
func (q *event) Consume(ctx context.Context, router domain.NotificationRouter) error {
	declared, err := q.ch.QueueDeclare(
		"",    // empty name makes an exclusive random queue
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = q.ch.QueueBind(
		declared.Name, // queue name
		"",            // routing key
		eventExchange, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := q.ch.ConsumeWithContext(ctx,
		declared.Name, // queue
		"",            // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("consume events: %w", err)
	}

	for d := range msgs {
		var envelope EventEnvelope

		if err = json.Unmarshal(d.Body, &envelope); err != nil {
			q.log.Error("rejecting undecodable envelope", zap.Error(err))
			d.Reject(false)
			continue
		}

		if err = router.Publish(ctx, &envelope.Event, envelope.Audience()); err != nil {
			q.log.Error("fan-out failed",
				zap.Uint64("eventId", envelope.Event.ID),
				zap.Error(err),
			)
		}

		if err = d.Ack(false); err != nil {
			q.log.Error("ack failed", zap.Error(err))
		}
	}

	return nil
}

func (q *event) Close() {
	q.ch.Close()
}
