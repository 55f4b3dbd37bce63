package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/collabhub/realtime/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const presenceExchange = "realtime.presence"

// presence fans state transitions out to peer nodes so every connected
// client sees presence changes regardless of which node it landed on.
type presence struct {
	ch  *amqp.Channel
	log *zap.Logger
}

func NewPresenceFanout(conn *amqp.Connection, log *zap.Logger) (*presence, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		presenceExchange,    // name
		amqp.ExchangeFanout, // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare presence exchange: %w", err)
	}

	return &presence{ch: ch, log: log}, nil
}

func (q *presence) Publish(ctx context.Context, update *domain.PresenceUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode presence update: %w", err)
	}

	err = q.ch.PublishWithContext(ctx,
		presenceExchange, // exchange
		"",               // routing key (ignored on fanout)
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("publish presence update: %w", err)
	}

	return nil
}

func (q *presence) Consume(ctx context.Context, handle func(*domain.PresenceUpdate)) error {
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
		declared.Name,    // queue name
		"",               // routing key
		presenceExchange, // exchange
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
		return fmt.Errorf("consume presence updates: %w", err)
	}

	for d := range msgs {
		var update domain.PresenceUpdate

		if err = json.Unmarshal(d.Body, &update); err != nil {
			q.log.Error("rejecting undecodable presence update", zap.Error(err))
			d.Reject(false)
			continue
		}

		handle(&update)

		if err = d.Ack(false); err != nil {
			q.log.Error("ack failed", zap.Error(err))
		}
	}

	return nil
}

func (q *presence) Close() {
	q.ch.Close()
}
