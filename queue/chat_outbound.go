package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// chatInboundQueue is consumed by the CRUD service that owns message
// persistence. Broker acceptance of a persistent publish is this
// service's hand-off point.
const chatInboundQueue = "chat.inbound"

type chatOutbound struct {
	ch *amqp.Channel
}

func NewChatOutbound(conn *amqp.Connection) (*chatOutbound, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		chatInboundQueue, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare chat queue: %w", err)
	}

	return &chatOutbound{ch: ch}, nil
}

type chatInboundMessage struct {
	FromUserID uint64 `json:"from"`
	WorkItemID uint64 `json:"workItemId"`
	Content    string `json:"content"`
}

func (q *chatOutbound) InsertMessage(ctx context.Context, fromUserID uint64, workItemID uint64, content string) error {
	body, err := json.Marshal(chatInboundMessage{
		FromUserID: fromUserID,
		WorkItemID: workItemID,
		Content:    content,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	err = q.ch.PublishWithContext(ctx,
		"",               // exchange
		chatInboundQueue, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}

func (q *chatOutbound) Close() {
	q.ch.Close()
}
