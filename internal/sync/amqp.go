package syncx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/mind-engage/placement-exam/internal/exam"
)

const DefaultExchange = "exam.events"

// AMQPSink publishes exam events to a durable topic exchange. The routing
// key is "exam.<Type>".
type AMQPSink struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	now      func() time.Time
}

func NewAMQPSink(uri, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp exchange %s: %w", exchange, err)
	}
	return &AMQPSink{conn: conn, channel: ch, exchange: exchange, now: time.Now}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, e exam.Event) error {
	msg, err := publishing(e, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel.PublishWithContext(ctx, s.exchange, routingKey(e), false, false, msg)
}

func (s *AMQPSink) Close() error {
	return errors.Join(s.channel.Close(), s.conn.Close())
}

func routingKey(e exam.Event) string { return "exam." + e.Type }

func publishing(e exam.Event, at time.Time) (amqp091.Publishing, error) {
	body, err := json.Marshal(e.Data)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    at,
		Type:         e.Type,
		Body:         body,
		Headers: amqp091.Table{
			"event_type": e.Type,
			"key":        e.Key,
		},
	}, nil
}

// Fanout publishes to every sink and joins their errors.
type Fanout []exam.EventSink

func (f Fanout) Publish(ctx context.Context, e exam.Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
