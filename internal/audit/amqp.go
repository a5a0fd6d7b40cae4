package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultRoutingPrefix prefixes the event type to form the routing key.
const DefaultRoutingPrefix = "authgate.audit."

// Publisher is the subset of *amqp.Channel used by AMQPSink.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes each event as a persistent JSON message to a topic
// exchange. Publish failures are reported to OnError and otherwise dropped.
type AMQPSink struct {
	publisher     Publisher
	exchange      string
	routingPrefix string
	timeout       time.Duration
	OnError       func(error)
}

// NewAMQPSink publishes through p to exchange.
func NewAMQPSink(p Publisher, exchange string) *AMQPSink {
	return &AMQPSink{
		publisher:     p,
		exchange:      exchange,
		routingPrefix: DefaultRoutingPrefix,
		timeout:       5 * time.Second,
	}
}

func (s *AMQPSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.publisher == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.report(err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.publisher.PublishWithContext(ctx, s.exchange, s.routingPrefix+event.EventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp,
		Type:         event.EventType,
		Body:         body,
	})
	if err != nil {
		s.report(fmt.Errorf("publish audit event: %w", err))
	}
}

func (s *AMQPSink) report(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}

// AMQPConnection owns the broker connection behind a dialed AMQPSink.
type AMQPConnection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// DialAMQP connects to url, declares a durable topic exchange and returns a
// sink publishing to it. Close the returned connection on shutdown.
func DialAMQP(url, exchange string) (*AMQPSink, *AMQPConnection, error) {
	if exchange == "" {
		return nil, nil, errors.New("amqp exchange is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return NewAMQPSink(ch, exchange), &AMQPConnection{conn: conn, channel: ch}, nil
}

// Close closes the channel and connection.
func (c *AMQPConnection) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.channel.Close(), c.conn.Close())
}
