package authgate

import (
	"context"
	"io"
	"log/slog"

	otellog "go.opentelemetry.io/otel/log"

	internalaudit "github.com/MrEthical07/authgate/internal/audit"
)

// AuditEvent is a structured record of a security-relevant operation.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

type LogSink = internalaudit.LogSink

// AMQPSink publishes audit events to a RabbitMQ topic exchange.
type AMQPSink = internalaudit.AMQPSink

// OTelLogSink emits audit events as OpenTelemetry log records.
type OTelLogSink = internalaudit.OTelLogSink

// AMQPPublisher is satisfied by *amqp091.Channel.
type AMQPPublisher = internalaudit.Publisher

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

// NewAMQPSink publishes through p to exchange.
func NewAMQPSink(p AMQPPublisher, exchange string) *AMQPSink {
	return internalaudit.NewAMQPSink(p, exchange)
}

// DialAMQPAuditSink connects to a broker, declares a durable topic exchange
// and returns a sink for it. The closer releases the connection.
func DialAMQPAuditSink(url, exchange string) (*AMQPSink, io.Closer, error) {
	sink, conn, err := internalaudit.DialAMQP(url, exchange)
	if err != nil {
		return nil, nil, err
	}
	return sink, conn, nil
}

func NewOTelLogSink(provider otellog.LoggerProvider) *OTelLogSink {
	return internalaudit.NewOTelLogSink(provider, "github.com/MrEthical07/authgate/audit")
}

// MultiSink fans each event out to every sink in order.
type MultiSink []AuditSink

func (m MultiSink) Emit(ctx context.Context, event AuditEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
