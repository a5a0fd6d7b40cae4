package audit

import (
	"context"
	"log/slog"

	otellog "go.opentelemetry.io/otel/log"
)

// OTelLogSink emits each event as an OpenTelemetry log record. Failed
// events are recorded at WARN severity.
type OTelLogSink struct {
	logger otellog.Logger
}

// NewOTelLogSink returns a sink writing through a logger named scope.
func NewOTelLogSink(provider otellog.LoggerProvider, scope string) *OTelLogSink {
	return &OTelLogSink{logger: provider.Logger(scope)}
}

func (s *OTelLogSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}

	var rec otellog.Record
	rec.SetTimestamp(event.Timestamp)
	rec.SetBody(otellog.StringValue(event.EventType))
	if event.Level() >= slog.LevelWarn {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetSeverityText("WARN")
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetSeverityText("INFO")
	}

	attrs := []otellog.KeyValue{
		otellog.String("audit.event_type", event.EventType),
		otellog.Bool("audit.success", event.Success),
	}
	if event.UserID != "" {
		attrs = append(attrs, otellog.String("audit.user_id", event.UserID))
	}
	if event.SessionID != "" {
		attrs = append(attrs, otellog.String("audit.session_id", event.SessionID))
	}
	if event.IP != "" {
		attrs = append(attrs, otellog.String("audit.ip", event.IP))
	}
	if event.Error != "" {
		attrs = append(attrs, otellog.String("audit.error", event.Error))
	}
	for _, k := range event.metadataKeys() {
		attrs = append(attrs, otellog.String("audit.meta."+k, event.Metadata[k]))
	}
	rec.AddAttributes(attrs...)

	s.logger.Emit(ctx, rec)
}
