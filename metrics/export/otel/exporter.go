package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authgate.MetricsSnapshot
	AuditDropped() uint64
}

type counterInstrument struct {
	id  authgate.MetricID
	obs metric.Int64ObservableCounter
}

// histogramInstruments mirrors one engine histogram as gauges: one per
// cumulative bucket, plus count and sum.
type histogramInstruments struct {
	id      authgate.MetricID
	buckets [internaldefs.BucketCount]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// Exporter observes engine metrics through OpenTelemetry asynchronous
// instruments, read from a fresh snapshot on each collection.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []counterInstrument
	histograms   []histogramInstruments
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter reading from engine.
func NewExporter(meter metric.Meter, engine *authgate.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		obs, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, obs: obs})
		observables = append(observables, obs)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, obs, err := newHistogramInstruments(meter, def)
		if err != nil {
			return nil, err
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, obs...)
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func newHistogramInstruments(meter metric.Meter, def internaldefs.HistogramDef) (histogramInstruments, []metric.Observable, error) {
	h := histogramInstruments{id: def.ID}
	obs := make([]metric.Observable, 0, internaldefs.BucketCount+2)

	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return h, nil, fmt.Errorf("gauge %s: %w", name, err)
		}
		h.buckets[i] = g
		obs = append(obs, g)
	}

	count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram sample count."))
	if err != nil {
		return h, nil, fmt.Errorf("gauge %s_count: %w", def.Name, err)
	}
	sum, err := meter.Float64ObservableGauge(def.Name+"_sum",
		metric.WithDescription("Histogram sample sum."), metric.WithUnit("s"))
	if err != nil {
		return h, nil, fmt.Errorf("gauge %s_sum: %w", def.Name, err)
	}
	h.count, h.sum = count, sum
	return h, append(obs, count, sum), nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		// engine metrics disabled
		return nil
	}
	for _, c := range e.counters {
		o.ObserveInt64(c.obs, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		hs, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(hs)
		for i, n := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(n))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(h.sum, hs.Sum.Seconds())
	}
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
