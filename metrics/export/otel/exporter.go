package otel

import (
	"context"
	"errors"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goIdentity.MetricsSnapshot
	AuditDropped() uint64
}

// areaEvent is one counter observed on its area's instrument.
type areaEvent struct {
	id    goIdentity.MetricID
	attrs metric.ObserveOption
}

type areaCounter struct {
	instrument metric.Int64ObservableCounter
	events     []areaEvent
}

// OTelExporter publishes Manager metrics as observable instruments read on
// each collection: one counter per credential area with an event attribute,
// a cumulative latency gauge keyed by le, and the audit drop counter.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	areas        []areaCounter
	latency      metric.Int64ObservableGauge
	latencyLE    [internaldefs.BucketCount]metric.ObserveOption
	latencyCount metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that read from m.
func NewOTelExporter(meter metric.Meter, m *goIdentity.Manager) (*OTelExporter, error) {
	if m == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, m)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	observables := make([]metric.Observable, 0, len(internaldefs.Areas)+3)

	for _, area := range internaldefs.Areas {
		ins, err := meter.Int64ObservableCounter(area.Area.Instrument(),
			metric.WithDescription(area.Help), metric.WithUnit("{event}"))
		if err != nil {
			return nil, fmt.Errorf("create %s counter: %w", area.Area, err)
		}
		ac := areaCounter{instrument: ins}
		for _, def := range internaldefs.CountersIn(area.Area) {
			ac.events = append(ac.events, areaEvent{
				id:    def.ID,
				attrs: metric.WithAttributes(attribute.String(internaldefs.EventLabel, def.Event)),
			})
		}
		e.areas = append(e.areas, ac)
		observables = append(observables, ins)
	}

	lat := internaldefs.HashLatency
	var err error
	e.latency, err = meter.Int64ObservableGauge(lat.Instrument+".bucket",
		metric.WithDescription(lat.Help+" Cumulative samples at or below le seconds."))
	if err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	for i, le := range internaldefs.HistogramBounds {
		e.latencyLE[i] = metric.WithAttributes(attribute.String("le", le))
	}
	e.latencyCount, err = meter.Int64ObservableGauge(lat.Instrument+".count",
		metric.WithDescription("Password hash latency samples."))
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedInstrument,
		metric.WithDescription(internaldefs.AuditDroppedHelp), metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.latency, e.latencyCount, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, ac := range e.areas {
		for _, ev := range ac.events {
			o.ObserveInt64(ac.instrument, int64(snapshot.Counters[ev.id]), ev.attrs)
		}
	}

	buckets := internaldefs.CumulativeBuckets(snapshot.Histograms[internaldefs.HashLatency.ID])
	for i := range buckets {
		o.ObserveInt64(e.latency, int64(buckets[i]), e.latencyLE[i])
	}
	o.ObserveInt64(e.latencyCount, int64(buckets[internaldefs.BucketCount-1]))
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
