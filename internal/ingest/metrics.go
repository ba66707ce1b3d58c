package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/ralt/pkgfeed/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ralt/pkgfeed/internal/ingest"

type metrics struct {
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// newMetrics registers the pipeline instruments on the global meter
// provider. Instruments that fail to register are left nil.
func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	m := &metrics{}

	var err error
	m.outcomes, err = meter.Int64Counter("pkgfeed.ingest.outcomes",
		metric.WithDescription("Ingestion attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		logrus.Debugf("Failed to create outcome counter: %v", err)
	}

	m.duration, err = meter.Float64Histogram("pkgfeed.ingest.duration",
		metric.WithDescription("Ingestion attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logrus.Debugf("Failed to create duration histogram: %v", err)
	}
	return m
}

func (m *metrics) record(ctx context.Context, outcome models.Outcome, err error, d time.Duration) {
	attrs := []attribute.KeyValue{attribute.String("result", result(outcome, err))}

	// the caller's context may already be cancelled
	ctx = context.WithoutCancel(ctx)
	if m.outcomes != nil {
		m.outcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	}
}

// result names an outcome, or the failing stage of a fatal fault
func result(outcome models.Outcome, err error) string {
	if err == nil {
		return outcome.String()
	}
	var ingestErr *models.IngestError
	if errors.As(err, &ingestErr) {
		return "Fatal" + ingestErr.Stage.String()
	}
	return "Fatal"
}
