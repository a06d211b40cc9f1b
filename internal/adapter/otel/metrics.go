package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "jirald"

// Metrics holds all jirald metric instruments.
type Metrics struct {
	RunsStarted   metric.Int64Counter
	RunsCompleted metric.Int64Counter
	RunsFailed    metric.Int64Counter
	EventsIgnored metric.Int64Counter
	ModelCalls    metric.Int64Counter
	RepliesPosted metric.Int64Counter
	RunDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("jirald.runs.started",
		metric.WithDescription("Number of pipeline runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("jirald.runs.completed",
		metric.WithDescription("Number of pipeline runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("jirald.runs.failed",
		metric.WithDescription("Number of pipeline runs failed"))
	if err != nil {
		return nil, err
	}

	m.EventsIgnored, err = meter.Int64Counter("jirald.events.ignored",
		metric.WithDescription("Number of webhook events that met no trigger condition"))
	if err != nil {
		return nil, err
	}

	m.ModelCalls, err = meter.Int64Counter("jirald.model.calls",
		metric.WithDescription("Number of model invocations"))
	if err != nil {
		return nil, err
	}

	m.RepliesPosted, err = meter.Int64Counter("jirald.replies.posted",
		metric.WithDescription("Number of PR reply comments posted"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("jirald.run.duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
