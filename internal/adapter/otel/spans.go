package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "jirald"

// StartRunSpan starts a span for one pipeline run.
func StartRunSpan(ctx context.Context, runID, repo string, prNumber int, trigger string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("pr.repository", repo),
			attribute.Int("pr.number", prNumber),
			attribute.String("trigger.kind", trigger),
		),
	)
}

// StartStageSpan starts a child span for one pipeline stage.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline."+stage)
}
