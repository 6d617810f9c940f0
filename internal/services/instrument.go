package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/lecture-discussions/internal/observability"
)

var tracer = observability.Tracer("services")

var discussionActions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "discussion_actions_total",
		Help: "Discussion service operations by action and outcome.",
	},
	[]string{"action", "outcome"},
)

func init() {
	prometheus.MustRegister(discussionActions)
}

// startOp opens a span for op. The returned finish func records err on the
// span and bumps the action counter; call it exactly once.
func startOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		res := outcome(err)
		if err != nil {
			span.RecordError(err)
			if res == "error" {
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.SetAttributes(attribute.String("outcome", res))
		discussionActions.WithLabelValues(op, res).Inc()
		span.End()
	}
}
