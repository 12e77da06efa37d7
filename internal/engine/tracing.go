package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScope = "otto.engine"

	traceSpanRun       = "otto.run"
	traceSpanIteration = "otto.iteration"
	traceSpanOracle    = "otto.oracle.complete"
	traceSpanTool      = "otto.tool.execute"

	traceAttrTaskID    = "otto.task_id"
	traceAttrRunID     = "otto.run_id"
	traceAttrIteration = "otto.iteration"
	traceAttrPhase     = "otto.phase"
	traceAttrToolName  = "otto.tool_name"
	traceAttrModel     = "otto.oracle.model"
)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
