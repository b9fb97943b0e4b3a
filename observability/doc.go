// Package observability provides OpenTelemetry tracing and metrics for
// the ReLoom client.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("reloom-client"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanFeedLoad)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("reloom-client"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("reloom-client"))
//	metrics.RecordRequestEnd(ctx, "GET", "/designs", "ok", duration)
package observability
