// Package tracing はOpenTelemetryによるトレースの初期化と外部API呼び出しのスパン記録を提供する。
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName はこのアプリケーションが生成するスパンの計装名。
const instrumentationName = "github.com/hitoshi/setlister"

// Setup はOTLP/HTTPでスパンを送信するTracerProviderをグローバルに登録する。
// endpoint が空の場合は何も登録せず、何もしない終了関数を返す。
// 返却する終了関数は未送信のスパンをフラッシュする。
func Setup(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer はアプリケーション共通のTracerを返す。
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartUpstreamSpan は外部API呼び出しのクライアントスパンを開始する。
func StartUpstreamSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, service+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.service", service),
			attribute.String("upstream.operation", operation),
		),
	)
}

// EndUpstreamSpan は応答ステータスとエラーを記録してスパンを終了する。
// statusCode が0の場合は応答を受信できなかったことを表す。
func EndUpstreamSpan(span trace.Span, statusCode int, err error) {
	if statusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID はコンテキストのスパンのトレースIDを返す。記録中のスパンがない場合は空文字を返す。
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
