package setlistfm

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestClient_RecordsUpstreamSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleSearchResponse))
	})

	if _, err := c.SearchSetlists(context.Background(), "The Band", 1); err != nil {
		t.Fatalf("SearchSetlists error: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "setlistfm.search" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code != codes.Unset {
		t.Errorf("status = %v, want unset", span.Status().Code)
	}
	var status int64
	for _, kv := range span.Attributes() {
		if kv.Key == "http.response.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	if status != http.StatusOK {
		t.Errorf("http.response.status_code = %d, want 200", status)
	}
}
