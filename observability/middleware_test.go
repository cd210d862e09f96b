package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware(t *testing.T) {
	t.Run("successful request records a span", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		handler := TracingMiddleware(tp.Tracer("test"))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ok"))
			}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "http.request", spans[0].Name())

		attrs := spanAttrs(spans[0])
		assert.Equal(t, "GET", attrs["http.method"].AsString())
		assert.Equal(t, "/v1/status", attrs["http.path"].AsString())
		assert.Equal(t, int64(http.StatusOK), attrs["http.status_code"].AsInt64())
		assert.NotContains(t, attrs, attribute.Key("error.type"))
	})

	t.Run("error responses carry the status", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		handler := TracingMiddleware(tp.Tracer("test"))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/agents/missing", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		attrs := spanAttrs(spans[0])
		assert.Equal(t, int64(http.StatusNotFound), attrs["http.status_code"].AsInt64())
		assert.Equal(t, "HTTP 404", attrs["error.type"].AsString())
	})
}
