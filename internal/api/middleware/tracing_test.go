package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	mw "github.com/donaldgifford/surplus-ml/internal/api/middleware"
)

// Not parallel: swaps the global tracer provider.
func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	e := echo.New()
	e.Use(mw.Tracing())

	var spanCtx trace.SpanContext
	e.GET("/api/v1/users/:id/profile", func(c echo.Context) error {
		spanCtx = trace.SpanContextFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	e.POST("/api/v1/models/reload", func(c echo.Context) error {
		return c.NoContent(http.StatusInternalServerError)
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/7/profile", http.NoBody))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/models/reload", http.NoBody))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.True(t, spanCtx.IsValid(), "handler should see the server span")

	spans := recorder.Ended()
	require.Len(t, spans, 2, "probe paths are not traced")

	assert.Equal(t, "GET /api/v1/users/:id/profile", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.response.status_code", http.StatusOK))

	assert.Equal(t, "POST /api/v1/models/reload", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
