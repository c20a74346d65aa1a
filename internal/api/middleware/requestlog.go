package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

type requestIDCtxKey struct{}

// RequestID returns the request ID stored by RequestLog, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// RequestLog returns Echo middleware that logs requests with structured
// fields. It generates a request ID if none is provided and propagates it
// through the response header, the echo context and the request context.
//
// Successful probe requests are logged once per process; failing probes are
// always logged.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	var (
		mu         sync.Mutex
		probesSeen = map[string]bool{}
	)

	quiet := func(path string, status int) bool {
		if _, ok := probePaths[path]; !ok || status >= 400 {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		if probesSeen[path] {
			return true
		}
		probesSeen[path] = true
		return false
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			c.Set(requestIDKey, reqID)
			c.Response().Header().Set(requestIDHeader, reqID)
			ctx := context.WithValue(c.Request().Context(), requestIDCtxKey{}, reqID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			path := c.Request().URL.Path
			status := c.Response().Status
			if quiet(path, status) {
				return err
			}

			log.LogAttrs(ctx, levelFor(path, status), "request",
				slog.String("method", c.Request().Method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", reqID),
			)

			return err
		}
	}
}

func levelFor(path string, status int) slog.Level {
	_, probe := probePaths[path]
	switch {
	case status >= 500 && !probe:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
