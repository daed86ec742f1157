package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Headers checked in order for the real client address when behind a proxy
var clientIPHeaders = []string{"CF-Connecting-IP", fiber.HeaderXForwardedFor}

func statusLevel(code int) zerolog.Level {
	switch {
	case code >= fiber.StatusInternalServerError:
		return zerolog.ErrorLevel
	case code >= fiber.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func clientIP(c *fiber.Ctx) string {
	for _, header := range clientIPHeaders {
		if value := c.Get(header); value != "" {
			return value
		}
	}

	return c.IP()
}

// NewLogger tags every request with an X-Request-ID and logs it once the handler returns
func NewLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()

		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, requestID)

		err := c.Next()

		code := c.Response().StatusCode()
		var fiberError *fiber.Error
		if errors.As(err, &fiberError) {
			code = fiberError.Code
		}

		event := log.WithLevel(statusLevel(code)).
			Int("status", code).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("request-id", requestID).
			Str("ip", clientIP(c)).
			Dur("latency", time.Since(startTime)).
			Str("user-agent", c.Get(fiber.HeaderUserAgent))

		if err != nil {
			event.Err(err)
		}
		event.Msg("HTTP Request")

		return err
	}
}
