package middleware

import (
	"golang-scheduled-task/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewRequestLogger writes one structured line per request and recovers
// handler panics.
func NewRequestLogger(log *logger.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency),
					zap.String("remote_ip", v.RemoteIP),
				}
				if v.Error != nil {
					log.Warn("HTTP request failed", append(fields, zap.Error(v.Error))...)
					return nil
				}
				log.Debug("HTTP request", fields...)
				return nil
			},
		}),
		middleware.Recover(),
	}
}
