package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger writes one structured line per request.  5xx responses are
// logged at error level, 4xx at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.String("uri", req.RequestURI),
				zap.Int("status", res.Status),
				zap.Int64("bytes", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			lvl := zapcore.InfoLevel
			switch {
			case res.Status >= 500:
				lvl = zapcore.ErrorLevel
			case res.Status >= 400:
				lvl = zapcore.WarnLevel
			}
			if ce := log.Check(lvl, "http request"); ce != nil {
				ce.Write(fields...)
			}
			return nil
		}
	}
}
