package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const ctxError = "request_error"

// RecordError attaches err to the request so RequestLogger includes it in
// the access line.  Handlers use it for failures they render themselves.
func RecordError(c echo.Context, err error) {
	c.Set(ctxError, err)
}

// RequestLogger logs one line per request.  5xx responses log at error
// level, 4xx at warn, everything else at info.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler set the final status before we read it
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			fields := logrus.Fields{
				"method":     req.Method,
				"path":       c.Path(),
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"remote_ip":  c.RealIP(),
			}
			if id, ok := UserID(c); ok {
				fields["user_id"] = id
			}
			entry := log.WithFields(fields)
			if err != nil {
				entry = entry.WithError(err)
			} else if recorded, ok := c.Get(ctxError).(error); ok {
				entry = entry.WithError(recorded)
			}
			switch {
			case res.Status >= 500:
				entry.Error("request")
			case res.Status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return nil
		}
	}
}
