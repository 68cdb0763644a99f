package middleware

import (
	"math"
	"time"

	"github.com/jmehdipour/sms-ingest/internal/util"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	ctxRequestID   = "request_id"
	ctxAuditFields = "audit_fields"
)

// AuditFields is the pipeline-produced outcome metadata attached to the
// request's audit record.
type AuditFields struct {
	Result    string
	Dup       bool
	MessageID string
}

// SetAuditFields attaches outcome metadata for the audit record.
func SetAuditFields(c echo.Context, f AuditFields) {
	c.Set(ctxAuditFields, f)
}

// RequestIDFromCtx returns the correlation id assigned by Audit.
func RequestIDFromCtx(c echo.Context) string {
	id, _ := c.Get(ctxRequestID).(string)
	return id
}

// Audit emits exactly one structured record per request: correlation id,
// method, path, status, latency in ms (2 decimals), and any outcome fields
// the handler attached. Severity is INFO below 400, ERROR otherwise.
func Audit(log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			start := time.Now()
			reqID := util.NewID()
			c.Set(ctxRequestID, reqID)

			if err = next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			latency := math.Round(float64(time.Since(start))/float64(time.Millisecond)*100) / 100

			fields := []zap.Field{
				zap.String("request_id", reqID),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Float64("latency_ms", latency),
			}
			if af, ok := c.Get(ctxAuditFields).(AuditFields); ok {
				fields = append(fields,
					zap.String("result", af.Result),
					zap.Bool("dup", af.Dup),
					zap.String("message_id", af.MessageID),
				)
			}

			// The log sink must never take down the request.
			defer func() { _ = recover() }()
			if status >= 400 {
				log.Error("request", fields...)
			} else {
				log.Info("request", fields...)
			}
			return
		}
	}
}
