package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmehdipour/sms-ingest/internal/http/middleware"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func do(t *testing.T, h echo.HandlerFunc) (*observer.ObservedLogs, *httptest.ResponseRecorder) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)

	e := echo.New()
	e.Use(middleware.Audit(zap.New(core)))
	e.POST("/webhook", h)

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return logs, rec
}

func fieldMap(entry observer.LoggedEntry) map[string]any {
	m := make(map[string]any, len(entry.Context))
	for _, f := range entry.Context {
		switch f.Type {
		case zapcore.StringType:
			m[f.Key] = f.String
		case zapcore.Int64Type:
			m[f.Key] = f.Integer
		case zapcore.BoolType:
			m[f.Key] = f.Integer == 1
		case zapcore.Float64Type:
			m[f.Key] = f.Interface
		}
	}
	return m
}

func TestAudit_EmitsExactlyOneRecord(t *testing.T) {
	logs, rec := do(t, func(c echo.Context) error {
		middleware.SetAuditFields(c, middleware.AuditFields{
			Result: "created", Dup: false, MessageID: "m1",
		})
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, zap.InfoLevel, entry.Level)

	fields := fieldMap(entry)
	assert.NotEmpty(t, fields["request_id"])
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/webhook", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Contains(t, fields, "latency_ms")
	assert.Equal(t, "created", fields["result"])
	assert.Equal(t, false, fields["dup"])
	assert.Equal(t, "m1", fields["message_id"])
}

func TestAudit_ErrorSeverityFrom400(t *testing.T) {
	logs, rec := do(t, func(c echo.Context) error {
		middleware.SetAuditFields(c, middleware.AuditFields{Result: "invalid_signature"})
		return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "invalid_signature"})
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
}

func TestAudit_EmitsOnHandlerError(t *testing.T) {
	logs, rec := do(t, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "boom")
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, zap.ErrorLevel, entry.Level)
	fields := fieldMap(entry)
	// no outcome metadata attached: the record still carries request basics
	assert.NotContains(t, fields, "result")
	assert.Equal(t, int64(http.StatusInternalServerError), fields["status"])
}

// Audit registered outside Recover must still emit when the handler panics.
func TestAudit_EmitsOnPanic(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	e := echo.New()
	e.Use(middleware.Audit(zap.New(core)), echoMid.Recover())
	e.POST("/webhook", func(c echo.Context) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, zap.ErrorLevel, entry.Level)
	fields := fieldMap(entry)
	assert.NotEmpty(t, fields["request_id"])
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/webhook", fields["path"])
	assert.Equal(t, int64(http.StatusInternalServerError), fields["status"])
}

func TestAudit_FreshCorrelationIDPerRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(middleware.Audit(zap.New(core)))
	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, "ok")
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Equal(t, 2, logs.Len())
	first := fieldMap(logs.All()[0])["request_id"]
	second := fieldMap(logs.All()[1])["request_id"]
	assert.NotEqual(t, first, second)
}
