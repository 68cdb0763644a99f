package http

import (
	"io"
	"net/http"

	"github.com/jmehdipour/sms-ingest/internal/http/middleware"
	"github.com/jmehdipour/sms-ingest/internal/service/ingest"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const signatureHeader = "X-Signature"

// webhookHandler reads the raw body (the signature covers exact bytes),
// runs the ingestion pipeline, and maps its result onto the wire contract.
func webhookHandler(svc *ingest.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			log.Errorf("read webhook body: %v", err)
			middleware.SetAuditFields(c, middleware.AuditFields{Result: ingest.ResultInvalidPayload})
			return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
		}

		res := svc.Ingest(c.Request().Context(), body, c.Request().Header.Get(signatureHeader))

		middleware.SetAuditFields(c, middleware.AuditFields{
			Result:    res.Outcome,
			Dup:       res.Dup,
			MessageID: res.MessageID,
		})

		if res.Status == http.StatusOK {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
		return c.JSON(res.Status, map[string]string{"detail": res.Detail})
	}
}
