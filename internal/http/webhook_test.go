package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmehdipour/sms-ingest/internal/service/ingest"
	"github.com/jmehdipour/sms-ingest/internal/webhook"
	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "s3cr3t"

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newWebhookEcho(secret string, store *fakeStore) *echo.Echo {
	svc := ingest.New(webhook.NewVerifier(secret), store, nil, nil)
	e := echo.New()
	e.POST("/webhook", webhookHandler(svc))
	return e
}

func postWebhook(e *echo.Echo, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_CreatedThenReplay(t *testing.T) {
	store := newFakeStore()
	e := newWebhookEcho(webhookSecret, store)

	body := `{"message_id":"m1","from":"+1555","to":"+1666","ts":"2025-01-15T10:00:00Z"}`
	sig := sign(webhookSecret, []byte(body))

	rec := postWebhook(e, body, sig)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	// idempotent replay: same body, same signature, same observable outcome
	rec = postWebhook(e, body, sig)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	require.Len(t, store.rows, 1, "store must hold exactly one row for m1")
}

func TestWebhook_MissingSignatureHeader(t *testing.T) {
	e := newWebhookEcho(webhookSecret, newFakeStore())

	body := `{"message_id":"m1","from":"+1555","to":"+1666","ts":"2025-01-15T10:00:00Z"}`
	rec := postWebhook(e, body, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"invalid_signature"}`, rec.Body.String())
}

func TestWebhook_InvalidSignature(t *testing.T) {
	e := newWebhookEcho(webhookSecret, newFakeStore())

	body := `{"message_id":"m1","from":"+1555","to":"+1666","ts":"2025-01-15T10:00:00Z"}`
	rec := postWebhook(e, body, sign("not-the-secret", []byte(body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"invalid_signature"}`, rec.Body.String())
}

func TestWebhook_SecretNotConfigured(t *testing.T) {
	e := newWebhookEcho("", newFakeStore())

	body := `{"message_id":"m1","from":"+1555","to":"+1666","ts":"2025-01-15T10:00:00Z"}`
	rec := postWebhook(e, body, sign(webhookSecret, []byte(body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"webhook missing"}`, rec.Body.String())
}

func TestWebhook_ValidationError(t *testing.T) {
	store := newFakeStore()
	e := newWebhookEcho(webhookSecret, store)

	// ts without the Z suffix is rejected even though semantically UTC
	body := `{"message_id":"m1","from":"+1555","to":"+1666","ts":"2025-01-15T10:00:00+00:00"}`
	rec := postWebhook(e, body, sign(webhookSecret, []byte(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp["detail"])
	assert.Empty(t, store.rows)
}

func TestWebhook_StorageFailure(t *testing.T) {
	store := newFakeStore()
	store.failing = true
	e := newWebhookEcho(webhookSecret, store)

	body := `{"message_id":"m1","from":"+1555","to":"+1666","ts":"2025-01-15T10:00:00Z"}`
	rec := postWebhook(e, body, sign(webhookSecret, []byte(body)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, rec.Body.String())
}
