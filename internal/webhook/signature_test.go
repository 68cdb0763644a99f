package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/jmehdipour/sms-ingest/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifier_ValidSignature(t *testing.T) {
	body := []byte(`{"message_id":"m1"}`)
	v := webhook.NewVerifier("s3cr3t")

	err := v.Verify(body, sign("s3cr3t", body))
	require.NoError(t, err)
}

func TestVerifier_TamperedBody(t *testing.T) {
	body := []byte(`{"message_id":"m1"}`)
	v := webhook.NewVerifier("s3cr3t")
	sig := sign("s3cr3t", body)

	// altering a single byte after signing must invalidate the signature
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = '2'

	err := v.Verify(tampered, sig)
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
}

func TestVerifier_WrongSecret(t *testing.T) {
	body := []byte(`{"message_id":"m1"}`)
	v := webhook.NewVerifier("s3cr3t")

	err := v.Verify(body, sign("other", body))
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
}

func TestVerifier_MissingSignature(t *testing.T) {
	v := webhook.NewVerifier("s3cr3t")

	err := v.Verify([]byte(`{}`), "")
	assert.ErrorIs(t, err, webhook.ErrMissingSignature)
}

func TestVerifier_SecretUnset(t *testing.T) {
	v := webhook.NewVerifier("")

	assert.False(t, v.SecretSet())
	err := v.Verify([]byte(`{}`), sign("anything", []byte(`{}`)))
	assert.ErrorIs(t, err, webhook.ErrSecretUnset)
}

func TestVerifier_MalformedSignatureDoesNotPanic(t *testing.T) {
	v := webhook.NewVerifier("s3cr3t")

	err := v.Verify([]byte(`{}`), "not-hex-and-wrong-length")
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
}
