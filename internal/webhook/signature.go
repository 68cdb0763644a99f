package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrSecretUnset      = errors.New("webhook secret not configured")
	ErrMissingSignature = errors.New("signature header missing")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verifier authenticates raw webhook bodies against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a signature verifier. An empty secret is a valid
// (always-rejecting) state; readiness checks surface it separately.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// SecretSet reports whether a non-empty secret is configured.
func (v *Verifier) SecretSet() bool {
	return len(v.secret) > 0
}

// Verify checks the hex-encoded HMAC-SHA256 of body against signature.
// The comparison is constant time. Absence of a valid signature is a
// negative outcome, never a panic.
func (v *Verifier) Verify(body []byte, signature string) error {
	if !v.SecretSet() {
		return ErrSecretUnset
	}
	if signature == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
