package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmehdipour/sms-ingest/internal/util"
)

const maxTextLen = 4096

// Payload is the parsed webhook body. `from`/`to` are wire aliases for
// the msisdn columns.
type Payload struct {
	MessageID  string  `json:"message_id"`
	FromMSISDN string  `json:"from"`
	ToMSISDN   string  `json:"to"`
	TS         string  `json:"ts"`
	Text       *string `json:"text"`
}

// FieldError names the failing field; the reason stays internal
// (audit log), callers only see a generic validation error.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// ParsePayload parses and structurally validates a raw webhook body.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, &FieldError{Field: "body", Reason: "invalid JSON"}
	}

	if p.MessageID == "" {
		return p, &FieldError{Field: "message_id", Reason: "required"}
	}
	if !util.ValidMSISDN(p.FromMSISDN) {
		return p, &FieldError{Field: "from", Reason: "must match +<digits>"}
	}
	if !util.ValidMSISDN(p.ToMSISDN) {
		return p, &FieldError{Field: "to", Reason: "must match +<digits>"}
	}
	if p.Text != nil && utf8.RuneCountInString(*p.Text) > maxTextLen {
		return p, &FieldError{Field: "text", Reason: "longer than 4096 characters"}
	}
	if err := validateTS(p.TS); err != nil {
		return p, err
	}

	return p, nil
}

// validateTS enforces the strict surface contract: the timestamp must end
// with a literal 'Z' (other UTC notations such as +00:00 are rejected) and,
// with the Z rewritten to +00:00, parse as ISO-8601.
func validateTS(ts string) error {
	if !strings.HasSuffix(ts, "Z") {
		return &FieldError{Field: "ts", Reason: "must end with 'Z' (UTC suffix)"}
	}
	normalized := strings.TrimSuffix(ts, "Z") + "+00:00"
	if _, err := time.Parse(time.RFC3339, normalized); err != nil {
		return &FieldError{Field: "ts", Reason: "invalid ISO-8601 format"}
	}
	return nil
}
