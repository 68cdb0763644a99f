package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jmehdipour/sms-ingest/internal/metrics"
	"github.com/jmehdipour/sms-ingest/internal/model"
	"github.com/jmehdipour/sms-ingest/internal/repository"
	"github.com/jmehdipour/sms-ingest/internal/webhook"
	"go.uber.org/zap"
)

// Audit outcome tags. "webhook missing" and the coarse use of
// "validation_error" for storage failures are part of the wire/audit contract.
const (
	ResultCreated        = "created"
	ResultDuplicate      = "duplicate"
	ResultSecretMissing  = "webhook missing"
	ResultBadSignature   = "invalid_signature"
	ResultInvalidPayload = "validation_error"
)

// Publisher is the optional event sink for created messages.
type Publisher interface {
	Publish(ctx context.Context, key, payload []byte) error
}

// Result is the terminal state of one pipeline run. Status and Detail map to
// the HTTP response; Outcome, Dup and MessageID feed the audit record.
type Result struct {
	Status    int
	Detail    string // error responses: {"detail": Detail}; 200 responses: {"status":"ok"}
	Outcome   string
	Dup       bool
	MessageID string
}

// Service runs the ingestion pipeline: secret gate, signature, payload
// validation, idempotent insert. Gates are hard: nothing downstream of a
// failed gate executes.
type Service struct {
	verifier *webhook.Verifier
	store    repository.MessagesRepository
	producer Publisher // nil disables event publishing
	log      *zap.Logger
}

func New(verifier *webhook.Verifier, store repository.MessagesRepository, producer Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		verifier: verifier,
		store:    store,
		producer: producer,
		log:      log,
	}
}

// Ingest processes one webhook delivery.
func (s *Service) Ingest(ctx context.Context, body []byte, signature string) Result {
	// message_id is surfaced in the audit record even on rejection paths,
	// when the body is parseable enough to carry one.
	msgID := peekMessageID(body)

	if !s.verifier.SecretSet() {
		s.log.Error("missing webhook secret")
		return s.reject(http.StatusUnauthorized, ResultSecretMissing, ResultSecretMissing, msgID)
	}
	if signature == "" {
		s.log.Error("missing X-Signature header")
		return s.reject(http.StatusUnauthorized, ResultBadSignature, ResultBadSignature, msgID)
	}
	if err := s.verifier.Verify(body, signature); err != nil {
		s.log.Error("invalid HMAC signature")
		return s.reject(http.StatusUnauthorized, ResultBadSignature, ResultBadSignature, msgID)
	}

	payload, err := webhook.ParsePayload(body)
	if err != nil {
		var fe *webhook.FieldError
		if errors.As(err, &fe) {
			s.log.Error("payload validation failed",
				zap.String("field", fe.Field), zap.String("reason", fe.Reason))
		}
		return s.reject(http.StatusUnprocessableEntity, ResultInvalidPayload, ResultInvalidPayload, msgID)
	}
	msgID = payload.MessageID

	outcome, err := s.store.Insert(ctx, model.Message{
		MessageID:  payload.MessageID,
		FromMSISDN: payload.FromMSISDN,
		ToMSISDN:   payload.ToMSISDN,
		TS:         payload.TS,
		Text:       payload.Text,
	})
	if err != nil {
		s.log.Error("message insert failed", zap.String("message_id", msgID), zap.Error(err))
		metrics.WebhookTotal.WithLabelValues("storage_error").Inc()
		// Coarse tag: storage failures share the validation_error audit tag.
		return Result{
			Status:    http.StatusInternalServerError,
			Detail:    "Internal server error",
			Outcome:   ResultInvalidPayload,
			MessageID: msgID,
		}
	}

	res := Result{
		Status:    http.StatusOK,
		Outcome:   outcome.String(),
		Dup:       outcome == model.OutcomeDuplicate,
		MessageID: msgID,
	}
	metrics.WebhookTotal.WithLabelValues(res.Outcome).Inc()

	if outcome == model.OutcomeCreated {
		s.publish(ctx, payload)
	}
	return res
}

func (s *Service) reject(status int, detail, outcome, msgID string) Result {
	metrics.WebhookTotal.WithLabelValues(outcome).Inc()
	return Result{Status: status, Detail: detail, Outcome: outcome, MessageID: msgID}
}

// publish emits the created event for the archive worker. Best-effort: a
// publish failure never fails the request.
func (s *Service) publish(ctx context.Context, p webhook.Payload) {
	if s.producer == nil {
		return
	}
	env := model.Envelope{
		MessageID:  p.MessageID,
		From:       p.FromMSISDN,
		To:         p.ToMSISDN,
		TS:         p.TS,
		Text:       p.Text,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		s.log.Warn("marshal envelope", zap.Error(err))
		return
	}
	if err := s.producer.Publish(ctx, []byte(p.MessageID), payload); err != nil {
		s.log.Warn("publish created event", zap.String("message_id", p.MessageID), zap.Error(err))
	}
}

func peekMessageID(body []byte) string {
	var probe struct {
		MessageID string `json:"message_id"`
	}
	_ = json.Unmarshal(body, &probe)
	return probe.MessageID
}
