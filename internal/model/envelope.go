package model

// Envelope is the event published to Kafka for each created message,
// consumed by the archive worker.
type Envelope struct {
	MessageID  string  `json:"message_id"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	TS         string  `json:"ts"`
	Text       *string `json:"text"`
	ReceivedAt string  `json:"received_at"` // UTC ISO-8601, set at ingest time
}
