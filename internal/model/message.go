package model

// Message is the DB entity persisted in the messages table.
// `from`/`to` are the wire aliases for from_msisdn/to_msisdn.
type Message struct {
	MessageID  string  `db:"message_id" json:"message_id"`
	FromMSISDN string  `db:"from_msisdn" json:"from"`
	ToMSISDN   string  `db:"to_msisdn" json:"to"`
	TS         string  `db:"ts" json:"ts"`
	Text       *string `db:"text" json:"text"`
}

// InsertOutcome is the result of an idempotent insert.
type InsertOutcome int

const (
	OutcomeCreated InsertOutcome = iota
	OutcomeDuplicate
)

func (o InsertOutcome) String() string {
	if o == OutcomeDuplicate {
		return "duplicate"
	}
	return "created"
}
