package model

// SenderCount is one row of the top-senders aggregate.
type SenderCount struct {
	From  string `db:"from_msisdn" json:"from"`
	Count int64  `db:"count" json:"count"`
}

// Stats is the /stats response body.
type Stats struct {
	TotalMessages     int64         `json:"total_messages"`
	SendersCount      int64         `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *string       `json:"first_message_ts"`
	LastMessageTS     *string       `json:"last_message_ts"`
}
