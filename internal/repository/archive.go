package repository

import (
	"context"
	"strings"

	"github.com/jmehdipour/sms-ingest/internal/model"
	"github.com/jmoiron/sqlx"
)

// ArchiveRepository writes accepted webhook events into ClickHouse for
// long-term analytics. The MySQL messages table stays the source of truth.
type ArchiveRepository interface {
	InsertBatch(ctx context.Context, events []model.Envelope) error
}

type archiveRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewArchiveRepository(ch *sqlx.DB) ArchiveRepository {
	return &archiveRepository{ch: ch}
}

func (r *archiveRepository) InsertBatch(ctx context.Context, events []model.Envelope) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO ingest.messages_archive
		(message_id, from_msisdn, to_msisdn, ts, text, received_at) VALUES `)

	args := make([]any, 0, len(events)*6)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		text := ""
		if e.Text != nil {
			text = *e.Text
		}
		args = append(args, e.MessageID, e.From, e.To, e.TS, text, e.ReceivedAt)
	}

	_, err := r.ch.ExecContext(ctx, sb.String(), args...)
	return err
}
