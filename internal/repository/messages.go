package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/sms-ingest/internal/model"
	"github.com/jmoiron/sqlx"
)

// mysqlDupEntry is the MySQL error number for a unique-key violation.
const mysqlDupEntry = 1062

// ListFilter narrows the /messages query. Zero values mean "no filter".
type ListFilter struct {
	From   string // exact from_msisdn match
	Since  string // ts >= Since (lexicographic, ts is stored as ...Z string)
	Q      string // substring match on text
	Limit  int
	Offset int
}

// MessagesRepository is the single source of truth for seen webhook events.
type MessagesRepository interface {
	// Insert persists m exactly once. A second insert with the same
	// message_id returns OutcomeDuplicate and leaves the original row
	// untouched. The primary key is the arbiter under concurrency: a
	// duplicate-key rejection on a racing insert is a duplicate, not an error.
	Insert(ctx context.Context, m model.Message) (model.InsertOutcome, error)
	List(ctx context.Context, f ListFilter) ([]model.Message, int64, error)
	Stats(ctx context.Context) (model.Stats, error)
	// Ready probes the messages table for the readiness endpoint.
	Ready(ctx context.Context) error
}

type MessagesRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessagesRepository(db *sqlx.DB) *MessagesRepositoryImpl {
	return &MessagesRepositoryImpl{db: db}
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

func (r *MessagesRepositoryImpl) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// Insert does a read-then-insert inside one transaction and treats a
// duplicate-key rejection as OutcomeDuplicate, so two concurrent deliveries
// of the same message_id can never both report created.
func (r *MessagesRepositoryImpl) Insert(ctx context.Context, m model.Message) (model.InsertOutcome, error) {
	outcome := model.OutcomeCreated

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		err := tx.GetContext(ctx, &exists,
			`SELECT 1 FROM messages WHERE message_id = ? LIMIT 1`, m.MessageID)
		if err == nil {
			outcome = model.OutcomeDuplicate
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		const q = `
			INSERT INTO messages (message_id, from_msisdn, to_msisdn, ts, text)
			VALUES (?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, q, m.MessageID, m.FromMSISDN, m.ToMSISDN, m.TS, m.Text)
		if isDupEntry(err) {
			outcome = model.OutcomeDuplicate
			return nil
		}
		return err
	})
	if err != nil {
		return model.OutcomeCreated, err
	}
	return outcome, nil
}

func isDupEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}

// buildListWhere renders the WHERE clause for List; kept separate so the
// count query always matches the data query.
func buildListWhere(f ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any

	if f.From != "" {
		where += " AND from_msisdn = ?"
		args = append(args, f.From)
	}
	if f.Since != "" {
		where += " AND ts >= ?"
		args = append(args, f.Since)
	}
	if f.Q != "" {
		where += " AND text LIKE ?"
		args = append(args, "%"+f.Q+"%")
	}
	return where, args
}

// List returns a page ordered by (ts, message_id) ascending plus the total
// match count ignoring pagination.
func (r *MessagesRepositoryImpl) List(ctx context.Context, f ListFilter) ([]model.Message, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where, args := buildListWhere(f)

	var total int64
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM messages"+where, args...); err != nil {
		return nil, 0, err
	}

	q := `SELECT message_id, from_msisdn, to_msisdn, ts, text FROM messages` +
		where + " ORDER BY ts ASC, message_id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows := make([]model.Message, 0, f.Limit)
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Stats computes the /stats aggregates in one round trip per figure.
func (r *MessagesRepositoryImpl) Stats(ctx context.Context) (model.Stats, error) {
	var s model.Stats

	if err := r.db.GetContext(ctx, &s.TotalMessages,
		`SELECT COUNT(*) FROM messages`); err != nil {
		return s, err
	}
	if err := r.db.GetContext(ctx, &s.SendersCount,
		`SELECT COUNT(DISTINCT from_msisdn) FROM messages`); err != nil {
		return s, err
	}

	s.MessagesPerSender = make([]model.SenderCount, 0, 10)
	const topQ = `
		SELECT from_msisdn, COUNT(*) AS count
		FROM messages
		GROUP BY from_msisdn
		ORDER BY count DESC
		LIMIT 10
	`
	if err := r.db.SelectContext(ctx, &s.MessagesPerSender, topQ); err != nil {
		return s, err
	}

	var first, last string
	err := r.db.GetContext(ctx, &first, `SELECT ts FROM messages ORDER BY ts ASC LIMIT 1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s, nil // empty table: first/last stay nil
	case err != nil:
		return s, err
	}
	if err := r.db.GetContext(ctx, &last,
		`SELECT ts FROM messages ORDER BY ts DESC LIMIT 1`); err != nil {
		return s, err
	}
	s.FirstMessageTS = &first
	s.LastMessageTS = &last
	return s, nil
}

func (r *MessagesRepositoryImpl) Ready(ctx context.Context) error {
	var one int
	err := r.db.GetContext(ctx, &one, `SELECT 1 FROM messages LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // table exists but is empty
	}
	return err
}
