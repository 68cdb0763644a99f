package cmd

import (
	"fmt"
	"log"

	"github.com/jmehdipour/sms-ingest/internal/config"
	"github.com/jmehdipour/sms-ingest/internal/db"
	"github.com/jmehdipour/sms-ingest/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo messages...")

		if err := seedMessages(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

// seedMessages inserts deterministic demo messages (idempotent).
func seedMessages(dbx *sqlx.DB) error {
	msgs := []model.Message{
		{MessageID: "demo-001", FromMSISDN: "+15550001", ToMSISDN: "+15559001", TS: "2025-01-15T10:00:00Z", Text: strptr("hello")},
		{MessageID: "demo-002", FromMSISDN: "+15550001", ToMSISDN: "+15559002", TS: "2025-01-15T10:05:00Z", Text: strptr("are you there?")},
		{MessageID: "demo-003", FromMSISDN: "+15550002", ToMSISDN: "+15559001", TS: "2025-01-15T11:00:00Z", Text: nil},
		{MessageID: "demo-004", FromMSISDN: "+447700900123", ToMSISDN: "+15559003", TS: "2025-01-16T08:30:00Z", Text: strptr("weekly report attached")},
		{MessageID: "demo-005", FromMSISDN: "+15550001", ToMSISDN: "+15559001", TS: "2025-01-16T09:00:00Z", Text: strptr("ping")},
	}

	// idempotent: message_id is the primary key
	const q = `
INSERT IGNORE INTO messages (message_id, from_msisdn, to_msisdn, ts, text)
VALUES (?, ?, ?, ?, ?)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range msgs {
		if _, err := tx.Exec(q, m.MessageID, m.FromMSISDN, m.ToMSISDN, m.TS, m.Text); err != nil {
			return fmt.Errorf("insert message %q: %w", m.MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit messages: %w", err)
	}
	return nil
}

func strptr(s string) *string { return &s }
