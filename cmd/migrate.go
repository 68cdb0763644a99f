package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmehdipour/sms-ingest/internal/config"
	"github.com/jmehdipour/sms-ingest/internal/db"
	"github.com/spf13/cobra"
)

var withClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: CREATE tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		opts := db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		}
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, opts)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		sqlBytes, err := os.ReadFile(mysqlMigrationPath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", mysqlMigrationPath, err)
		}

		if _, err := sqlDB.Exec(string(sqlBytes)); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}

		fmt.Println(">> MySQL migration complete ✅")

		if withClickHouse {
			if err := migrateClickHouse(cfg); err != nil {
				return err
			}
			fmt.Println(">> ClickHouse migration complete ✅")
		}
		return nil
	},
}

var (
	mysqlMigrationPath      = filepath.Join("migrations", "001_init.sql")
	clickhouseMigrationPath = filepath.Join("migrations", "clickhouse_001_init.sql")
)

func init() {
	migrateCmd.Flags().BoolVar(&withClickHouse, "with-clickhouse", false,
		"also create the ClickHouse archive table used by `worker archive`")
}

// migrateClickHouse creates the archive database and table.
func migrateClickHouse(cfg config.Config) error {
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer func() { _ = chDB.Close() }()

	if _, err := chDB.Exec(`CREATE DATABASE IF NOT EXISTS ingest`); err != nil {
		return fmt.Errorf("create clickhouse database: %w", err)
	}

	sqlBytes, err := os.ReadFile(clickhouseMigrationPath)
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", clickhouseMigrationPath, err)
	}
	if _, err := chDB.Exec(string(sqlBytes)); err != nil {
		return fmt.Errorf("exec clickhouse migration: %w", err)
	}
	return nil
}
