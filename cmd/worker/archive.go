package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/sms-ingest/internal/config"
	"github.com/jmehdipour/sms-ingest/internal/db"
	"github.com/jmehdipour/sms-ingest/internal/kafka"
	"github.com/jmehdipour/sms-ingest/internal/logger"
	"github.com/jmehdipour/sms-ingest/internal/metrics"
	"github.com/jmehdipour/sms-ingest/internal/repository"
	"github.com/jmehdipour/sms-ingest/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Run archive worker (Kafka -> ClickHouse)",
	RunE:  runArchive,
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Log.Level)
	log := logger.Log

	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

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

	archiveRepo := repository.NewArchiveRepository(chDB)

	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "ingest-archiver"
	}
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewArchiver(consumer, archiveRepo, log)

	// tune knobs
	if cfg.Archiver.Workers > 0 {
		w.Workers = cfg.Archiver.Workers
	}
	if cfg.Archiver.BatchSize > 0 {
		w.BatchSize = cfg.Archiver.BatchSize
	}
	if cfg.Archiver.BatchWait > 0 {
		w.BatchWait = cfg.Archiver.BatchWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(">> archiver started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", groupID),
		zap.Int("workers", w.Workers),
		zap.Int("batchSize", w.BatchSize),
		zap.Duration("batchWait", w.BatchWait),
	)

	return w.Run(ctx)
}
