package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jmehdipour/sms-ingest/internal/kafka"
	"github.com/jmehdipour/sms-ingest/internal/metrics"
	"github.com/jmehdipour/sms-ingest/internal/model"
	"github.com/jmehdipour/sms-ingest/internal/repository"
	"go.uber.org/zap"
)

// MessageSource is the consumer side of the event stream.
// *kafka.Consumer satisfies it.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Archiver:
// - fetches created-message events from Kafka,
// - batches them by size/time,
// - writes batches into ClickHouse.
//
// Delivery is at-least-once; the archive table is a ReplacingMergeTree keyed
// by message_id, so replays collapse.
type Archiver struct {
	Consumer MessageSource
	Archive  repository.ArchiveRepository

	Workers   int           // goroutines decoding events
	BatchSize int           // max buffered events per flush
	BatchWait time.Duration // max time to wait before flush

	Log *zap.Logger
}

// NewArchiver builds a worker with sane defaults.
func NewArchiver(consumer MessageSource, archive repository.ArchiveRepository, log *zap.Logger) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{
		Consumer:  consumer,
		Archive:   archive,
		Workers:   8,
		BatchSize: 500,
		BatchWait: 500 * time.Millisecond,
		Log:       log,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
//
// Shutdown order matters: offsets are committed as soon as an event is
// handed to the batch writer, so the writer must outlive the processors
// and drain everything they buffered. Processors are waited for first,
// then the events channel is closed, and only channel close (never ctx)
// terminates the writer.
func (w *Archiver) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 8
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 500 * time.Millisecond
	}

	events := make(chan model.Envelope, w.BatchSize*2)
	writerDone := make(chan struct{})
	go func() {
		w.runBatchWriter(events)
		close(writerDone)
	}()

	msgCh := make(chan kafka.Message, w.Workers*2)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				m, err := w.Consumer.Fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					w.Log.Warn("kafka fetch", zap.Error(err))
					time.Sleep(200 * time.Millisecond)
					continue
				}
				msgCh <- m
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runProcessor(ctx, msgCh, events)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	close(events)
	<-writerDone
	return nil
}

func (w *Archiver) runProcessor(ctx context.Context, in <-chan kafka.Message, out chan<- model.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.processOne(ctx, m, out)
		}
	}
}

func (w *Archiver) processOne(ctx context.Context, m kafka.Message, out chan<- model.Envelope) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.MessageID == "" {
		_ = w.Consumer.Commit(ctx, m) // poison -> commit, skip
		if err != nil {
			w.Log.Warn("bad envelope json", zap.Error(err))
		} else {
			w.Log.Warn("envelope missing message_id")
		}
		return
	}

	out <- env

	// Commit only after the event is in the writer's hands (at-least-once;
	// the archive table dedupes on merge).
	if err := w.Consumer.Commit(ctx, m); err != nil {
		w.Log.Warn("kafka commit", zap.Error(err))
	}
}

// runBatchWriter does size/time-based flush of archive inserts. It runs
// until in is closed, draining and flushing whatever remains.
func (w *Archiver) runBatchWriter(in <-chan model.Envelope) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	batch := make([]model.Envelope, 0, w.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := w.Archive.InsertBatch(fctx, batch); err != nil {
			w.Log.Error("archive insert batch", zap.Int("size", len(batch)), zap.Error(err))
		} else {
			metrics.ArchivedTotal.Add(float64(len(batch)))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case <-tick.C:
			flush()
		case e, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= w.BatchSize {
				flush()
			}
		}
	}
}
