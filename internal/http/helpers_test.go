package http

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jmehdipour/sms-ingest/internal/model"
	"github.com/jmehdipour/sms-ingest/internal/repository"
)

// fakeStore is an in-memory MessagesRepository with the same observable
// semantics as the MySQL implementation.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]model.Message
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]model.Message)}
}

var _ repository.MessagesRepository = (*fakeStore)(nil)

func (s *fakeStore) Insert(_ context.Context, m model.Message) (model.InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return model.OutcomeCreated, errors.New("storage down")
	}
	if _, ok := s.rows[m.MessageID]; ok {
		return model.OutcomeDuplicate, nil
	}
	s.rows[m.MessageID] = m
	return model.OutcomeCreated, nil
}

func (s *fakeStore) List(_ context.Context, f repository.ListFilter) ([]model.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, 0, errors.New("storage down")
	}

	var matched []model.Message
	for _, m := range s.rows {
		if f.From != "" && m.FromMSISDN != f.From {
			continue
		}
		if f.Since != "" && m.TS < f.Since {
			continue
		}
		if f.Q != "" && (m.Text == nil || !strings.Contains(*m.Text, f.Q)) {
			continue
		}
		matched = append(matched, m)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TS != matched[j].TS {
			return matched[i].TS < matched[j].TS
		}
		return matched[i].MessageID < matched[j].MessageID
	})

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []model.Message{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *fakeStore) Stats(context.Context) (model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return model.Stats{}, errors.New("storage down")
	}

	stats := model.Stats{MessagesPerSender: []model.SenderCount{}}
	counts := make(map[string]int64)
	for _, m := range s.rows {
		stats.TotalMessages++
		counts[m.FromMSISDN]++
		if stats.FirstMessageTS == nil || m.TS < *stats.FirstMessageTS {
			ts := m.TS
			stats.FirstMessageTS = &ts
		}
		if stats.LastMessageTS == nil || m.TS > *stats.LastMessageTS {
			ts := m.TS
			stats.LastMessageTS = &ts
		}
	}
	stats.SendersCount = int64(len(counts))
	for from, n := range counts {
		stats.MessagesPerSender = append(stats.MessagesPerSender, model.SenderCount{From: from, Count: n})
	}
	sort.Slice(stats.MessagesPerSender, func(i, j int) bool {
		return stats.MessagesPerSender[i].Count > stats.MessagesPerSender[j].Count
	})
	if len(stats.MessagesPerSender) > 10 {
		stats.MessagesPerSender = stats.MessagesPerSender[:10]
	}
	return stats, nil
}

func (s *fakeStore) Ready(context.Context) error {
	if s.failing {
		return errors.New("storage down")
	}
	return nil
}

func strptr(s string) *string { return &s }
