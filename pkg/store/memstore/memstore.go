// Package memstore is an in-memory store.CorpusStore for tests and for
// single-process deployments that load corpora from files.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/store"
)

// Store keeps corpora in memory. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	corpora map[string][]replay.Record
}

var _ store.CorpusStore = (*Store)(nil)

// New returns an empty store.
func New() *Store { return &Store{corpora: make(map[string][]replay.Record)} }

func (s *Store) AppendRecords(_ context.Context, corpus string, records []replay.Record) error {
	if err := store.CheckAppend(corpus, records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r.Counts = r.Counts.Clone()
		s.corpora[corpus] = append(s.corpora[corpus], r)
	}
	return nil
}

func (s *Store) ListRecords(_ context.Context, corpus string) ([]replay.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs, ok := s.corpora[corpus]
	if !ok {
		return nil, store.CorpusNotFound(corpus)
	}
	out := make([]replay.Record, len(recs))
	for i, r := range recs {
		r.Counts = r.Counts.Clone()
		out[i] = r
	}
	return out, nil
}

func (s *Store) ListCorpora(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.corpora))
	for name := range s.corpora {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
