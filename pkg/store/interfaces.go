package store

import (
	"context"

	"github.com/wilhg/qreplay/pkg/replay"
)

// RecordStore appends and lists saved records per named corpus.
type RecordStore interface {
	// AppendRecords adds records to the end of corpus, creating it if needed.
	AppendRecords(ctx context.Context, corpus string, records []replay.Record) error
	// ListRecords returns the records of corpus in insertion order.
	ListRecords(ctx context.Context, corpus string) ([]replay.Record, error)
}

// CorpusStore aggregates record storage with corpus enumeration.
type CorpusStore interface {
	RecordStore
	ListCorpora(ctx context.Context) ([]string, error)
}
