// Package store defines persistence for replay corpora. Implementations must
// provide identical semantics across backends: records come back in the
// order they were appended, and an unknown corpus is a not_found error.
package store

import (
	"context"
	"strings"

	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/replay"
)

// ErrCorpusNotFound is returned by ListRecords for a corpus with no records.
var ErrCorpusNotFound = errmodel.Storage(errmodel.CodeNotFound, "corpus not found", nil, nil)

// CorpusNotFound returns ErrCorpusNotFound annotated with the corpus name.
func CorpusNotFound(corpus string) error {
	return ErrCorpusNotFound.WithContext(map[string]any{"corpus": corpus})
}

// CheckAppend validates a corpus name and records before they are persisted.
func CheckAppend(corpus string, records []replay.Record) error {
	if strings.TrimSpace(corpus) == "" {
		return errmodel.Validation(errmodel.CodeInvalidArgument, "corpus name is required", nil)
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return errmodel.From(err).WithContext(map[string]any{"corpus": corpus, "record": i})
		}
	}
	return nil
}

// Document encodes a stored corpus in the exchange format accepted by
// replay.New.
func Document(ctx context.Context, st RecordStore, corpus string) ([]byte, error) {
	records, err := st.ListRecords(ctx, corpus)
	if err != nil {
		return nil, err
	}
	return replay.Encode(records)
}

// Import decodes an exchange document and appends it to corpus.
func Import(ctx context.Context, st RecordStore, corpus string, doc []byte) (int, error) {
	records, err := replay.Decode(doc)
	if err != nil {
		return 0, err
	}
	if err := st.AppendRecords(ctx, corpus, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// OpenBackend builds a replay backend over a stored corpus.
func OpenBackend(ctx context.Context, st RecordStore, corpus string, device hardware.Descriptor, opts ...replay.Option) (*replay.Backend, error) {
	records, err := st.ListRecords(ctx, corpus)
	if err != nil {
		return nil, err
	}
	return replay.NewFromRecords(records, device, opts...)
}
