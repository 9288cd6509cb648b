// Package redisstore keeps each corpus as a Redis list of exchange-format
// records, plus a set of corpus names.
package redisstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/store"
)

const defaultPrefix = "qreplay"

// Store implements store.CorpusStore on Redis.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ store.CorpusStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key under prefix. Defaults to "qreplay".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New wraps an existing client.
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to addr and pings it.
func Open(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(rdb, opts...), nil
}

// Close closes the client.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) corpusKey(corpus string) string { return s.prefix + ":corpus:" + corpus }
func (s *Store) indexKey() string { return s.prefix + ":corpora" }

// AppendRecords pushes records and registers the corpus in one MULTI block.
func (s *Store) AppendRecords(ctx context.Context, corpus string, records []replay.Record) error {
	if err := store.CheckAppend(corpus, records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	values := make([]any, 0, len(records))
	for _, r := range records {
		b, err := replay.MarshalRecord(r)
		if err != nil {
			return storageErr("encode record", corpus, err)
		}
		values = append(values, b)
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.corpusKey(corpus), values...)
		pipe.SAdd(ctx, s.indexKey(), corpus)
		return nil
	})
	if err != nil {
		return storageErr("rpush", corpus, err)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, corpus string) ([]replay.Record, error) {
	raw, err := s.rdb.LRange(ctx, s.corpusKey(corpus), 0, -1).Result()
	if err != nil {
		return nil, storageErr("lrange", corpus, err)
	}
	if len(raw) == 0 {
		return nil, store.CorpusNotFound(corpus)
	}
	out := make([]replay.Record, 0, len(raw))
	for i, item := range raw {
		r, err := replay.UnmarshalRecord([]byte(item))
		if err != nil {
			return nil, errmodel.From(err).WithContext(map[string]any{"corpus": corpus, "record": i})
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) ListCorpora(ctx context.Context) ([]string, error) {
	names, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, storageErr("smembers", "", err)
	}
	sort.Strings(names)
	return names, nil
}

func storageErr(op, corpus string, err error) error {
	ctx := map[string]any{"op": op}
	if corpus != "" {
		ctx["corpus"] = corpus
	}
	return errmodel.Storage(errmodel.CodeInternal, "corpus storage failed", ctx, err)
}
