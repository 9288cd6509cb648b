// Package storetest holds the behaviour every store.CorpusStore must share.
// Backends run it from their own tests so SQLite, Postgres, Redis and memory
// stay interchangeable.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/qreplay/pkg/circuit"
	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/sampling"
	"github.com/wilhg/qreplay/pkg/store"
)

// Record builds a valid record whose counts are split between all-zeros and
// all-ones.
func Record(circuitStr string, shots int) replay.Record {
	zeros := shots / 2
	return replay.Record{
		CircuitStr: circuitStr,
		Shots:      shots,
		Counts:     sampling.Counts{"00": zeros, "11": shots - zeros},
	}
}

// Run exercises st. Corpus names are prefixed with prefix so several runs
// can share one database.
func Run(t *testing.T, prefix string, st store.CorpusStore) {
	t.Helper()
	ctx := context.Background()
	name := func(s string) string { return prefix + s }

	t.Run("UnknownCorpus", func(t *testing.T) {
		_, err := st.ListRecords(ctx, name("missing"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrCorpusNotFound), "got %v", err)
	})

	t.Run("AppendPreservesOrder", func(t *testing.T) {
		c := name("ordered")
		require.NoError(t, st.AppendRecords(ctx, c, []replay.Record{Record("a", 10), Record("b", 20)}))
		require.NoError(t, st.AppendRecords(ctx, c, []replay.Record{Record("a", 10)}))

		got, err := st.ListRecords(ctx, c)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "a", got[0].CircuitStr)
		assert.Equal(t, "b", got[1].CircuitStr)
		assert.Equal(t, 20, got[1].Shots)
		assert.Equal(t, sampling.Counts{"00": 10, "11": 10}, got[1].Counts)
		assert.Equal(t, "a", got[2].CircuitStr)
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		err := st.AppendRecords(ctx, "", []replay.Record{Record("a", 10)})
		assert.True(t, errmodel.HasCode(err, errmodel.CodeInvalidArgument), "empty corpus name: %v", err)

		bad := Record("a", 10)
		bad.Shots = 11
		err = st.AppendRecords(ctx, name("bad"), []replay.Record{Record("a", 10), bad})
		require.Error(t, err)
		_, err = st.ListRecords(ctx, name("bad"))
		assert.True(t, errors.Is(err, store.ErrCorpusNotFound), "partial append persisted: %v", err)
	})

	t.Run("ListCorpora", func(t *testing.T) {
		require.NoError(t, st.AppendRecords(ctx, name("z"), []replay.Record{Record("z", 2)}))
		require.NoError(t, st.AppendRecords(ctx, name("y"), []replay.Record{Record("y", 2)}))
		names, err := st.ListCorpora(ctx)
		require.NoError(t, err)
		assert.Subset(t, names, []string{name("y"), name("z")})
		assert.IsNonDecreasing(t, names)
	})

	t.Run("DocumentFeedsReplay", func(t *testing.T) {
		c := name("replay")
		require.NoError(t, st.AppendRecords(ctx, c, []replay.Record{Record("H", 8)}))
		doc, err := store.Document(ctx, st, c)
		require.NoError(t, err)

		conv := func(cc circuit.Circuit, _ circuit.Transpiler) (string, error) { return cc.Gates[0].Name, nil }
		b, err := replay.New(doc, hardware.V2("sim"), replay.WithConverter(conv))
		require.NoError(t, err)
		job, err := b.Sample(ctx, circuit.New(1).Add("H", 0), 8)
		require.NoError(t, err)
		res, err := job.Result(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, res.Counts().Total())

		b2, err := store.OpenBackend(ctx, st, c, hardware.V2("sim"), replay.WithConverter(conv))
		require.NoError(t, err)
		assert.Len(t, b2.Keys(), 1)
	})
}
