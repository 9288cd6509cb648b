package recorder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/qreplay/pkg/circuit"
	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/sampling"
	"github.com/wilhg/qreplay/pkg/store/memstore"
)

// physicalOnes reports every shot as qubit 0 measured 1 on a 2-qubit device.
var physicalOnes = ExecutorFunc(func(_ context.Context, _ string, n int) (sampling.Counts, error) {
	return sampling.Counts{"01": n}, nil
})

func bell() circuit.Circuit {
	return circuit.New(2).Add("h", 0).AddControlled("cx", 0, 1)
}

func TestRecordThenReplay(t *testing.T) {
	ctx := context.Background()
	dev := hardware.V1("dev", 100)
	rec, err := New(physicalOnes, dev)
	require.NoError(t, err)

	job, err := rec.Sample(ctx, bell(), 150)
	require.NoError(t, err)
	res, err := job.Result(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampling.Counts{"01": 150}, res.Counts())

	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 100, records[0].Shots)
	assert.Equal(t, 50, records[1].Shots)

	doc, err := rec.Document()
	require.NoError(t, err)
	rb, err := replay.New(doc, dev)
	require.NoError(t, err)

	replayed, err := rb.Sample(ctx, bell(), 150)
	require.NoError(t, err)
	rres, err := replayed.Result(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Counts(), rres.Counts())

	_, err = rb.Sample(ctx, bell(), 150)
	assert.True(t, errors.Is(err, replay.ErrReplayExhausted))
}

func TestQubitMappingKeepsPhysicalRecords(t *testing.T) {
	ctx := context.Background()
	m, err := sampling.NewQubitMapping(map[int]int{0: 1, 1: 0})
	require.NoError(t, err)
	rec, err := New(physicalOnes, hardware.V2("dev"), WithQubitMapping(m))
	require.NoError(t, err)

	job, err := rec.Sample(ctx, bell(), 10)
	require.NoError(t, err)
	res, err := job.Result(ctx)
	require.NoError(t, err)
	// physical qubit 0 is logical qubit 1
	assert.Equal(t, sampling.Counts{"10": 10}, res.Counts())
	assert.Equal(t, sampling.Counts{"01": 10}, rec.Records()[0].Counts)

	rb, err := replay.NewFromRecords(rec.Records(), hardware.V2("dev"), replay.WithQubitMapping(m))
	require.NoError(t, err)
	replayed, err := rb.Sample(ctx, bell(), 10)
	require.NoError(t, err)
	rres, _ := replayed.Result(ctx)
	assert.Equal(t, res.Counts(), rres.Counts())
}

func TestSinkPersistsRecords(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	rec, err := New(physicalOnes, hardware.V2("dev"), WithSink(st, "captured"))
	require.NoError(t, err)

	_, err = rec.Sample(ctx, bell(), 4)
	require.NoError(t, err)
	stored, err := st.ListRecords(ctx, "captured")
	require.NoError(t, err)
	assert.Equal(t, rec.Records(), stored)
}

func TestFailedChunkKeepsCompletedChunks(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("device offline")
	calls := 0
	flaky := ExecutorFunc(func(_ context.Context, _ string, n int) (sampling.Counts, error) {
		calls++
		if calls == 3 {
			return nil, boom
		}
		return sampling.Counts{"01": n}, nil
	})
	st := memstore.New()
	rec, err := New(flaky, hardware.V1("dev", 10), WithSink(st, "partial"))
	require.NoError(t, err)

	job, err := rec.Sample(ctx, bell(), 35)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, boom)

	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, []int{10, 10}, []int{records[0].Shots, records[1].Shots})
	stored, err := st.ListRecords(ctx, "partial")
	require.NoError(t, err)
	assert.Equal(t, records, stored)
}

func TestSampleErrors(t *testing.T) {
	ctx := context.Background()

	rec, err := New(physicalOnes, hardware.V2("dev"))
	require.NoError(t, err)
	_, err = rec.Sample(ctx, bell(), 0)
	assert.True(t, errors.Is(err, replay.ErrInvalidShots))

	short := ExecutorFunc(func(_ context.Context, _ string, n int) (sampling.Counts, error) {
		return sampling.Counts{"00": n - 1}, nil
	})
	rec, err = New(short, hardware.V2("dev"))
	require.NoError(t, err)
	_, err = rec.Sample(ctx, bell(), 5)
	require.Error(t, err)
	assert.Empty(t, rec.Records())

	boom := errors.New("device offline")
	failing := ExecutorFunc(func(context.Context, string, int) (sampling.Counts, error) { return nil, boom })
	rec, err = New(failing, hardware.V2("dev"))
	require.NoError(t, err)
	_, err = rec.Sample(ctx, bell(), 5)
	assert.ErrorIs(t, err, boom)

	_, err = New(nil, hardware.V2("dev"))
	assert.Error(t, err)
	_, err = New(physicalOnes, hardware.Descriptor{API: "v3"})
	assert.True(t, errors.Is(err, replay.ErrUnsupportedBackend))
}
