// Package recorder runs sampling requests on a live executor and captures
// every executed chunk as a saved record, producing corpora for the replay
// backend.
package recorder

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wilhg/qreplay/pkg/circuit"
	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/sampling"
	"github.com/wilhg/qreplay/pkg/shots"
	"github.com/wilhg/qreplay/pkg/store"
)

// Executor runs a canonical circuit string on a device. The returned counts
// are in device (physical) bit order and must sum to shots.
type Executor interface {
	Execute(ctx context.Context, circuitStr string, shots int) (sampling.Counts, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, circuitStr string, shots int) (sampling.Counts, error)

func (f ExecutorFunc) Execute(ctx context.Context, circuitStr string, shots int) (sampling.Counts, error) {
	return f(ctx, circuitStr, shots)
}

// Backend samples through an Executor and records what it ran.
type Backend struct {
	exec       Executor
	device     hardware.Descriptor
	minShots   int
	maxShots   int
	roundUp    bool
	distribute shots.Policy
	convert    circuit.Converter
	transpiler circuit.Transpiler
	mapping    *sampling.QubitMapping
	sink       store.RecordStore
	corpus     string
	logger     *zap.Logger

	mu      sync.Mutex
	records []replay.Record
}

// Option configures the recorder.
type Option func(*Backend)

// WithQubitMapping relabels circuits before execution and maps the
// returned job back to logical order. Captured records stay physical.
func WithQubitMapping(m *sampling.QubitMapping) Option {
	return func(b *Backend) { b.mapping = m }
}

func WithShotsRoundup(enabled bool) Option {
	return func(b *Backend) { b.roundUp = enabled }
}

func WithShotPolicy(p shots.Policy) Option {
	return func(b *Backend) {
		if p != nil {
			b.distribute = p
		}
	}
}

func WithConverter(c circuit.Converter) Option {
	return func(b *Backend) {
		if c != nil {
			b.convert = c
		}
	}
}

// WithSink appends every captured record to corpus in st as it is recorded.
func WithSink(st store.RecordStore, corpus string) Option {
	return func(b *Backend) { b.sink, b.corpus = st, corpus }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New builds a recorder in front of exec.
func New(exec Executor, device hardware.Descriptor, opts ...Option) (*Backend, error) {
	if exec == nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidArgument, "executor is required", nil)
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}
	min, max := device.ShotBounds()
	b := &Backend{
		exec:       exec,
		device:     device,
		minShots:   min,
		maxShots:   max,
		roundUp:    true,
		distribute: shots.Distribute,
		convert:    circuit.QASM,
		transpiler: circuit.Identity,
		logger:     zap.L(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.mapping != nil {
		b.transpiler = circuit.Sequential(b.transpiler, b.mapping.Transpiler())
	}
	return b, nil
}

// Sample executes c with the same chunking and canonical string derivation
// the replay backend uses, so the captured records replay one to one.
// When a chunk fails the chunks completed before it are still recorded and
// sent to the sink; the call returns the chunk's error and no job.
func (b *Backend) Sample(ctx context.Context, c circuit.Circuit, n int) (sampling.Job, error) {
	ctx, span := otel.Tracer("recorder").Start(ctx, "Recorder.Sample", trace.WithAttributes(
		attribute.Int("shots.requested", n),
		attribute.String("device", b.device.Name),
	))
	defer span.End()

	job, err := b.sample(ctx, c, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return job, nil
}

func (b *Backend) sample(ctx context.Context, c circuit.Circuit, n int) (sampling.Job, error) {
	if n < 1 {
		return nil, replay.ErrInvalidShots.WithContext(map[string]any{"shots": n})
	}
	dist, err := b.distribute(n, b.minShots, b.maxShots, b.roundUp)
	if err != nil {
		return nil, err
	}
	circuitStr, err := b.convert(c, b.transpiler)
	if err != nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidArgument, "circuit conversion failed", map[string]any{"error": err.Error()})
	}

	captured := make([]replay.Record, 0, len(dist))
	jobs := make([]sampling.Job, 0, len(dist))
	for _, s := range dist {
		rec, err := b.execute(ctx, circuitStr, s)
		if err != nil {
			if len(captured) > 0 {
				b.logger.Warn("sample failed, keeping completed chunks",
					zap.Int("completed", len(captured)), zap.Int("chunks", len(dist)), zap.Error(err))
				if kerr := b.keep(ctx, captured); kerr != nil {
					return nil, errors.Join(err, kerr)
				}
			}
			return nil, err
		}
		captured = append(captured, rec)
		jobs = append(jobs, replay.NewSavedJob(rec))
	}

	if err := b.keep(ctx, captured); err != nil {
		return nil, err
	}
	b.logger.Debug("recorded sample",
		zap.String("circuit", replay.Key{CircuitStr: circuitStr}.Short()),
		zap.Ints("chunks", dist))

	return sampling.ProcessJobs(ctx, jobs, b.mapping)
}

func (b *Backend) execute(ctx context.Context, circuitStr string, s int) (replay.Record, error) {
	counts, err := b.exec.Execute(ctx, circuitStr, s)
	if err != nil {
		return replay.Record{}, err
	}
	rec := replay.Record{CircuitStr: circuitStr, Shots: s, Counts: counts.Clone()}
	if err := rec.Validate(); err != nil {
		return replay.Record{}, errmodel.System(errmodel.CodeInternal, "executor returned an inconsistent histogram", map[string]any{"n_shots": s}, err)
	}
	return rec, nil
}

// keep sends records to the sink, then adds them to the in-memory capture.
func (b *Backend) keep(ctx context.Context, records []replay.Record) error {
	if b.sink != nil {
		if err := b.sink.AppendRecords(ctx, b.corpus, records); err != nil {
			return err
		}
	}
	b.mu.Lock()
	b.records = append(b.records, records...)
	b.mu.Unlock()
	return nil
}

// Records returns everything captured so far in execution order.
func (b *Backend) Records() []replay.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]replay.Record, len(b.records))
	for i, r := range b.records {
		r.Counts = r.Counts.Clone()
		out[i] = r
	}
	return out
}

// Document encodes the captured records in the corpus exchange format.
func (b *Backend) Document() ([]byte, error) { return replay.Encode(b.Records()) }
