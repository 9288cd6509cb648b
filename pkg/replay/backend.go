// Package replay implements a sampling backend that serves requests from a
// pre-recorded corpus instead of executing on hardware. Records are grouped
// by (canonical circuit, shot count) and replayed first-in first-out per key.
package replay

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wilhg/qreplay/pkg/circuit"
	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/sampling"
	"github.com/wilhg/qreplay/pkg/shots"
)

// Sentinel errors. Match them with errors.Is; the returned values carry
// request context but compare equal by category and code.
var (
	ErrInvalidShots       = errmodel.Validation(errmodel.CodeInvalidArgument, "shot count must be a positive integer", nil)
	ErrUnsupportedBackend = errmodel.Backend(errmodel.CodeUnsupportedBackend, "backend not supported", nil)
	ErrMissingExperiment  = errmodel.Replay(errmodel.CodeMissingExperiment, "this experiment is not in the saved data", nil)
	ErrReplayExhausted    = errmodel.Replay(errmodel.CodeReplayExhausted, "replay of this experiment is over", nil)
)

// Backend replays saved sampling results.
type Backend struct {
	device     hardware.Descriptor
	minShots   int
	maxShots   int
	roundUp    bool
	distribute shots.Policy
	convert    circuit.Converter
	transpiler circuit.Transpiler
	mapping    *sampling.QubitMapping
	atomic     bool
	logger     *zap.Logger

	// records and groups are immutable after construction.
	records []Record
	groups  map[Key][]Record
	order   []Key

	mu     sync.Mutex
	cursor map[Key]int
}

// Option configures the Backend at construction time.
type Option func(*Backend)

// WithQubitMapping relabels circuits logical -> physical before conversion
// and maps results back to logical order.
func WithQubitMapping(m *sampling.QubitMapping) Option {
	return func(b *Backend) { b.mapping = m }
}

// WithShotsRoundup toggles rounding an incomplete final chunk up to the
// device minimum. Enabled by default.
func WithShotsRoundup(enabled bool) Option {
	return func(b *Backend) { b.roundUp = enabled }
}

// WithShotPolicy overrides the shot distributor.
func WithShotPolicy(p shots.Policy) Option {
	return func(b *Backend) {
		if p != nil {
			b.distribute = p
		}
	}
}

// WithConverter overrides the circuit -> canonical string converter.
func WithConverter(c circuit.Converter) Option {
	return func(b *Backend) {
		if c != nil {
			b.convert = c
		}
	}
}

// WithTranspiler sets the transpiler applied before the qubit mapping.
func WithTranspiler(t circuit.Transpiler) Option {
	return func(b *Backend) {
		if t != nil {
			b.transpiler = t
		}
	}
}

// WithAtomicSample makes multi-chunk samples all-or-nothing: cursors only
// advance when every chunk of the request can be served.
func WithAtomicSample() Option {
	return func(b *Backend) { b.atomic = true }
}

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New decodes a corpus document and builds a backend for device.
func New(doc []byte, device hardware.Descriptor, opts ...Option) (*Backend, error) {
	if err := device.Validate(); err != nil {
		return nil, err
	}
	records, err := Decode(doc)
	if err != nil {
		return nil, err
	}
	return NewFromRecords(records, device, opts...)
}

// NewFromRecords builds a backend from already decoded records.
func NewFromRecords(records []Record, device hardware.Descriptor, opts ...Option) (*Backend, error) {
	if err := device.Validate(); err != nil {
		return nil, err
	}
	min, max := device.ShotBounds()
	b := &Backend{
		device:     device,
		minShots:   min,
		maxShots:   max,
		roundUp:    true,
		distribute: shots.Distribute,
		convert:    circuit.QASM,
		transpiler: circuit.Identity,
		logger:     zap.L(),
		groups:     make(map[Key][]Record),
		cursor:     make(map[Key]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.mapping != nil {
		b.transpiler = circuit.Sequential(b.transpiler, b.mapping.Transpiler())
	}

	b.records = make([]Record, 0, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, errmodel.From(err).WithContext(map[string]any{"record": i})
		}
		r.Counts = r.Counts.Clone()
		b.records = append(b.records, r)
		k := r.Key()
		if _, seen := b.groups[k]; !seen {
			b.order = append(b.order, k)
			b.cursor[k] = 0
		}
		b.groups[k] = append(b.groups[k], r)
	}
	b.logger.Debug("replay corpus loaded",
		zap.String("device", device.String()),
		zap.Int("records", len(b.records)),
		zap.Int("keys", len(b.order)))
	return b, nil
}

// Device returns the hardware descriptor the backend stands in for.
func (b *Backend) Device() hardware.Descriptor { return b.device }

// Sample replays saved results for c at the requested shot count. The shot
// count is split into chunks by the shot policy; each chunk consumes the next
// saved record for (canonical circuit, chunk size). Unless the backend was
// built WithAtomicSample, cursors advanced for earlier chunks stay advanced
// when a later chunk fails.
func (b *Backend) Sample(ctx context.Context, c circuit.Circuit, n int) (sampling.Job, error) {
	ctx, span := otel.Tracer("replay/backend").Start(ctx, "Backend.Sample", trace.WithAttributes(
		attribute.Int("shots.requested", n),
		attribute.String("device", b.device.Name),
	))
	defer span.End()

	job, err := b.sample(ctx, span, c, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return job, nil
}

func (b *Backend) sample(ctx context.Context, span trace.Span, c circuit.Circuit, n int) (sampling.Job, error) {
	if n < 1 {
		return nil, ErrInvalidShots.WithContext(map[string]any{"shots": n})
	}
	dist, err := b.distribute(n, b.minShots, b.maxShots, b.roundUp)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("shots.chunks", len(dist)), attribute.Int("shots.total", shots.Sum(dist)))

	circuitStr, err := b.convert(c, b.transpiler)
	if err != nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidArgument, "circuit conversion failed", map[string]any{"error": err.Error()})
	}

	var jobs []sampling.Job
	if b.atomic {
		jobs, err = b.consumeAll(circuitStr, dist)
	} else {
		jobs, err = b.consumeEach(circuitStr, dist)
	}
	if err != nil {
		return nil, err
	}
	return sampling.ProcessJobs(ctx, jobs, b.mapping)
}

// consumeEach walks the chunks in order and advances each cursor as it goes.
func (b *Backend) consumeEach(circuitStr string, dist []int) ([]sampling.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	jobs := make([]sampling.Job, 0, len(dist))
	for _, s := range dist {
		k := Key{CircuitStr: circuitStr, Shots: s}
		seq, ok := b.groups[k]
		if !ok {
			b.logger.Info("experiment not in saved data", zap.String("circuit", k.Short()), zap.Int("n_shots", s))
			return nil, ErrMissingExperiment.WithContext(map[string]any{"circuit": k.Short(), "n_shots": s})
		}
		pos := b.cursor[k]
		if pos >= len(seq) {
			b.logger.Info("replay exhausted", zap.String("circuit", k.Short()), zap.Int("n_shots", s), zap.Int("recorded", len(seq)))
			return nil, ErrReplayExhausted.WithContext(map[string]any{"circuit": k.Short(), "n_shots": s, "recorded": len(seq)})
		}
		jobs = append(jobs, NewSavedJob(seq[pos]))
		b.cursor[k] = pos + 1
	}
	return jobs, nil
}

// consumeAll checks every chunk before advancing any cursor.
func (b *Backend) consumeAll(circuitStr string, dist []int) ([]sampling.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make(map[Key]int, len(dist))
	jobs := make([]sampling.Job, 0, len(dist))
	for _, s := range dist {
		k := Key{CircuitStr: circuitStr, Shots: s}
		seq, ok := b.groups[k]
		if !ok {
			return nil, ErrMissingExperiment.WithContext(map[string]any{"circuit": k.Short(), "n_shots": s})
		}
		pos, seen := next[k]
		if !seen {
			pos = b.cursor[k]
		}
		if pos >= len(seq) {
			return nil, ErrReplayExhausted.WithContext(map[string]any{"circuit": k.Short(), "n_shots": s, "recorded": len(seq)})
		}
		jobs = append(jobs, NewSavedJob(seq[pos]))
		next[k] = pos + 1
	}
	for k, pos := range next {
		b.cursor[k] = pos
	}
	return jobs, nil
}

// Remaining reports how many records are left for a key and whether the
// key exists at all.
func (b *Backend) Remaining(circuitStr string, n int) (int, bool) {
	k := Key{CircuitStr: circuitStr, Shots: n}
	b.mu.Lock()
	defer b.mu.Unlock()
	seq, ok := b.groups[k]
	if !ok {
		return 0, false
	}
	return len(seq) - b.cursor[k], true
}

// Keys returns the corpus keys in first-seen order.
func (b *Backend) Keys() []Key { return append([]Key(nil), b.order...) }

// Records returns a copy of the loaded corpus in insertion order.
func (b *Backend) Records() []Record {
	out := make([]Record, len(b.records))
	for i, r := range b.records {
		r.Counts = r.Counts.Clone()
		out[i] = r
	}
	return out
}

// Export serialises the loaded corpus. Cursor state is not included.
func (b *Backend) Export() ([]byte, error) { return Encode(b.records) }

// CanonicalString returns the lookup string the backend derives for c.
func (b *Backend) CanonicalString(c circuit.Circuit) (string, error) {
	return b.convert(c, b.transpiler)
}
