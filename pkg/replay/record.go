package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/sampling"
)

// Record is one saved experiment: the canonical circuit string, the shot
// count it ran with and the histogram it produced.
type Record struct {
	CircuitStr string
	Shots      int
	Counts     sampling.Counts
}

// Key identifies an experiment. Two requests are the same experiment iff
// their keys are equal.
type Key struct {
	CircuitStr string
	Shots      int
}

// Key returns the lookup key of the record.
func (r Record) Key() Key { return Key{CircuitStr: r.CircuitStr, Shots: r.Shots} }

// Short returns a stable abbreviation of the circuit string for logs.
func (k Key) Short() string {
	sum := sha256.Sum256([]byte(k.CircuitStr))
	return hex.EncodeToString(sum[:6])
}

// Validate checks the record invariants: a non-empty circuit string, a
// positive shot count and a fixed-width histogram summing to the shot count.
func (r Record) Validate() error {
	if r.CircuitStr == "" {
		return errmodel.Validation(errmodel.CodeInvalidCorpus, "circuit_str is empty", nil)
	}
	if r.Shots < 1 {
		return errmodel.Validation(errmodel.CodeInvalidCorpus, "n_shots must be a positive integer", map[string]any{"n_shots": r.Shots})
	}
	if _, err := r.Counts.Width(); err != nil {
		return errmodel.Validation(errmodel.CodeInvalidCorpus, err.Error(), map[string]any{"n_shots": r.Shots})
	}
	for bits, n := range r.Counts {
		if n < 0 {
			return errmodel.Validation(errmodel.CodeInvalidCorpus, "negative count", map[string]any{"bits": bits, "count": n})
		}
	}
	if total := r.Counts.Total(); total != r.Shots {
		return errmodel.Validation(errmodel.CodeInvalidCorpus, "counts do not sum to n_shots", map[string]any{"n_shots": r.Shots, "total": total})
	}
	return nil
}

// SavedJob is a replayed job. Its result is resolved at creation.
type SavedJob struct {
	id     string
	record Record
}

// NewSavedJob wraps r as a completed job with a fresh ID.
func NewSavedJob(r Record) *SavedJob {
	return &SavedJob{id: uuid.NewString(), record: r}
}

func (j *SavedJob) ID() string { return j.id }

// Record returns the saved record the job replays.
func (j *SavedJob) Record() Record { return j.record }

func (j *SavedJob) Result(context.Context) (sampling.Result, error) {
	return sampling.StaticResult{Values: j.record.Counts}, nil
}
