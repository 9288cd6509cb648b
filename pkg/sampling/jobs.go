package sampling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// MergedJob aggregates the results of several chunk jobs that belong to one
// logical sampling request.
type MergedJob struct {
	id      string
	sources []string
	result  StaticResult
}

func (j *MergedJob) ID() string { return j.id }

// Sources returns the IDs of the chunk jobs, in order.
func (j *MergedJob) Sources() []string { return append([]string(nil), j.sources...) }

func (j *MergedJob) Result(context.Context) (Result, error) { return j.result, nil }

// ProcessJobs merges chunk jobs into one and, when mapping is non-nil, moves
// every outcome bit from physical back to logical order. A single job with no
// mapping is returned unchanged.
func ProcessJobs(ctx context.Context, jobs []Job, mapping *QubitMapping) (Job, error) {
	if len(jobs) == 0 {
		return nil, errors.New("no jobs to process")
	}
	if len(jobs) == 1 && mapping == nil {
		return jobs[0], nil
	}
	parts := make([]Counts, 0, len(jobs))
	sources := make([]string, 0, len(jobs))
	for _, j := range jobs {
		res, err := j.Result(ctx)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", j.ID(), err)
		}
		parts = append(parts, res.Counts())
		sources = append(sources, j.ID())
	}
	merged := MergeCounts(parts...)
	if mapping != nil {
		var err error
		if merged, err = mapping.Unmap(merged); err != nil {
			return nil, err
		}
	}
	return &MergedJob{id: uuid.NewString(), sources: sources, result: StaticResult{Values: merged}}, nil
}
