package eval

import (
	"context"
	"fmt"

	"github.com/wilhg/qreplay/pkg/circuit"
	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/sampling"
)

// Request is one captured sampling call and what it returned.
type Request struct {
	Circuit circuit.Circuit `json:"circuit"`
	Shots   int             `json:"shots"`
	// Expect holds the logical counts the call returned. Ignored when
	// ExpectError is set.
	Expect sampling.Counts `json:"expect,omitempty"`
	// ExpectError is an errmodel code the call must fail with.
	ExpectError string `json:"expect_error,omitempty"`
}

// Capture is a recorded session: sampling calls in the order they were made.
type Capture struct {
	Name     string    `json:"name"`
	Requests []Request `json:"requests"`
}

// Report scores one capture.
type Report struct {
	Name    string
	Total   int
	Passed  int
	Details []string
}

// Score is Passed/Total, or 1 for an empty capture.
func (r Report) Score() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Passed) / float64(r.Total)
}

// ReplayCapture issues every request of cap against b in order and compares
// the outcome with what was captured. Mismatches are reported, not returned
// as errors; an error means the capture itself is unusable.
func ReplayCapture(ctx context.Context, b sampling.Backend, cap Capture) (Report, error) {
	if b == nil {
		return Report{}, fmt.Errorf("backend is nil")
	}
	rep := Report{Name: cap.Name, Total: len(cap.Requests)}
	for i, req := range cap.Requests {
		label := fmt.Sprintf("%s[%d]", cap.Name, i)
		got, err := sampleCounts(ctx, b, req)
		switch {
		case req.ExpectError != "" && err == nil:
			rep.Details = append(rep.Details, fmt.Sprintf("%s: expected error %s, got counts", label, req.ExpectError))
		case req.ExpectError != "":
			if errmodel.HasCode(err, req.ExpectError) {
				rep.Passed++
			} else {
				rep.Details = append(rep.Details, fmt.Sprintf("%s: expected error %s, got %v", label, req.ExpectError, err))
			}
		case err != nil:
			rep.Details = append(rep.Details, fmt.Sprintf("%s: %v", label, err))
		default:
			if d := CountsDiff(req.Expect, got); d != "" {
				rep.Details = append(rep.Details, label+": counts differ\n"+d)
			} else {
				rep.Passed++
			}
		}
	}
	return rep, nil
}

func sampleCounts(ctx context.Context, b sampling.Backend, req Request) (sampling.Counts, error) {
	job, err := b.Sample(ctx, req.Circuit, req.Shots)
	if err != nil {
		return nil, err
	}
	res, err := job.Result(ctx)
	if err != nil {
		return nil, err
	}
	return res.Counts(), nil
}
