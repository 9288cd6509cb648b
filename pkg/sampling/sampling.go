// Package sampling defines the contracts shared by sampling backends: the
// measurement histogram, resolved jobs and results, and the post-processing
// that merges per-chunk results and undoes a qubit mapping.
package sampling

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/wilhg/qreplay/pkg/circuit"
)

// Counts maps a measured bitstring to its number of occurrences. Qubit 0 is
// the rightmost character, matching the classical register order of the
// hardware SDKs.
type Counts map[string]int

// Total returns the sum of all occurrence counts.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Width returns the common bitstring width. It fails when keys differ in
// width or contain characters other than 0 and 1.
func (c Counts) Width() (int, error) {
	width := -1
	for bits := range c {
		for _, r := range bits {
			if r != '0' && r != '1' {
				return 0, fmt.Errorf("bitstring %q contains %q", bits, r)
			}
		}
		if width == -1 {
			width = len(bits)
			continue
		}
		if len(bits) != width {
			return 0, fmt.Errorf("bitstring %q has width %d, want %d", bits, len(bits), width)
		}
	}
	if width < 0 {
		return 0, nil
	}
	return width, nil
}

// Measurements converts bitstring keys to their integer value, the form the
// toolkit uses for sampling counts.
func (c Counts) Measurements() (map[uint64]int, error) {
	out := make(map[uint64]int, len(c))
	for bits, n := range c {
		v, err := strconv.ParseUint(bits, 2, 64)
		if err != nil {
			return nil, fmt.Errorf("parse bitstring %q: %w", bits, err)
		}
		out[v] += n
	}
	return out, nil
}

// Clone returns an independent copy.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Keys returns the bitstrings in ascending order.
func (c Counts) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MergeCounts sums counts per bitstring.
func MergeCounts(parts ...Counts) Counts {
	out := Counts{}
	for _, p := range parts {
		for k, v := range p {
			out[k] += v
		}
	}
	return out
}

// Result is a resolved sampling outcome.
type Result interface {
	Counts() Counts
}

// StaticResult is a Result backed by a fixed histogram.
type StaticResult struct {
	Values Counts `json:"counts"`
}

func (r StaticResult) Counts() Counts { return r.Values.Clone() }

// Job is a handle to a sampling execution.
type Job interface {
	ID() string
	Result(ctx context.Context) (Result, error)
}

// Backend samples a circuit for a number of shots.
type Backend interface {
	Sample(ctx context.Context, c circuit.Circuit, shots int) (Job, error)
}
