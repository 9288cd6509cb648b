// Package shots splits a requested shot count into chunks that respect a
// backend's shot limits.
package shots

import (
	"go.uber.org/zap"

	"github.com/wilhg/qreplay/pkg/errmodel"
)

// Policy distributes total shots into chunk sizes. max <= 0 means unbounded.
type Policy func(total, min, max int, roundUp bool) ([]int, error)

// Distribute is the default Policy. It emits total/max chunks of max shots
// followed by the remainder. A remainder below min is rounded up to min when
// roundUp is set, which increases the number of measured shots; otherwise it
// is dropped.
func Distribute(total, min, max int, roundUp bool) ([]int, error) {
	if total < 1 {
		return nil, errmodel.Validation(errmodel.CodeInvalidArgument, "shot count must be a positive integer", map[string]any{"shots": total})
	}
	if min < 1 {
		return nil, errmodel.Validation(errmodel.CodeInvalidArgument, "minimum shot count must be a positive integer", map[string]any{"min_shots": min})
	}
	if max > 0 && max < min {
		return nil, errmodel.Validation(errmodel.CodeInvalidArgument, "maximum shot count is below the minimum", map[string]any{"min_shots": min, "max_shots": max})
	}

	var dist []int
	remainder := total
	if max > 0 {
		for i := 0; i < total/max; i++ {
			dist = append(dist, max)
		}
		remainder = total % max
	}
	if remainder == 0 {
		return dist, nil
	}
	switch {
	case remainder >= min:
		dist = append(dist, remainder)
	case roundUp:
		zap.L().Warn("shot count rounded up to backend minimum",
			zap.Int("remainder", remainder), zap.Int("min_shots", min), zap.Int("requested", total))
		dist = append(dist, min)
	default:
		zap.L().Warn("remaining shots below backend minimum are dropped",
			zap.Int("remainder", remainder), zap.Int("min_shots", min), zap.Int("requested", total))
	}
	if len(dist) == 0 {
		return nil, errmodel.Validation(errmodel.CodeInvalidArgument, "shot count is below the backend minimum", map[string]any{"shots": total, "min_shots": min})
	}
	return dist, nil
}

// Sum returns the total number of shots in a distribution.
func Sum(dist []int) int {
	n := 0
	for _, s := range dist {
		n += s
	}
	return n
}
