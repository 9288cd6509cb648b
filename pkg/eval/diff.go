package eval

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wilhg/qreplay/pkg/sampling"
)

// UnifiedDiff returns a simple unified diff between two strings.
func UnifiedDiff(a, b string) string {
	if a == b {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteString("--- want\n")
	buf.WriteString("+++ got\n")
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")
	i, j := 0, 0
	for i < len(al) || j < len(bl) {
		if i < len(al) && j < len(bl) && al[i] == bl[j] {
			fmt.Fprintf(&buf, " %s\n", al[i])
			i++
			j++
			continue
		}
		if i < len(al) {
			fmt.Fprintf(&buf, "-%s\n", al[i])
			i++
		}
		if j < len(bl) {
			fmt.Fprintf(&buf, "+%s\n", bl[j])
			j++
		}
	}
	return buf.String()
}

// CountsDiff renders both histograms one "bits: n" line per outcome over
// the union of outcomes, and diffs them. Empty when they are equal.
func CountsDiff(want, got sampling.Counts) string {
	union := sampling.MergeCounts(want, got).Keys()
	render := func(c sampling.Counts) string {
		lines := make([]string, 0, len(union))
		for _, k := range union {
			lines = append(lines, fmt.Sprintf("%s: %d", k, c[k]))
		}
		return strings.Join(lines, "\n")
	}
	return UnifiedDiff(render(want), render(got))
}
