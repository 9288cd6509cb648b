package sampling

import (
	"fmt"
	"sort"

	"github.com/wilhg/qreplay/pkg/circuit"
)

// QubitMapping maps logical qubit indices to physical ones. It must be a
// permutation of 0..n-1 so that the qubit count is preserved.
type QubitMapping struct {
	toPhysical map[int]int
	toLogical  map[int]int
}

// NewQubitMapping validates m and returns a mapping.
func NewQubitMapping(m map[int]int) (*QubitMapping, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("qubit mapping is empty")
	}
	n := len(m)
	inv := make(map[int]int, n)
	for logical, physical := range m {
		if logical < 0 || logical >= n || physical < 0 || physical >= n {
			return nil, fmt.Errorf("qubit mapping %d->%d out of range [0,%d)", logical, physical, n)
		}
		if prev, dup := inv[physical]; dup {
			return nil, fmt.Errorf("physical qubit %d mapped twice (from %d and %d)", physical, prev, logical)
		}
		inv[physical] = logical
	}
	fwd := make(map[int]int, n)
	for k, v := range m {
		fwd[k] = v
	}
	return &QubitMapping{toPhysical: fwd, toLogical: inv}, nil
}

// Size returns the number of mapped qubits.
func (m *QubitMapping) Size() int { return len(m.toPhysical) }

// Physical returns the physical index of a logical qubit.
func (m *QubitMapping) Physical(logical int) (int, bool) {
	p, ok := m.toPhysical[logical]
	return p, ok
}

// Map returns a copy of the logical -> physical mapping.
func (m *QubitMapping) Map() map[int]int {
	out := make(map[int]int, len(m.toPhysical))
	for k, v := range m.toPhysical {
		out[k] = v
	}
	return out
}

// String renders the mapping in logical order.
func (m *QubitMapping) String() string {
	keys := make([]int, 0, len(m.toPhysical))
	for k := range m.toPhysical {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d: %d", k, m.toPhysical[k])
	}
	return s + "}"
}

// Transpiler relabels every gate qubit from logical to physical.
func (m *QubitMapping) Transpiler() circuit.Transpiler {
	return circuit.TranspilerFunc(func(c circuit.Circuit) (circuit.Circuit, error) {
		if c.QubitCount != m.Size() {
			return circuit.Circuit{}, fmt.Errorf("circuit has %d qubits, qubit mapping covers %d", c.QubitCount, m.Size())
		}
		out := circuit.Circuit{QubitCount: c.QubitCount, Gates: make([]circuit.Gate, 0, len(c.Gates))}
		for i, g := range c.Gates {
			ng := circuit.Gate{Name: g.Name, Params: append([]float64(nil), g.Params...)}
			var err error
			if ng.Controls, err = m.physicalAll(i, g, g.Controls); err != nil {
				return circuit.Circuit{}, err
			}
			if ng.Targets, err = m.physicalAll(i, g, g.Targets); err != nil {
				return circuit.Circuit{}, err
			}
			out.Gates = append(out.Gates, ng)
		}
		return out, nil
	})
}

func (m *QubitMapping) physicalAll(i int, g circuit.Gate, qs []int) ([]int, error) {
	if len(qs) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(qs))
	for _, q := range qs {
		p, ok := m.toPhysical[q]
		if !ok {
			return nil, fmt.Errorf("gate %d (%s): qubit %d not in qubit mapping", i, g.Name, q)
		}
		out = append(out, p)
	}
	return out, nil
}

// Unmap moves every bit from its physical position back to its logical one.
func (m *QubitMapping) Unmap(counts Counts) (Counts, error) {
	n := m.Size()
	out := make(Counts, len(counts))
	for bits, c := range counts {
		if len(bits) != n {
			return nil, fmt.Errorf("bitstring %q has width %d, qubit mapping covers %d", bits, len(bits), n)
		}
		buf := make([]byte, n)
		for logical, physical := range m.toPhysical {
			buf[n-1-logical] = bits[n-1-physical]
		}
		out[string(buf)] += c
	}
	return out, nil
}
