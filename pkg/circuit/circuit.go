// Package circuit holds the hardware-agnostic circuit model consumed by the
// sampling backends, the transpiler contract and the canonical OpenQASM form
// used as the replay lookup key.
package circuit

import (
	"fmt"
	"strings"
)

// Gate is a single gate application. Qubit indices are logical unless a
// transpiler has relabelled them.
type Gate struct {
	Name     string    `json:"name"`
	Targets  []int     `json:"targets"`
	Controls []int     `json:"controls,omitempty"`
	Params   []float64 `json:"params,omitempty"`
}

// Circuit is a non-parametric quantum circuit.
type Circuit struct {
	QubitCount int    `json:"qubit_count"`
	Gates      []Gate `json:"gates,omitempty"`
}

// New returns an empty circuit on n qubits.
func New(n int) Circuit { return Circuit{QubitCount: n} }

// Add appends a gate and returns the circuit for chaining.
func (c Circuit) Add(name string, targets ...int) Circuit {
	c.Gates = append(append([]Gate(nil), c.Gates...), Gate{Name: name, Targets: targets})
	return c
}

// AddControlled appends a controlled gate.
func (c Circuit) AddControlled(name string, control, target int) Circuit {
	c.Gates = append(append([]Gate(nil), c.Gates...), Gate{Name: name, Controls: []int{control}, Targets: []int{target}})
	return c
}

// AddRotation appends a single-qubit rotation.
func (c Circuit) AddRotation(name string, target int, angle float64) Circuit {
	c.Gates = append(append([]Gate(nil), c.Gates...), Gate{Name: name, Targets: []int{target}, Params: []float64{angle}})
	return c
}

// Validate checks qubit indices against QubitCount.
func (c Circuit) Validate() error {
	if c.QubitCount < 1 {
		return fmt.Errorf("qubit_count must be positive, got %d", c.QubitCount)
	}
	for i, g := range c.Gates {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("gate %d: name is empty", i)
		}
		if len(g.Targets) == 0 {
			return fmt.Errorf("gate %d (%s): no target qubits", i, g.Name)
		}
		for _, q := range append(append([]int(nil), g.Controls...), g.Targets...) {
			if q < 0 || q >= c.QubitCount {
				return fmt.Errorf("gate %d (%s): qubit %d out of range [0,%d)", i, g.Name, q, c.QubitCount)
			}
		}
	}
	return nil
}

// Transpiler rewrites a circuit, e.g. relabelling qubits or decomposing gates.
type Transpiler interface {
	Transpile(c Circuit) (Circuit, error)
}

// TranspilerFunc adapts a function to Transpiler.
type TranspilerFunc func(c Circuit) (Circuit, error)

func (f TranspilerFunc) Transpile(c Circuit) (Circuit, error) { return f(c) }

// Identity is a transpiler that returns its input unchanged.
var Identity Transpiler = TranspilerFunc(func(c Circuit) (Circuit, error) { return c, nil })

// Sequential runs transpilers in order. Nil entries are skipped.
func Sequential(ts ...Transpiler) Transpiler {
	return TranspilerFunc(func(c Circuit) (Circuit, error) {
		var err error
		for _, t := range ts {
			if t == nil {
				continue
			}
			if c, err = t.Transpile(c); err != nil {
				return Circuit{}, err
			}
		}
		return c, nil
	})
}
