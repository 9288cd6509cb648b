package circuit

import (
	"fmt"
	"strconv"
	"strings"
)

// Converter turns a circuit into the backend-canonical string used as the
// replay lookup key. It must be deterministic for a fixed transpiler.
type Converter func(c Circuit, t Transpiler) (string, error)

// qasmGates maps toolkit gate names to OpenQASM 2 (qelib1.inc) names.
var qasmGates = map[string]string{
	"identity": "id", "i": "id",
	"h": "h", "hadamard": "h",
	"x": "x", "y": "y", "z": "z",
	"s": "s", "sdag": "sdg", "sdg": "sdg",
	"t": "t", "tdag": "tdg", "tdg": "tdg",
	"sqrtx": "sx", "sx": "sx", "sqrtxdag": "sxdg", "sxdg": "sxdg",
	"rx": "rx", "ry": "ry", "rz": "rz",
	"u1": "u1", "u2": "u2", "u3": "u3",
	"cnot": "cx", "cx": "cx", "cz": "cz",
	"swap": "swap",
	"toffoli": "ccx", "ccx": "ccx",
}

// QASMGateName returns the OpenQASM 2 name for a toolkit gate name.
func QASMGateName(name string) (string, bool) {
	n, ok := qasmGates[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// QASM is the default Converter. It transpiles c, appends a barrier and a
// measurement of every qubit into a "meas" register, and renders OpenQASM 2.
func QASM(c Circuit, t Transpiler) (string, error) {
	if t == nil {
		t = Identity
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	tc, err := t.Transpile(c)
	if err != nil {
		return "", fmt.Errorf("transpile: %w", err)
	}
	if err := tc.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("OPENQASM 2.0;\n")
	b.WriteString("include \"qelib1.inc\";\n")
	fmt.Fprintf(&b, "qreg q[%d];\n", tc.QubitCount)
	fmt.Fprintf(&b, "creg meas[%d];\n", tc.QubitCount)
	for i, g := range tc.Gates {
		name, ok := QASMGateName(g.Name)
		if !ok {
			return "", fmt.Errorf("gate %d: unsupported gate %q", i, g.Name)
		}
		b.WriteString(name)
		if len(g.Params) > 0 {
			b.WriteByte('(')
			for j, p := range g.Params {
				if j > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.FormatFloat(p, 'g', -1, 64))
			}
			b.WriteByte(')')
		}
		b.WriteByte(' ')
		qubits := append(append([]int(nil), g.Controls...), g.Targets...)
		for j, q := range qubits {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "q[%d]", q)
		}
		b.WriteString(";\n")
	}
	b.WriteString("barrier ")
	for q := 0; q < tc.QubitCount; q++ {
		if q > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "q[%d]", q)
	}
	b.WriteString(";\n")
	for q := 0; q < tc.QubitCount; q++ {
		fmt.Fprintf(&b, "measure q[%d] -> meas[%d];\n", q, q)
	}
	return b.String(), nil
}
