package circuit

import (
	"errors"
	"strings"
	"testing"
)

func TestQASM_Bell(t *testing.T) {
	c := New(2).Add("H", 0).AddControlled("CNOT", 0, 1)
	got, err := QASM(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "OPENQASM 2.0;\n" +
		"include \"qelib1.inc\";\n" +
		"qreg q[2];\n" +
		"creg meas[2];\n" +
		"h q[0];\n" +
		"cx q[0],q[1];\n" +
		"barrier q[0],q[1];\n" +
		"measure q[0] -> meas[0];\n" +
		"measure q[1] -> meas[1];\n"
	if got != want {
		t.Fatalf("qasm mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestQASM_Deterministic(t *testing.T) {
	c := New(1).AddRotation("RX", 0, 0.25)
	a, err := QASM(c, Identity)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := QASM(c, Identity)
	if a != b {
		t.Fatal("converter must be deterministic")
	}
	if !strings.Contains(a, "rx(0.25) q[0];") {
		t.Fatalf("missing rotation: %s", a)
	}
}

func TestQASM_Errors(t *testing.T) {
	if _, err := QASM(New(1).Add("FOO", 0), nil); err == nil {
		t.Fatal("expected unsupported gate error")
	}
	if _, err := QASM(New(1).Add("H", 3), nil); err == nil {
		t.Fatal("expected out of range error")
	}
	relabel := TranspilerFunc(func(c Circuit) (Circuit, error) { return New(c.QubitCount).Add("X", 0), nil })
	if _, err := QASM(New(2).Add("X", 5), relabel); err == nil {
		t.Fatal("expected the input circuit to be checked before transpiling")
	}
	boom := errors.New("boom")
	fail := TranspilerFunc(func(Circuit) (Circuit, error) { return Circuit{}, boom })
	if _, err := QASM(New(1), Sequential(Identity, fail)); !errors.Is(err, boom) {
		t.Fatalf("want transpiler error, got %v", err)
	}
}

func TestAddDoesNotAlias(t *testing.T) {
	base := New(2).Add("H", 0)
	a := base.Add("X", 1)
	b := base.Add("Z", 1)
	if a.Gates[1].Name != "X" || b.Gates[1].Name != "Z" {
		t.Fatalf("gates aliased: %v %v", a.Gates, b.Gates)
	}
}
