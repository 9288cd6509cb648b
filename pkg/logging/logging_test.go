package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "DEBUG", Encoding: "console"})
	if err != nil {
		t.Fatal(err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be enabled")
	}

	l, err = New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) || !l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("default level should be info")
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := New(Config{Encoding: "xml"}); err == nil {
		t.Fatal("expected encoding error")
	}
}

func TestInstall(t *testing.T) {
	l, restore, err := Install(Config{Level: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	if zap.L() != l {
		t.Fatal("global logger not replaced")
	}
	restore()
	if zap.L() == l {
		t.Fatal("global logger not restored")
	}
}
