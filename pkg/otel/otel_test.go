package otel_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"

	qotel "github.com/wilhg/qreplay/pkg/otel"
)

func TestInit_NoExporters(t *testing.T) {
	shutdown, err := qotel.Init(context.Background(), qotel.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording span from the installed provider")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInit_WithEndpoint(t *testing.T) {
	// Non-routable address; nothing is exported because no span is ended.
	shutdown, err := qotel.Init(context.Background(), qotel.Config{
		ServiceName: "qreplay-test",
		Endpoint:    "http://192.0.2.1:4318",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInit_Stdout(t *testing.T) {
	shutdown, err := qotel.Init(context.Background(), qotel.Config{UseStdout: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInit_SampleRatio(t *testing.T) {
	shutdown, err := qotel.Init(context.Background(), qotel.Config{SampleRatio: 0.25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()
	// The provider must still hand out spans; whether one is sampled depends on its trace id.
	_, span := otel.Tracer("test").Start(context.Background(), "ratio")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a valid span context")
	}
	span.End()
}
