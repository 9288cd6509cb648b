// Package mcpserver exposes the registered replay backends as MCP tools.
package mcpserver

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/wilhg/qreplay/pkg/circuit"
	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/registry"
	"github.com/wilhg/qreplay/pkg/sampling"
)

// Server serves sample, export_corpus and list_backends over MCP.
type Server struct {
	srv    *mcp.Server
	reg    *registry.Registry
	logger *zap.Logger
}

type Option func(*Server)

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// SampleInput is the argument object of the sample tool.
type SampleInput struct {
	Backend string          `json:"backend"`
	Circuit circuit.Circuit `json:"circuit"`
	Shots   int             `json:"shots"`
}

// SampleOutput is the structured result of the sample tool.
type SampleOutput struct {
	JobID  string          `json:"job_id"`
	Counts sampling.Counts `json:"counts"`
}

// ExportInput names the backend whose corpus is exported.
type ExportInput struct {
	Backend string `json:"backend"`
}

// ExportOutput carries the corpus document as a JSON string.
type ExportOutput struct {
	Corpus string `json:"corpus"`
}

// ListOutput lists the registered backends.
type ListOutput struct {
	Backends []registry.Info `json:"backends"`
}

// New builds a server over reg. version is reported to clients.
func New(reg *registry.Registry, version string, opts ...Option) (*Server, error) {
	if reg == nil {
		return nil, errors.New("registry is nil")
	}
	if version == "" {
		version = "dev"
	}
	s := &Server{
		srv:    mcp.NewServer(&mcp.Implementation{Name: "qreplay", Version: version}, nil),
		reg:    reg,
		logger: zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.register()
	return s, nil
}

func (s *Server) register() {
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "sample",
		Description: "Replay saved sampling results for a circuit on a registered backend.",
		InputSchema: sampleSchema(),
	}, s.sample)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "export_corpus",
		Description: "Export the saved corpus of a registered backend in the exchange format.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"backend": {Type: "string"}},
			Required:   []string{"backend"},
		},
	}, s.export)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "list_backends",
		Description: "List registered replay backends with their device descriptors.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.list)
}

func sampleSchema() *jsonschema.Schema {
	ints := &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "integer"}}
	gate := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":     {Type: "string"},
			"targets":  ints,
			"controls": ints,
			"params":   {Type: "array", Items: &jsonschema.Schema{Type: "number"}},
		},
		Required: []string{"name", "targets"},
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"backend": {Type: "string", Description: "registered backend name"},
			"circuit": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"qubit_count": {Type: "integer"},
					"gates":       {Type: "array", Items: gate},
				},
				Required: []string{"qubit_count"},
			},
			"shots": {Type: "integer", Description: "total shot count"},
		},
		Required: []string{"backend", "circuit", "shots"},
	}
}

func (s *Server) sample(ctx context.Context, _ *mcp.CallToolRequest, in SampleInput) (*mcp.CallToolResult, SampleOutput, error) {
	b, err := s.reg.Get(in.Backend)
	if err != nil {
		return nil, SampleOutput{}, toolError(err)
	}
	job, err := b.Sample(ctx, in.Circuit, in.Shots)
	if err != nil {
		s.logger.Info("mcp sample failed", zap.String("backend", in.Backend), zap.String("code", errmodel.From(err).Code))
		return nil, SampleOutput{}, toolError(err)
	}
	res, err := job.Result(ctx)
	if err != nil {
		return nil, SampleOutput{}, toolError(err)
	}
	return nil, SampleOutput{JobID: job.ID(), Counts: res.Counts()}, nil
}

func (s *Server) export(_ context.Context, _ *mcp.CallToolRequest, in ExportInput) (*mcp.CallToolResult, ExportOutput, error) {
	b, err := s.reg.Get(in.Backend)
	if err != nil {
		return nil, ExportOutput{}, toolError(err)
	}
	doc, err := b.Export()
	if err != nil {
		return nil, ExportOutput{}, toolError(err)
	}
	return nil, ExportOutput{Corpus: string(doc)}, nil
}

func (s *Server) list(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, ListOutput, error) {
	return nil, ListOutput{Backends: s.reg.Describe()}, nil
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.srv }

// ServeStdio serves one client over stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// toolError keeps the error category in the tool result text so clients can
// rebuild it with errmodel.Parse.
func toolError(err error) error { return errors.New(errmodel.Wire(err)) }
