// Package mcpclient talks to a qreplay MCP server and exposes its backends
// as sampling.Backend values.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/qreplay/pkg/circuit"
	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/mcpserver"
	"github.com/wilhg/qreplay/pkg/registry"
	"github.com/wilhg/qreplay/pkg/sampling"
)

// Client is a connected MCP session.
type Client struct {
	cs *mcp.ClientSession
}

// Connect opens a session over t.
func Connect(ctx context.Context, t mcp.Transport) (*Client, error) {
	c := mcp.NewClient(&mcp.Implementation{Name: "qreplay-client", Version: "v1"}, nil)
	cs, err := c.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect: %w", err)
	}
	return &Client{cs: cs}, nil
}

// Spawn starts "command args..." (typically "qreplay -mcp") and connects to
// it over stdio.
func Spawn(ctx context.Context, command string, args ...string) (*Client, error) {
	return Connect(ctx, &mcp.CommandTransport{Command: exec.CommandContext(ctx, command, args...)})
}

func (c *Client) Close() error { return c.cs.Close() }

// ListBackends returns the server's registered backends.
func (c *Client) ListBackends(ctx context.Context) ([]registry.Info, error) {
	var out mcpserver.ListOutput
	if err := c.call(ctx, "list_backends", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out.Backends, nil
}

// Export returns the corpus document of a backend.
func (c *Client) Export(ctx context.Context, backend string) ([]byte, error) {
	var out mcpserver.ExportOutput
	if err := c.call(ctx, "export_corpus", mcpserver.ExportInput{Backend: backend}, &out); err != nil {
		return nil, err
	}
	return []byte(out.Corpus), nil
}

// Backend returns a sampling.Backend that samples on the named remote
// backend.
func (c *Client) Backend(name string) sampling.Backend { return remote{c: c, name: name} }

type remote struct {
	c    *Client
	name string
}

func (r remote) Sample(ctx context.Context, circ circuit.Circuit, n int) (sampling.Job, error) {
	var out mcpserver.SampleOutput
	in := mcpserver.SampleInput{Backend: r.name, Circuit: circ, Shots: n}
	if err := r.c.call(ctx, "sample", in, &out); err != nil {
		return nil, err
	}
	return job{id: out.JobID, counts: out.Counts}, nil
}

type job struct {
	id     string
	counts sampling.Counts
}

func (j job) ID() string { return j.id }

func (j job) Result(context.Context) (sampling.Result, error) {
	return sampling.StaticResult{Values: j.counts}, nil
}

// call invokes a tool and decodes its structured output into out. Tool
// errors come back as errmodel errors so callers can match sentinels.
func (c *Client) call(ctx context.Context, tool string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return err
	}
	res, err := c.cs.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return fmt.Errorf("mcp call %s: %w", tool, err)
	}
	if res.IsError {
		return errmodel.Parse(contentText(res))
	}
	structured, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return err
	}
	return json.Unmarshal(structured, out)
}

func contentText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
