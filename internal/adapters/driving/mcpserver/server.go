// Package mcpserver exposes the OneNote operation catalog as Model Context Protocol
// tools so an assistant can browse and invoke operations.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driving"
)

type (
	// ListOperationsInput filters the catalog.
	ListOperationsInput struct {
		Kind string `json:"kind,omitempty" jsonschema:"Only list operations of this kind: get, post, post-custom, delete, patch or post-multipart"`
	}

	// OperationInfo describes one catalog entry.
	OperationInfo struct {
		Name          string            `json:"name"`
		Kind          string            `json:"kind"`
		URLTemplate   string            `json:"urlTemplate"`
		Description   string            `json:"description"`
		Documentation string            `json:"documentation,omitempty"`
		Params        map[string]string `json:"params,omitempty"`
		ParamSources  map[string]string `json:"paramSources,omitempty"`
		HTML          bool              `json:"html,omitempty"`
	}

	// ListOperationsOutput is the filtered catalog.
	ListOperationsOutput struct {
		Operations []OperationInfo `json:"operations"`
	}

	// InvokeInput names an operation and its parameter values.
	InvokeInput struct {
		Name   string            `json:"name" jsonschema:"Operation name as returned by list_operations"`
		Params map[string]string `json:"params,omitempty" jsonschema:"Parameter values; override the operation defaults"`
	}

	// InvokeOutput is the server response.
	InvokeOutput struct {
		StatusCode int    `json:"statusCode"`
		Body       any    `json:"body,omitempty"`
		Text       string `json:"text,omitempty"`
	}

	// ListChoicesInput selects a parameter source.
	ListChoicesInput struct {
		Source string `json:"source" jsonschema:"One of notebooks, sections or pages"`
	}

	// ChoiceInfo is one selectable id.
	ChoiceInfo struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}

	// ListChoicesOutput holds the selectable ids.
	ListChoicesOutput struct {
		Choices []ChoiceInfo `json:"choices"`
	}
)

// SignInFunc makes sure a usable token is held before a request is sent.
type SignInFunc func(ctx context.Context) error

// Server serves catalog tools over MCP.
type Server struct {
	catalog driving.Catalog
	invoker driving.Invoker
	signIn  SignInFunc
	server  *mcp.Server
}

// Option configures a Server.
type Option func(*Server)

// WithSignIn runs fn before every tool call that reaches the API, so an
// expired token is renewed during a long session.
func WithSignIn(fn SignInFunc) Option {
	return func(s *Server) {
		s.signIn = fn
	}
}

// NewServer creates an MCP server with the catalog tools registered.
func NewServer(catalog driving.Catalog, invoker driving.Invoker, version string, options ...Option) *Server {
	s := &Server{
		catalog: catalog,
		invoker: invoker,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "onenote-explorer",
			Version: version,
		}, nil),
	}
	for _, o := range options {
		o(s)
	}
	s.registerTools()
	return s
}

// Run serves on transport until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.server.Run(ctx, transport); err != nil {
		return fmt.Errorf("error running server: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_operations",
		Description: "List the OneNote REST operations that can be invoked, with their parameters.",
	}, s.handleListOperations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "invoke_operation",
		Description: "Invoke a OneNote operation by name. Missing path parameters can be found with list_choices.",
	}, s.handleInvoke)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_choices",
		Description: "List notebook, section or page ids usable as parameter values.",
	}, s.handleListChoices)
}

func (s *Server) handleListOperations(
	_ context.Context, _ *mcp.CallToolRequest, input ListOperationsInput,
) (*mcp.CallToolResult, ListOperationsOutput, error) {
	ops := s.catalog.List()
	if input.Kind != "" {
		kind, err := domain.ParseOperationType(input.Kind)
		if err != nil {
			return failure(err), ListOperationsOutput{}, nil
		}
		ops = s.catalog.ByKind(kind)
	}

	out := ListOperationsOutput{Operations: make([]OperationInfo, 0, len(ops))}
	for _, op := range ops {
		out.Operations = append(out.Operations, describe(op))
	}
	return nil, out, nil
}

func (s *Server) handleInvoke(
	ctx context.Context, _ *mcp.CallToolRequest, input InvokeInput,
) (*mcp.CallToolResult, InvokeOutput, error) {
	op, err := s.catalog.Get(input.Name)
	if err != nil {
		return failure(err), InvokeOutput{}, nil
	}
	if err := s.ensureSignedIn(ctx); err != nil {
		return failure(err), InvokeOutput{}, nil
	}

	resp, err := domain.Await(ctx, s.invoker.Invoke(ctx, op, input.Params))
	if err != nil {
		// Status and server body go back with the error result.
		var se *domain.StatusError
		if errors.As(err, &se) {
			return failure(err), InvokeOutput{StatusCode: se.StatusCode, Text: string(se.Body)}, nil
		}
		return failure(err), InvokeOutput{}, nil
	}

	out := InvokeOutput{StatusCode: resp.StatusCode}
	if text, ok := resp.Body.(string); ok {
		out.Text = text
	} else {
		out.Body = resp.Body
	}
	return nil, out, nil
}

func (s *Server) handleListChoices(
	ctx context.Context, _ *mcp.CallToolRequest, input ListChoicesInput,
) (*mcp.CallToolResult, ListChoicesOutput, error) {
	source, err := parseSource(input.Source)
	if err != nil {
		return failure(err), ListChoicesOutput{}, nil
	}
	if err := s.ensureSignedIn(ctx); err != nil {
		return failure(err), ListChoicesOutput{}, nil
	}

	choices, err := s.invoker.ListChoices(ctx, source)
	if err != nil {
		return failure(err), ListChoicesOutput{}, nil
	}

	out := ListChoicesOutput{Choices: make([]ChoiceInfo, 0, len(choices))}
	for _, c := range choices {
		out.Choices = append(out.Choices, ChoiceInfo{ID: c.ID, Label: c.Label})
	}
	return nil, out, nil
}

func (s *Server) ensureSignedIn(ctx context.Context) error {
	if s.signIn == nil {
		return nil
	}
	return s.signIn(ctx)
}

// failure reports err to the client as a tool error.
func failure(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func describe(op *domain.Operation) OperationInfo {
	info := OperationInfo{
		Name:          op.Name(),
		Kind:          op.Kind().String(),
		URLTemplate:   op.URLTemplate(),
		Description:   op.Description(),
		Documentation: op.DocumentationLink(),
		Params:        op.Params(),
		HTML:          op.ResponseAsHTML(),
	}
	if sources := op.ParamsSource(); len(sources) > 0 {
		info.ParamSources = make(map[string]string, len(sources))
		for k, v := range sources {
			info.ParamSources[k] = v.String()
		}
	}
	return info
}

func parseSource(s string) (domain.ParamsSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "notebooks":
		return domain.ParamsSourceGetNotebooks, nil
	case "sections":
		return domain.ParamsSourceGetSections, nil
	case "pages":
		return domain.ParamsSourceGetPages, nil
	default:
		return 0, fmt.Errorf("unknown source %q: want notebooks, sections or pages", s)
	}
}
