/*
Package mcp implements the MCP server that exposes the recommendation engine.

The server uses stdio transport and exposes 3 tools:
  - flags_recommend: Recommend flags for a request, recording the interaction
  - flags_feedback: Report the outcome of an earlier recommendation
  - flags_report: Show how personalization changed recent outcomes
*/
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/app"
	"github.com/Soochol/superclaude-auto-flags/internal/learning"
	"github.com/Soochol/superclaude-auto-flags/internal/rules"
	"github.com/Soochol/superclaude-auto-flags/internal/version"
)

// maxLineSize bounds a single JSON-RPC message.
const maxLineSize = 1024 * 1024

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolError      = -32000
)

// Server represents the autoflags MCP server.
type Server struct {
	app *app.App
	log *zap.Logger

	mu  sync.Mutex // guards out
	out io.Writer
}

// NewServer creates a new MCP server over an App.
func NewServer(a *app.App, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{app: a, log: logger.Named("mcp")}
}

// Run starts the MCP server using stdio transport.
// This blocks until stdin is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from in and writes responses to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		response, err := s.handleRequest(ctx, line)
		if err != nil {
			s.sendError(err)
			continue
		}

		if response != nil {
			s.sendResponse(response)
		}
	}

	return scanner.Err()
}

// MCPRequest represents an incoming MCP JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleRequest processes an incoming MCP request. Notifications get no response.
func (s *Server) handleRequest(ctx context.Context, data []byte) (*MCPResponse, error) {
	var req MCPRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC request: %w", err)
	}

	switch {
	case req.Method == "initialize":
		return s.handleInitialize(&req), nil
	case req.Method == "tools/list":
		return s.handleToolsList(&req), nil
	case req.Method == "tools/call":
		return s.handleToolsCall(ctx, &req), nil
	case strings.HasPrefix(req.Method, "notifications/"):
		return nil, nil
	default:
		return errorResponse(&req, codeMethodNotFound, "Method not found"), nil
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "autoflags",
				"version": version.Version,
			},
		},
	}
}

// handleToolsList returns the tool definitions. The category enum is built
// from the loaded rule table.
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	tools := []map[string]interface{}{
		{
			"name": "flags_recommend",
			"description": fmt.Sprintf(`Recommend SuperClaude flags for a request.

WHEN TO USE: Before running a command, to pick personas, focus and thinking depth.

Give either a category or the raw request text; text is matched against
category keywords. Pass dir (or an explicit context) so the recommendation
can use what worked for similar projects.

AVAILABLE CATEGORIES: %s

Returns: flags, confidence, rationale and an interaction_id for flags_feedback.`, strings.Join(s.app.Rules.Categories(), ", ")),
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "The user's request in natural language",
					},
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Request category",
						"enum":        s.app.Rules.Categories(),
					},
					"dir": map[string]interface{}{
						"type":        "string",
						"description": "Project directory to inspect for languages and frameworks",
					},
					"user_id": map[string]interface{}{
						"type":        "string",
						"description": "User id; defaults to the local user",
					},
					"explain": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the ranked category matches for text",
					},
				},
			},
		},
		{
			"name": "flags_feedback",
			"description": `Report how a recommendation worked out.

WHEN TO USE: After the command recommended by flags_recommend finished.

A rating of 1-5 overrides success. Faster than usual execution strengthens
the signal. actual_flags records the flags the user really ran with.`,
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"interaction_id": map[string]interface{}{
						"type":        "integer",
						"description": "interaction_id returned by flags_recommend",
					},
					"success": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether the command achieved its goal",
					},
					"rating": map[string]interface{}{
						"type":        "integer",
						"description": "Optional explicit rating from 1 to 5",
						"minimum":     1,
						"maximum":     5,
					},
					"execution_ms": map[string]interface{}{
						"type":        "integer",
						"description": "Optional execution time in milliseconds",
					},
					"actual_flags": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Flags actually used, when they differ from the recommendation",
					},
				},
				"required": []string{"interaction_id", "success"},
			},
		},
		{
			"name": "flags_report",
			"description": `Show the personalization report for a user.

Returns: success-rate and confidence change versus the baseline period,
the share of personalized recommendations and the top preferences.`,
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"user_id": map[string]interface{}{
						"type":        "string",
						"description": "User id; defaults to the local user",
					},
				},
			},
		},
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": tools,
		},
	}
}

// handleToolsCall handles tool execution requests.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	var result interface{}
	var err error

	switch params.Name {
	case "flags_recommend":
		result, err = s.execRecommend(ctx, params.Arguments)
	case "flags_feedback":
		result, err = s.execFeedback(ctx, params.Arguments)
	case "flags_report":
		result, err = s.execReport(ctx, params.Arguments)
	default:
		return errorResponse(req, codeInvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	if err != nil {
		var argErr *argumentError
		if errors.As(err, &argErr) {
			return errorResponse(req, codeInvalidParams, err.Error())
		}
		s.log.Debug("tool call failed", zap.String("tool", params.Name), zap.Error(err))
		return errorResponse(req, codeToolError, err.Error())
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(req, codeToolError, err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": string(text),
				},
			},
		},
	}
}

// argumentError marks malformed tool arguments.
type argumentError struct {
	tool string
	err  error
}

func (e *argumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.tool, e.err)
}

func (e *argumentError) Unwrap() error { return e.err }

// recommendOutput adds the shell-ready flag string to a recommendation.
type recommendOutput struct {
	app.RecommendResult
	Command string `json:"command"`
}

func (s *Server) execRecommend(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var in app.RecommendInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, &argumentError{tool: "flags_recommend", err: err}
	}
	if in.Category == "" && in.Text == "" {
		return nil, &argumentError{tool: "flags_recommend", err: errors.New("category or text is required")}
	}

	res, err := s.app.Recommend(ctx, in)
	if err != nil {
		return nil, err
	}
	return recommendOutput{RecommendResult: res, Command: rules.JoinFlags(res.Flags)}, nil
}

func (s *Server) execFeedback(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var fb learning.Feedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return nil, &argumentError{tool: "flags_feedback", err: err}
	}
	return s.app.SubmitFeedback(ctx, fb)
}

func (s *Server) execReport(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &argumentError{tool: "flags_report", err: err}
	}
	return s.app.Report(ctx, args.UserID)
}

func errorResponse(req *MCPRequest, code int, msg string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error:   &MCPError{Code: code, Message: msg},
	}
}

// sendResponse writes a JSON-RPC response line.
func (s *Server) sendResponse(resp *MCPResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, string(data))
}

// sendError writes a parse error response.
func (s *Server) sendError(err error) {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      nil,
		Error:   &MCPError{Code: codeParseError, Message: err.Error()},
	}
	s.sendResponse(resp)
}
