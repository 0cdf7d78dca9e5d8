package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/app"
	"github.com/Soochol/superclaude-auto-flags/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	a, err := app.New(config.Default(), zap.NewNop())
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return NewServer(a, zap.NewNop())
}

// roundTrip feeds request lines through Serve and decodes every response line.
func roundTrip(t *testing.T, s *Server, lines ...string) []MCPResponse {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var responses []MCPResponse
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp MCPResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response line %q: %v", scanner.Text(), err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func toolText(t *testing.T, resp MCPResponse) string {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is not a map: %T", resp.Result)
	}
	content, ok := result["content"].([]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content: %v", result["content"])
	}
	item := content[0].(map[string]interface{})
	return item["text"].(string)
}

// TestInitializeAndList tests the handshake and tools/list
func TestInitializeAndList(t *testing.T) {
	s := newTestServer(t)

	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)

	if len(responses) != 2 {
		t.Fatalf("expected 2 responses (notification is silent), got %d", len(responses))
	}

	info := responses[0].Result.(map[string]interface{})["serverInfo"].(map[string]interface{})
	if info["name"] != "autoflags" {
		t.Errorf("expected server name autoflags, got %v", info["name"])
	}

	tools := responses[1].Result.(map[string]interface{})["tools"].([]interface{})
	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	want := []string{"flags_recommend", "flags_feedback", "flags_report"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected tools %v, got %v", want, names)
	}
}

// TestRecommendFeedbackReport tests the full tool workflow
func TestRecommendFeedbackReport(t *testing.T) {
	s := newTestServer(t)

	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"flags_recommend","arguments":{"text":"audit for injection issues"}}}`,
	)
	var rec struct {
		Category      string   `json:"category"`
		Flags         []string `json:"flags"`
		Command       string   `json:"command"`
		InteractionID int64    `json:"interaction_id"`
	}
	if err := json.Unmarshal([]byte(toolText(t, responses[0])), &rec); err != nil {
		t.Fatalf("failed to decode recommendation: %v", err)
	}
	if rec.Category != "analyze_security" {
		t.Errorf("expected analyze_security, got %s", rec.Category)
	}
	if !strings.HasPrefix(rec.Command, "--persona-security") {
		t.Errorf("unexpected command %q", rec.Command)
	}
	if rec.InteractionID <= 0 {
		t.Fatalf("expected interaction id, got %d", rec.InteractionID)
	}

	feedback, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      "flags_feedback",
			"arguments": map[string]interface{}{"interaction_id": rec.InteractionID, "success": true, "rating": 4},
		},
	})
	responses = roundTrip(t, s,
		string(feedback),
		string(feedback),
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"flags_report"}}`,
	)
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}

	var fr struct {
		LearningWeight float64 `json:"learning_weight"`
	}
	if err := json.Unmarshal([]byte(toolText(t, responses[0])), &fr); err != nil {
		t.Fatalf("failed to decode feedback: %v", err)
	}
	if fr.LearningWeight != 0.5 {
		t.Errorf("expected learning weight 0.5 for rating 4, got %v", fr.LearningWeight)
	}

	if responses[1].Error == nil || responses[1].Error.Code != codeToolError {
		t.Errorf("expected duplicate feedback to fail, got %+v", responses[1])
	}

	report := toolText(t, responses[2])
	if !strings.Contains(report, `"with_feedback": 1`) {
		t.Errorf("report should count the feedback: %s", report)
	}
}

// TestErrorResponses tests protocol-level failures
func TestErrorResponses(t *testing.T) {
	s := newTestServer(t)

	responses := roundTrip(t, s,
		`not json`,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"hub_list"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"flags_recommend","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"flags_recommend","arguments":{"category":"bake_bread"}}}`,
	)

	want := []int{codeParseError, codeMethodNotFound, codeInvalidParams, codeInvalidParams, codeToolError}
	if len(responses) != len(want) {
		t.Fatalf("expected %d responses, got %d", len(want), len(responses))
	}
	for i, code := range want {
		if responses[i].Error == nil {
			t.Errorf("response %d: expected error %d, got result", i, code)
			continue
		}
		if responses[i].Error.Code != code {
			t.Errorf("response %d: expected code %d, got %d (%s)", i, code, responses[i].Error.Code, responses[i].Error.Message)
		}
	}
}

// TestServe_StopsOnCancel tests that a cancelled context ends the loop
func TestServe_StopsOnCancel(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := s.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`+"\n"), &out)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}
