package llm

import (
	"context"
	"errors"
	"testing"
)

// scriptedClient replays canned responses in order.
type scriptedClient struct {
	responses []CompletionResponse
	requests  []CompletionRequest
	err       error
}

func (s *scriptedClient) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	s.requests = append(s.requests, in)
	if s.err != nil {
		return CompletionResponse{}, s.err
	}
	if len(s.responses) == 0 {
		return CompletionResponse{}, errors.New("no scripted response")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *scriptedClient) Stream(_ context.Context, _ CompletionRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func (s *scriptedClient) GetModelName() string { return "scripted" }

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "plain text", "plain text"},
		{"bare fence", "```\nhello\n```", "hello"},
		{"language tag", "```go\npackage main\n```", "package main"},
		{"unterminated", "```python\nprint(1)", "print(1)"},
		{"inner backticks kept", "```\nuse `x` here\n```", "use `x` here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChatJSONParsesFirstReply(t *testing.T) {
	client := &scriptedClient{responses: []CompletionResponse{
		{Content: "```json\n{\"notes\": \"ok\"}\n```"},
	}}

	var out struct {
		Notes string `json:"notes"`
	}
	if err := ChatJSON(context.Background(), client, "sys", "user", &out); err != nil {
		t.Fatalf("ChatJSON failed: %v", err)
	}
	if out.Notes != "ok" {
		t.Errorf("Notes = %q", out.Notes)
	}
	if len(client.requests) != 1 {
		t.Errorf("expected 1 request, got %d", len(client.requests))
	}
	if client.requests[0].Temperature != TemperatureDeterministic {
		t.Errorf("JSON requests must be deterministic, temp = %v", client.requests[0].Temperature)
	}
}

func TestChatJSONRetriesOnGarbage(t *testing.T) {
	client := &scriptedClient{responses: []CompletionResponse{
		{Content: "sorry, here is the plan you asked for"},
		{Content: `{"notes": "second try"}`},
	}}

	var out struct {
		Notes string `json:"notes"`
	}
	if err := ChatJSON(context.Background(), client, "sys", "user", &out); err != nil {
		t.Fatalf("ChatJSON failed: %v", err)
	}
	if out.Notes != "second try" {
		t.Errorf("Notes = %q", out.Notes)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected retry request, got %d requests", len(client.requests))
	}
}

func TestChatJSONGivesUpAfterRetry(t *testing.T) {
	client := &scriptedClient{responses: []CompletionResponse{
		{Content: "not json"},
		{Content: "still not json"},
	}}

	var out map[string]any
	if err := ChatJSON(context.Background(), client, "sys", "user", &out); err == nil {
		t.Fatal("expected error after failed retry")
	}
}

func TestProposeEditStripsFences(t *testing.T) {
	client := &scriptedClient{responses: []CompletionResponse{
		{Content: "```go\npackage main\n\nfunc main() {}\n```"},
	}}

	content, err := ProposeEdit(context.Background(), client, "main.go", "add main", "")
	if err != nil {
		t.Fatalf("ProposeEdit failed: %v", err)
	}
	if content != "package main\n\nfunc main() {}" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestProposeEditRejectsEmpty(t *testing.T) {
	client := &scriptedClient{responses: []CompletionResponse{{Content: "```\n\n```"}}}
	if _, err := ProposeEdit(context.Background(), client, "main.go", "intent", "x"); err == nil {
		t.Fatal("empty rewrite should be an error")
	}
}

func TestValidate(t *testing.T) {
	req := CompletionRequest{}
	if err := req.Validate(); err == nil {
		t.Error("empty request should fail validation")
	}

	req = CompletionRequest{
		Messages:    []CompletionMessage{{Role: RoleUser, Content: "hi"}},
		Temperature: 3.0,
	}
	if err := req.Validate(); err == nil {
		t.Error("out of range temperature should fail validation")
	}

	req.Temperature = 0.2
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}
