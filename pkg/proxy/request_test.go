package proxy

import (
	"net/http/httptest"
	"strings"
	"testing"

	"codebuddy-hq/relay/pkg/proxy/types"
)

func parseBody(t *testing.T, body string) (interface{}, error) {
	t.Helper()
	r := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	return ParseChatRequest(r)
}

func TestParseChatRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(
		`{"model":"claude-4.0","messages":[{"role":"user","content":"hi"}],"stream":true,"temperature":0.5}`))

	req, err := ParseChatRequest(r)
	if err != nil {
		t.Fatalf("ParseChatRequest failed: %v", err)
	}
	if req.Model != "claude-4.0" {
		t.Errorf("unexpected model: %s", req.Model)
	}
	if !req.Stream {
		t.Error("stream flag not parsed")
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if req.Temperature == nil || *req.Temperature != 0.5 {
		t.Errorf("unexpected temperature: %v", req.Temperature)
	}
}

func TestParseChatRequestRejections(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		param string
		code  string
	}{
		{
			name: "invalid JSON",
			body: `{"model": "claude`,
			code: types.CodeInvalidJSON,
		},
		{
			name:  "missing model",
			body:  `{"messages":[{"role":"user","content":"hi"}]}`,
			param: "model",
			code:  types.CodeMissingField,
		},
		{
			name:  "empty messages",
			body:  `{"model":"claude-4.0","messages":[]}`,
			param: "messages",
			code:  types.CodeMissingField,
		},
		{
			name:  "message without role",
			body:  `{"model":"claude-4.0","messages":[{"content":"hi"}]}`,
			param: "messages[0].role",
			code:  types.CodeMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBody(t, tt.body)
			if err == nil {
				t.Fatal("expected an error")
			}
			reqErr, ok := err.(*RequestError)
			if !ok {
				t.Fatalf("expected *RequestError, got %T", err)
			}
			if reqErr.Param != tt.param {
				t.Errorf("expected param %q, got %q", tt.param, reqErr.Param)
			}
			if reqErr.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, reqErr.Code)
			}
		})
	}
}
