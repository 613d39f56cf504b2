package backend

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// errorTextMarkers identify assistant messages that quote a relayed API
// error back at the backend. The backend's channel detection rejects
// conversations containing them, so they are dropped before sending.
var errorTextMarkers = []string{"Error: API error", "API error:"}

// normalizeMessages rewrites a conversation into the form the backend
// accepts: error-quoting assistant messages are dropped, the OpenAI "tool"
// role becomes "user" with its payload restructured as a tool_result part,
// and structured tool_result parts are rebuilt with a valid toolUseId.
func normalizeMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == RoleAssistant && containsErrorText(msg.Content) {
			continue
		}

		if msg.Role == RoleTool {
			msg.Content = toolResultContent(msg)
			msg.Role = RoleUser
			msg.ToolCallID = ""
		} else if parts, ok := decodeParts(msg.Content); ok {
			msg.Content = normalizeParts(parts)
		}

		out = append(out, msg)
	}
	return out
}

// containsErrorText reports whether a plain-string content carries one of
// the error markers. Structured content never matches.
func containsErrorText(content json.RawMessage) bool {
	var text string
	if err := json.Unmarshal(content, &text); err != nil {
		return false
	}
	for _, marker := range errorTextMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// toolResultContent rebuilds a tool message's content as structured
// tool_result parts keyed by the call it answers.
func toolResultContent(msg Message) json.RawMessage {
	if parts, ok := decodeParts(msg.Content); ok {
		return normalizeParts(parts)
	}

	var text string
	if err := json.Unmarshal(msg.Content, &text); err != nil {
		text = string(msg.Content)
	}
	raw, err := json.Marshal([]map[string]interface{}{{
		"type":      "tool_result",
		"toolUseId": toolUseID(msg.ToolCallID),
		"content":   text,
	}})
	if err != nil {
		return msg.Content
	}
	return raw
}

// decodeParts parses structured content into its parts. It returns false
// for plain-string content and for arrays that are not part objects.
func decodeParts(content json.RawMessage) ([]map[string]interface{}, bool) {
	if !strings.HasPrefix(strings.TrimSpace(string(content)), "[") {
		return nil, false
	}
	var parts []map[string]interface{}
	if err := json.Unmarshal(content, &parts); err != nil {
		return nil, false
	}
	return parts, true
}

// normalizeParts rebuilds tool_result parts with a canonical shape and a
// valid toolUseId, leaving all other part types untouched.
func normalizeParts(parts []map[string]interface{}) json.RawMessage {
	normalized := make([]map[string]interface{}, 0, len(parts))
	for _, part := range parts {
		if part["type"] != "tool_result" {
			normalized = append(normalized, part)
			continue
		}

		id, _ := firstString(part, "toolUseId", "tool_use_id", "id")
		content := part["content"]
		if content == nil {
			content = part["text"]
		}
		normalized = append(normalized, map[string]interface{}{
			"type":      "tool_result",
			"toolUseId": toolUseID(id),
			"content":   content,
		})
	}

	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil
	}
	return raw
}

func firstString(part map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := part[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// toolUseID returns the given id when it satisfies the backend's
// [a-zA-Z0-9_-]+ requirement, and a generated one otherwise.
func toolUseID(id string) string {
	if validToolUseID(id) {
		return id
	}
	return "tool_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func validToolUseID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
