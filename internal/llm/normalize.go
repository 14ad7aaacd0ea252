package llm

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NormalizedMessage is the canonical internal representation of a provider
// response message: optional content plus an ordered list of tool calls with
// guaranteed non-empty call identifiers.
type NormalizedMessage struct {
	// Content is the message text, empty when the provider sent none.
	Content string
	// ToolCalls holds every detected tool invocation, in provider order.
	ToolCalls []ToolCall
}

// wireFunctionCall is the loose decoding target for a function/tool call
// payload. Arguments may arrive as a JSON string or an inline object.
type wireFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// wireToolCall is the loose decoding target for one entry of the list-based
// tool_calls convention.
type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

// wireMessage is the loose decoding target for a provider response message.
// It accepts both shape conventions side by side: the list-based tool_calls
// field and the legacy single-call function_call / tool_call fields.
type wireMessage struct {
	Content      json.RawMessage   `json:"content"`
	ToolCalls    []wireToolCall    `json:"tool_calls"`
	FunctionCall *wireFunctionCall `json:"function_call"`
	ToolCall     *wireFunctionCall `json:"tool_call"`
}

// Normalize maps a raw provider message into the canonical representation.
// Both the legacy single-call convention and the list-based multi-call
// convention are detected; a message matching neither is returned with no
// tool calls so the agent falls through to its final-answer path (a
// shape-detection miss is graceful degradation, not a failure). Only a
// response that is not a JSON object at all is an error.
//
// Call identifiers are preserved when present and synthesized otherwise, so
// tool-result messages can always be paired to the call that requested them.
func Normalize(raw json.RawMessage) (*NormalizedMessage, error) {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("llm: malformed response message: %w", err)
	}

	norm := &NormalizedMessage{Content: decodeContent(wire.Content)}

	// List-based convention takes precedence: providers that send tool_calls
	// may also echo a deprecated function_call mirror of the first entry.
	if len(wire.ToolCalls) > 0 {
		for _, tc := range wire.ToolCalls {
			if tc.Function.Name == "" {
				continue
			}
			norm.ToolCalls = append(norm.ToolCalls, canonicalToolCall(tc.ID, tc.Function))
		}
		return norm, nil
	}

	// Legacy single-call convention: function_call, or tool_call on some SDKs.
	legacy := wire.FunctionCall
	if legacy == nil {
		legacy = wire.ToolCall
	}
	if legacy != nil && legacy.Name != "" {
		norm.ToolCalls = append(norm.ToolCalls, canonicalToolCall("", *legacy))
	}

	return norm, nil
}

// canonicalToolCall builds a ToolCall with normalized arguments and a
// guaranteed call identifier.
func canonicalToolCall(id string, fn wireFunctionCall) ToolCall {
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	return ToolCall{
		ID:   id,
		Type: "function",
		Function: FunctionCall{
			Name:      fn.Name,
			Arguments: normalizeArguments(fn.Arguments),
		},
	}
}

// normalizeArguments reduces the two argument encodings — a JSON string
// containing an object, or an inline object — to a serialized JSON object.
// Anything unparseable becomes the empty object: arguments are untrusted
// model output, and the agent supplies defaults for missing fields.
func normalizeArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}

	// String encoding: unquote, then verify the payload parses as an object.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if validObject(s) {
			return s
		}
		return "{}"
	}

	// Inline object encoding.
	if validObject(string(raw)) {
		return string(raw)
	}
	return "{}"
}

// validObject reports whether s parses as a JSON object.
func validObject(s string) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

// decodeContent extracts the textual content of a message. Content may be a
// JSON string, null, or absent; any other shape (e.g. structured content
// parts) is treated as empty.
func decodeContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
