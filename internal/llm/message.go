// Package llm provides the chat-completion client and message types used by
// the agent, plus the normalization boundary that maps heterogeneous provider
// response shapes into one canonical form. All provider-specific shape
// sniffing lives behind [Normalize] so the agent's state machine never
// branches on response shape.
package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem is the grounding policy message that opens a conversation.
	RoleSystem Role = "system"
	// RoleUser is the question being asked.
	RoleUser Role = "user"
	// RoleAssistant is a model response, possibly carrying tool calls.
	RoleAssistant Role = "assistant"
	// RoleTool is a tool execution result paired to an assistant tool call.
	RoleTool Role = "tool"
)

// Message is a single turn in a conversation, in the wire format submitted
// to the completion endpoint.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the message text. Present but empty for assistant messages
	// that only carry tool calls.
	Content string `json:"content"`
	// ToolCalls holds the tool invocations requested by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID pairs a tool-result message to the assistant tool call that
	// requested it. The endpoint rejects mismatched pairings.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Name is the tool name on tool-result messages.
	Name string `json:"name,omitempty"`
}

// ToolCall is a model's structured request to execute a tool.
type ToolCall struct {
	// ID is the opaque call identifier. Synthesized during normalization
	// when the provider omits one.
	ID string `json:"id"`
	// Type is the call type, always "function" for this system.
	Type string `json:"type"`
	// Function carries the tool name and serialized arguments.
	Function FunctionCall `json:"function"`
}

// FunctionCall is the name/arguments pair inside a tool call.
type FunctionCall struct {
	// Name is the tool to invoke.
	Name string `json:"name"`
	// Arguments is a serialized JSON object. Treated as untrusted input:
	// the agent validates and coerces every field before use.
	Arguments string `json:"arguments"`
}

// Tool declares a callable function in the schema submitted with each
// completion request.
type Tool struct {
	// Type is always "function".
	Type string `json:"type"`
	// Function is the declared schema.
	Function ToolFunction `json:"function"`
}

// ToolFunction describes one callable function.
type ToolFunction struct {
	// Name is the function name the model must use to invoke it.
	Name string `json:"name"`
	// Description tells the model when to call the function.
	Description string `json:"description"`
	// Parameters is the JSON Schema object describing the arguments.
	Parameters map[string]any `json:"parameters"`
}

// ChatModel is the completion collaborator consumed by the agent.
// Implementations must be safe to call from multiple goroutines.
type ChatModel interface {
	// Complete submits the conversation plus the declared tool schema,
	// requesting automatic tool-use decisions, and returns the provider's
	// response message in whatever shape the provider produced. Callers
	// pass the result through [Normalize] before inspecting it.
	Complete(ctx context.Context, messages []Message, tools []Tool) (json.RawMessage, error)
}

// SystemMessage returns a system-role message with the given content.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message with the given content.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role message carrying content and
// any tool calls the model requested.
func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage returns a tool-result message tagged with the call identifier
// and tool name it answers.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: content}
}
