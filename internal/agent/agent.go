// Package agent implements the document QA loop: a bounded tool-calling
// conversation in which the model decides when to search the ingested
// document and when to answer. The agent owns the conversation transcript,
// executes search_document calls against the retriever, and stops on the
// first assistant message that carries content without tool calls.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docqa/docqa-go/internal/llm"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
)

// systemPrompt establishes the grounding policy: answer only from retrieved
// context, and prefer searching over guessing.
const systemPrompt = `You are a document QA agent. Your job is:
1) Decide when to search the document.
2) Use the search_document tool to retrieve relevant passages.
3) Then answer the user's question based ONLY on the retrieved context.
4) If you need more context, call the tool again.
5) When you are ready, give a concise, grounded answer.

Always prefer using the tool instead of guessing from your own knowledge.
When you call search_document, pass a JSON object with the query, an optional doc_id, and top_k.`

// DefaultMaxRounds bounds the number of model invocations per question.
const DefaultMaxRounds = 4

// Searcher retrieves ranked passages from an ingested document.
type Searcher interface {
	Search(ctx context.Context, query, docID string, topK int) ([]rag.Candidate, error)
}

// Result is a successful agent run: the final answer plus the full
// conversation that produced it.
type Result struct {
	Answer       string        `json:"answer"`
	Conversation []llm.Message `json:"messages"`
}

// RoundLimitError reports that the model never produced a final answer
// within the round budget. It carries the full conversation so callers can
// surface or log the transcript.
type RoundLimitError struct {
	Rounds       int
	Conversation []llm.Message
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("agent: no final answer after %d rounds", e.Rounds)
}

// Agent runs the bounded question-answering loop against a chat model and a
// document searcher.
type Agent struct {
	model               llm.ChatModel
	searcher            Searcher
	maxRounds           int
	maxToolResultTokens int
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxRounds overrides the round budget. Values below 1 are ignored.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n >= 1 {
			a.maxRounds = n
		}
	}
}

// WithMaxToolResultTokens overrides the per-tool-result size cap. Zero or
// negative disables truncation.
func WithMaxToolResultTokens(n int) Option {
	return func(a *Agent) { a.maxToolResultTokens = n }
}

// New builds an Agent. model and searcher are required.
func New(model llm.ChatModel, searcher Searcher, opts ...Option) (*Agent, error) {
	if model == nil {
		return nil, fmt.Errorf("agent: chat model is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("agent: searcher is required")
	}
	a := &Agent{
		model:               model,
		searcher:            searcher,
		maxRounds:           DefaultMaxRounds,
		maxToolResultTokens: DefaultMaxToolResultTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run answers question against the document identified by docID. It returns
// a Result on success. When the round budget is exhausted without a final
// answer, the error is a *RoundLimitError carrying the conversation.
// Transport and decoding failures abort the run immediately.
func (a *Agent) Run(ctx context.Context, question, docID string) (*Result, error) {
	log := logging.FromContext(ctx)

	messages := []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(question),
	}
	tools := []llm.Tool{searchTool()}

	for round := 1; round <= a.maxRounds; round++ {
		raw, err := a.model.Complete(ctx, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("agent: round %d completion failed: %w", round, err)
		}
		msg, err := llm.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("agent: round %d produced an undecodable message: %w", round, err)
		}

		if len(msg.ToolCalls) > 0 {
			// The assistant turn that requested the calls must precede the
			// tool results, and every call ID gets exactly one result.
			messages = append(messages, llm.AssistantMessage(msg.Content, msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				messages = append(messages, a.executeToolCall(ctx, call, question, docID))
			}
			continue
		}

		if msg.Content != "" {
			messages = append(messages, llm.AssistantMessage(msg.Content, nil))
			log.Debug("agent produced final answer", "rounds", round)
			return &Result{Answer: msg.Content, Conversation: messages}, nil
		}

		// No tool call and no content: the round is spent, keep going.
		log.Warn("model returned an empty message", "round", round)
	}

	return nil, &RoundLimitError{Rounds: a.maxRounds, Conversation: messages}
}

// executeToolCall runs a single requested tool call and returns the tool
// message to append. Unknown tools and search failures become error payloads
// rather than aborting the run, so the model can recover on the next round.
func (a *Agent) executeToolCall(ctx context.Context, call llm.ToolCall, question, docID string) llm.Message {
	log := logging.FromContext(ctx)
	name := call.Function.Name

	if name != searchToolName {
		log.Warn("model requested unknown tool", "tool", name)
		return llm.ToolMessage(call.ID, name, `{"error": "unknown tool"}`)
	}

	args := parseSearchArgs(call.Function.Arguments, question, docID)
	log.Debug("executing document search",
		"query", args.Query, "doc_id", args.DocID, "top_k", args.TopK)

	candidates, err := a.searcher.Search(ctx, args.Query, args.DocID, args.TopK)
	if err != nil {
		log.Error("document search failed", "error", err)
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return llm.ToolMessage(call.ID, name, string(payload))
	}

	payload, err := json.Marshal(candidates)
	if err != nil {
		return llm.ToolMessage(call.ID, name, `{"error": "failed to encode search results"}`)
	}
	return llm.ToolMessage(call.ID, name, truncateToolResult(string(payload), a.maxToolResultTokens))
}
