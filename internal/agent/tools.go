package agent

import (
	"encoding/json"
	"strconv"

	"github.com/docqa/docqa-go/internal/llm"
)

// searchToolName is the single tool exposed to the model.
const searchToolName = "search_document"

// defaultTopK matches the retriever's default when the model omits top_k.
const defaultTopK = 3

// searchTool returns the tool schema advertised to the model on every round.
func searchTool() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        searchToolName,
			Description: "Search the ingested document for passages relevant to a query. Returns the top matching chunks with similarity scores.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query to run against the document.",
					},
					"doc_id": map[string]any{
						"type":        "string",
						"description": "Identifier of the document to search. Defaults to the document under discussion.",
					},
					"top_k": map[string]any{
						"type":        "integer",
						"description": "Number of passages to return. Defaults to 3.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// searchArgs holds the parsed arguments of a search_document call. Model
// output is untrusted: fields may be missing, null, or carry the wrong JSON
// type, so parsing never fails — it falls back to defaults instead.
type searchArgs struct {
	Query string
	DocID string
	TopK  int
}

// parseSearchArgs decodes the arguments payload of a tool call, filling in
// defaultQuery and defaultDocID for absent fields. top_k accepts both JSON
// numbers and numeric strings; anything else falls back to defaultTopK.
func parseSearchArgs(raw, defaultQuery, defaultDocID string) searchArgs {
	args := searchArgs{
		Query: defaultQuery,
		DocID: defaultDocID,
		TopK:  defaultTopK,
	}

	var fields struct {
		Query json.RawMessage `json:"query"`
		DocID json.RawMessage `json:"doc_id"`
		TopK  json.RawMessage `json:"top_k"`
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return args
	}

	if s, ok := decodeString(fields.Query); ok && s != "" {
		args.Query = s
	}
	if s, ok := decodeString(fields.DocID); ok && s != "" {
		args.DocID = s
	}
	if k, ok := decodeInt(fields.TopK); ok && k > 0 {
		args.TopK = k
	}
	return args
}

func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	}
	// Some models emit numeric fields as strings.
	if s, ok := decodeString(raw); ok {
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
	}
	return 0, false
}
