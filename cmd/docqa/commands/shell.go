package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/agent"
	"github.com/docqa/docqa-go/internal/embedder"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/llm"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
)

// NewShellCmd constructs the `docqa shell` command, an interactive REPL for
// ingesting documents and asking questions without restarting the binary.
func NewShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive ingest/ask session",
		Long: `Start an interactive session. Commands:

  ingest <file_path> [doc_id]   ingest a document
  ask <doc_id> <question>       ask a question about a document
  docs                          list ingested documents
  exit                          quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			st, err := openStore()
			if err != nil {
				return fmt.Errorf("shell: %w", err)
			}
			defer st.Close()

			ck, err := newChunker()
			if err != nil {
				return fmt.Errorf("shell: %w", err)
			}
			embedder.Validate(log)
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("shell: %w", err)
			}
			pipeline, err := ingestion.New(ck, emb, st)
			if err != nil {
				return fmt.Errorf("shell: %w", err)
			}

			retriever, err := rag.NewRetriever(emb, st, 0)
			if err != nil {
				return fmt.Errorf("shell: %w", err)
			}
			model, err := llm.NewFromEnv()
			if err != nil {
				return fmt.Errorf("shell: %w", err)
			}
			qaAgent, err := agent.New(model, retriever)
			if err != nil {
				return fmt.Errorf("shell: %w", err)
			}

			fmt.Println("docqa interactive shell. Commands:")
			fmt.Println("  ingest <file_path> [doc_id]")
			fmt.Println("  ask <doc_id> <question>")
			fmt.Println("  docs")
			fmt.Println("  exit")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("cmd> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				parts := strings.SplitN(line, " ", 3)
				switch parts[0] {
				case "exit", "quit":
					return nil

				case "ingest":
					if len(parts) < 2 {
						fmt.Println("usage: ingest <file_path> [doc_id]")
						continue
					}
					docID := ""
					if len(parts) == 3 {
						docID = parts[2]
					}
					res, err := pipeline.IngestFile(ctx, parts[1], docID, false)
					if err != nil {
						fmt.Printf("ingest failed: %v\n", err)
						continue
					}
					fmt.Printf("stored %d chunks under doc id %q\n", res.ChunksAdded, res.DocID)

				case "ask":
					if len(parts) < 3 {
						fmt.Println("usage: ask <doc_id> <question>")
						continue
					}
					res, err := qaAgent.Run(ctx, parts[2], parts[1])
					if err != nil {
						fmt.Printf("ask failed: %v\n", err)
						continue
					}
					fmt.Println(res.Answer)

				case "docs":
					docs, err := st.Documents(ctx)
					if err != nil {
						fmt.Printf("listing failed: %v\n", err)
						continue
					}
					if len(docs) == 0 {
						fmt.Println("no documents ingested yet")
						continue
					}
					for _, d := range docs {
						fmt.Printf("  %s (%d chunks)\n", d.DocID, d.Chunks)
					}

				default:
					fmt.Printf("unknown command %q\n", parts[0])
				}
			}
		},
	}
}
