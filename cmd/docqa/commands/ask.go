package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/agent"
	"github.com/docqa/docqa-go/internal/logging"
)

// NewAskCmd constructs the `docqa ask` command, which answers a single
// question against an ingested document and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	var docID string
	var showTranscript bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about an ingested document",
		Long: `Ask a natural language question about a previously ingested document.

The agent searches the document's stored chunks and answers grounded only in
the retrieved passages. When it cannot settle on an answer within its round
budget the full conversation transcript is printed instead.

Examples:
  docqa ask "what were the q3 revenue figures?"
  docqa ask --doc q3 "what were the revenue figures?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			qaAgent, st, err := buildAgent(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer st.Close()

			res, err := qaAgent.Run(ctx, args[0], docID)
			if err != nil {
				var limitErr *agent.RoundLimitError
				if errors.As(err, &limitErr) {
					fmt.Fprintln(os.Stderr, limitErr.Error())
					transcript, _ := json.MarshalIndent(limitErr.Conversation, "", "  ")
					fmt.Fprintln(os.Stderr, string(transcript))
					return fmt.Errorf("ask: %w", limitErr)
				}
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(res.Answer)
			if showTranscript {
				transcript, _ := json.MarshalIndent(res.Conversation, "", "  ")
				fmt.Fprintln(os.Stderr, string(transcript))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&docID, "doc", "doc1", "Document id to answer against")
	cmd.Flags().BoolVar(&showTranscript, "transcript", false, "Print the full conversation transcript to stderr")

	return cmd
}
