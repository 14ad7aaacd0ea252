package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/logging"
)

// NewIngestCmd constructs the `docqa ingest` command, which extracts,
// chunks, embeds, and stores a document file.
func NewIngestCmd() *cobra.Command {
	var docID string
	var replace bool

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a document into the local chunk store",
		Long: `Extract text from a document file, split it into chunks, embed each chunk,
and store the results in the local SQLite database.

Supported formats: .txt, .md, .pdf, .docx.

By default the document id is the file name without its extension, and
re-ingesting a document appends a new generation of chunks alongside the old
ones. Use --replace to atomically swap out all previously stored chunks.

Examples:
  docqa ingest report.pdf
  docqa ingest --doc-id q3 report.pdf
  docqa ingest --doc-id q3 --replace report-v2.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			pipeline, st, err := buildPipeline(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer st.Close()

			res, err := pipeline.IngestFile(ctx, args[0], docID, replace)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("Ingested %q: %d chunks stored under doc id %q\n", args[0], res.ChunksAdded, res.DocID)
			return nil
		},
	}

	cmd.Flags().StringVar(&docID, "doc-id", "", "Document id to store chunks under (default: file name without extension)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace all previously stored chunks of the document")

	return cmd
}
