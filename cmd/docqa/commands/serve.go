package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/agent"
	"github.com/docqa/docqa-go/internal/embedder"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/llm"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
	"github.com/docqa/docqa-go/internal/server"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP
// server exposing document upload and question answering.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP server",
		Long: `Start the docqa HTTP server on localhost.

The server exposes a REST API:
  POST /api/upload     upload a document (multipart: file, doc_id, replace)
  POST /api/ask        ask a question ({"question": ..., "doc_id": ...})
  GET  /api/documents  list ingested documents
  GET  /api/health     liveness check
  GET  /api/ready      readiness check (probes store and model backends)
  GET  /metrics        Prometheus metrics

Set DOCQA_API_KEY to require a Bearer token on the /api/* routes.

Examples:
  docqa serve
  docqa serve --port 9090
  MODEL_PROVIDER=ollama docqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			st, err := openStore()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer st.Close()
			if err := st.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			ck, err := newChunker()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			embedder.Validate(log)
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}
			pipeline, err := ingestion.New(ck, emb, st)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			retriever, err := rag.NewRetriever(emb, st, 0)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			model, err := llm.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}

			var opts []agent.Option
			if rounds := envInt("AGENT_MAX_ROUNDS", 0); rounds > 0 {
				opts = append(opts, agent.WithMaxRounds(rounds))
			}
			qaAgent, err := agent.New(model, retriever, opts...)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise agent: %w", err)
			}

			pingers := []server.Pinger{server.NewStorePinger(st)}
			if endpoint := os.Getenv("EMBEDDING_ENDPOINT"); endpoint != "" {
				pingers = append(pingers, server.NewEndpointPinger("embedder", endpoint))
			}
			if endpoint := os.Getenv("OLLAMA_HOST"); endpoint != "" {
				pingers = append(pingers, server.NewEndpointPinger("llm", endpoint))
			}

			srv, err := server.New(qaAgent, pipeline, st, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				APIKey:    os.Getenv("DOCQA_API_KEY"),
				RateLimit: float64(envInt("DOCQA_RATE_LIMIT", 0)),
				RateBurst: envInt("DOCQA_RATE_BURST", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
