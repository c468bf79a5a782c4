package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/josinaldojr/ragchat/internal/config"
	"github.com/josinaldojr/ragchat/internal/llm"
	"github.com/josinaldojr/ragchat/internal/logging"
	"github.com/josinaldojr/ragchat/internal/rag"
	"github.com/josinaldojr/ragchat/internal/scraper"
	"github.com/josinaldojr/ragchat/internal/splitter"
	"github.com/josinaldojr/ragchat/internal/vectorstore"
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrape, split, embed and store the configured source pages",
	Long: `ingest loads every source URL, splits its text with a sliding window,
embeds each chunk and upserts it into the vector store.

Sources come from INGEST_SOURCES unless --source is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, _ := cmd.Flags().GetStringArray("source")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return run(cmd.Context(), sources, dryRun)
	},
}

func init() {
	rootCmd.Flags().StringArray("source", nil, "source URL to ingest (repeatable, overrides INGEST_SOURCES)")
	rootCmd.Flags().Bool("dry-run", false, "scrape and split only, do not embed or store")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, sources []string, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if len(sources) == 0 {
		sources = cfg.Ingest.Sources
	}

	sc, err := scraper.New(cfg.Scraper.Kind, cfg.Scraper.Headless)
	if err != nil {
		return err
	}
	sp, err := splitter.New(cfg.Splitter.Kind, cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap)
	if err != nil {
		return err
	}

	if dryRun {
		in := rag.NewIngester(sc, sp, nil, nil, rag.CollectionSpec{}, logger)
		report, err := in.Preview(ctx, sources)
		if err != nil {
			return err
		}
		logger.Info().Interface("report", report).Msg("dry run complete")
		return nil
	}

	embeddings, err := llm.NewEmbeddings(ctx, cfg.Embedding)
	if err != nil {
		return fmt.Errorf("init embeddings: %w", err)
	}
	spec, err := vectorstore.Spec(cfg.VectorStore, embeddings.Dimensions())
	if err != nil {
		return err
	}

	repo, err := vectorstore.Open(ctx, cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer repo.Close()

	in := rag.NewIngester(sc, sp, embeddings, repo, spec, logger)
	report, err := in.Run(ctx, sources)
	if err != nil {
		logger.Error().Err(err).Msg("ingestion failed")
		return err
	}

	logger.Info().Interface("report", report).Msg("ingestion complete")
	return nil
}
