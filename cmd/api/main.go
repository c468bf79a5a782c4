package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/josinaldojr/ragchat/internal/config"
	apphttp "github.com/josinaldojr/ragchat/internal/http"
	"github.com/josinaldojr/ragchat/internal/llm"
	"github.com/josinaldojr/ragchat/internal/logging"
	"github.com/josinaldojr/ragchat/internal/rag"
	"github.com/josinaldojr/ragchat/internal/vectorstore"
)

var rootCmd = &cobra.Command{
	Use:           "api",
	Short:         "Serve the streaming RAG chat API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		return run(cmd.Context(), port)
	},
}

func init() {
	rootCmd.Flags().String("port", "", "listen port (overrides PORT)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, port string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if port != "" {
		cfg.Port = port
	}

	repo, err := vectorstore.Open(ctx, cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer repo.Close()

	embeddings, err := llm.NewEmbeddings(ctx, cfg.Embedding)
	if err != nil {
		return fmt.Errorf("init embeddings: %w", err)
	}
	chat, err := llm.NewChat(ctx, cfg.Chat)
	if err != nil {
		return fmt.Errorf("init chat: %w", err)
	}

	service := rag.NewService(repo, embeddings, chat, rag.ServiceConfig{
		TopK:  cfg.Retrieval.TopK,
		Topic: cfg.Retrieval.Topic,
	}, logger)

	h := apphttp.NewHandler(service)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apphttp.NewRouter(h, logger, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("backend", cfg.VectorStore.Backend).
			Str("embeddings", cfg.Embedding.Provider).
			Str("chat", cfg.Chat.Provider).
			Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
