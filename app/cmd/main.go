package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ragchat/app/server"
	"ragchat/config"
	"ragchat/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ragchat",
		Short:         "Document chat backed by retrieval over uploaded PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCmd(), newIngestCmd(), newSummarizeCmd())
	return rootCmd
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return server.NewServer(cfg, logger).Run(cmd.Context())
		},
	}
}

func newIngestCmd() *cobra.Command {
	var indexOnly bool
	cmd := &cobra.Command{
		Use:   "ingest [pdf]",
		Short: "Summarize, record and index one PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := server.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			run := c.Ingestor.Upload
			if indexOnly {
				run = c.Ingestor.Ingest
			}
			res, err := run(cmd.Context(), args[0])
			var partial *types.PartialIngestionError
			if errors.As(err, &partial) {
				fmt.Fprintf(cmd.OutOrStdout(), "partial: failed at %q, vectorized=%t images_processed=%t\n",
					partial.Step, partial.Vectorized, partial.ImagesProcessed)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chunks=%d images=%d\n", res.Chunks, res.Images)
			return nil
		},
	}
	cmd.Flags().BoolVar(&indexOnly, "index-only", false, "index text and images without writing metadata rows")
	return cmd
}

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [pdf]",
		Short: "Print the summary of one PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := server.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			summary, err := c.Ingestor.Summarize(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}
