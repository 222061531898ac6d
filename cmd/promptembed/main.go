package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timhaintz/promptembed/internal/caller"
	"github.com/timhaintz/promptembed/internal/chunkstore"
	"github.com/timhaintz/promptembed/internal/config"
	"github.com/timhaintz/promptembed/internal/indexer"
	"github.com/timhaintz/promptembed/internal/pipeline"
	"github.com/timhaintz/promptembed/internal/processor"
	"github.com/timhaintz/promptembed/internal/provider"
	"github.com/timhaintz/promptembed/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "promptembed",
		Short: "Generate and index embeddings for the prompt-pattern taxonomy",
		Long: "promptembed reads the prompt-pattern source corpus, generates embeddings " +
			"through a rate-limited provider with incremental caching, and writes one JSON " +
			"chunk per paper plus a master index for the web client.",
	}

	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newIndexCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	// stdout stays clean for command output; logs go to stderr as JSON.
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

func newGenerateCommand() *cobra.Command {
	var (
		sourcePath string
		outputDir  string
		limit      int
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the full embedding pipeline",
		Long: "Process every paper in the source corpus: reuse embeddings whose text is " +
			"unchanged, recompute the rest, then rebuild the master index and statistics. " +
			"The run completes even with partial failures; only an unreadable source corpus " +
			"is fatal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if sourcePath != "" {
				cfg.SourcePath = sourcePath
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if workers > 0 {
				cfg.Workers = workers
			}

			log := newLogger(cfg)
			log.Info("promptembed starting", "version", version, "build_time", buildTime,
				"model", cfg.EmbeddingModel, "workers", cfg.Workers)

			p, err := provider.NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
			if err != nil {
				return err
			}

			stats := &types.RunStats{}
			store := chunkstore.New(cfg.OutputDir, log)
			c := caller.New(p, stats, caller.Config{
				MinInterval: cfg.MinCallInterval(),
				Retry: caller.RetryConfig{
					MaxAttempts:    cfg.MaxRetryAttempts,
					BaseDelay:      caller.DefaultBaseDelay,
					MaxDelay:       caller.DefaultMaxDelay,
					Multiplier:     caller.DefaultBackoffMultiplier,
					RateLimitDelay: caller.DefaultRateLimitDelay,
				},
				BreakerThreshold: cfg.BreakerThreshold,
				CacheSize:        cfg.CacheSize,
			}, log)
			proc := processor.New(store, c, stats, cfg.EmbeddingModel, cfg.EmbeddingDimensions, log)
			builder := indexer.New(store, cfg.EmbeddingModel, log)
			driver := pipeline.New(store, proc, c, builder, stats, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := driver.Run(ctx, pipeline.Options{
				SourcePath: cfg.SourcePath,
				Limit:      limit,
				Workers:    cfg.Workers,
			})
			if err != nil {
				if errors.Is(err, types.ErrSourceUnreadable) {
					log.Error("fatal: source corpus unreadable", "error", err)
				}
				return err
			}

			// Partial failures still exit zero; the summary and the stats
			// artifact carry the details.
			if !summary.Clean() {
				log.Warn("run completed with partial failures",
					"groups_failed", summary.GroupsFailed,
					"failed_items", summary.FailedItems,
					"duplicate_ids", len(summary.DuplicateIDs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "Source corpus path (default from SOURCE_PATH)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from OUTPUT_DIR)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Cap groups processed (0 = all), for local testing")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent group workers (default from WORKERS)")

	return cmd
}

func newIndexCommand() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the master index from chunk files on disk",
		Long: "Scan the output directory's chunk files and regenerate master-index.json " +
			"without any provider calls. Useful after manual chunk surgery.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}

			log := newLogger(cfg)
			store := chunkstore.New(cfg.OutputDir, log)
			builder := indexer.New(store, cfg.EmbeddingModel, log)

			index, duplicates, err := builder.Build(&types.RunStats{})
			if err != nil {
				return err
			}
			if err := builder.WriteIndex(index); err != nil {
				return err
			}

			log.Info("master index rebuilt",
				"groups", index.Metadata.TotalGroups,
				"items", len(index.ItemToGroup),
				"duplicates", len(duplicates))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from OUTPUT_DIR)")
	return cmd
}

func newStatsCommand() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the last run's generation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}

			data, err := os.ReadFile(filepath.Join(cfg.OutputDir, indexer.StatsFileName))
			if err != nil {
				return fmt.Errorf("no statistics found, run generate first: %w", err)
			}

			var stats indexer.GenerationStats
			if err := json.Unmarshal(data, &stats); err != nil {
				return fmt.Errorf("parse statistics: %w", err)
			}

			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from OUTPUT_DIR)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "promptembed %s (built %s)\n", version, buildTime)
		},
	}
}
