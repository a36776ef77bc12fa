package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/warmline/internal/classify"
	"github.com/warmline/internal/config"
	"github.com/warmline/internal/database"
	"github.com/warmline/internal/engine"
	"github.com/warmline/internal/logging"
	"github.com/warmline/internal/thread"
)

// ClassifyCommand returns the CLI command that classifies the unclassified
// backlog once and exits. Useful from cron when the API server is not running.
func ClassifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Classify the backlog of unclassified threads and exit",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Maximum threads to classify in this run",
			},
		},
		Action: runClassify,
	}
}

func runClassify(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Setup(cfg.Server.LogLevel)

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := thread.NewPostgresStore(pool)

	eng, err := engine.New(ctx, engine.Config{
		APIKey:      cfg.Engine.APIKey,
		Model:       cfg.Engine.Model,
		MaxTokens:   cfg.Engine.MaxTokens,
		Temperature: cfg.Engine.Temperature,
		Timeout:     cfg.EngineTimeout(),
	})
	if err != nil {
		return err
	}

	batchSize := c.Int("batch-size")
	if batchSize == 0 {
		batchSize = cfg.Pipeline.ClassifyBatchSize
	}
	classifier := classify.New(store, eng, classify.Config{
		BatchSize:      batchSize,
		RecentMessages: cfg.Pipeline.ClassifyMessages,
	})

	res, err := classifier.ClassifyBacklog(ctx)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	fmt.Printf("Classified %d, skipped %d, failed %d\n", res.Classified, res.Skipped, res.Failed)
	return nil
}
