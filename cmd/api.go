package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/warmline/internal/action"
	"github.com/warmline/internal/api"
	"github.com/warmline/internal/classify"
	"github.com/warmline/internal/config"
	"github.com/warmline/internal/database"
	"github.com/warmline/internal/draft"
	"github.com/warmline/internal/engine"
	"github.com/warmline/internal/enrich"
	"github.com/warmline/internal/jobqueue"
	"github.com/warmline/internal/logging"
	"github.com/warmline/internal/messaging"
	"github.com/warmline/internal/score"
	"github.com/warmline/internal/thread"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the Warmline API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
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

	var posts score.PostFetcher
	var provider messaging.Provider
	messagingCfg := messaging.Config{
		BaseURL:        cfg.Messaging.BaseURL,
		Token:          cfg.Messaging.Token,
		SendsPerMinute: cfg.Messaging.SendsPerMinute,
	}
	if messagingCfg.Configured() {
		p := messaging.NewHTTPProvider(messagingCfg)
		posts = p
		provider = p
	} else {
		log.Warn().Msg("messaging provider not configured; outbound actions and post context disabled")
	}

	// Enrichment is opportunistic: without a provider the queue is simply not
	// wired and scoring never enqueues.
	var queue *jobqueue.Queue
	enrichCfg := enrich.Config{BaseURL: cfg.Enrichment.BaseURL, APIKey: cfg.Enrichment.APIKey}
	if enrichCfg.Configured() {
		queue, err = jobqueue.NewQueue(pool, store, enrich.NewHTTPProvider(enrichCfg), jobqueue.DefaultQueueConfig())
		if err != nil {
			return fmt.Errorf("failed to create job queue: %w", err)
		}
		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start job queue: %w", err)
		}
		defer queue.Stop(ctx)
	} else {
		log.Info().Msg("enrichment provider not configured; skipping enrichment queue")
	}

	classifier := classify.New(store, eng, classify.Config{
		BatchSize:      cfg.Pipeline.ClassifyBatchSize,
		RecentMessages: cfg.Pipeline.ClassifyMessages,
	})
	scoreCfg := score.Config{
		RecentMessages:   cfg.Pipeline.ScoreMessages,
		PostFetchLimit:   cfg.Pipeline.PostFetchLimit,
		PostContextLimit: cfg.Pipeline.PostContextLimit,
		QualifyThreshold: cfg.Pipeline.QualifyThreshold,
		BusinessLines:    cfg.Pipeline.BusinessLines,
	}
	var scorer *score.Scorer
	if queue != nil {
		scorer = score.New(store, eng, posts, queue, scoreCfg)
	} else {
		scorer = score.New(store, eng, posts, nil, scoreCfg)
	}
	drafter := draft.New(store, eng, draft.Config{
		Variants:       cfg.Pipeline.DraftVariants,
		RecentMessages: cfg.Pipeline.ScoreMessages,
	})
	gateway := action.New(store, provider)

	port := c.Int("port")
	if port == 0 {
		port = cfg.Server.Port
	}
	fmt.Printf("Starting Warmline API server on port %d...\n", port)

	server := api.NewServer(port, store, classifier, scorer, drafter, gateway)
	return server.Start()
}
