package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quartierlabs/prospector/internal/api"
	"github.com/quartierlabs/prospector/internal/audit"
	"github.com/quartierlabs/prospector/internal/catalog"
	"github.com/quartierlabs/prospector/internal/checkpoint"
	"github.com/quartierlabs/prospector/internal/config"
	"github.com/quartierlabs/prospector/internal/fetch"
	"github.com/quartierlabs/prospector/internal/logging"
	"github.com/quartierlabs/prospector/internal/match"
	"github.com/quartierlabs/prospector/internal/metrics"
	"github.com/quartierlabs/prospector/internal/pipeline"
	"github.com/quartierlabs/prospector/internal/registry"
)

func newRunCmd() *cobra.Command {
	var (
		resume     bool
		dryRun     bool
		maxWorkers int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the combo queue and enrich the registry",
		Long: `Builds the (trade, city) queue, optionally minus already-completed
combos from the checkpoint, and drains it with a progressively scaled
worker pool. With --dry-run the queue is built and reported but
nothing is fetched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), resume, dryRun, maxWorkers)
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", true, "skip combos recorded in the checkpoint")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build and report the queue without fetching")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "override the configured worker ceiling")

	return cmd
}

func runPipeline(parent context.Context, resume, dryRun bool, maxWorkers int) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	metrics.Init()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// After the first signal drains gracefully, restore default
		// handling so a second signal terminates immediately.
		<-ctx.Done()
		stop()
	}()

	store, err := registry.NewPostgresStore(ctx, registry.PostgresConfig{
		DSN:      cfg.Registry.DSN,
		MaxConns: int32(cfg.Registry.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("connect registry: %w", err)
	}
	defer store.Close()

	checkpoints, err := checkpoint.NewStore(cfg.Paths.Checkpoint)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}

	state := pipeline.NewRunState()
	if resume {
		cp, err := checkpoints.Load()
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		state.Restore(cp)
	}

	phones, err := store.KnownPhones(ctx)
	if err != nil {
		return fmt.Errorf("load known phones: %w", err)
	}
	state.SeedPhones(phones)

	combos := catalog.BuildCombos(state.CompletedSet())
	logger.Info("queue built",
		zap.Int("total", catalog.Total()),
		zap.Int("remaining", len(combos)),
		zap.Int("known_phones", len(phones)),
		zap.Bool("dry_run", dryRun),
	)
	if len(combos) == 0 {
		logger.Info("nothing to do, queue already complete")
		return nil
	}
	if dryRun {
		logger.Info("dry run, exiting before any fetch", zap.Int("remaining", len(combos)))
		return nil
	}

	runID := uuid.NewString()
	auditLog, err := audit.Open(cfg.Paths.AuditLog, runID)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() {
		if cerr := auditLog.Close(); cerr != nil {
			logger.Warn("audit log close failed", zap.Error(cerr))
		}
	}()

	fetchCfg := fetch.Defaults()
	fetchCfg.APIKey = cfg.Proxy.APIKey
	fetchCfg.BaseURL = cfg.Proxy.BaseURL
	fetchCfg.CountryCode = cfg.Proxy.CountryCode
	fetchCfg.Timeout = cfg.ProxyTimeout()
	fetchCfg.MaxRetries = cfg.Proxy.MaxRetries
	fetchCfg.MinBodyBytes = cfg.Proxy.MinBodyBytes
	fetcher := fetch.New(fetchCfg, state, logger.Named("fetch"))

	cache := registry.NewCache(cfg.Registry.CandidateCacheMax,
		func(ctx context.Context, dept string) ([]match.Candidate, error) {
			providers, err := store.ProvidersByDepartment(ctx, dept)
			if err != nil {
				return nil, err
			}
			candidates := make([]match.Candidate, 0, len(providers))
			for _, p := range providers {
				candidates = append(candidates,
					match.NewCandidate(p.ID, p.Name, p.Phone, p.Rating, p.ReviewCount))
			}
			return candidates, nil
		})

	processor := pipeline.NewProcessor(
		fetcher, cache, store, auditLog, state,
		cfg.InterFetchDelay(), logger.Named("processor"),
	)

	if cfg.Ops.Enabled {
		opsServer := api.NewServer(state, logger.Named("ops"))
		go func() {
			if err := opsServer.ListenAndServe(ctx, cfg.Ops.Port); err != nil {
				logger.Warn("ops server stopped", zap.Error(err))
			}
		}()
		logger.Info("ops server started", zap.Int("port", cfg.Ops.Port))
	}

	ceiling := cfg.Pool.MaxWorkers
	if maxWorkers > 0 {
		ceiling = maxWorkers
	}
	pool := pipeline.NewPool(combos, processor, state, checkpoints, pipeline.PoolConfig{
		MaxWorkers:     ceiling,
		ScaleInterval:  cfg.ScaleInterval(),
		WorkerDelay:    cfg.WorkerDelay(),
		FlushEvery:     cfg.Pool.FlushEvery,
		ErrorRateLimit: pipeline.DefaultPoolConfig().ErrorRateLimit,
	}, logger.Named("pool"))

	if err := pool.Run(ctx); err != nil {
		return fmt.Errorf("run pool: %w", err)
	}

	counters := state.Counters()
	logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("combos_processed", counters.CombosProcessed),
		zap.Int("listings_found", counters.ListingsFound),
		zap.Int("phones_added", counters.PhonesAdded),
		zap.Int("ratings_added", counters.RatingsAdded),
		zap.Int("websites_added", counters.WebsitesAdded),
		zap.Int("duplicates_skipped", counters.DuplicatesSkipped),
		zap.Int("errors", counters.Errors),
		zap.Int("credits_used", counters.CreditsUsed),
	)
	if ctx.Err() != nil {
		logger.Info("interrupted, resume with the same checkpoint to continue")
	}
	return nil
}
