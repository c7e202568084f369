package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sheu-1/flow-sub001/internal/archive"
	"github.com/sheu-1/flow-sub001/internal/category"
	"github.com/sheu-1/flow-sub001/internal/config"
	"github.com/sheu-1/flow-sub001/internal/dedup"
	"github.com/sheu-1/flow-sub001/internal/dupcheck"
	"github.com/sheu-1/flow-sub001/internal/ingest"
	"github.com/sheu-1/flow-sub001/internal/jobs"
	"github.com/sheu-1/flow-sub001/internal/jobs/inmemory"
	"github.com/sheu-1/flow-sub001/internal/logger"
	"github.com/sheu-1/flow-sub001/internal/parse"
	"github.com/sheu-1/flow-sub001/internal/source"
	bqstore "github.com/sheu-1/flow-sub001/internal/store/bigquery"
	"github.com/sheu-1/flow-sub001/internal/watermark"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML config file (optional)")
		userID     = flag.String("user", "", "user id to ingest for")
		inboxPath  = flag.String("inbox", "", "path to the JSONL inbox file")
		backfill   = flag.Bool("backfill", false, "run a manual catch-up scan on startup")
	)
	flag.Parse()

	log := logger.New()

	if *userID == "" {
		log.Fatal().Msg("--user is required")
	}
	if *inboxPath == "" {
		log.Fatal().Msg("--inbox is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := bqstore.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create persistence repository")
	}
	defer repo.Close()

	marks, err := watermark.Open(cfg.WatermarkPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open watermark store")
	}

	var archiver ingest.Archiver
	if cfg.ArchiveBucket != "" {
		archiver = archive.NewUploader(cfg.ArchiveBucket)
	} else {
		log.Warn().Msg("No archive bucket configured - raw capture archival disabled")
	}

	session := ingest.NewSession(ingest.Params{
		UserID:     *userID,
		Guard:      dedup.NewGuard(cfg.DedupTTL.Duration(), nil),
		Parser:     parse.New(cfg.CurrencyTokens...),
		Categories: category.NewResolver(repo, cfg.CategoryCacheTTL.Duration(), nil, log),
		Duplicates: dupcheck.NewDetector(repo, cfg.DuplicateWindow.Duration()),
		Gateway:    repo,
		Watermarks: marks,
		Archiver:   archiver,
		Log:        log,
	})

	// Workers run on the root context: shutdown stops them by draining
	// the queue, never by canceling a message already admitted past the
	// dedup guard mid-pipeline.
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(100, cfg.WorkerCount, jobStore)
	if err := queue.Start(ctx, ingest.Handler(session)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start pipeline workers")
	}

	inbox := source.NewFileInbox(*inboxPath)
	sink := ingest.NewQueueSink(*userID, queue)

	adapters := []source.Adapter{
		source.NewListener(*userID, inbox, sink, marks, logger.ForAdapter(log, "listener")),
		source.NewPoller(*userID, inbox, sink, marks, cfg.PollInterval.Duration(), cfg.CatchupBatchSize, logger.ForAdapter(log, "poller")),
		source.NewBackground(*userID, inbox, sink, marks, cfg.BackgroundMinInterval.Duration(), cfg.CatchupBatchSize, logger.ForAdapter(log, "background"), nil),
	}
	if *backfill {
		adapters = append(adapters, source.NewCatchup(*userID, inbox, sink, cfg.CatchupBatchSize, logger.ForAdapter(log, "catchup")))
	}

	adapterCtx, stopAdapters := context.WithCancel(ctx)
	defer stopAdapters()
	for _, adapter := range adapters {
		go func(a source.Adapter) {
			if err := a.Run(adapterCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Str("adapter", a.Name()).Msg("adapter stopped")
			}
		}(adapter)
	}

	log.Info().Str("user_id", *userID).Msg("Ingestion daemon started, waiting for messages...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down ingestion daemon...")
	stopAdapters()

	// Let admitted messages run to completion instead of aborting them
	// mid-pipeline.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := queue.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("Queue did not drain cleanly")
	}

	logJobSummary(context.Background(), log, jobStore)
	log.Info().Msg("Ingestion daemon stopped")
}

// logJobSummary reports how this run's ingestion jobs ended. Failed jobs
// are expected to be picked up again by the next watermark-bounded scan.
func logJobSummary(ctx context.Context, log zerolog.Logger, store jobs.JobStore) {
	counts := make(map[jobs.JobStatus]int)
	for _, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusPending} {
		listed, err := store.ListJobs(ctx, jobs.JobFilter{Status: status})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to list jobs for shutdown summary")
			return
		}
		counts[status] = len(listed)
	}
	log.Info().
		Int("completed", counts[jobs.JobStatusCompleted]).
		Int("failed", counts[jobs.JobStatusFailed]).
		Int("pending", counts[jobs.JobStatusPending]).
		Msg("Ingestion job summary")
}
