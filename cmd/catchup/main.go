package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/sheu-1/flow-sub001/internal/archive"
	"github.com/sheu-1/flow-sub001/internal/category"
	"github.com/sheu-1/flow-sub001/internal/config"
	"github.com/sheu-1/flow-sub001/internal/dedup"
	"github.com/sheu-1/flow-sub001/internal/dupcheck"
	"github.com/sheu-1/flow-sub001/internal/ingest"
	"github.com/sheu-1/flow-sub001/internal/logger"
	"github.com/sheu-1/flow-sub001/internal/parse"
	"github.com/sheu-1/flow-sub001/internal/source"
	bqstore "github.com/sheu-1/flow-sub001/internal/store/bigquery"
	"github.com/sheu-1/flow-sub001/internal/watermark"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML config file (optional)")
		userID     = flag.String("user", "", "user id to backfill")
		inboxPath  = flag.String("inbox", "", "path to the JSONL inbox file")
		window     = flag.Int("window", 0, "messages to scan (0 = config catchup_batch_size)")
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
	if *window <= 0 {
		*window = cfg.CatchupBatchSize
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

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

	catchup := source.NewCatchup(*userID, source.NewFileInbox(*inboxPath), ingest.NewDirectSink(session), *window, logger.ForAdapter(log, "catchup"))

	log.Info().Str("user_id", *userID).Int("window", *window).Msg("Starting manual catch-up")
	if err := catchup.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Catch-up failed")
	}

	fmt.Println("Catch-up completed successfully.")
}
