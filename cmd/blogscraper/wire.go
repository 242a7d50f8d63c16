package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/blog-archive-scraper/internal/blog"
	"github.com/JakeFAU/blog-archive-scraper/internal/config"
	collyfetcher "github.com/JakeFAU/blog-archive-scraper/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/blog-archive-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/blog-archive-scraper/internal/id/uuid"
	pubsubpublisher "github.com/JakeFAU/blog-archive-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/blog-archive-scraper/internal/runner"
	gcsstorage "github.com/JakeFAU/blog-archive-scraper/internal/storage/gcs"
	localstorage "github.com/JakeFAU/blog-archive-scraper/internal/storage/local"
	"github.com/JakeFAU/blog-archive-scraper/internal/storage/postgres"
)

// build assembles a Runner from configuration. Optional components that
// fail to start are logged and left out; cleanup releases whatever did start.
func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*runner.Runner, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	fetcher, closeFetcher := buildFetcher(cfg, logger)
	if closeFetcher != nil {
		closers = append(closers, closeFetcher)
	}

	archive, closeArchive := buildArchive(ctx, cfg, logger)
	if closeArchive != nil {
		closers = append(closers, closeArchive)
	}

	collector, err := blog.NewCollector(blog.CollectorConfig{
		Rules:         cfg.Rules,
		MaxPages:      cfg.Scraper.MaxPages,
		ArchivePrefix: cfg.Archive.Prefix,
	}, fetcher, archive, logger.Named("collector"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build collector: %w", err)
	}

	store, err := postgres.NewPostStore(postgres.PostStoreConfig{
		Name:     cfg.DB.Name,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		SSLMode:  cfg.DB.SSLMode,
		Table:    cfg.DB.Table,
	}, logger.Named("postgres"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build post store: %w", err)
	}

	var publisher blog.Publisher
	if cfg.PubSub.Topic != "" {
		pub, err := pubsubpublisher.Open(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			logger.Warn("pubsub publisher init failed; run summary will not be published", zap.Error(err))
		} else {
			publisher = pub
			closers = append(closers, func() {
				if err := pub.Close(); err != nil {
					logger.Warn("pubsub close failed", zap.Error(err))
				}
			})
		}
	}

	run, err := runner.New(runner.Config{
		StartURL:       cfg.Scraper.StartURL,
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		MetricsJob:     cfg.Metrics.Job,
	}, collector, store, publisher, uuid.New(), logger.Named("runner"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build runner: %w", err)
	}
	return run, cleanup, nil
}

func buildFetcher(cfg config.Config, logger *zap.Logger) (blog.Fetcher, func()) {
	if cfg.Scraper.Headless {
		fetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         cfg.Scraper.UserAgent,
			NavigationTimeout: cfg.HeadlessTimeout(),
		})
		if err == nil {
			return fetcher, fetcher.Close
		}
		logger.Warn("headless fetcher init failed; falling back to colly", zap.Error(err))
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Scraper.UserAgent,
		RespectRobots: cfg.Scraper.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
	}), nil
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (blog.BlobStore, func()) {
	switch cfg.Archive.Backend {
	case config.ArchiveLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			logger.Warn("local archive init failed; pages will not be archived", zap.Error(err))
			return nil, nil
		}
		return store, nil
	case config.ArchiveGCS:
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			logger.Warn("gcs archive init failed; pages will not be archived", zap.Error(err))
			return nil, nil
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("gcs close failed", zap.Error(err))
			}
		}
	default:
		return nil, nil
	}
}
