package commands

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"etfkpis/internal/alphavantage"
	"etfkpis/internal/cache"
	"etfkpis/internal/collector"
	"etfkpis/internal/config"
	"etfkpis/internal/export"
	"etfkpis/internal/fetcher"
	"etfkpis/internal/logger"
	"etfkpis/internal/pipeline"
	"etfkpis/internal/ratelimit"
	"etfkpis/internal/yahoo"
)

// app holds the components of one run assembled from configuration
type app struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	runID    string
	listing  *alphavantage.ListingClient
	cache    cache.Store
	pipeline *pipeline.Pipeline
}

func newApp(cfg *config.Config, base logrus.FieldLogger) (*app, error) {
	log, runID := pipeline.WithRunID(base)

	listing := alphavantage.NewListingClient(
		cfg.AlphavantageAPIKey,
		cfg.AlphavantageBaseURL,
		alphavantage.WithLogger(logger.WithComponent(log, "loader")),
	)

	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}

	enrichLog := logger.WithComponent(log, "enrichment")
	source := yahoo.NewSource(yahoo.Config{
		BaseURL:   cfg.YahooBaseURL,
		CookieURL: cfg.YahooCookieURL,
		CrumbURL:  cfg.YahooCrumbURL,
		Timeout:   cfg.RequestTimeout,
		Log:       enrichLog,
	})
	f := fetcher.NewCachedFetcher(source, ratelimit.Default().For(ratelimit.APIYahoo), store, enrichLog)

	return &app{
		cfg:      cfg,
		log:      log,
		runID:    runID,
		listing:  listing,
		cache:    store,
		pipeline: pipeline.New(listing, collector.New(f, enrichLog), log),
	}, nil
}

func openCache(cfg *config.Config) (cache.Store, error) {
	store, err := cache.Open(cache.Options{
		Backend:   cache.Backend(cfg.CacheBackend),
		Path:      cfg.CachePath,
		RedisAddr: cfg.RedisAddr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.CacheBackend, err)
	}
	return store, nil
}

// exporter returns an Exporter for location, with an S3 client when needed
func (a *app) exporter(ctx context.Context, location string) (*export.Exporter, error) {
	var putter export.ObjectPutter
	if strings.HasPrefix(location, "s3://") {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		putter = s3.NewFromConfig(awsCfg)
	}
	return export.New(afero.NewOsFs(), putter, logger.WithComponent(a.log, "export")), nil
}

func (a *app) Close() error {
	return a.cache.Close()
}
