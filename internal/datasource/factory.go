package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/kyotei-predictor/internal/config"
	"github.com/yourusername/kyotei-predictor/internal/logger"
)

// Factory creates the upstream client, cache and fetcher based on configuration
type Factory struct {
	logger logrus.FieldLogger
	config *config.Config
}

// NewFactory creates a new data source factory
func NewFactory(cfg *config.Config, log logrus.FieldLogger) *Factory {
	return &Factory{
		logger: logger.OrDiscard(log),
		config: cfg,
	}
}

// NewHTTPClient creates the paced, breaker-protected upstream HTTP client
func (f *Factory) NewHTTPClient() *RateLimitedHTTPClient {
	ds := f.config.DataSource
	httpCfg := DefaultHTTPClientConfig()
	httpCfg.Timeout = f.config.RequestTimeout()
	httpCfg.MaxRetries = ds.MaxRetries
	httpCfg.MinInterval = ds.MinRequestInterval
	if ds.BreakerFailures > 0 {
		httpCfg.BreakerFailures = ds.BreakerFailures
	}
	if ds.BreakerCooldown > 0 {
		httpCfg.BreakerCooldown = ds.BreakerCooldown
	}
	return NewRateLimitedHTTPClient(httpCfg, f.logger)
}

// NewCache creates the program cache for the configured backend.
// It returns nil when the pipeline variant does not cache.
func (f *Factory) NewCache(ctx context.Context) (ProgramCache, error) {
	if !f.config.CacheEnabled() {
		return nil, nil
	}

	cc := f.config.Cache
	retention := cc.StaleRetention
	if retention < cc.TTL {
		retention = cc.TTL
	}

	switch cc.Backend {
	case config.CacheBackendRedis:
		client, err := ConnectRedis(ctx, cc.RedisAddr, cc.RedisPassword, cc.RedisDB)
		if err != nil {
			return nil, err
		}
		f.logger.WithField("addr", cc.RedisAddr).Info("Using redis program cache")
		return NewRedisCache(client, cc.RedisPrefix, retention), nil

	case config.CacheBackendMemory, "":
		return NewMemoryCache(retention, cc.MaxEntries), nil

	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cc.Backend)
	}
}

// NewFetcher creates a fetcher wired to the BoatraceOpenAPI feeds
func (f *Factory) NewFetcher(ctx context.Context) (*Fetcher, error) {
	source := NewOpenAPIClient(f.NewHTTPClient(), f.config.DataSource.BaseURL, f.logger)

	programCache, err := f.NewCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}

	ds := f.config.DataSource
	opts := []FetcherOption{
		WithDayFetchTimeout(time.Duration(ds.MaxRetries+1) * (f.config.RequestTimeout() + ds.MinRequestInterval)),
	}
	if programCache != nil {
		opts = append(opts, WithCache(programCache, f.config.Cache.TTL))
	}

	f.logger.WithFields(logrus.Fields{
		"source":   source.Name(),
		"variant":  f.config.Pipeline.Variant,
		"cache":    programCache != nil,
		"base_url": f.config.DataSource.BaseURL,
	}).Info("Created data source")

	return NewFetcher(source, f.logger, opts...), nil
}
