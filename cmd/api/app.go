package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/referralintake/internal/adapters/cache"
	"github.com/zatekoja/referralintake/internal/adapters/convex"
	"github.com/zatekoja/referralintake/internal/adapters/database"
	"github.com/zatekoja/referralintake/internal/adapters/events"
	"github.com/zatekoja/referralintake/internal/adapters/locking"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	convexclient "github.com/zatekoja/referralintake/internal/infrastructure/clients/convex"
	"github.com/zatekoja/referralintake/internal/infrastructure/clients/docconv"
	"github.com/zatekoja/referralintake/internal/infrastructure/clients/openai"
	"github.com/zatekoja/referralintake/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/referralintake/internal/infrastructure/clients/redis"
	"github.com/zatekoja/referralintake/internal/infrastructure/clients/sqlite"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"github.com/zatekoja/referralintake/pkg/config"
)

// app holds the wired store, services and the resources to release on exit
type app struct {
	cfg      *config.Config
	store    *repositories.Store
	events   providers.EventBus
	metrics  *observability.Metrics
	taxonomy *services.TaxonomyService
	intake   *services.IntakeService

	closers []func() error
}

// newApp connects the store and Redis. The intake service is only built when
// withExtraction is set, since it needs an OpenAI key.
func newApp(ctx context.Context, cfg *config.Config, withExtraction bool) (*app, error) {
	a := &app{cfg: cfg}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.metrics = metrics

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// Continue without Redis: no leases, events or text cache
			log.Warn().Err(err).Msg("Redis unavailable, running without leases, events and document cache")
		} else {
			a.closers = append(a.closers, redisClient.Close)
			cacheProvider = cache.NewRedisAdapter(redisClient)
			a.events = events.NewRedisEventBus(redisClient)
			a.closers = append(a.closers, a.events.Close)
			a.store.Taxonomy = locking.NewTaxonomyRepository(
				a.store.Taxonomy,
				locking.NewRedisLocker(redisClient, cfg.Orchestrator.LeaseTTL),
			)
			log.Info().Msg("Taxonomy creates guarded by Redis name leases")
		}
	}

	a.taxonomy = services.NewTaxonomyService(a.store.Taxonomy, a.store.Rules)

	if !withExtraction {
		return a, nil
	}

	extraction, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize extraction client: %w", err)
	}

	fallback, err := services.NewFallbackStrategy(cfg.Orchestrator.RuleFallbackEnabled, cfg.Orchestrator.RuleFallbackFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	converter := cache.NewDocumentTextCache(docconv.NewClient(&cfg.Documents), cacheProvider, cfg.Documents.CacheTTL)
	extractor := services.NewExtractor(extraction, cfg.Orchestrator.ExtractionTimeout, metrics)
	models := &cfg.OpenAI

	generator := services.NewRuleGenerator(extractor, a.store.Rules, fallback, models.ModelFor(models.RulesModel))
	resolver := services.NewTaxonomyResolver(a.store.Taxonomy, generator, metrics)

	a.intake = services.NewIntakeService(
		services.NewDocumentLoader(a.store.Cases, converter, extractor, cfg.Documents.StructureEnabled, models.Model),
		services.NewClassifier(extractor, a.store.Taxonomy, models.ModelFor(models.ClassifyModel)),
		resolver,
		services.NewRuleEvaluator(extractor, a.store.Cases, a.events, cfg.Orchestrator.RuleConcurrency, models.ModelFor(models.EvaluateModel), metrics),
		services.NewPatientService(extractor, a.store.Patients, a.store.Cases, models.Model),
		services.NewProviderService(extractor, a.store.Cases, models.Model),
		a.store.Cases,
		a.events,
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		client, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := database.NewStore(client.DB(), database.DialectPostgres)
		if err != nil {
			return err
		}
		a.store = store

	case config.StoreBackendSQLite:
		client, err := sqlite.NewClient(ctx, &cfg.SQLite)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		// the embedded store is migrated on open, over the same connection
		if err := migrateSQLite(client.DB(), true); err != nil {
			return err
		}
		store, err := database.NewStore(client.DB(), database.DialectSQLite)
		if err != nil {
			return err
		}
		a.store = store

	case config.StoreBackendConvex:
		client, err := convexclient.NewClient(&cfg.Convex)
		if err != nil {
			return fmt.Errorf("failed to initialize Convex client: %w", err)
		}
		a.store = convex.NewStore(client)

	default:
		return fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}

	log.Info().Str("backend", cfg.Store.Backend).Msg("Store initialized")
	return nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Msg("Error releasing resources")
	}
}
