package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/aggregator"
	"example.com/citypulse/internal/api"
	"example.com/citypulse/internal/cache"
	"example.com/citypulse/internal/geo"
	"example.com/citypulse/internal/messaging"
	"example.com/citypulse/internal/metrics"
	"example.com/citypulse/internal/models"
	"example.com/citypulse/internal/providers"
	"example.com/citypulse/internal/repositories"
	"example.com/citypulse/internal/search"
	"example.com/citypulse/internal/services"
	"example.com/citypulse/internal/tracing"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for event discovery, submission, and moderation`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connection
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize geocoder and provider adapters
	geocoder := geo.NewGeocoder(cfg.Geocoding, redisCache)
	adapters := buildAdapters(cfg.Providers, geocoder)

	// Initialize repositories and the engine-facing store view
	eventRepo := repositories.NewUserEventRepository(db)
	swipeRepo := repositories.NewSwipeRepository(db)
	reportRepo := repositories.NewReportRepository(db)
	store := repositories.NewLocalStore(eventRepo, swipeRepo)

	// Initialize the aggregation engine
	engine := aggregator.NewEngine(adapters, store,
		aggregator.WithMergePolicy(aggregator.MergePolicy{
			TitleSimilarity:      cfg.Aggregator.TitleSimilarity,
			VenueToleranceMeters: cfg.Aggregator.VenueToleranceM,
			DateToleranceDays:    cfg.Aggregator.DateToleranceD,
		}),
		aggregator.WithAdapterTimeout(cfg.Aggregator.AdapterTimeout),
		aggregator.WithPlaceResolver(geocoder),
	)

	// Initialize the report queue publisher when configured
	var publisher services.ReportPublisher
	if cfg.Azure.QueueConnStr != "" {
		azureBus, err := messaging.NewAzureServiceBus(cfg.Azure)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Service Bus, reports will apply synchronously")
		} else {
			publisher = azureBus
			defer azureBus.Close()
		}
	}

	// Initialize services
	discoveryService := services.NewDiscoveryService(
		engine, redisCache, elasticClient, metricsCollector, tracer, cfg.Aggregator.CacheTTL)
	eventService := services.NewEventService(
		eventRepo, swipeRepo, reportRepo, geocoder, publisher,
		cfg.Moderation.HideAfter, cfg.Moderation.RemoveAfter)

	// Initialize and start the server
	server := api.NewServer(cfg, discoveryService, eventService, metricsCollector, tracer)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func initDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to access underlying database handle")
	}
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := models.SetupModels(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return db, nil
}

// buildAdapters registers every provider adapter with a configured URL.
func buildAdapters(cfg config.ProvidersConfig, geocoder *geo.Geocoder) []providers.Provider {
	var adapters []providers.Provider
	if cfg.TicketVault.URL != "" {
		adapters = append(adapters, providers.NewTicketVault(cfg.TicketVault))
	}
	if cfg.SeatStream.URL != "" {
		adapters = append(adapters, providers.NewSeatStream(cfg.SeatStream))
	}
	if cfg.CityBoard.URL != "" {
		adapters = append(adapters, providers.NewCityBoard(cfg.CityBoard, geocoder))
	}
	if cfg.CommunityCal.FeedURL != "" {
		adapters = append(adapters, providers.NewCommunityCal(cfg.CommunityCal, geocoder))
	}
	log.Info().Int("adapters", len(adapters)).Msg("Registered provider adapters")
	return adapters
}
