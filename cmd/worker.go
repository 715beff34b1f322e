package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/cache"
	"example.com/citypulse/internal/geo"
	"example.com/citypulse/internal/messaging"
	"example.com/citypulse/internal/repositories"
	"example.com/citypulse/internal/services"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to process report messages from Azure Service Bus and sweep moderation state`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connection
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	// Initialize cache and geocoder for submission backfill paths
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}
	geocoder := geo.NewGeocoder(cfg.Geocoding, redisCache)

	// Initialize repositories and the event service
	eventRepo := repositories.NewUserEventRepository(db)
	swipeRepo := repositories.NewSwipeRepository(db)
	reportRepo := repositories.NewReportRepository(db)
	eventService := services.NewEventService(
		eventRepo, swipeRepo, reportRepo, geocoder, nil,
		cfg.Moderation.HideAfter, cfg.Moderation.RemoveAfter)

	// Start the report message processor when a queue is configured
	if cfg.Azure.QueueConnStr != "" {
		azureBus, err := messaging.NewAzureServiceBus(cfg.Azure)
		if err != nil {
			return err
		}
		defer azureBus.Close()

		g.Go(func() error {
			log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting Azure Service Bus processor")
			return azureBus.ProcessMessages(ctx, eventService.ProcessReportMessage)
		})
	} else {
		log.Warn().Msg("No Service Bus connection configured, relying on the moderation sweep only")
	}

	// Start the moderation sweep cron job as a fallback mechanism
	g.Go(func() error {
		log.Info().Msg("Starting moderation sweep cron job as fallback mechanism")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(5*time.Minute),
			gocron.NewTask(func() {
				if err := eventService.SweepModeration(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to sweep moderation state in fallback job")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info().Msg("Shutting down worker")
	return nil
}
