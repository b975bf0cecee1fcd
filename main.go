package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openmm_server/config"
	"openmm_server/controllers"
	"openmm_server/models"
	"openmm_server/routes"
	"openmm_server/services"
	"openmm_server/socket"
	"openmm_server/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// newLedgerStore builds the configured rating ledger backend.
func newLedgerStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (services.LedgerStore, func(), error) {
	noop := func() {}
	switch cfg.LedgerBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, noop, eris.Wrapf(err, "connect to redis at %s", cfg.RedisAddr)
		}
		return services.NewRedisLedgerStore(client, cfg.LedgerPrefix), func() { _ = client.Close() }, nil
	case config.BackendDynamoDB:
		logger.Info().Str("table", cfg.LedgerTable).Msg("initializing DynamoDB client")
		client, err := services.InitializeDynamoDBClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, noop, err
		}
		dynamo := &services.DynamoService{Client: client, Log: logger}
		return services.NewDynamoLedgerStore(dynamo, cfg.LedgerTable), noop, nil
	case config.BackendS3:
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("initializing S3 client")
		client, err := services.InitializeS3Client(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, noop, err
		}
		store := services.NewS3LedgerStore(&services.S3Service{Client: client, Bucket: cfg.S3Bucket}, cfg.LedgerPrefix)
		return store, noop, nil
	case config.BackendMemory:
		return services.NewMemoryLedgerStore(), noop, nil
	}
	return services.NewFileLedgerStore(cfg.LedgerDir), noop, nil
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	communities, err := config.LoadCommunities(cfg.CommunitiesFile)
	if err != nil {
		return err
	}
	for _, problem := range communities.Validate() {
		logger.Warn().Str("problem", problem).Msg("community is not fully configured")
	}

	store, closeStore, err := newLedgerStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ioServer := socketio.NewServer(nil)
	platform := socket.NewPlatform(ioServer, communities, logger.With().Str("component", "platform").Logger())

	keys := utils.NewKeyedMutex()
	ledger := services.NewLedgerService(store, logger.With().Str("component", "ledger").Logger())
	penalties := services.NewPenaltyService(platform, keys, logger.With().Str("component", "penalties").Logger(),
		services.WithSuspensionRetention(cfg.SuspensionRetention))
	presence := services.NewPresenceService(penalties, platform, communities.QueueRoom, keys,
		logger.With().Str("component", "presence").Logger())
	registry := services.NewMatchRegistry(utils.NewShortIDGenerator(models.MatchIDLength))
	matches := services.NewMatchService(registry, ledger, presence, penalties, platform,
		logger.With().Str("component", "matches").Logger(),
		services.WithResolvedRetention(cfg.ResolvedMatchRetention))

	sockets := socket.NewSocketServer(ioServer, presence, logger.With().Str("component", "socket").Logger())
	go func() {
		if err := sockets.Serve(); err != nil {
			logger.Error().Err(err).Msg("socket server stopped")
		}
	}()
	defer sockets.Close()

	r := mux.NewRouter()
	r.Use(utils.RequestLogger(logger))
	routes.RegisterRoutes(r)
	routes.RegisterMatchRoutes(r, controllers.NewMatchController(matches, logger))
	routes.RegisterPenaltyRoutes(r, controllers.NewPenaltyController(penalties, logger))
	routes.RegisterRatingRoutes(r, controllers.NewRatingController(ledger, platform))
	routes.RegisterQueueRoutes(r, controllers.NewQueueController(presence, logger))
	r.PathPrefix("/socket.io/").Handler(ioServer)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", controllers.ActorHeader, utils.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(r)

	go sweep(ctx, cfg.SweepInterval, matches, penalties, logger)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: corsHandler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("ledger", cfg.LedgerBackend).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweep drops expired match and suspension history on every tick.
func sweep(ctx context.Context, every time.Duration, matches *services.MatchService, penalties *services.PenaltyService, logger zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			matches.PruneResolved(now)
			if n := penalties.Prune(now); n > 0 {
				logger.Info().Int("suspensions", n).Msg("pruned suspension history")
			}
		}
	}
}
