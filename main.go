package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hunter-fitness/config"
	"hunter-fitness/handlers"
	"hunter-fitness/logger"
	"hunter-fitness/middleware"
	"hunter-fitness/services"
	"hunter-fitness/storage"
	"hunter-fitness/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, foundDotEnv, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	if !foundDotEnv {
		logger.Warn().Msg("⚠️  No .env file found, reading environment variables directly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := services.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	catalog, err := services.NewCatalog(cfg.CatalogCacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build catalog")
	}
	if cfg.SeedCatalog {
		if err := catalog.SeedDefaults(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed catalog")
		}
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	clock := services.SystemClock{}
	store := services.NewStore(db, catalog)

	achievementService := services.NewAchievementService(store, clock)
	hunterService := services.NewHunterService(store, clock)
	levelingService := services.NewLevelingService(store, clock, achievementService)
	questService := services.NewQuestService(store, clock, services.NewSeededRandom(seed), achievementService)
	dungeonService := services.NewDungeonService(store, clock, achievementService)
	equipmentService := services.NewEquipmentService(store, clock, achievementService)

	var (
		objects  storage.ObjectStore
		archiver *workers.HistoryArchiver
	)
	if cfg.R2.Enabled() {
		r2, err := storage.NewR2Store(ctx, cfg.R2)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize R2 client")
		}
		objects = r2
		archiver = &workers.HistoryArchiver{DB: db, Store: r2, Clock: clock}
	} else {
		logger.Warn().Msg("⚠️  R2 not configured, icon uploads and history archives disabled")
	}

	reset := &workers.DailyReset{
		Hunters:  hunterService,
		Quests:   questService,
		Clock:    clock,
		Parallel: cfg.DailyResetParallel,
	}
	scheduler, err := workers.NewScheduler(ctx, cfg, reset, archiver)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build scheduler")
	}
	scheduler.Start()

	if cfg.ProfileSyncURL != "" {
		workers.NewProfileSyncWorker(hunterService, cfg.ProfileSyncURL, cfg.ProfileSyncPath, cfg.GatewayToken, cfg.ProfileSyncInterval).Start(ctx)
	}

	app := fiber.New()

	// 🔐❗ GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	handlers.SetupRoutes(app, &handlers.Deps{
		Hunters:      hunterService,
		Leveling:     levelingService,
		Quests:       questService,
		Dungeons:     dungeonService,
		Equipment:    equipmentService,
		Achievements: achievementService,
		Catalog:      catalog,
		Store:        store,
		Clock:        clock,
		Objects:      objects,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}()

	logger.Info().Str("port", cfg.Port).Msg("✅ Server running")
	logger.Info().Strs("origins", cfg.AllowedOrigins).Msg("✅ CORS configured")

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")
	if err := scheduler.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("scheduler shutdown")
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("server shutdown")
	}
}
