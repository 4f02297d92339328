package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fishing-competition-system/handlers"
	"fishing-competition-system/middleware"
	"fishing-competition-system/models"
	"fishing-competition-system/services"
	"fishing-competition-system/utils"
	"fishing-competition-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// R2 is optional: without credentials, archive snapshot export is skipped.
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not configured, archive snapshot export disabled: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Season{},
		&models.SeasonParticipant{},
		&models.SeasonArchive{},
		&models.ParticipationStats{},
		&models.UserProgress{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.Reward{},
		&models.PlatformUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	seasonService := services.NewSeasonService(db)
	progressionService := services.NewProgressionService(db)
	badgeService := services.NewBadgeService(db)
	rewardService := services.NewRewardService(db)
	distributor := services.NewRewardDistributor(db, progressionService)
	schedulerService := services.NewSchedulerService(db, seasonService, distributor)
	leaderboardService := services.NewLeaderboardService(db, seasonService)

	if err := badgeService.SeedBadgeTypes(); err != nil {
		log.Fatal("failed to seed badge catalog:", err)
	}

	// --- Collaborator service endpoints ---
	achievementServiceURL := os.Getenv("ACHIEVEMENT_SERVICE_URL")
	if achievementServiceURL == "" {
		log.Fatal("ACHIEVEMENT_SERVICE_URL environment variable not set")
	}
	notificationServiceURL := os.Getenv("NOTIFICATION_SERVICE_URL")
	if notificationServiceURL == "" {
		log.Fatal("NOTIFICATION_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("COMPETITION_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("COMPETITION_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	achievementClient := services.NewAchievementClient(achievementServiceURL, serviceToken)
	notificationClient := services.NewNotificationClient(notificationServiceURL, serviceToken)

	integrationService := services.NewIntegrationService(
		db,
		seasonService,
		progressionService,
		schedulerService,
		achievementClient,
		badgeService,
		leaderboardService,
		notificationClient,
	)
	schedulerService.SetNotifier(integrationService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Profile sync worker (profile-service → platform_users) ---
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	syncWorker := workers.NewPlatformUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	syncWorker.Start(ctx)

	// Event queue drain every 5s
	go workers.PollEvents(ctx, integrationService, 5*time.Second)

	if err := schedulerService.Start(); err != nil {
		log.Fatal("failed to start competition scheduler:", err)
	}
	defer schedulerService.Stop()

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupSeasonRoutes(app, seasonService, leaderboardService, integrationService, schedulerService)
	handlers.SetupActivityRoutes(app, integrationService)
	handlers.SetupProgressionRoutes(app, progressionService, badgeService, rewardService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Platform User Sync Worker running")
	log.Println("✅ Event queue draining (every 5s)")
	log.Println("✅ Competition scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
