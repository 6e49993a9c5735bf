package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/coworking-reservation/internal/config"     // Internal config loader
	"github.com/iliyamo/coworking-reservation/internal/database"   // MySQL connection pool
	"github.com/iliyamo/coworking-reservation/internal/engine"     // Availability and conflict-resolution engine
	"github.com/iliyamo/coworking-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/coworking-reservation/internal/lock"       // Redis-backed resource locker
	"github.com/iliyamo/coworking-reservation/internal/middleware" // Rate limiting and response cache
	"github.com/iliyamo/coworking-reservation/internal/queue"      // Notification consumer
	"github.com/iliyamo/coworking-reservation/internal/repository" // DB repositories
	"github.com/iliyamo/coworking-reservation/internal/router"     // Route registration
	queue_publisher "github.com/iliyamo/coworking-reservation/internal/service"
)

func main() {
	// Load .env when present; real deployments set the environment
	// directly and this is a no-op.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the service falls back to the
	// in-process locker and disables rate limiting and caching.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; using in-process locks, rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	resources := repository.NewResourceRepo(db)
	bookings := repository.NewBookingRepo(db)
	outages := repository.NewOutageRepo(db)
	issues := repository.NewIssueRepo(db)

	var locker engine.ResourceLocker
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, "reslock", 0)
	}
	eng := engine.New(resources, bookings, outages, locker,
		engine.WithIssues(issues),
		engine.WithNotifier(queue_publisher.QueueNotifier{}),
	)

	// Background consumer turns queued notification events into the
	// local delivery log. Runs its own reconnect loop forever.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	}

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	bookingHandler := handler.NewBookingHandler(eng, bookings)
	issueHandler := handler.NewIssueHandler(eng, issues, resources, bookings)
	catalogHandler := handler.NewCatalogHandler(resources, outages)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterCatalog(e, catalogHandler)
	router.RegisterBookings(e, bookingHandler, issueHandler, cfg.JWTSecret)
	router.RegisterAdmin(e, issueHandler, catalogHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
