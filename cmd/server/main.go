package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/allocation"
	"github.com/iliyamo/parking-facility-management/internal/config"
	"github.com/iliyamo/parking-facility-management/internal/database"
	"github.com/iliyamo/parking-facility-management/internal/handler"
	"github.com/iliyamo/parking-facility-management/internal/middleware"
	"github.com/iliyamo/parking-facility-management/internal/queue"
	"github.com/iliyamo/parking-facility-management/internal/repository"
	"github.com/iliyamo/parking-facility-management/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	levels := repository.NewLevelRepo(db)
	slots := repository.NewSlotRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	sessions := repository.NewSessionRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	shifts := repository.NewShiftRepo(db)
	reports := repository.NewReportRepo(db)

	coord := allocation.New(db, slots, vehicles, sessions)

	events := cfg.AMQPURL != ""
	if events {
		go func() {
			if err := queue.StartSessionConsumer(); err != nil {
				log.Printf("session consumer stopped: %v", err)
			}
		}()
	}

	authH := handler.NewAuthHandler(cfg, users, tokens)
	levelH := handler.NewLevelHandler(levels, slots, coord)
	vehicleH := handler.NewVehicleHandler(db, vehicles, slots, levels, sessions, coord, events)
	sessionH := handler.NewSessionHandler(sessions, coord)
	dashH := handler.NewDashboardHandler(reports)
	empH := handler.NewEmployeeHandler(users, tokens)
	shiftH := handler.NewShiftHandler(shifts)

	e := echo.New()
	e.HideBanner = true

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and response cache disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH)
	router.RegisterGate(e, authH, vehicleH, sessionH, dashH, cfg.JWTSecret, cacheMW)
	router.RegisterAdmin(e, levelH, vehicleH, sessionH, empH, shiftH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
