package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/evalia-go-api/internal/config"
	"github.com/noah-isme/evalia-go-api/internal/database"
	"github.com/noah-isme/evalia-go-api/internal/handler"
	"github.com/noah-isme/evalia-go-api/internal/middleware"
	"github.com/noah-isme/evalia-go-api/internal/queue"
	"github.com/noah-isme/evalia-go-api/internal/repository"
	"github.com/noah-isme/evalia-go-api/internal/router"
	"github.com/noah-isme/evalia-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	redisOpt, err := database.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to configure queue: %v", err)
	}

	enqueuer := queue.NewClient(redisOpt, queue.Options{
		MaxRetry:      cfg.JobMaxRetry,
		RubricTimeout: cfg.JobTimeout,
		GradeTimeout:  cfg.JobTimeout,
	}, logger)
	defer enqueuer.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, status events disabled")
		} else {
			defer natsConn.Drain()
		}
	}
	events := service.NewStatusPublisher(natsConn, cfg.EventSubject, logger)

	evaluationRepo := repository.NewEvaluationRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	evaluationService := service.NewEvaluationService(evaluationRepo, submissionRepo, enqueuer, events, redisClient, cfg.StatusCacheTTL, logger)
	evaluationHandler := handler.NewEvaluationHandler(evaluationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: evaluationHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
