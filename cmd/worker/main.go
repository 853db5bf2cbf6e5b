package main

import (
	"context"
	"log"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/evalia-go-api/internal/config"
	"github.com/noah-isme/evalia-go-api/internal/database"
	"github.com/noah-isme/evalia-go-api/internal/queue"
	"github.com/noah-isme/evalia-go-api/internal/repository"
	"github.com/noah-isme/evalia-go-api/internal/service"
	"github.com/noah-isme/evalia-go-api/internal/worker"
	"github.com/noah-isme/evalia-go-api/pkg/ai"
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

	redisOpt, err := database.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to configure queue: %v", err)
	}

	analyzer, err := ai.NewGeminiAnalyzer(context.Background(), ai.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to create analyzer: %v", err)
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

	evaluationService := service.NewEvaluationService(evaluationRepo, submissionRepo, enqueuer, events, nil, 0, logger)

	rubricHandler := worker.NewRubricHandler(evaluationRepo, submissionRepo, analyzer, evaluationService, worker.RubricConfig{
		Model:            cfg.RubricModel,
		InferenceTimeout: cfg.InferenceTimeout,
		AutoStartGrading: cfg.GradingAutoStart,
	}, logger)

	gradingHandler := worker.NewGradingHandler(evaluationRepo, submissionRepo, analyzer, evaluationService, worker.GradingConfig{
		Model:            cfg.GradingModel,
		InferenceTimeout: cfg.InferenceTimeout,
	}, logger)

	srv := worker.NewServer(redisOpt, cfg.WorkerConcurrency, logger)
	mux := worker.NewMux(rubricHandler, gradingHandler)

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		log.Fatalf("worker stopped with error: %v", err)
	}
}
