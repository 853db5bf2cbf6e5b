package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/evalia-go-api/internal/queue"
)

// NewServer builds the asynq worker server. The rubric queue gets a
// higher weight: rubric jobs are rare but gate the whole pipeline, so
// they should not starve behind a large grading backlog.
func NewServer(redisOpt asynq.RedisClientOpt, concurrency int, logger zerolog.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue.QueueRubrics: 3,
			queue.QueueGrading: 7,
		},
		Logger: asynqLogger{logger: logger.With().Str("component", "asynq").Logger()},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task_type", task.Type()).Msg("task handler returned error")
		}),
	})
}

// NewMux registers the pipeline handlers.
func NewMux(rubric *RubricHandler, grading *GradingHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeRubricGenerate, rubric.ProcessTask)
	mux.HandleFunc(queue.TypeGradeSubmission, grading.ProcessTask)
	return mux
}

// retriesExhausted reports whether the current attempt is the last one.
// Outside an asynq server (direct invocation in tests) the retry metadata
// is absent and every attempt counts as final.
func retriesExhausted(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
