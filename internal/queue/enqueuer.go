package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Enqueuer submits pipeline jobs. Implementations must be safe to call
// more than once for the same entity: the deterministic job key makes
// re-submission a no-op against an already queued or running job.
type Enqueuer interface {
	EnqueueRubricJob(ctx context.Context, evaluationID uint) error
	EnqueueGradingJobs(ctx context.Context, evaluationID uint, submissionIDs []uint) error
}

// Options tunes job submission.
type Options struct {
	MaxRetry      int
	RubricTimeout time.Duration
	GradeTimeout  time.Duration
	Retention     time.Duration
}

// Client is the asynq-backed Enqueuer.
type Client struct {
	client *asynq.Client
	opts   Options
	logger zerolog.Logger
}

// NewClient constructs an Enqueuer on top of the shared Redis connection.
func NewClient(redisOpt asynq.RedisClientOpt, opts Options, logger zerolog.Logger) *Client {
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 5
	}
	if opts.RubricTimeout <= 0 {
		opts.RubricTimeout = 15 * time.Minute
	}
	if opts.GradeTimeout <= 0 {
		opts.GradeTimeout = 15 * time.Minute
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}

	return &Client{
		client: asynq.NewClient(redisOpt),
		opts:   opts,
		logger: logger.With().Str("component", "queue_client").Logger(),
	}
}

// Close releases the underlying queue connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueRubricJob submits the single rubric-generation job for an
// evaluation.
func (c *Client) EnqueueRubricJob(ctx context.Context, evaluationID uint) error {
	task, err := NewRubricTask(evaluationID)
	if err != nil {
		return err
	}

	key := DeriveJobKey(RubricKeyPrefix, formatID(evaluationID))
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueRubrics),
		asynq.TaskID(key),
		asynq.MaxRetry(c.opts.MaxRetry),
		asynq.Timeout(c.opts.RubricTimeout),
		asynq.Retention(c.opts.Retention),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Debug().Uint("evaluation_id", evaluationID).Str("job_key", key).
				Msg("rubric job already queued")
			return nil
		}
		return fmt.Errorf("enqueue rubric job for evaluation %d: %w", evaluationID, err)
	}

	c.logger.Info().Uint("evaluation_id", evaluationID).Str("job_key", info.ID).
		Str("queue", info.Queue).Msg("rubric job queued")
	return nil
}

// EnqueueGradingJobs submits one grading job per submission. Submissions
// whose job key is already queued are skipped silently.
func (c *Client) EnqueueGradingJobs(ctx context.Context, evaluationID uint, submissionIDs []uint) error {
	for _, submissionID := range submissionIDs {
		task, err := NewGradingTask(evaluationID, submissionID)
		if err != nil {
			return err
		}

		key := DeriveJobKey(GradingKeyPrefix, formatID(submissionID))
		_, err = c.client.EnqueueContext(ctx, task,
			asynq.Queue(QueueGrading),
			asynq.TaskID(key),
			asynq.MaxRetry(c.opts.MaxRetry),
			asynq.Timeout(c.opts.GradeTimeout),
			asynq.Retention(c.opts.Retention),
		)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				c.logger.Debug().Uint("submission_id", submissionID).Str("job_key", key).
					Msg("grading job already queued")
				continue
			}
			return fmt.Errorf("enqueue grading job for submission %d: %w", submissionID, err)
		}
	}

	c.logger.Info().Uint("evaluation_id", evaluationID).Int("jobs", len(submissionIDs)).
		Msg("grading jobs queued")
	return nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
