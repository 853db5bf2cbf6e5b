package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/evalia-go-api/internal/models"
	"github.com/noah-isme/evalia-go-api/internal/observability"
	"github.com/noah-isme/evalia-go-api/internal/queue"
	"github.com/noah-isme/evalia-go-api/internal/repository"
	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

// Finalizer runs the aggregate completion check after a grading job
// brings a submission into a terminal state.
type Finalizer interface {
	MaybeFinalize(ctx context.Context, evaluationID uint) (bool, error)
}

// GradingConfig tunes the grading stage.
type GradingConfig struct {
	// Model is the inference tier used for grading. This stage runs once
	// per student and dominates job volume, so it defaults to a cheaper,
	// faster model than rubric extraction.
	Model string
	// InferenceTimeout bounds each call to the inference service.
	InferenceTimeout time.Duration
}

// GradingHandler processes per-submission grading jobs.
type GradingHandler struct {
	evaluations repository.EvaluationRepository
	submissions repository.SubmissionRepository
	analyzer    ai.DocumentAnalyzer
	finalizer   Finalizer
	sanitizer   *bluemonday.Policy
	cfg         GradingConfig
	logger      zerolog.Logger
}

// NewGradingHandler constructs the stage-two handler.
func NewGradingHandler(evaluations repository.EvaluationRepository, submissions repository.SubmissionRepository, analyzer ai.DocumentAnalyzer, finalizer Finalizer, cfg GradingConfig, logger zerolog.Logger) *GradingHandler {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 8 * time.Minute
	}

	return &GradingHandler{
		evaluations: evaluations,
		submissions: submissions,
		analyzer:    analyzer,
		finalizer:   finalizer,
		sanitizer:   bluemonday.StrictPolicy(),
		cfg:         cfg,
		logger:      logger.With().Str("component", "grading_handler").Logger(),
	}
}

// ProcessTask grades one submission against its evaluation's rubric.
func (h *GradingHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	start := time.Now()
	err := h.process(ctx, task)
	observability.JobDuration().WithLabelValues("grading").Observe(time.Since(start).Seconds())
	observability.JobsProcessed().WithLabelValues("grading", outcomeLabel(err)).Inc()
	return err
}

func (h *GradingHandler) process(ctx context.Context, task *asynq.Task) error {
	var payload queue.GradingPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal grading payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := h.logger.With().
		Uint("evaluation_id", payload.EvaluationID).
		Uint("submission_id", payload.SubmissionID).
		Logger()

	evaluation, err := h.evaluations.GetByID(ctx, payload.EvaluationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("evaluation %d not found: %w", payload.EvaluationID, asynq.SkipRetry)
		}
		return h.fail(ctx, logger, payload.SubmissionID, fmt.Errorf("load evaluation %d: %w", payload.EvaluationID, err))
	}

	submission, err := h.submissions.GetByID(ctx, payload.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("submission %d not found: %w", payload.SubmissionID, asynq.SkipRetry)
		}
		return h.fail(ctx, logger, payload.SubmissionID, fmt.Errorf("load submission %d: %w", payload.SubmissionID, err))
	}

	// A grading job reaching this point without a ready rubric is an
	// ordering bug in the caller: fail loudly, before any upload or
	// inference spend.
	if !evaluation.RubricReady() {
		return h.fail(ctx, logger, submission.ID,
			fmt.Errorf("rubric not ready for evaluation %d: %w", evaluation.ID, asynq.SkipRetry))
	}

	// Absent students are skipped, not failed, and still count toward
	// aggregate completion.
	if submission.Status == models.SubmissionStatusAbsent {
		if err := h.submissions.UpdateStatus(ctx, submission.ID, models.SubmissionStatusSkipped); err != nil {
			return h.fail(ctx, logger, submission.ID, fmt.Errorf("mark submission skipped: %w", err))
		}
		logger.Info().Msg("absent submission skipped")
		return h.finalize(ctx, logger, evaluation.ID)
	}

	// A stale retry for an already graded submission is a no-op: grading
	// again would only spend inference quota on a result nobody asked for.
	if submission.IsTerminal() {
		logger.Info().Str("status", submission.Status).Msg("submission already terminal, skipping re-grade")
		return h.finalize(ctx, logger, evaluation.ID)
	}

	if evaluation.QuestionPaperPath == "" || submission.ScriptPath == "" {
		return h.fail(ctx, logger, submission.ID,
			fmt.Errorf("missing document path for submission %d: %w", submission.ID, asynq.SkipRetry))
	}

	handles, release, err := uploadDocuments(ctx, h.analyzer, logger,
		[]string{evaluation.QuestionPaperPath, submission.ScriptPath})
	if err != nil {
		if errors.Is(err, ErrDocumentUnreadable) {
			err = fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return h.fail(ctx, logger, submission.ID, err)
	}
	defer release()

	rubricJSON, err := json.Marshal(evaluation.Rubric.Data())
	if err != nil {
		return h.fail(ctx, logger, submission.ID, fmt.Errorf("serialize rubric: %w", err))
	}

	parts := []ai.Part{
		{FileURI: handles[0].URI, MIMEType: handles[0].MIMEType},
		{FileURI: handles[1].URI, MIMEType: handles[1].MIMEType},
		{Text: "Marking scheme:\n" + string(rubricJSON)},
		{Text: ai.GradingInstruction()},
	}

	inferCtx, cancel := context.WithTimeout(ctx, h.cfg.InferenceTimeout)
	defer cancel()

	raw, err := h.analyzer.Generate(inferCtx, ai.GenerateRequest{
		Model:  h.cfg.Model,
		Parts:  parts,
		Schema: ai.SchemaGradingResult,
	})
	if err != nil {
		return h.fail(ctx, logger, submission.ID, err)
	}

	result, err := ai.ParseGradingResult(raw)
	if err != nil {
		return h.fail(ctx, logger, submission.ID, err)
	}

	if computed := result.ComputedTotal(); computed != result.TotalAwarded {
		// Data-quality signal only; the reported total is persisted as-is.
		logger.Warn().Int("reported_total", result.TotalAwarded).Int("computed_total", computed).
			Msg("grading totals disagree")
	}

	for i := range result.Questions {
		result.Questions[i].Feedback = h.sanitizer.Sanitize(result.Questions[i].Feedback)
	}
	feedback := h.sanitizer.Sanitize(result.JoinedFeedback())

	if err := h.submissions.SaveResult(ctx, submission.ID, result, result.TotalAwarded, feedback); err != nil {
		return h.fail(ctx, logger, submission.ID, fmt.Errorf("persist grading result: %w", err))
	}

	logger.Info().Int("total_awarded", result.TotalAwarded).Int("total_possible", result.TotalPossible).
		Msg("submission graded")

	return h.finalize(ctx, logger, evaluation.ID)
}

// finalize runs the completion tracker. A transient failure here retries
// the whole job, which re-enters through the terminal no-op branch and
// reaches this check again without re-grading.
func (h *GradingHandler) finalize(ctx context.Context, logger zerolog.Logger, evaluationID uint) error {
	finalized, err := h.finalizer.MaybeFinalize(ctx, evaluationID)
	if err != nil {
		logger.Warn().Err(err).Msg("completion check failed")
		return err
	}
	if finalized {
		observability.EvaluationsFinalized().Inc()
	}
	return nil
}

// fail records the terminal failure status once retries are exhausted (or
// the error is non-retryable) and always returns the original error. The
// failed path deliberately does not run the completion tracker: a failed
// submission is not terminal and a human is expected to intervene.
func (h *GradingHandler) fail(ctx context.Context, logger zerolog.Logger, submissionID uint, err error) error {
	if errors.Is(err, asynq.SkipRetry) || retriesExhausted(ctx) {
		if updateErr := h.submissions.UpdateStatus(ctx, submissionID, models.SubmissionStatusFailed); updateErr != nil {
			logger.Error().Err(updateErr).Msg("failed to record failed status")
		}
		logger.Error().Err(err).Msg("grading failed")
	} else {
		logger.Warn().Err(err).Msg("grading attempt failed, will retry")
	}
	return err
}
