package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/evalia-go-api/internal/models"
	"github.com/noah-isme/evalia-go-api/internal/observability"
	"github.com/noah-isme/evalia-go-api/internal/queue"
	"github.com/noah-isme/evalia-go-api/internal/repository"
	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

// GradingStarter chains into stage two once a rubric is ready.
type GradingStarter interface {
	StartGrading(ctx context.Context, evaluationID uint) error
}

// RubricConfig tunes the rubric-generation stage.
type RubricConfig struct {
	// Model is the inference tier used for rubric extraction. This is the
	// harder reasoning task and runs once per evaluation, so it defaults
	// to a higher-capability model than the grading stage.
	Model string
	// InferenceTimeout bounds each call to the inference service.
	InferenceTimeout time.Duration
	// AutoStartGrading chains straight into grading when uploaded
	// submissions already exist. When false, grading waits for an
	// explicit "Evaluate" action.
	AutoStartGrading bool
}

// RubricHandler processes rubric-generation jobs.
type RubricHandler struct {
	evaluations repository.EvaluationRepository
	submissions repository.SubmissionRepository
	analyzer    ai.DocumentAnalyzer
	grading     GradingStarter
	cfg         RubricConfig
	logger      zerolog.Logger
}

// NewRubricHandler constructs the stage-one handler.
func NewRubricHandler(evaluations repository.EvaluationRepository, submissions repository.SubmissionRepository, analyzer ai.DocumentAnalyzer, grading GradingStarter, cfg RubricConfig, logger zerolog.Logger) *RubricHandler {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro"
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 8 * time.Minute
	}

	return &RubricHandler{
		evaluations: evaluations,
		submissions: submissions,
		analyzer:    analyzer,
		grading:     grading,
		cfg:         cfg,
		logger:      logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// ProcessTask generates and persists the rubric for one evaluation.
func (h *RubricHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	start := time.Now()
	err := h.process(ctx, task)
	observability.JobDuration().WithLabelValues("rubric").Observe(time.Since(start).Seconds())
	observability.JobsProcessed().WithLabelValues("rubric", outcomeLabel(err)).Inc()
	return err
}

func (h *RubricHandler) process(ctx context.Context, task *asynq.Task) error {
	var payload queue.RubricPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal rubric payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := h.logger.With().Uint("evaluation_id", payload.EvaluationID).Logger()

	evaluation, err := h.evaluations.GetByID(ctx, payload.EvaluationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("evaluation %d not found: %w", payload.EvaluationID, asynq.SkipRetry)
		}
		return h.fail(ctx, logger, payload.EvaluationID, fmt.Errorf("load evaluation %d: %w", payload.EvaluationID, err))
	}

	if evaluation.QuestionPaperPath == "" {
		return h.fail(ctx, logger, evaluation.ID,
			fmt.Errorf("evaluation %d has no question paper: %w", evaluation.ID, asynq.SkipRetry))
	}

	paths := append([]string{evaluation.QuestionPaperPath}, evaluation.AnswerKeyPaths...)
	handles, release, err := uploadDocuments(ctx, h.analyzer, logger, paths)
	if err != nil {
		if errors.Is(err, ErrDocumentUnreadable) {
			err = fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return h.fail(ctx, logger, evaluation.ID, err)
	}
	defer release()

	parts := make([]ai.Part, 0, len(handles)+1)
	for _, handle := range handles {
		parts = append(parts, ai.Part{FileURI: handle.URI, MIMEType: handle.MIMEType})
	}
	parts = append(parts, ai.Part{Text: ai.RubricInstruction(evaluation.MaxMarks)})

	inferCtx, cancel := context.WithTimeout(ctx, h.cfg.InferenceTimeout)
	defer cancel()

	raw, err := h.analyzer.Generate(inferCtx, ai.GenerateRequest{
		Model:  h.cfg.Model,
		Parts:  parts,
		Schema: ai.SchemaRubric,
	})
	if err != nil {
		return h.fail(ctx, logger, evaluation.ID, err)
	}

	rubric, err := ai.ParseRubric(raw)
	if err != nil {
		return h.fail(ctx, logger, evaluation.ID, err)
	}

	if err := h.evaluations.SaveRubric(ctx, evaluation.ID, rubric, models.EvaluationStatusUploadPending); err != nil {
		return h.fail(ctx, logger, evaluation.ID, fmt.Errorf("persist rubric: %w", err))
	}

	logger.Info().Int("questions", len(rubric.Questions)).Int("total_marks", rubric.TotalMarks).
		Msg("rubric generated")

	if h.cfg.AutoStartGrading && h.grading != nil {
		if err := h.maybeStartGrading(ctx, logger, evaluation.ID); err != nil {
			// The rubric itself is persisted; a failed chain is retried by
			// re-submitting the grading stage, not by regenerating rubrics.
			logger.Error().Err(err).Msg("failed to auto-start grading")
		}
	}

	return nil
}

// maybeStartGrading chains into the grading stage when at least one
// submission already has its script uploaded.
func (h *RubricHandler) maybeStartGrading(ctx context.Context, logger zerolog.Logger, evaluationID uint) error {
	submissions, err := h.submissions.ListByEvaluation(ctx, evaluationID)
	if err != nil {
		return err
	}

	for _, submission := range submissions {
		if submission.Status == models.SubmissionStatusUploaded {
			logger.Info().Msg("uploaded submissions present, auto-starting grading")
			return h.grading.StartGrading(ctx, evaluationID)
		}
	}

	return nil
}

// fail records the terminal failure status once retries are exhausted (or
// the error is non-retryable) and always returns the original error so
// the queue records the attempt.
func (h *RubricHandler) fail(ctx context.Context, logger zerolog.Logger, evaluationID uint, err error) error {
	if errors.Is(err, asynq.SkipRetry) || retriesExhausted(ctx) {
		if updateErr := h.evaluations.UpdateStatus(ctx, evaluationID, models.EvaluationStatusRubricsFailed); updateErr != nil {
			logger.Error().Err(updateErr).Msg("failed to record rubrics-failed status")
		}
		logger.Error().Err(err).Msg("rubric generation failed")
	} else {
		logger.Warn().Err(err).Msg("rubric generation attempt failed, will retry")
	}
	return err
}
