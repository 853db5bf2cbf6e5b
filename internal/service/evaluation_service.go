package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/evalia-go-api/internal/dto"
	"github.com/noah-isme/evalia-go-api/internal/models"
	"github.com/noah-isme/evalia-go-api/internal/queue"
	"github.com/noah-isme/evalia-go-api/internal/repository"
)

// ErrEvaluationNotFound indicates the evaluation cannot be located.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// EvaluationService drives the evaluation pipeline: it enqueues the two
// stages, tracks aggregate completion and serves the polling view.
type EvaluationService interface {
	Create(ctx context.Context, req dto.CreateEvaluationRequest) (dto.EvaluationResponse, error)
	AddSubmission(ctx context.Context, evaluationID uint, req dto.CreateSubmissionRequest) (dto.SubmissionResponse, error)
	StartRubricGeneration(ctx context.Context, evaluationID uint) error
	StartGrading(ctx context.Context, evaluationID uint) error
	MaybeFinalize(ctx context.Context, evaluationID uint) (bool, error)
	Get(ctx context.Context, evaluationID uint) (dto.EvaluationResponse, error)
}

type evaluationService struct {
	evaluations repository.EvaluationRepository
	submissions repository.SubmissionRepository
	enqueuer    queue.Enqueuer
	events      *StatusPublisher
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewEvaluationService constructs the pipeline service. Cache and events
// are optional; pass nil to disable them.
func NewEvaluationService(evaluations repository.EvaluationRepository, submissions repository.SubmissionRepository, enqueuer queue.Enqueuer, events *StatusPublisher, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		evaluations: evaluations,
		submissions: submissions,
		enqueuer:    enqueuer,
		events:      events,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
	}
}

// Create registers a new evaluation in its initial status.
func (s *evaluationService) Create(ctx context.Context, req dto.CreateEvaluationRequest) (dto.EvaluationResponse, error) {
	evaluation := models.Evaluation{
		Title:             req.Title,
		Subject:           req.Subject,
		QuestionPaperPath: req.QuestionPaperPath,
		AnswerKeyPaths:    req.AnswerKeyPaths,
		MaxMarks:          req.MaxMarks,
		Status:            models.EvaluationStatusNotStarted,
	}

	if err := s.evaluations.Create(ctx, &evaluation); err != nil {
		return dto.EvaluationResponse{}, fmt.Errorf("create evaluation: %w", err)
	}

	s.logger.Info().Uint("evaluation_id", evaluation.ID).Str("title", evaluation.Title).Msg("evaluation created")
	return dto.NewEvaluationResponse(evaluation), nil
}

// AddSubmission registers one student's script against an evaluation. A
// submission flagged absent needs no script and is skipped by the grading
// stage.
func (s *evaluationService) AddSubmission(ctx context.Context, evaluationID uint, req dto.CreateSubmissionRequest) (dto.SubmissionResponse, error) {
	if _, err := s.evaluations.GetByID(ctx, evaluationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrEvaluationNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	status := models.SubmissionStatusNotUploaded
	switch {
	case req.Absent:
		status = models.SubmissionStatusAbsent
	case req.ScriptPath != "":
		status = models.SubmissionStatusUploaded
	}

	submission := models.EvaluationSubmission{
		EvaluationID: evaluationID,
		StudentID:    req.StudentID,
		ScriptPath:   req.ScriptPath,
		Status:       status,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("create submission: %w", err)
	}

	s.invalidateCache(ctx, evaluationID)
	return dto.SubmissionResponse{
		ID:        submission.ID,
		StudentID: submission.StudentID,
		Status:    submission.Status,
	}, nil
}

// StartRubricGeneration flips the evaluation into rubrics-generating and
// queues the single rubric job. The status is written before the job is
// submitted so no worker can observe a stale "not started" state. Errors
// from either step propagate: the caller must treat them as "rubric
// generation did not start".
func (s *evaluationService) StartRubricGeneration(ctx context.Context, evaluationID uint) error {
	if _, err := s.evaluations.GetByID(ctx, evaluationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEvaluationNotFound
		}
		return err
	}

	if err := s.evaluations.UpdateStatus(ctx, evaluationID, models.EvaluationStatusRubricsGenerating); err != nil {
		return fmt.Errorf("mark evaluation %d rubrics-generating: %w", evaluationID, err)
	}

	if err := s.enqueuer.EnqueueRubricJob(ctx, evaluationID); err != nil {
		return err
	}

	s.events.Publish(evaluationID, models.EvaluationStatusRubricsGenerating)
	s.invalidateCache(ctx, evaluationID)
	return nil
}

// StartGrading fans out one grading job per submission. With zero
// submissions there is nothing to grade: the evaluation goes straight to
// its terminal status. Safe to call repeatedly; the deterministic job
// keys make re-submission a no-op.
func (s *evaluationService) StartGrading(ctx context.Context, evaluationID uint) error {
	evaluation, err := s.evaluations.GetWithSubmissions(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEvaluationNotFound
		}
		return err
	}

	if len(evaluation.Submissions) == 0 {
		if err := s.evaluations.UpdateStatus(ctx, evaluationID, models.EvaluationStatusEvaluated); err != nil {
			return fmt.Errorf("finalize empty evaluation %d: %w", evaluationID, err)
		}
		s.logger.Info().Uint("evaluation_id", evaluationID).Msg("no submissions, evaluation finalized directly")
		s.events.Publish(evaluationID, models.EvaluationStatusEvaluated)
		s.invalidateCache(ctx, evaluationID)
		return nil
	}

	submissionIDs := make([]uint, 0, len(evaluation.Submissions))
	for _, submission := range evaluation.Submissions {
		submissionIDs = append(submissionIDs, submission.ID)
	}

	if err := s.enqueuer.EnqueueGradingJobs(ctx, evaluationID, submissionIDs); err != nil {
		return err
	}

	if err := s.evaluations.UpdateStatus(ctx, evaluationID, models.EvaluationStatusEvaluating); err != nil {
		return fmt.Errorf("mark evaluation %d evaluating: %w", evaluationID, err)
	}

	s.events.Publish(evaluationID, models.EvaluationStatusEvaluating)
	s.invalidateCache(ctx, evaluationID)
	return nil
}

// MaybeFinalize runs the completion check after a grading job reaches a
// terminal submission state. Redundant calls are harmless; only the call
// that performs the flip publishes the terminal event.
func (s *evaluationService) MaybeFinalize(ctx context.Context, evaluationID uint) (bool, error) {
	finalized, err := s.evaluations.FinalizeIfComplete(ctx, evaluationID)
	if err != nil {
		return false, fmt.Errorf("finalize evaluation %d: %w", evaluationID, err)
	}

	if finalized {
		s.logger.Info().Uint("evaluation_id", evaluationID).Msg("evaluation fully graded")
		s.events.Publish(evaluationID, models.EvaluationStatusEvaluated)
		s.invalidateCache(ctx, evaluationID)
	}

	return finalized, nil
}

// Get serves the polling view. The UI polls aggressively near batch
// completion, so responses are cached briefly.
func (s *evaluationService) Get(ctx context.Context, evaluationID uint) (dto.EvaluationResponse, error) {
	cacheKey := s.cacheKey(evaluationID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.EvaluationResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read evaluation cache")
		}
	}

	evaluation, err := s.evaluations.GetWithSubmissions(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	response := dto.NewEvaluationResponse(evaluation)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store evaluation cache")
			}
		}
	}

	return response, nil
}

func (s *evaluationService) cacheKey(evaluationID uint) string {
	return fmt.Sprintf("evaluation:%d", evaluationID)
}

func (s *evaluationService) invalidateCache(ctx context.Context, evaluationID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(evaluationID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("evaluation_id", evaluationID).Msg("failed to invalidate evaluation cache")
	}
}
