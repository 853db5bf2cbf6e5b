package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/evalia-go-api/internal/models"
	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

// SubmissionRepository exposes persistence helpers for submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.EvaluationSubmission) error
	GetByID(ctx context.Context, id uint) (models.EvaluationSubmission, error)
	ListByEvaluation(ctx context.Context, evaluationID uint) ([]models.EvaluationSubmission, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	SaveResult(ctx context.Context, id uint, result ai.GradingResult, totalMark int, feedback string) error
	CountPending(ctx context.Context, evaluationID uint) (int64, error)
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.EvaluationSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.EvaluationSubmission, error) {
	var submission models.EvaluationSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.EvaluationSubmission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) ListByEvaluation(ctx context.Context, evaluationID uint) ([]models.EvaluationSubmission, error) {
	var submissions []models.EvaluationSubmission
	err := r.db.WithContext(ctx).
		Where("evaluation_id = ?", evaluationID).
		Order("id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.EvaluationSubmission{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// SaveResult persists the grading outcome and marks the submission
// evaluated in a single update.
func (r *submissionRepository) SaveResult(ctx context.Context, id uint, result ai.GradingResult, totalMark int, feedback string) error {
	document := datatypes.NewJSONType(result)
	return r.db.WithContext(ctx).
		Model(&models.EvaluationSubmission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"result":     document,
			"total_mark": totalMark,
			"feedback":   feedback,
			"status":     models.SubmissionStatusEvaluated,
		}).Error
}

// CountPending counts submissions not yet in a terminal state.
func (r *submissionRepository) CountPending(ctx context.Context, evaluationID uint) (int64, error) {
	var pending int64
	err := r.db.WithContext(ctx).
		Model(&models.EvaluationSubmission{}).
		Where("evaluation_id = ?", evaluationID).
		Where("status NOT IN ?", models.TerminalSubmissionStatuses).
		Count(&pending).Error
	return pending, err
}
