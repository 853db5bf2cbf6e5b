package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/evalia-go-api/internal/models"
	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

// EvaluationRepository exposes persistence helpers for evaluations.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetByID(ctx context.Context, id uint) (models.Evaluation, error)
	GetWithSubmissions(ctx context.Context, id uint) (models.Evaluation, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	SaveRubric(ctx context.Context, id uint, rubric ai.Rubric, status string) error
	FinalizeIfComplete(ctx context.Context, id uint) (bool, error)
}

// NewEvaluationRepository constructs an evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

type evaluationRepository struct {
	db *gorm.DB
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).First(&evaluation, id).Error; err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) GetWithSubmissions(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Submissions").
		First(&evaluation, id).Error
	if err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// SaveRubric persists the generated rubric, flips the rubric-generated
// flag and advances the lifecycle status in a single update.
func (r *evaluationRepository) SaveRubric(ctx context.Context, id uint, rubric ai.Rubric, status string) error {
	document := datatypes.NewJSONType(rubric)
	return r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rubric":           document,
			"rubric_generated": true,
			"status":           status,
		}).Error
}

// FinalizeIfComplete flips the evaluation to its terminal status once no
// submission remains outside the terminal set. The count re-runs inside
// the same transaction as the write so concurrent completions near the
// tail of a batch cannot permanently miss the zero-pending condition.
// Returns true when this call performed the flip.
func (r *evaluationRepository) FinalizeIfComplete(ctx context.Context, id uint) (bool, error) {
	finalized := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending int64
		err := tx.Model(&models.EvaluationSubmission{}).
			Where("evaluation_id = ?", id).
			Where("status NOT IN ?", models.TerminalSubmissionStatuses).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}

		result := tx.Model(&models.Evaluation{}).
			Where("id = ?", id).
			Where("status <> ?", models.EvaluationStatusEvaluated).
			Update("status", models.EvaluationStatusEvaluated)
		if result.Error != nil {
			return result.Error
		}
		finalized = result.RowsAffected > 0
		return nil
	})
	return finalized, err
}
