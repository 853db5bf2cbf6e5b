package dto

import (
	"github.com/noah-isme/evalia-go-api/internal/models"
	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

// CreateEvaluationRequest registers a new evaluation and its documents.
type CreateEvaluationRequest struct {
	Title             string   `json:"title" validate:"required,max=255"`
	Subject           string   `json:"subject" validate:"required,max=128"`
	QuestionPaperPath string   `json:"question_paper_path" validate:"required"`
	AnswerKeyPaths    []string `json:"answer_key_paths" validate:"dive,required"`
	MaxMarks          int      `json:"max_marks" validate:"required,gt=0"`
}

// CreateSubmissionRequest registers one student's script for an evaluation.
type CreateSubmissionRequest struct {
	StudentID  uint   `json:"student_id" validate:"required"`
	ScriptPath string `json:"script_path"`
	Absent     bool   `json:"absent"`
}

// SubmissionResponse is the polling view of one submission.
type SubmissionResponse struct {
	ID        uint   `json:"id"`
	StudentID uint   `json:"student_id"`
	Status    string `json:"status"`
	TotalMark *int   `json:"total_mark,omitempty"`
	Feedback  string `json:"feedback,omitempty"`
}

// EvaluationResponse is the polling view of an evaluation and its
// submissions.
type EvaluationResponse struct {
	ID              uint                 `json:"id"`
	Title           string               `json:"title"`
	Subject         string               `json:"subject"`
	MaxMarks        int                  `json:"max_marks"`
	Status          string               `json:"status"`
	RubricGenerated bool                 `json:"rubric_generated"`
	Rubric          *ai.Rubric           `json:"rubric,omitempty"`
	Submissions     []SubmissionResponse `json:"submissions"`
}

// EnqueueResponse acknowledges a queued pipeline stage.
type EnqueueResponse struct {
	EvaluationID uint   `json:"evaluation_id"`
	Stage        string `json:"stage"`
}

// NewEvaluationResponse builds the polling DTO from a model.
func NewEvaluationResponse(evaluation models.Evaluation) EvaluationResponse {
	response := EvaluationResponse{
		ID:              evaluation.ID,
		Title:           evaluation.Title,
		Subject:         evaluation.Subject,
		MaxMarks:        evaluation.MaxMarks,
		Status:          evaluation.Status,
		RubricGenerated: evaluation.RubricGenerated,
		Submissions:     make([]SubmissionResponse, 0, len(evaluation.Submissions)),
	}

	if evaluation.Rubric != nil {
		rubric := evaluation.Rubric.Data()
		response.Rubric = &rubric
	}

	for _, submission := range evaluation.Submissions {
		response.Submissions = append(response.Submissions, SubmissionResponse{
			ID:        submission.ID,
			StudentID: submission.StudentID,
			Status:    submission.Status,
			TotalMark: submission.TotalMark,
			Feedback:  submission.Feedback,
		})
	}

	return response
}
