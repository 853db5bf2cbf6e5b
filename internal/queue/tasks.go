package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types and the queues they run on. Rubric and grading jobs live on
// separate queues so they can be scaled and prioritised independently.
const (
	TypeRubricGenerate  = "rubric:generate"
	TypeGradeSubmission = "grading:submission"

	QueueRubrics = "rubrics"
	QueueGrading = "grading"
)

// RubricPayload identifies the evaluation a rubric job works on.
type RubricPayload struct {
	EvaluationID uint `json:"evaluation_id"`
}

// GradingPayload identifies the (evaluation, submission) pair a grading
// job works on.
type GradingPayload struct {
	EvaluationID uint `json:"evaluation_id"`
	SubmissionID uint `json:"submission_id"`
}

// NewRubricTask builds the queue task for rubric generation.
func NewRubricTask(evaluationID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(RubricPayload{EvaluationID: evaluationID})
	if err != nil {
		return nil, fmt.Errorf("marshal rubric payload: %w", err)
	}
	return asynq.NewTask(TypeRubricGenerate, payload), nil
}

// NewGradingTask builds the queue task for grading one submission.
func NewGradingTask(evaluationID, submissionID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(GradingPayload{EvaluationID: evaluationID, SubmissionID: submissionID})
	if err != nil {
		return nil, fmt.Errorf("marshal grading payload: %w", err)
	}
	return asynq.NewTask(TypeGradeSubmission, payload), nil
}
