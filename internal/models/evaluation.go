package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

// Evaluation lifecycle statuses. Status reaches "evaluating" only after
// the rubric has been generated; "evaluated" is terminal.
const (
	EvaluationStatusNotStarted        = "not-started"
	EvaluationStatusRubricsGenerating = "rubrics-generating"
	EvaluationStatusRubricsFailed     = "rubrics-failed"
	EvaluationStatusUploadPending     = "upload-pending"
	EvaluationStatusEvaluating        = "evaluating"
	EvaluationStatusEvaluated         = "evaluated"
)

// Evaluation is one grading exercise: a question paper graded against a
// set of student submissions.
type Evaluation struct {
	ID                uint                           `gorm:"primaryKey" json:"id"`
	Title             string                         `gorm:"size:255" json:"title"`
	Subject           string                         `gorm:"size:128" json:"subject"`
	QuestionPaperPath string                         `gorm:"type:text" json:"question_paper_path"`
	AnswerKeyPaths    datatypes.JSONSlice[string]    `json:"answer_key_paths"`
	MaxMarks          int                            `gorm:"not null" json:"max_marks"`
	Rubric            *datatypes.JSONType[ai.Rubric] `json:"rubric,omitempty"`
	RubricGenerated   bool                           `gorm:"not null;default:false" json:"rubric_generated"`
	Status            string                         `gorm:"size:32;not null;default:'not-started'" json:"status"`
	CreatedAt         time.Time                      `json:"created_at"`
	UpdatedAt         time.Time                      `json:"updated_at"`
	Submissions       []EvaluationSubmission         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"submissions,omitempty"`
}

// RubricReady reports whether grading jobs may run for this evaluation.
func (e Evaluation) RubricReady() bool {
	return e.RubricGenerated && e.Rubric != nil
}
