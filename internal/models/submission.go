package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

// Submission statuses. The terminal set is consulted by the completion
// tracker; "absent" counts as terminal because no grading is expected.
const (
	SubmissionStatusNotUploaded = "not-uploaded"
	SubmissionStatusUploaded    = "uploaded"
	SubmissionStatusAbsent      = "absent"
	SubmissionStatusEvaluated   = "evaluated"
	SubmissionStatusSkipped     = "skipped"
	SubmissionStatusFailed      = "failed"
)

// TerminalSubmissionStatuses are the states after which no further grading
// action is expected for a submission.
var TerminalSubmissionStatuses = []string{
	SubmissionStatusEvaluated,
	SubmissionStatusSkipped,
	SubmissionStatusAbsent,
}

// EvaluationSubmission is one student's attempt against an Evaluation.
type EvaluationSubmission struct {
	ID           uint                                  `gorm:"primaryKey" json:"id"`
	EvaluationID uint                                  `gorm:"not null;index" json:"evaluation_id"`
	StudentID    uint                                  `gorm:"not null" json:"student_id"`
	ScriptPath   string                                `gorm:"type:text" json:"script_path"`
	Status       string                                `gorm:"size:32;not null;default:'not-uploaded'" json:"status"`
	Result       *datatypes.JSONType[ai.GradingResult] `json:"result,omitempty"`
	TotalMark    *int                                  `json:"total_mark,omitempty"`
	Feedback     string                                `gorm:"type:text" json:"feedback"`
	CreatedAt    time.Time                             `json:"created_at"`
	UpdatedAt    time.Time                             `json:"updated_at"`
	Evaluation   Evaluation                            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsTerminal reports whether the submission has reached a state after
// which no grading job should do further work.
func (s EvaluationSubmission) IsTerminal() bool {
	for _, status := range TerminalSubmissionStatuses {
		if s.Status == status {
			return true
		}
	}
	return false
}
