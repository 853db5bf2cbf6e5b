package ai

import "context"

// FileHandle references a document uploaded to the inference service.
type FileHandle struct {
	Name     string
	URI      string
	MIMEType string
}

// Part is a single element of a document-analysis request: either a
// reference to an uploaded file or inline text. Exactly one of FileURI
// and Text is set.
type Part struct {
	FileURI  string
	MIMEType string
	Text     string
}

// SchemaKind selects the constrained-output schema for a generation call.
type SchemaKind int

const (
	SchemaRubric SchemaKind = iota + 1
	SchemaGradingResult
)

// GenerateRequest describes one schema-constrained document-analysis call.
type GenerateRequest struct {
	Model  string
	Parts  []Part
	Schema SchemaKind
}

// DocumentAnalyzer describes an AI model capable of analysing uploaded
// documents and returning schema-constrained JSON.
type DocumentAnalyzer interface {
	Upload(ctx context.Context, path, mimeType string) (FileHandle, error)
	Delete(ctx context.Context, name string) error
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// RubricQuestion is one grading criterion extracted from a question paper.
type RubricQuestion struct {
	QuestionID     string   `json:"question_id"`
	QuestionText   string   `json:"question_text"`
	Section        string   `json:"section,omitempty"`
	MaxMarks       int      `json:"max_marks"`
	KeyPoints      []string `json:"key_points"`
	Difficulty     string   `json:"difficulty,omitempty"`
	CognitiveLevel string   `json:"cognitive_level,omitempty"`
	Topic          string   `json:"topic,omitempty"`
	OutcomeCodes   []string `json:"outcome_codes,omitempty"`
}

// Rubric is the structured marking scheme generated from a question paper.
type Rubric struct {
	Questions  []RubricQuestion `json:"questions"`
	TotalMarks int              `json:"total_marks"`
}

// MarkingPoint is a single key-point judgment inside a graded question.
type MarkingPoint struct {
	Text      string `json:"text"`
	Points    int    `json:"points"`
	Satisfied bool   `json:"satisfied"`
}

// QuestionGrade captures the grader's verdict for one rubric question.
type QuestionGrade struct {
	PageIndex     int            `json:"page_index"`
	QuestionID    string         `json:"question_id"`
	MarksPossible int            `json:"marks_possible"`
	MarksAwarded  int            `json:"marks_awarded"`
	Feedback      string         `json:"feedback"`
	Confidence    int            `json:"confidence"`
	NeedsReview   bool           `json:"needs_review"`
	MarkingPoints []MarkingPoint `json:"marking_points"`
}

// GradingResult is the structured outcome of grading one script.
type GradingResult struct {
	Questions     []QuestionGrade `json:"questions"`
	TotalAwarded  int             `json:"total_awarded"`
	TotalPossible int             `json:"total_possible"`
}

// ComputedTotal sums the per-question awarded marks. The inference service
// is instructed to keep this equal to TotalAwarded but does not guarantee
// it, so callers compare the two as a data-quality signal.
func (r GradingResult) ComputedTotal() int {
	total := 0
	for _, question := range r.Questions {
		total += question.MarksAwarded
	}
	return total
}
