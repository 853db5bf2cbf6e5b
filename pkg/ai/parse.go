package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidResponse indicates the inference service returned a body that
// is not valid against the requested schema. Treated as transient by the
// job layer: the model occasionally produces malformed output and a retry
// usually succeeds.
var ErrInvalidResponse = errors.New("invalid inference response")

// ConfidenceFloor is the lower bound the grading instruction asks the
// model to respect. Values below it are passed through but force the
// needs_review flag.
const ConfidenceFloor = 20

const rubricSchemaJSON = `{
  "type": "object",
  "required": ["questions", "total_marks"],
  "properties": {
    "total_marks": {"type": "integer", "minimum": 0},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["question_id", "question_text", "max_marks", "key_points"],
        "properties": {
          "question_id": {"type": "string", "minLength": 1},
          "question_text": {"type": "string"},
          "section": {"type": "string"},
          "max_marks": {"type": "integer", "minimum": 0},
          "key_points": {"type": "array", "items": {"type": "string"}},
          "difficulty": {"type": "string"},
          "cognitive_level": {"type": "string"},
          "topic": {"type": "string"},
          "outcome_codes": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const gradingSchemaJSON = `{
  "type": "object",
  "required": ["questions", "total_awarded", "total_possible"],
  "properties": {
    "total_awarded": {"type": "integer", "minimum": 0},
    "total_possible": {"type": "integer", "minimum": 0},
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question_id", "marks_possible", "marks_awarded", "feedback", "confidence", "needs_review"],
        "properties": {
          "page_index": {"type": "integer", "minimum": 0},
          "question_id": {"type": "string", "minLength": 1},
          "marks_possible": {"type": "integer", "minimum": 0},
          "marks_awarded": {"type": "integer", "minimum": 0},
          "feedback": {"type": "string"},
          "confidence": {"type": "integer"},
          "needs_review": {"type": "boolean"},
          "marking_points": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["text", "points", "satisfied"],
              "properties": {
                "text": {"type": "string"},
                "points": {"type": "integer"},
                "satisfied": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

var (
	rubricSchema  = jsonschema.MustCompileString("rubric.json", rubricSchemaJSON)
	gradingSchema = jsonschema.MustCompileString("grading_result.json", gradingSchemaJSON)
)

// ParseRubric validates and decodes a rubric response body.
func ParseRubric(raw string) (Rubric, error) {
	if err := validate(rubricSchema, raw); err != nil {
		return Rubric{}, err
	}

	var rubric Rubric
	if err := json.Unmarshal([]byte(raw), &rubric); err != nil {
		return Rubric{}, fmt.Errorf("%w: decode rubric: %v", ErrInvalidResponse, err)
	}

	return rubric, nil
}

// ParseGradingResult validates and decodes a grading response body.
// Confidence values are clamped to [0,100]; values below ConfidenceFloor
// force the needs_review flag rather than rejecting the result.
func ParseGradingResult(raw string) (GradingResult, error) {
	if err := validate(gradingSchema, raw); err != nil {
		return GradingResult{}, err
	}

	var result GradingResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return GradingResult{}, fmt.Errorf("%w: decode grading result: %v", ErrInvalidResponse, err)
	}

	for i := range result.Questions {
		question := &result.Questions[i]
		if question.MarksAwarded > question.MarksPossible {
			return GradingResult{}, fmt.Errorf("%w: question %s awarded %d of %d marks",
				ErrInvalidResponse, question.QuestionID, question.MarksAwarded, question.MarksPossible)
		}
		if question.Confidence > 100 {
			question.Confidence = 100
		}
		if question.Confidence < 0 {
			question.Confidence = 0
		}
		if question.Confidence < ConfidenceFloor {
			question.NeedsReview = true
		}
	}

	return result, nil
}

func validate(schema *jsonschema.Schema, raw string) error {
	var document interface{}
	if err := json.Unmarshal([]byte(raw), &document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// JoinedFeedback concatenates the per-question feedback strings, one line
// per question.
func (r GradingResult) JoinedFeedback() string {
	lines := make([]string, 0, len(r.Questions))
	for _, question := range r.Questions {
		if question.Feedback == "" {
			continue
		}
		lines = append(lines, question.Feedback)
	}
	return strings.Join(lines, "\n")
}
