package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRubric(t *testing.T) {
	raw := `{
		"total_marks": 50,
		"questions": [
			{"question_id": "1a", "question_text": "Define photosynthesis.", "max_marks": 10, "key_points": ["light energy", "glucose"]},
			{"question_id": "1b", "question_text": "Label the diagram.", "section": "A", "max_marks": 15, "key_points": ["chloroplast"]},
			{"question_id": "2", "question_text": "Explain the Calvin cycle.", "max_marks": 25, "key_points": ["carbon fixation", "RuBisCO"], "difficulty": "hard"}
		]
	}`

	rubric, err := ParseRubric(raw)
	require.NoError(t, err)
	require.Len(t, rubric.Questions, 3)
	require.Equal(t, 50, rubric.TotalMarks)
	require.Equal(t, "1b", rubric.Questions[1].QuestionID)
	require.Equal(t, "A", rubric.Questions[1].Section)
	require.Equal(t, []string{"carbon fixation", "RuBisCO"}, rubric.Questions[2].KeyPoints)
}

func TestParseRubricMalformedJSON(t *testing.T) {
	_, err := ParseRubric(`{"total_marks": 50, "questions": [`)
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseRubricSchemaViolation(t *testing.T) {
	cases := map[string]string{
		"missing total":    `{"questions": [{"question_id": "1", "question_text": "q", "max_marks": 5, "key_points": []}]}`,
		"empty questions":  `{"total_marks": 10, "questions": []}`,
		"blank id":         `{"total_marks": 10, "questions": [{"question_id": "", "question_text": "q", "max_marks": 5, "key_points": []}]}`,
		"negative marks":   `{"total_marks": 10, "questions": [{"question_id": "1", "question_text": "q", "max_marks": -1, "key_points": []}]}`,
		"wrong marks type": `{"total_marks": "ten", "questions": [{"question_id": "1", "question_text": "q", "max_marks": 5, "key_points": []}]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRubric(raw)
			require.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestParseGradingResult(t *testing.T) {
	raw := `{
		"total_awarded": 13,
		"total_possible": 25,
		"questions": [
			{"page_index": 0, "question_id": "1a", "marks_possible": 10, "marks_awarded": 8, "feedback": "Good definition.", "confidence": 90, "needs_review": false,
			 "marking_points": [{"text": "light energy", "points": 5, "satisfied": true}, {"text": "glucose", "points": 5, "satisfied": false}]},
			{"page_index": 1, "question_id": "2", "marks_possible": 15, "marks_awarded": 5, "feedback": "Partial explanation only.", "confidence": 75, "needs_review": false}
		]
	}`

	result, err := ParseGradingResult(raw)
	require.NoError(t, err)
	require.Len(t, result.Questions, 2)
	require.Equal(t, 13, result.TotalAwarded)
	require.Equal(t, 13, result.ComputedTotal())
	require.False(t, result.Questions[0].NeedsReview)
	require.Len(t, result.Questions[0].MarkingPoints, 2)
}

func TestParseGradingResultClampsConfidence(t *testing.T) {
	raw := `{
		"total_awarded": 5,
		"total_possible": 10,
		"questions": [
			{"question_id": "1", "marks_possible": 5, "marks_awarded": 3, "feedback": "ok", "confidence": 150, "needs_review": false},
			{"question_id": "2", "marks_possible": 5, "marks_awarded": 2, "feedback": "unsure", "confidence": -10, "needs_review": false},
			{"question_id": "3", "marks_possible": 5, "marks_awarded": 0, "feedback": "illegible", "confidence": 10, "needs_review": false}
		]
	}`

	result, err := ParseGradingResult(raw)
	require.NoError(t, err)

	require.Equal(t, 100, result.Questions[0].Confidence)
	require.False(t, result.Questions[0].NeedsReview)

	require.Equal(t, 0, result.Questions[1].Confidence)
	require.True(t, result.Questions[1].NeedsReview)

	require.Equal(t, 10, result.Questions[2].Confidence)
	require.True(t, result.Questions[2].NeedsReview)
}

func TestParseGradingResultRejectsOverAward(t *testing.T) {
	raw := `{
		"total_awarded": 12,
		"total_possible": 10,
		"questions": [
			{"question_id": "1", "marks_possible": 10, "marks_awarded": 12, "feedback": "", "confidence": 80, "needs_review": false}
		]
	}`

	_, err := ParseGradingResult(raw)
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseGradingResultSchemaViolation(t *testing.T) {
	_, err := ParseGradingResult(`{"total_awarded": 5, "questions": []}`)
	require.ErrorIs(t, err, ErrInvalidResponse)

	_, err = ParseGradingResult(`not json`)
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestJoinedFeedback(t *testing.T) {
	result := GradingResult{
		Questions: []QuestionGrade{
			{QuestionID: "1", Feedback: "Good work."},
			{QuestionID: "2", Feedback: ""},
			{QuestionID: "3", Feedback: "Show your steps."},
		},
	}

	require.Equal(t, "Good work.\nShow your steps.", result.JoinedFeedback())
	require.Empty(t, GradingResult{}.JoinedFeedback())
}
