package ai

import (
	"fmt"
	"strings"
)

// RubricInstruction builds the instruction payload for rubric extraction.
// The response must be schema-conformant JSON with no surrounding prose.
func RubricInstruction(maxMarks int) string {
	builder := strings.Builder{}
	builder.WriteString("You are an experienced examiner preparing a marking scheme.\n")
	builder.WriteString("Read the attached question paper")
	builder.WriteString(" and any attached answer keys, then produce a rubric.\n\n")
	builder.WriteString("Requirements:\n")
	builder.WriteString("- Extract every question with its maximum marks.\n")
	fmt.Fprintf(&builder, "- The per-question maximum marks must sum to %d.\n", maxMarks)
	builder.WriteString("- For each question list the key points a student must cover to justify full marks.\n")
	builder.WriteString("- Where possible classify each question by difficulty, cognitive level, topic and outcome codes.\n")
	builder.WriteString("- Respond only with JSON matching the requested schema. No prose, no markdown fences.\n")
	return builder.String()
}

// GradingInstruction builds the instruction payload for grading one script
// against an inline rubric.
func GradingInstruction() string {
	builder := strings.Builder{}
	builder.WriteString("You are grading one student's answer script against the marking scheme provided above.\n")
	builder.WriteString("The first attached document is the question paper, the second is the student's script.\n\n")
	builder.WriteString("Requirements:\n")
	builder.WriteString("- Every question in the marking scheme must appear in your output, even if unattempted.\n")
	builder.WriteString("- Unattempted questions receive 0 marks with the feedback \"Not Attempted\".\n")
	builder.WriteString("- Be generous with partial credit where the student shows understanding.\n")
	fmt.Fprintf(&builder, "- Report a confidence between %d and 100 for each question.\n", ConfidenceFloor)
	builder.WriteString("- Set needs_review to true whenever you are unsure about a judgment.\n")
	builder.WriteString("- total_awarded must equal the sum of the per-question marks_awarded.\n")
	builder.WriteString("- Respond only with JSON matching the requested schema. No prose, no markdown fences.\n")
	return builder.String()
}
