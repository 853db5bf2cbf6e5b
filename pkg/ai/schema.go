package ai

import "google.golang.org/genai"

// Response schemas passed to the inference service so generation is
// constrained server-side. The same shapes are re-validated locally in
// parse.go before anything is persisted.

var rubricResponseSchema = &genai.Schema{
	Type:     genai.TypeObject,
	Required: []string{"questions", "total_marks"},
	Properties: map[string]*genai.Schema{
		"total_marks": {Type: genai.TypeInteger},
		"questions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type:     genai.TypeObject,
				Required: []string{"question_id", "question_text", "max_marks", "key_points"},
				Properties: map[string]*genai.Schema{
					"question_id":     {Type: genai.TypeString},
					"question_text":   {Type: genai.TypeString},
					"section":         {Type: genai.TypeString},
					"max_marks":       {Type: genai.TypeInteger},
					"key_points":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"difficulty":      {Type: genai.TypeString},
					"cognitive_level": {Type: genai.TypeString},
					"topic":           {Type: genai.TypeString},
					"outcome_codes":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				},
			},
		},
	},
}

var gradingResponseSchema = &genai.Schema{
	Type:     genai.TypeObject,
	Required: []string{"questions", "total_awarded", "total_possible"},
	Properties: map[string]*genai.Schema{
		"total_awarded":  {Type: genai.TypeInteger},
		"total_possible": {Type: genai.TypeInteger},
		"questions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type:     genai.TypeObject,
				Required: []string{"question_id", "marks_possible", "marks_awarded", "feedback", "confidence", "needs_review"},
				Properties: map[string]*genai.Schema{
					"page_index":     {Type: genai.TypeInteger},
					"question_id":    {Type: genai.TypeString},
					"marks_possible": {Type: genai.TypeInteger},
					"marks_awarded":  {Type: genai.TypeInteger},
					"feedback":       {Type: genai.TypeString},
					"confidence":     {Type: genai.TypeInteger},
					"needs_review":   {Type: genai.TypeBoolean},
					"marking_points": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type:     genai.TypeObject,
							Required: []string{"text", "points", "satisfied"},
							Properties: map[string]*genai.Schema{
								"text":      {Type: genai.TypeString},
								"points":    {Type: genai.TypeInteger},
								"satisfied": {Type: genai.TypeBoolean},
							},
						},
					},
				},
			},
		},
	},
}

func responseSchemaFor(kind SchemaKind) *genai.Schema {
	switch kind {
	case SchemaRubric:
		return rubricResponseSchema
	case SchemaGradingResult:
		return gradingResponseSchema
	default:
		return nil
	}
}
