package medical

// SchemaName names the structured output schema sent to the model.
const SchemaName = "medical_docs"

// ExtractionSchema is the JSON schema for one extracted record. All fields
// are required so it is accepted by strict structured-output endpoints.
var ExtractionSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":        SchemaName,
		"description": "Extract information from the medical documentation",
		"strict":      true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date": map[string]any{
					"type":        []string{"string", "null"},
					"description": "Date of the described event (consultation, exam results, etc.), format YYYY-MM-DD",
				},
				"event_type": map[string]any{
					"type":        "string",
					"description": "What the document describes, e.g. Consultation, Prescription, Medical exam results",
				},
				"document_summary": map[string]any{
					"type":        "string",
					"description": "Thorough summary: findings, conclusions, main issue, treatment plan, recommendations",
				},
				"evaluation": map[string]any{
					"type":        "string",
					"description": "Short, specific evaluation such as a diagnosis, suspicion or observation",
				},
				"page": map[string]any{
					"type":        "string",
					"description": "Page number as printed, e.g. 01/060",
				},
			},
			"required":             []string{"date", "event_type", "document_summary", "evaluation", "page"},
			"additionalProperties": false,
		},
	},
}

// Result is the parsed model output for one chunk.
type Result struct {
	Date            *string `json:"date"`
	EventType       string  `json:"event_type"`
	DocumentSummary string  `json:"document_summary"`
	Evaluation      string  `json:"evaluation"`
	Page            string  `json:"page"`
}
