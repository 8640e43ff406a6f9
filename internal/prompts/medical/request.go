package medical

import (
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/medsum/internal/providers"
)

// Input contains the data needed for one extraction request.
type Input struct {
	Text  string // chunk text
	Index int    // 1-based chunk index

	// SystemPromptOverride replaces the embedded system prompt when set.
	SystemPromptOverride string
	// UserPromptOverride replaces the embedded user template when set.
	UserPromptOverride string
}

// BuildRequest creates the structured chat request for one chunk.
// The caller sets Model and RequestID.
func BuildRequest(input Input) (*providers.ChatRequest, error) {
	system := input.SystemPromptOverride
	if system == "" {
		system = SystemPrompt()
	}
	user, err := UserPrompt(UserPromptData{Text: input.Text, Index: input.Index}, input.UserPromptOverride)
	if err != nil {
		return nil, err
	}

	return &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: ResponseFormat(),
		Temperature:    0.1,
		MaxTokens:      2048,
	}, nil
}

// ParseResult decodes validated structured output into a Result.
func ParseResult(parsed json.RawMessage) (*Result, error) {
	if len(parsed) == 0 {
		return nil, fmt.Errorf("empty structured output")
	}
	var result Result
	if err := json.Unmarshal(parsed, &result); err != nil {
		return nil, fmt.Errorf("failed to decode medical record: %w", err)
	}
	return &result, nil
}

// ResponseFormat returns the json_schema response format for ExtractionSchema.
func ResponseFormat() *providers.ResponseFormat {
	jsonSchema, _ := json.Marshal(ExtractionSchema["json_schema"])
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: jsonSchema,
	}
}
