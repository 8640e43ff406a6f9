package medical

import (
	_ "embed"

	"github.com/jackzampolin/medsum/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "extract.medical.system"
	UserPromptKey   = "extract.medical.user"
)

// UserPromptData is the data available to the user prompt template.
type UserPromptData struct {
	Text  string // chunk text
	Index int    // 1-based chunk index
}

// SystemPrompt returns the embedded clinician system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt renders the user prompt for one chunk. A non-empty override
// replaces the embedded template.
func UserPrompt(data UserPromptData, override string) (string, error) {
	text := userPromptTmpl
	if override != "" {
		text = override
	}
	return prompts.Render(UserPromptKey, text, data)
}

// RegisterPrompts registers the medical extraction prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Clinician system prompt for per-chunk record extraction",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Per-chunk user prompt template",
	})
}
