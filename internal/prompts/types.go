// Package prompts registers embedded prompt templates and resolves them
// against optional on-disk overrides.
//
// Resolution order for a key:
//  1. <overrideDir>/<key>.tmpl, when an override directory is configured and the file exists
//  2. the embedded default registered by the owning package
package prompts

// EmbeddedPrompt represents a prompt compiled into the binary.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: extract.medical.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 of Text
}

// ResolvedPrompt is the text that will actually be sent for a key.
type ResolvedPrompt struct {
	Key        string   `json:"key" yaml:"key"`
	Text       string   `json:"text" yaml:"text"`
	Variables  []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Hash       string   `json:"hash" yaml:"hash"`
	IsOverride bool     `json:"is_override" yaml:"is_override"`
	Source     string   `json:"source" yaml:"source"` // "embedded" or the override file path
}
