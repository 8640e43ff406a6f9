// Package llmcall records every extraction call made during a run so that
// prompts, responses and costs can be traced afterwards.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/medsum/internal/providers"
)

// FileName is the call log written to the work directory.
const FileName = "llm_calls.jsonl"

// Call represents a recorded LLM API call.
type Call struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	RunID      string `json:"run_id,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty"`

	// Model info
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Usage
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Attempts     int     `json:"attempts"`

	Response string `json:"response"`

	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	RunID      string
	ChunkIndex int

	PromptKey  string
	PromptHash string

	// Pointer to distinguish "not set" from "set to 0".
	Temperature *float64

	// Err is the transport error returned alongside the result, if any.
	Err error
}

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil and no error is given.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil && opts.Err == nil {
		return nil
	}

	call := &Call{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		RunID:       opts.RunID,
		ChunkIndex:  opts.ChunkIndex,
		PromptKey:   opts.PromptKey,
		PromptHash:  opts.PromptHash,
		Temperature: opts.Temperature,
	}
	if result != nil {
		call.LatencyMs = int(result.TotalTime.Milliseconds())
		if call.LatencyMs == 0 {
			call.LatencyMs = int(result.ExecutionTime.Milliseconds())
		}
		call.Provider = result.Provider
		call.Model = result.ModelUsed
		call.InputTokens = result.PromptTokens
		call.OutputTokens = result.CompletionTokens
		call.CostUSD = result.CostUSD
		call.Attempts = result.Attempts
		call.Response = result.Content
		call.Success = result.Success
		if !result.Success {
			call.ErrorType = result.ErrorType
			call.Error = result.ErrorMessage
		}
	}
	if opts.Err != nil {
		call.Success = false
		if call.Error == "" {
			call.Error = opts.Err.Error()
		}
	}
	return call
}
