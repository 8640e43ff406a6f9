package config

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is a single documented scalar setting.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the documented scalar settings with their defaults.
// Each key is registered with viper so MEDSUM_<SECTION>_<NAME> environment
// variables override it.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	p := d.Pipeline
	return []Entry{
		{
			Key:         "defaults.ocr_provider",
			Value:       d.Defaults.OCRProvider,
			Description: "OCR provider used by run and ocr",
		},
		{
			Key:         "defaults.llm_provider",
			Value:       d.Defaults.LLMProvider,
			Description: "LLM provider used for per-chunk extraction",
		},

		{
			Key:         "pipeline.pages_per_split",
			Value:       p.PagesPerSplit,
			Description: "Maximum pages per OCR sub-document",
		},
		{
			Key:         "pipeline.chunk_size",
			Value:       p.ChunkSize,
			Description: "Maximum characters per extraction chunk",
		},
		{
			Key:         "pipeline.chunk_overlap",
			Value:       p.ChunkOverlap,
			Description: "Characters shared by consecutive chunks",
		},
		{
			Key:         "pipeline.ocr_retries",
			Value:       p.OCRRetries,
			Description: "Extra attempts per failed OCR call",
		},
		{
			Key:         "pipeline.extract_retries",
			Value:       p.ExtractRetries,
			Description: "Extra attempts per failed extraction call",
		},
		{
			Key:         "pipeline.retry_delay",
			Value:       p.RetryDelay,
			Description: "Base backoff between attempts (empty uses the provider default)",
		},
		{
			Key:         "pipeline.call_timeout",
			Value:       p.CallTimeout,
			Description: "Timeout per collaborator call (empty disables)",
		},
		{
			Key:         "pipeline.ocr_concurrency",
			Value:       p.OCRConcurrency,
			Description: "Concurrent OCR calls",
		},
		{
			Key:         "pipeline.extract_concurrency",
			Value:       p.ExtractConcurrency,
			Description: "Concurrent extraction calls",
		},
		{
			Key:         "pipeline.null_dates",
			Value:       p.NullDates,
			Description: "Where rows without a date sort: last or first",
		},
		{
			Key:         "pipeline.day_first",
			Value:       p.DayFirst,
			Description: "Read ambiguous numeric dates as day/month",
		},
		{
			Key:         "pipeline.write_xlsx",
			Value:       p.WriteXLSX,
			Description: "Also write the table as .xlsx next to the CSV",
		},
		{
			Key:         "pipeline.record_calls",
			Value:       p.RecordCalls,
			Description: "Log every extraction call to llm_calls.jsonl",
		},

		{
			Key:         "paths.work_dir",
			Value:       d.Paths.WorkDir,
			Description: "Directory for split files and OCR text",
		},
		{
			Key:         "paths.output",
			Value:       d.Paths.Output,
			Description: "CSV table path",
		},
		{
			Key:         "paths.prompts_dir",
			Value:       d.Paths.PromptsDir,
			Description: "Directory of <key>.tmpl prompt overrides (empty uses {home}/prompts)",
		},
		{
			Key:         "paths.inbox",
			Value:       d.Paths.Inbox,
			Description: "Directory watched by medsum watch",
		},
	}
}

// GetDefault returns the default entry for key.
func GetDefault(key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	for _, e := range DefaultEntries() {
		if e.Key == key {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
