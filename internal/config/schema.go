package config

// Config holds medsum configuration.
// Stored at: {home}/config.yaml
type Config struct {
	OCRProviders map[string]OCRProviderCfg `mapstructure:"ocr_providers" yaml:"ocr_providers"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Pipeline     PipelineCfg               `mapstructure:"pipeline" yaml:"pipeline"`
	Paths        PathsCfg                  `mapstructure:"paths" yaml:"paths"`
}

// OCRProviderCfg configures an OCR provider.
type OCRProviderCfg struct {
	Type       string  `mapstructure:"type" yaml:"type"`                 // "documentai", "mistral-ocr"
	Model      string  `mapstructure:"model" yaml:"model,omitempty"`     // mistral-ocr only
	APIKey     string  `mapstructure:"api_key" yaml:"api_key,omitempty"` // supports ${ENV_VAR} syntax
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"`     // requests per second
	MaxRetries int     `mapstructure:"max_retries" yaml:"max_retries"`   // extra OCR attempts per sub-unit; 0 disables
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`

	// Document AI
	ProjectID       string `mapstructure:"project_id" yaml:"project_id,omitempty"`
	Location        string `mapstructure:"location" yaml:"location,omitempty"`
	ProcessorID     string `mapstructure:"processor_id" yaml:"processor_id,omitempty"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type       string  `mapstructure:"type" yaml:"type"`                   // "openai", "openrouter"
	Model      string  `mapstructure:"model" yaml:"model"`                 // default model
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"`             // supports ${ENV_VAR} syntax
	BaseURL    string  `mapstructure:"base_url" yaml:"base_url,omitempty"` // endpoint override
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"`       // requests per second
	MaxRetries int     `mapstructure:"max_retries" yaml:"max_retries"`     // client retries after a failed request; 0 disables
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg selects which configured providers a run uses.
type DefaultsCfg struct {
	OCRProvider string `mapstructure:"ocr_provider" yaml:"ocr_provider"`
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"`
}

// PipelineCfg holds the split, chunk, retry and table knobs.
type PipelineCfg struct {
	PagesPerSplit int `mapstructure:"pages_per_split" yaml:"pages_per_split"`
	ChunkSize     int `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap  int `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`

	OCRRetries         int    `mapstructure:"ocr_retries" yaml:"ocr_retries"`
	ExtractRetries     int    `mapstructure:"extract_retries" yaml:"extract_retries"`
	RetryDelay         string `mapstructure:"retry_delay" yaml:"retry_delay"`   // e.g. "2s"; empty uses the provider's base delay
	CallTimeout        string `mapstructure:"call_timeout" yaml:"call_timeout"` // e.g. "5m"; empty means no per-call timeout
	OCRConcurrency     int    `mapstructure:"ocr_concurrency" yaml:"ocr_concurrency"`
	ExtractConcurrency int    `mapstructure:"extract_concurrency" yaml:"extract_concurrency"`

	NullDates   string `mapstructure:"null_dates" yaml:"null_dates"` // "last" or "first"
	DayFirst    bool   `mapstructure:"day_first" yaml:"day_first"`
	WriteXLSX   bool   `mapstructure:"write_xlsx" yaml:"write_xlsx"`
	RecordCalls bool   `mapstructure:"record_calls" yaml:"record_calls"`
}

// PathsCfg holds artifact locations. Relative paths resolve against the
// current directory; empty values fall back to the home directory layout.
type PathsCfg struct {
	WorkDir    string `mapstructure:"work_dir" yaml:"work_dir"`
	Output     string `mapstructure:"output" yaml:"output"`
	PromptsDir string `mapstructure:"prompts_dir" yaml:"prompts_dir"`
	Inbox      string `mapstructure:"inbox" yaml:"inbox"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OCRProviders: map[string]OCRProviderCfg{
			"documentai": {
				Type:        "documentai",
				ProjectID:   "${DOCUMENTAI_PROJECT_ID}",
				Location:    "${DOCUMENTAI_LOCATION}",
				ProcessorID: "${DOCUMENTAI_PROCESSOR_ID}",
				RateLimit:   2.0,
				Enabled:     true,
			},
			"mistral": {
				Type:      "mistral-ocr",
				APIKey:    "${MISTRAL_API_KEY}",
				RateLimit: 6.0,
				Enabled:   true,
			},
		},
		LLMProviders: map[string]LLMProviderCfg{
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 5.0,
				Enabled:   true,
			},
			"openrouter": {
				Type:      "openrouter",
				Model:     "openai/gpt-4o-mini",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 150.0,
				Enabled:   true,
			},
		},
		Defaults: DefaultsCfg{
			OCRProvider: "documentai",
			LLMProvider: "openai",
		},
		Pipeline: PipelineCfg{
			PagesPerSplit:      15,
			ChunkSize:          4000,
			ChunkOverlap:       1000,
			OCRConcurrency:     1,
			ExtractConcurrency: 1,
			NullDates:          "last",
			RecordCalls:        true,
		},
		Paths: PathsCfg{
			WorkDir: "temp",
			Output:  "data/medical_docs_summary.csv",
		},
	}
}

// GetOCRProvider returns an OCR provider config by name.
func (c *Config) GetOCRProvider(name string) (OCRProviderCfg, bool) {
	cfg, ok := c.OCRProviders[name]
	return cfg, ok
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledOCRProviders returns all enabled OCR providers.
func (c *Config) EnabledOCRProviders() map[string]OCRProviderCfg {
	result := make(map[string]OCRProviderCfg)
	for name, cfg := range c.OCRProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
