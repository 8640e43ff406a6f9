package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/medsum/internal/chunk"
	"github.com/jackzampolin/medsum/internal/extract"
	"github.com/jackzampolin/medsum/internal/normalize"
	"github.com/jackzampolin/medsum/internal/ocr"
	"github.com/jackzampolin/medsum/internal/pipeline/stages"
	"github.com/jackzampolin/medsum/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. MEDSUM_PIPELINE_CHUNK_SIZE.
const EnvPrefix = "MEDSUM"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml then $HOME/.medsum/config.yaml.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.medsum")
	}

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct. A provider
// section in the file replaces the default providers of that kind.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	defaults := DefaultConfig()
	if cfg.OCRProviders == nil {
		cfg.OCRProviders = defaults.OCRProviders
	}
	if cfg.LLMProviders == nil {
		cfg.LLMProviders = defaults.LLMProviders
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the config file in use, or "" when running on defaults.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// Entries returns every documented setting with its effective value.
func (cm *Manager) Entries() []Entry {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	entries := DefaultEntries()
	for i := range entries {
		entries[i].Value = cm.v.Get(entries[i].Key)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Value returns the effective value of a single key.
func (cm *Manager) Value(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !cm.v.IsSet(key) {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidKey, key)
	}
	return cm.v.Get(key), nil
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. It is a no-op when no
// config file was found.
func (cm *Manager) WatchConfig() {
	if cm.v.ConfigFileUsed() == "" {
		return
	}
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// Validate checks pipeline bounds and provider selections.
func (c *Config) Validate() error {
	p := c.Pipeline
	var errs []error

	if p.PagesPerSplit < 1 {
		errs = append(errs, fmt.Errorf("pipeline.pages_per_split must be >= 1, got %d", p.PagesPerSplit))
	}
	if err := chunk.Validate(p.ChunkSize, p.ChunkOverlap); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.chunk_size/chunk_overlap: %w", err))
	}
	if p.OCRRetries < 0 || p.ExtractRetries < 0 {
		errs = append(errs, errors.New("pipeline retries must be >= 0"))
	}
	if p.OCRConcurrency < 0 || p.ExtractConcurrency < 0 {
		errs = append(errs, errors.New("pipeline concurrency must be >= 0"))
	}
	if _, err := parseDuration("pipeline.retry_delay", p.RetryDelay); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("pipeline.call_timeout", p.CallTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := normalize.ParseNullPolicy(p.NullDates); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.null_dates: %w", err))
	}

	for name, o := range c.OCRProviders {
		if o.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("ocr_providers.%s.max_retries must be >= 0", name))
		}
	}
	for name, llm := range c.LLMProviders {
		if llm.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("llm_providers.%s.max_retries must be >= 0", name))
		}
	}

	if name := c.Defaults.OCRProvider; name != "" {
		if _, ok := c.OCRProviders[name]; !ok {
			errs = append(errs, fmt.Errorf("defaults.ocr_provider %q is not configured", name))
		}
	}
	if name := c.Defaults.LLMProvider; name != "" {
		if _, ok := c.LLMProviders[name]; !ok {
			errs = append(errs, fmt.Errorf("defaults.llm_provider %q is not configured", name))
		}
	}

	return errors.Join(errs...)
}

// Settings converts the pipeline section into stage settings.
func (c *Config) Settings() (stages.Settings, error) {
	if err := c.Validate(); err != nil {
		return stages.Settings{}, err
	}
	p := c.Pipeline
	delay, _ := parseDuration("pipeline.retry_delay", p.RetryDelay)
	timeout, _ := parseDuration("pipeline.call_timeout", p.CallTimeout)
	nulls, _ := normalize.ParseNullPolicy(p.NullDates)

	return stages.Settings{
		PagesPerSplit: p.PagesPerSplit,
		ChunkSize:     p.ChunkSize,
		ChunkOverlap:  p.ChunkOverlap,
		OCR: ocr.Config{
			Retries:     p.OCRRetries,
			RetryDelay:  delay,
			CallTimeout: timeout,
			Concurrency: p.OCRConcurrency,
		},
		Extract: extract.Config{
			Retries:     p.ExtractRetries,
			RetryDelay:  delay,
			CallTimeout: timeout,
			Concurrency: p.ExtractConcurrency,
		},
		Nulls:       nulls,
		DayFirst:    p.DayFirst,
		WriteXLSX:   p.WriteXLSX,
		RecordCalls: p.RecordCalls,
	}, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in keys and Document AI identifiers.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		OCRProviders: make(map[string]providers.OCRProviderConfig),
		LLMProviders: make(map[string]providers.LLMProviderConfig),
	}

	for name, o := range c.OCRProviders {
		cfg.OCRProviders[name] = providers.OCRProviderConfig{
			Type:            o.Type,
			Model:           o.Model,
			APIKey:          ResolveEnvVars(o.APIKey),
			RateLimit:       o.RateLimit,
			MaxRetries:      o.MaxRetries,
			Enabled:         o.Enabled,
			ProjectID:       ResolveEnvVars(o.ProjectID),
			Location:        ResolveEnvVars(o.Location),
			ProcessorID:     ResolveEnvVars(o.ProcessorID),
			CredentialsFile: ResolveEnvVars(o.CredentialsFile),
			Endpoint:        ResolveEnvVars(o.Endpoint),
		}
	}

	for name, llm := range c.LLMProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:       llm.Type,
			Model:      llm.Model,
			APIKey:     ResolveEnvVars(llm.APIKey),
			BaseURL:    ResolveEnvVars(llm.BaseURL),
			RateLimit:  llm.RateLimit,
			MaxRetries: llm.MaxRetries,
			Enabled:    llm.Enabled,
		}
	}

	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# medsum configuration
# Credentials use ${ENV_VAR} syntax to reference environment variables.
# Document AI: export DOCUMENTAI_PROJECT_ID=xxx DOCUMENTAI_LOCATION=us DOCUMENTAI_PROCESSOR_ID=xxx
#   (authentication uses Application Default Credentials or credentials_file)
# Language model: export OPENAI_API_KEY=xxx (or OPENROUTER_API_KEY / MISTRAL_API_KEY)

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
