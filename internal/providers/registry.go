package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the configured LLM clients and OCR providers by name.
// It is safe for concurrent use and can be reloaded when config changes.
type Registry struct {
	mu           sync.RWMutex
	llmClients   map[string]LLMClient
	ocrProviders map[string]OCRProvider
	logger       *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients:   make(map[string]LLMClient),
		ocrProviders: make(map[string]OCRProvider),
		logger:       slog.Default(),
	}
}

// SetLogger sets the logger for the registry. A nil logger is ignored.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	r.logger.Info("registered LLM client", "name", name)
}

// UnregisterLLM removes an LLM client by name.
func (r *Registry) UnregisterLLM(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.llmClients, name)
	r.logger.Debug("unregistered LLM client", "name", name)
}

// RegisterOCR registers an OCR provider by name.
func (r *Registry) RegisterOCR(name string, provider OCRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrProviders[name] = provider
	r.logger.Info("registered OCR provider", "name", name)
}

// UnregisterOCR removes an OCR provider by name.
func (r *Registry) UnregisterOCR(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ocrProviders, name)
	r.logger.Debug("unregistered OCR provider", "name", name)
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// GetOCR returns an OCR provider by name.
func (r *Registry) GetOCR(name string) (OCRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ocrProviders[name]
	if !ok {
		return nil, fmt.Errorf("OCR provider not found: %s", name)
	}
	return provider, nil
}

// ListLLM returns registered LLM client names in sorted order.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListOCR returns registered OCR provider names in sorted order.
func (r *Registry) ListOCR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ocrProviders))
	for name := range r.ocrProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.llmClients[name]
	return ok
}

// HasOCR checks if an OCR provider is registered.
func (r *Registry) HasOCR(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ocrProviders[name]
	return ok
}

// LLMClients returns a snapshot of all registered LLM clients.
func (r *Registry) LLMClients() map[string]LLMClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]LLMClient, len(r.llmClients))
	for name, client := range r.llmClients {
		result[name] = client
	}
	return result
}

// OCRProviders returns a snapshot of all registered OCR providers.
func (r *Registry) OCRProviders() map[string]OCRProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]OCRProvider, len(r.ocrProviders))
	for name, provider := range r.ocrProviders {
		result[name] = provider
	}
	return result
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	// OCRProviders maps provider names to their config
	OCRProviders map[string]OCRProviderConfig

	// LLMProviders maps provider names to their config
	LLMProviders map[string]LLMProviderConfig
}

// OCRProviderConfig matches config.OCRProviderCfg with resolved secrets.
type OCRProviderConfig struct {
	Type       string  // "documentai", "mistral-ocr"
	Model      string  // Model name (mistral-ocr)
	APIKey     string  // Resolved API key (mistral-ocr)
	RateLimit  float64 // Requests per second
	MaxRetries int
	Enabled    bool

	// Document AI
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
	Endpoint        string // API base URL override; applies to mistral-ocr too
}

// LLMProviderConfig matches config.LLMProviderCfg with resolved API key.
type LLMProviderConfig struct {
	Type       string  // "openai", "openrouter"
	Model      string  // Default model
	APIKey     string  // Resolved API key
	BaseURL    string  // Optional endpoint override
	RateLimit  float64 // Requests per second
	MaxRetries int
	Enabled    bool
}

// usable reports whether the entry has the credentials its type needs.
func (c OCRProviderConfig) usable() bool {
	if !c.Enabled {
		return false
	}
	if c.Type == DocumentAIName {
		return c.ProjectID != "" && c.ProcessorID != ""
	}
	return c.APIKey != ""
}

func (c LLMProviderConfig) usable() bool {
	return c.Enabled && c.APIKey != ""
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with usable credentials are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured are unregistered and providers
// with changed settings are rebuilt.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantLLM := make(map[string]bool)
	wantOCR := make(map[string]bool)

	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.usable() {
			continue
		}
		wantLLM[name] = true

		existing, hasExisting := r.llmClients[name]
		if hasExisting && !needsLLMUpdate(existing, provCfg) {
			continue
		}
		client, err := createLLMClient(provCfg)
		if err != nil {
			r.logger.Warn("skipping LLM client", "name", name, "type", provCfg.Type, "error", err)
			wantLLM[name] = hasExisting
			continue
		}
		r.llmClients[name] = client
		r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type, "updated", hasExisting)
	}

	for name, provCfg := range cfg.OCRProviders {
		if !provCfg.usable() {
			continue
		}
		wantOCR[name] = true

		existing, hasExisting := r.ocrProviders[name]
		if hasExisting && !needsOCRUpdate(existing, provCfg) {
			continue
		}
		provider, err := createOCRProvider(provCfg)
		if err != nil {
			r.logger.Warn("skipping OCR provider", "name", name, "type", provCfg.Type, "error", err)
			wantOCR[name] = hasExisting
			continue
		}
		r.ocrProviders[name] = provider
		r.logger.Info("registered OCR provider", "name", name, "type", provCfg.Type, "updated", hasExisting)
	}

	for name := range r.llmClients {
		if !wantLLM[name] {
			delete(r.llmClients, name)
			r.logger.Info("unregistered LLM client", "name", name)
		}
	}
	for name := range r.ocrProviders {
		if !wantOCR[name] {
			delete(r.ocrProviders, name)
			r.logger.Info("unregistered OCR provider", "name", name)
		}
	}
}

// createLLMClient creates an LLM client based on provider type.
func createLLMClient(cfg LLMProviderConfig) (LLMClient, error) {
	switch cfg.Type {
	case OpenAIName:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			RPS:          cfg.RateLimit,
			MaxRetries:   cfg.MaxRetries,
		}), nil
	case OpenRouterName:
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			RPS:          cfg.RateLimit,
			MaxRetries:   cfg.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider type %q", cfg.Type)
	}
}

// createOCRProvider creates an OCR provider based on provider type.
func createOCRProvider(cfg OCRProviderConfig) (OCRProvider, error) {
	switch cfg.Type {
	case DocumentAIName:
		return NewDocumentAIClient(context.Background(), DocumentAIConfig{
			ProjectID:       cfg.ProjectID,
			Location:        cfg.Location,
			ProcessorID:     cfg.ProcessorID,
			CredentialsFile: cfg.CredentialsFile,
			Endpoint:        cfg.Endpoint,
			RateLimit:       cfg.RateLimit,
			MaxRetries:      cfg.MaxRetries,
		})
	case MistralOCRName:
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.Endpoint,
			Model:      cfg.Model,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown OCR provider type %q", cfg.Type)
	}
}

// needsLLMUpdate checks if an LLM client needs to be recreated.
func needsLLMUpdate(client LLMClient, cfg LLMProviderConfig) bool {
	switch c := client.(type) {
	case *OpenAIClient:
		return cfg.Type != OpenAIName ||
			c.apiKey != cfg.APIKey ||
			c.baseURL != cfg.BaseURL ||
			(cfg.Model != "" && c.defaultModel != cfg.Model) ||
			(cfg.RateLimit != 0 && c.rps != cfg.RateLimit)
	case *OpenRouterClient:
		return cfg.Type != OpenRouterName ||
			c.apiKey != cfg.APIKey ||
			(cfg.Model != "" && c.defaultModel != cfg.Model) ||
			(cfg.RateLimit != 0 && c.rps != cfg.RateLimit)
	default:
		return true
	}
}

// needsOCRUpdate checks if an OCR provider needs to be recreated.
func needsOCRUpdate(provider OCRProvider, cfg OCRProviderConfig) bool {
	switch p := provider.(type) {
	case *MistralOCRClient:
		return cfg.Type != MistralOCRName ||
			p.apiKey != cfg.APIKey ||
			(cfg.Endpoint != "" && p.baseURL != cfg.Endpoint) ||
			(cfg.RateLimit != 0 && p.rateLimit != cfg.RateLimit)
	case *DocumentAIClient:
		want := DocumentAIConfig{ProjectID: cfg.ProjectID, Location: cfg.Location, ProcessorID: cfg.ProcessorID}
		if want.Location == "" {
			want.Location = "us"
		}
		return cfg.Type != DocumentAIName ||
			p.processorName != want.ProcessorName() ||
			(cfg.RateLimit != 0 && p.rateLimit != cfg.RateLimit)
	default:
		return true
	}
}
