package providers

import (
	"os"
)

// TestConfig holds provider credentials read from the environment so live
// integration tests can opt in without a config file.
type TestConfig struct {
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	MistralAPIKey    string

	DocumentAIProject   string
	DocumentAILocation  string
	DocumentAIProcessor string
}

// LoadTestConfig loads provider credentials from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenRouterAPIKey:    os.Getenv("OPENROUTER_API_KEY"),
		MistralAPIKey:       os.Getenv("MISTRAL_API_KEY"),
		DocumentAIProject:   os.Getenv("DOCUMENTAI_PROJECT_ID"),
		DocumentAILocation:  os.Getenv("DOCUMENTAI_LOCATION"),
		DocumentAIProcessor: os.Getenv("DOCUMENTAI_PROCESSOR_ID"),
	}
}

// HasOpenAI returns true if an OpenAI API key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasMistral returns true if a Mistral API key is configured.
func (c TestConfig) HasMistral() bool {
	return c.MistralAPIKey != ""
}

// HasDocumentAI returns true if a Document AI processor is configured.
func (c TestConfig) HasDocumentAI() bool {
	return c.DocumentAIProject != "" && c.DocumentAIProcessor != ""
}

// ToRegistryConfig converts test config to a RegistryConfig.
// Only providers with credentials are included.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{
		OCRProviders: make(map[string]OCRProviderConfig),
		LLMProviders: make(map[string]LLMProviderConfig),
	}

	if c.HasOpenAI() {
		cfg.LLMProviders[OpenAIName] = LLMProviderConfig{
			Type:    OpenAIName,
			APIKey:  c.OpenAIAPIKey,
			Enabled: true,
		}
	}
	if c.OpenRouterAPIKey != "" {
		cfg.LLMProviders[OpenRouterName] = LLMProviderConfig{
			Type:    OpenRouterName,
			APIKey:  c.OpenRouterAPIKey,
			Enabled: true,
		}
	}
	if c.HasMistral() {
		cfg.OCRProviders["mistral"] = OCRProviderConfig{
			Type:    MistralOCRName,
			APIKey:  c.MistralAPIKey,
			Enabled: true,
		}
	}
	if c.HasDocumentAI() {
		cfg.OCRProviders[DocumentAIName] = OCRProviderConfig{
			Type:        DocumentAIName,
			ProjectID:   c.DocumentAIProject,
			Location:    c.DocumentAILocation,
			ProcessorID: c.DocumentAIProcessor,
			Enabled:     true,
		}
	}
	return cfg
}
