package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Run("register and get LLM", func(t *testing.T) {
		r := NewRegistry()
		mock := NewMockClient()

		r.RegisterLLM("test-llm", mock)

		client, err := r.GetLLM("test-llm")
		if err != nil {
			t.Fatalf("GetLLM() error = %v", err)
		}
		if client != mock {
			t.Error("got different client than registered")
		}
	})

	t.Run("register and get OCR", func(t *testing.T) {
		r := NewRegistry()
		mock := NewMockOCRProvider()

		r.RegisterOCR("test-ocr", mock)

		provider, err := r.GetOCR("test-ocr")
		if err != nil {
			t.Fatalf("GetOCR() error = %v", err)
		}
		if provider != mock {
			t.Error("got different provider than registered")
		}
	})

	t.Run("get nonexistent LLM", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.GetLLM("nonexistent")
		if err == nil {
			t.Error("expected error for nonexistent LLM")
		}
	})

	t.Run("get nonexistent OCR", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.GetOCR("nonexistent")
		if err == nil {
			t.Error("expected error for nonexistent OCR")
		}
	})

	t.Run("list providers", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterLLM("llm1", NewMockClient())
		r.RegisterLLM("llm2", NewMockClient())
		r.RegisterOCR("ocr1", NewMockOCRProvider())

		llmList := r.ListLLM()
		if len(llmList) != 2 {
			t.Errorf("ListLLM() returned %d items, want 2", len(llmList))
		}

		ocrList := r.ListOCR()
		if len(ocrList) != 1 {
			t.Errorf("ListOCR() returned %d items, want 1", len(ocrList))
		}
	})

	t.Run("has providers", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterLLM("my-llm", NewMockClient())
		r.RegisterOCR("my-ocr", NewMockOCRProvider())

		if !r.HasLLM("my-llm") {
			t.Error("HasLLM() = false for registered LLM")
		}
		if r.HasLLM("other-llm") {
			t.Error("HasLLM() = true for unregistered LLM")
		}
		if !r.HasOCR("my-ocr") {
			t.Error("HasOCR() = false for registered OCR")
		}
		if r.HasOCR("other-ocr") {
			t.Error("HasOCR() = true for unregistered OCR")
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		r := NewRegistry()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				r.RegisterLLM("concurrent-llm", NewMockClient())
			}(i)
			go func(n int) {
				defer wg.Done()
				r.GetLLM("concurrent-llm") // May fail, that's ok
			}(i)
		}
		wg.Wait()
	})
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("registers providers from config", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openai": {
					Type:    "openai",
					Model:   "gpt-4o",
					APIKey:  "sk-test",
					Enabled: true,
				},
				"openrouter": {
					Type:    "openrouter",
					APIKey:  "test-openrouter-key",
					Enabled: true,
				},
			},
			OCRProviders: map[string]OCRProviderConfig{
				"mistral": {
					Type:    "mistral-ocr",
					APIKey:  "test-mistral-key",
					Enabled: true,
				},
			},
		})

		if got := r.ListLLM(); len(got) != 2 || got[0] != "openai" || got[1] != "openrouter" {
			t.Errorf("ListLLM() = %v", got)
		}
		if !r.HasOCR("mistral") {
			t.Error("expected mistral to be registered")
		}
		client, _ := r.GetLLM("openai")
		oa, ok := client.(*OpenAIClient)
		if !ok {
			t.Fatalf("expected *OpenAIClient, got %T", client)
		}
		if oa.defaultModel != "gpt-4o" {
			t.Errorf("defaultModel = %q", oa.defaultModel)
		}
	})

	t.Run("skips disabled providers", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openai": {Type: "openai", APIKey: "test-key", Enabled: false},
			},
			OCRProviders: map[string]OCRProviderConfig{
				"mistral": {Type: "mistral-ocr", APIKey: "test-key", Enabled: false},
			},
		})

		if r.HasLLM("openai") {
			t.Error("disabled provider should not be registered")
		}
		if r.HasOCR("mistral") {
			t.Error("disabled provider should not be registered")
		}
	})

	t.Run("skips providers without credentials", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openai": {Type: "openai", Enabled: true},
			},
			OCRProviders: map[string]OCRProviderConfig{
				"mistral":    {Type: "mistral-ocr", Enabled: true},
				"documentai": {Type: "documentai", ProjectID: "proj", Enabled: true},
			},
		})

		if r.HasLLM("openai") {
			t.Error("provider without API key should not be registered")
		}
		if r.HasOCR("mistral") {
			t.Error("provider without API key should not be registered")
		}
		if r.HasOCR("documentai") {
			t.Error("documentai without processor should not be registered")
		}
	})

	t.Run("skips unknown types", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"weird": {Type: "carrier-pigeon", APIKey: "k", Enabled: true},
			},
		})
		if r.HasLLM("weird") {
			t.Error("unknown type should not be registered")
		}
	})
}

func TestRegistry_Reload(t *testing.T) {
	openrouter := func(key string) RegistryConfig {
		return RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: "openrouter", Model: "test-model", APIKey: key, RateLimit: 60, Enabled: true},
			},
		}
	}

	t.Run("adds new providers on reload", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{})
		if r.HasLLM("openrouter") {
			t.Error("should start without openrouter")
		}

		r.Reload(openrouter("new-key"))

		if !r.HasLLM("openrouter") {
			t.Error("expected openrouter after reload")
		}
	})

	t.Run("removes providers on reload", func(t *testing.T) {
		cfg := openrouter("key")
		cfg.OCRProviders = map[string]OCRProviderConfig{
			"mistral": {Type: "mistral-ocr", APIKey: "key", Enabled: true},
		}
		r := NewRegistryFromConfig(cfg)
		if !r.HasLLM("openrouter") || !r.HasOCR("mistral") {
			t.Fatal("should start with both providers")
		}

		r.Reload(RegistryConfig{})

		if r.HasLLM("openrouter") || r.HasOCR("mistral") {
			t.Error("providers should be removed after reload")
		}
	})

	t.Run("updates providers with changed API keys", func(t *testing.T) {
		r := NewRegistryFromConfig(openrouter("old-key"))

		r.Reload(openrouter("new-key"))

		client, _ := r.GetLLM("openrouter")
		if got := client.(*OpenRouterClient).apiKey; got != "new-key" {
			t.Errorf("expected new-key, got %s", got)
		}
	})

	t.Run("replaces client when type changes", func(t *testing.T) {
		r := NewRegistryFromConfig(openrouter("k"))

		r.Reload(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: "openai", APIKey: "k", Enabled: true},
			},
		})

		client, _ := r.GetLLM("openrouter")
		if _, ok := client.(*OpenAIClient); !ok {
			t.Errorf("expected *OpenAIClient after type change, got %T", client)
		}
	})

	t.Run("keeps providers with unchanged config", func(t *testing.T) {
		r := NewRegistryFromConfig(openrouter("same-key"))
		client1, _ := r.GetLLM("openrouter")

		r.Reload(openrouter("same-key"))

		client2, _ := r.GetLLM("openrouter")
		if client1 != client2 {
			t.Error("client should not be replaced when config unchanged")
		}
	})

	t.Run("concurrent reload is safe", func(t *testing.T) {
		r := NewRegistryFromConfig(openrouter("key"))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				r.Reload(openrouter("key-" + string(rune('a'+n))))
			}(i)
			go func() {
				defer wg.Done()
				r.GetLLM("openrouter")
			}()
		}
		wg.Wait()
	})
}

func TestRegistry_LLMMaxRetries(t *testing.T) {
	tests := []struct {
		typ        string
		maxRetries int
		wantHits   int32
	}{
		{OpenAIName, 0, 1},
		{OpenAIName, 2, 3},
		{OpenRouterName, 0, 1},
		{OpenRouterName, 2, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/retries=%d", tt.typ, tt.maxRetries), func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After-Ms", "1")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"message":"boom"}}`))
			}))
			defer server.Close()

			r := NewRegistryFromConfig(RegistryConfig{
				LLMProviders: map[string]LLMProviderConfig{
					"llm": {
						Type:       tt.typ,
						APIKey:     "k",
						BaseURL:    server.URL,
						MaxRetries: tt.maxRetries,
						Enabled:    true,
					},
				},
			})
			client, err := r.GetLLM("llm")
			if err != nil {
				t.Fatalf("GetLLM() error = %v", err)
			}
			if client.MaxRetries() != tt.maxRetries {
				t.Errorf("MaxRetries() = %d, want %d", client.MaxRetries(), tt.maxRetries)
			}

			if _, err := client.Chat(context.Background(), &ChatRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			}); err == nil {
				t.Fatal("expected error from a failing server")
			}
			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("server hits = %d, want %d", got, tt.wantHits)
			}
		})
	}
}
