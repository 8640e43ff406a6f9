package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/medsum/internal/normalize"
	"github.com/jackzampolin/medsum/internal/providers"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.PagesPerSplit != 15 {
		t.Errorf("PagesPerSplit = %d, want 15", cfg.Pipeline.PagesPerSplit)
	}
	if cfg.Pipeline.ChunkSize != 4000 || cfg.Pipeline.ChunkOverlap != 1000 {
		t.Errorf("chunking = %d/%d, want 4000/1000", cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	}
	if cfg.Pipeline.OCRRetries != 0 || cfg.Pipeline.ExtractRetries != 0 {
		t.Error("retries should default to zero")
	}
	for name, p := range cfg.OCRProviders {
		if p.MaxRetries != 0 {
			t.Errorf("ocr_providers.%s.max_retries = %d, want 0", name, p.MaxRetries)
		}
	}
	for name, p := range cfg.LLMProviders {
		if p.MaxRetries != 0 {
			t.Errorf("llm_providers.%s.max_retries = %d, want 0", name, p.MaxRetries)
		}
	}
	if cfg.Defaults.OCRProvider != "documentai" || cfg.Defaults.LLMProvider != "openai" {
		t.Errorf("Defaults = %+v", cfg.Defaults)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		if got := ResolveEnvVars("${TEST_API_KEY}"); got != "secret123" {
			t.Errorf("expected secret123, got %s", got)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		if got := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"); got != "" {
			t.Errorf("expected empty string, got %s", got)
		}
	})

	t.Run("expands inside text", func(t *testing.T) {
		t.Setenv("TEST_REGION", "eu")

		if got := ResolveEnvVars("https://${TEST_REGION}-documentai.googleapis.com/"); got != "https://eu-documentai.googleapis.com/" {
			t.Errorf("got %s", got)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		if got := ResolveEnvVars("literal-value"); got != "literal-value" {
			t.Errorf("expected literal-value, got %s", got)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero pages", func(c *Config) { c.Pipeline.PagesPerSplit = 0 }, "pages_per_split"},
		{"overlap equals size", func(c *Config) { c.Pipeline.ChunkOverlap = c.Pipeline.ChunkSize }, "chunk_overlap"},
		{"negative retries", func(c *Config) { c.Pipeline.ExtractRetries = -1 }, "retries"},
		{"bad delay", func(c *Config) { c.Pipeline.RetryDelay = "soon" }, "retry_delay"},
		{"negative timeout", func(c *Config) { c.Pipeline.CallTimeout = "-1s" }, "call_timeout"},
		{"bad null policy", func(c *Config) { c.Pipeline.NullDates = "middle" }, "null_dates"},
		{"unknown llm provider", func(c *Config) { c.Defaults.LLMProvider = "nope" }, "llm_provider"},
		{"unknown ocr provider", func(c *Config) { c.Defaults.OCRProvider = "nope" }, "ocr_provider"},
		{"negative provider retries", func(c *Config) {
			p := c.LLMProviders["openai"]
			p.MaxRetries = -1
			c.LLMProviders["openai"] = p
		}, "llm_providers.openai.max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Settings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.ExtractRetries = 2
	cfg.Pipeline.RetryDelay = "250ms"
	cfg.Pipeline.CallTimeout = "1m"
	cfg.Pipeline.ExtractConcurrency = 4
	cfg.Pipeline.NullDates = "first"
	cfg.Pipeline.DayFirst = true

	s, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if s.PagesPerSplit != 15 || s.ChunkSize != 4000 || s.ChunkOverlap != 1000 {
		t.Errorf("sizes = %d/%d/%d", s.PagesPerSplit, s.ChunkSize, s.ChunkOverlap)
	}
	if s.Extract.Retries != 2 || s.Extract.RetryDelay != 250*time.Millisecond || s.Extract.CallTimeout != time.Minute {
		t.Errorf("Extract = %+v", s.Extract)
	}
	if s.Extract.Concurrency != 4 || s.OCR.Concurrency != 1 {
		t.Errorf("concurrency = ocr %d, extract %d", s.OCR.Concurrency, s.Extract.Concurrency)
	}
	if s.OCR.Retries != 0 {
		t.Errorf("OCR.Retries = %d, want 0", s.OCR.Retries)
	}
	if s.Nulls != normalize.NullsFirst || !s.DayFirst {
		t.Errorf("Nulls = %q DayFirst = %v", s.Nulls, s.DayFirst)
	}

	cfg.Pipeline.PagesPerSplit = 0
	if _, err := cfg.Settings(); err == nil {
		t.Error("Settings() should reject an invalid pipeline")
	}
}

func TestConfig_ToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-123")
	t.Setenv("TEST_DOCAI_PROJECT", "proj-1")

	cfg := &Config{
		OCRProviders: map[string]OCRProviderCfg{
			"documentai": {
				Type:        providers.DocumentAIName,
				ProjectID:   "${TEST_DOCAI_PROJECT}",
				Location:    "us",
				ProcessorID: "proc",
				RateLimit:   2,
				Enabled:     true,
			},
		},
		LLMProviders: map[string]LLMProviderCfg{
			"openai": {
				Type:       providers.OpenAIName,
				Model:      "gpt-4o-mini",
				APIKey:     "${TEST_OPENAI_KEY}",
				BaseURL:    "http://localhost:8080/v1",
				MaxRetries: 2,
				Enabled:    true,
			},
		},
	}

	reg := cfg.ToProviderRegistryConfig()

	ocr := reg.OCRProviders["documentai"]
	if ocr.ProjectID != "proj-1" || ocr.ProcessorID != "proc" || ocr.Location != "us" {
		t.Errorf("documentai = %+v", ocr)
	}
	llm := reg.LLMProviders["openai"]
	if llm.APIKey != "sk-123" {
		t.Errorf("APIKey = %q, want resolved value", llm.APIKey)
	}
	if llm.BaseURL != "http://localhost:8080/v1" || llm.MaxRetries != 2 || !llm.Enabled {
		t.Errorf("openai = %+v", llm)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())

		cm, err := NewManager("")
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := cm.Get()
		if cfg.Pipeline.ChunkSize != 4000 {
			t.Errorf("ChunkSize = %d, want 4000", cfg.Pipeline.ChunkSize)
		}
		if _, ok := cfg.OCRProviders["documentai"]; !ok {
			t.Error("expected default documentai provider")
		}
		if cm.ConfigFile() != "" {
			t.Errorf("ConfigFile() = %q, want empty", cm.ConfigFile())
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		os.WriteFile(path, []byte("pipeline:\n  chunk_size: 2000\n  chunk_overlap: 500\n"), 0o644)

		cm, err := NewManager(path)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := cm.Get()
		if cfg.Pipeline.ChunkSize != 2000 || cfg.Pipeline.ChunkOverlap != 500 {
			t.Errorf("chunking = %d/%d", cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
		}
		if cfg.Pipeline.PagesPerSplit != 15 {
			t.Errorf("PagesPerSplit = %d, unset keys should keep defaults", cfg.Pipeline.PagesPerSplit)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		os.WriteFile(path, []byte("pipeline:\n  pages_per_split: 10\n"), 0o644)
		t.Setenv("MEDSUM_PIPELINE_PAGES_PER_SPLIT", "5")

		cm, err := NewManager(path)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if got := cm.Get().Pipeline.PagesPerSplit; got != 5 {
			t.Errorf("PagesPerSplit = %d, want 5", got)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		os.WriteFile(path, []byte("pipeline: [unclosed"), 0o644)

		if _, err := NewManager(path); err == nil {
			t.Error("expected error for malformed YAML")
		}
	})
}

func TestManager_Entries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("pipeline:\n  write_xlsx: true\n"), 0o644)

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	entries := cm.Entries()
	if len(entries) != len(DefaultEntries()) {
		t.Fatalf("Entries() = %d, want %d", len(entries), len(DefaultEntries()))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Key > entries[i].Key {
			t.Fatalf("entries not sorted at %q", entries[i].Key)
		}
	}

	v, err := cm.Value("pipeline.write_xlsx")
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != true {
		t.Errorf("pipeline.write_xlsx = %v, want true", v)
	}

	if _, err := cm.Value("pipeline.nope"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Value(unknown) error = %v", err)
	}
	if _, err := cm.Value("bad key"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Value(bad key) error = %v", err)
	}
}

func TestGetDefault(t *testing.T) {
	e, err := GetDefault("pipeline.pages_per_split")
	if err != nil {
		t.Fatalf("GetDefault() error = %v", err)
	}
	if e.Value != 15 {
		t.Errorf("Value = %v, want 15", e.Value)
	}

	if _, err := GetDefault("pipeline.unknown"); !errors.Is(err, ErrNoDefault) {
		t.Errorf("expected ErrNoDefault, got %v", err)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"pipeline.chunk_size", false},
		{"ocr_providers.documentai.project_id", false},
		{"llm-providers.x", false},
		{"", true},
		{".leading", true},
		{"trailing.", true},
		{"has space", true},
		{"semi;colon", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# medsum configuration") {
		t.Error("missing header")
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() on written default error = %v", err)
	}
	if err := cm.Get().Validate(); err != nil {
		t.Errorf("written default does not validate: %v", err)
	}
	if got := cm.Get().OCRProviders["documentai"].ProcessorID; got != "${DOCUMENTAI_PROCESSOR_ID}" {
		t.Errorf("ProcessorID = %q, want unresolved reference", got)
	}
}

func TestManager_WatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("pipeline:\n  pages_per_split: 10\n"), 0o644)

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var reloaded atomic.Int32
	changed := make(chan *Config, 4)
	cm.OnChange(func(c *Config) {
		reloaded.Add(1)
		select {
		case changed <- c:
		default:
		}
	})
	cm.WatchConfig()

	time.Sleep(50 * time.Millisecond)
	os.WriteFile(path, []byte("pipeline:\n  pages_per_split: 20\n"), 0o644)

	select {
	case c := <-changed:
		if c.Pipeline.PagesPerSplit != 20 {
			t.Errorf("PagesPerSplit = %d, want 20", c.Pipeline.PagesPerSplit)
		}
	case <-time.After(5 * time.Second):
		t.Skip("no fsnotify event delivered on this filesystem")
	}
	if got := cm.Get().Pipeline.PagesPerSplit; got != 20 {
		t.Errorf("Get().PagesPerSplit = %d, want 20", got)
	}
	if reloaded.Load() == 0 {
		t.Error("callback never ran")
	}
}
