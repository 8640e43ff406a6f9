package medical

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/medsum/internal/prompts"
	"github.com/jackzampolin/medsum/internal/providers"
)

func TestBuildRequest(t *testing.T) {
	req, err := BuildRequest(Input{Text: "Consultation 2021-11-30, page 01/060", Index: 1})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(req.Messages))
	}
	if !strings.Contains(req.Messages[0].Content, "clinician") {
		t.Errorf("system prompt = %q", req.Messages[0].Content)
	}
	if strings.TrimSpace(req.Messages[1].Content) != "Consultation 2021-11-30, page 01/060" {
		t.Errorf("user prompt = %q", req.Messages[1].Content)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
		t.Fatalf("ResponseFormat = %+v", req.ResponseFormat)
	}

	var wrapper struct {
		Name   string         `json:"name"`
		Strict bool           `json:"strict"`
		Schema map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(req.ResponseFormat.JSONSchema, &wrapper); err != nil {
		t.Fatalf("schema wrapper: %v", err)
	}
	if wrapper.Name != SchemaName || !wrapper.Strict {
		t.Errorf("wrapper = %+v", wrapper)
	}
	if required, _ := wrapper.Schema["required"].([]any); len(required) != 5 {
		t.Errorf("required = %v, want 5 fields", wrapper.Schema["required"])
	}
}

func TestBuildRequest_Overrides(t *testing.T) {
	req, err := BuildRequest(Input{
		Text:                 "body",
		Index:                4,
		SystemPromptOverride: "custom system",
		UserPromptOverride:   "chunk {{.Index}}: {{.Text}}",
	})
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.Messages[0].Content != "custom system" {
		t.Errorf("system = %q", req.Messages[0].Content)
	}
	if req.Messages[1].Content != "chunk 4: body" {
		t.Errorf("user = %q", req.Messages[1].Content)
	}

	if _, err := BuildRequest(Input{Text: "x", UserPromptOverride: "{{.Missing}}"}); err == nil {
		t.Error("expected error for unknown template field")
	}
}

func TestParseResult(t *testing.T) {
	got, err := ParseResult(json.RawMessage(`{"date":null,"event_type":"Consultation","document_summary":"s","evaluation":"e","page":"2"}`))
	if err != nil {
		t.Fatalf("ParseResult() error = %v", err)
	}
	if got.Date != nil || got.EventType != "Consultation" || got.Page != "2" {
		t.Errorf("ParseResult() = %+v", got)
	}
	if _, err := ParseResult(nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestSchemaAcceptedByMockClient(t *testing.T) {
	client := providers.NewMockClient()
	client.ResponseJSON = json.RawMessage(`{"date":"2023-05-01","event_type":"Exam","document_summary":"MRI","evaluation":"normal","page":"03/060"}`)

	req, err := BuildRequest(Input{Text: "MRI report", Index: 1})
	if err != nil {
		t.Fatal(err)
	}
	res, err := client.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	rec, err := ParseResult(res.ParsedJSON)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Date == nil || *rec.Date != "2023-05-01" {
		t.Errorf("Date = %v", rec.Date)
	}
}

func TestRegisterPrompts(t *testing.T) {
	dir := t.TempDir()
	r := prompts.NewResolver(dir, nil)
	RegisterPrompts(r)

	rp, err := r.Resolve(SystemPromptKey)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rp.IsOverride || rp.Text != SystemPrompt() {
		t.Errorf("expected embedded system prompt, got %+v", rp)
	}

	if err := os.WriteFile(filepath.Join(dir, UserPromptKey+".tmpl"), []byte("Section {{.Index}}\n{{.Text}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	rp, err = r.Resolve(UserPromptKey)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !rp.IsOverride || len(rp.Variables) != 2 {
		t.Errorf("expected override with 2 variables, got %+v", rp)
	}
}
