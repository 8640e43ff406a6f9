package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/medsum/internal/chunk"
	"github.com/jackzampolin/medsum/internal/jobs"
	"github.com/jackzampolin/medsum/internal/llmcall"
	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/prompts"
	"github.com/jackzampolin/medsum/internal/prompts/medical"
	"github.com/jackzampolin/medsum/internal/providers"
	"github.com/jackzampolin/medsum/internal/testutil"
)

func chunks(texts ...string) iter.Seq[chunk.Chunk] {
	return func(yield func(chunk.Chunk) bool) {
		for i, t := range texts {
			if !yield(chunk.Chunk{Index: i + 1, Text: t}) {
				return
			}
		}
	}
}

func recordJSON(date any, page string) string {
	b, _ := json.Marshal(map[string]any{
		"date":             date,
		"event_type":       "Consultation",
		"document_summary": "summary of page " + page,
		"evaluation":       "stable",
		"page":             page,
	})
	return string(b)
}

// pageClient replies with a record whose page is the chunk text.
func pageClient() *providers.MockClient {
	c := providers.NewMockClient()
	c.Respond = func(n int, req *providers.ChatRequest) (string, error) {
		text := strings.TrimSpace(req.Messages[len(req.Messages)-1].Content)
		return recordJSON("2023-05-01", text), nil
	}
	return c
}

func TestAggregate_AllSucceed(t *testing.T) {
	client := pageClient()
	a := New(client, Config{Model: "test-model"}, testutil.Logger(t))

	out, err := a.Aggregate(context.Background(), chunks("p1", "p2", "p3"))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(out.Records))
	}
	for i, r := range out.Records {
		if r.Index != i+1 || r.Page != fmt.Sprintf("p%d", i+1) || r.Date != "2023-05-01" || r.EventType != "Consultation" {
			t.Errorf("record %d = %+v", i, r)
		}
	}
	if got := out.Counts()[jobs.StateSucceeded]; got != 3 {
		t.Errorf("succeeded = %d", got)
	}
	if out.CostUSD <= 0 || out.InputTokens <= 0 {
		t.Errorf("usage not aggregated: %+v", out)
	}
	if out.Pool.Dispatched != 3 || out.Pool.Failed != 0 {
		t.Errorf("Pool = %+v", out.Pool)
	}

	req := client.Requests()[0]
	if req.Model != "test-model" || req.ResponseFormat == nil {
		t.Errorf("request = %+v", req)
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != medical.SystemPrompt() {
		t.Error("system prompt not sent")
	}
}

func TestAggregate_FailFastKeepsPartial(t *testing.T) {
	client := pageClient()
	client.FailOn = map[int]bool{3: true}

	a := New(client, Config{}, testutil.Logger(t))
	out, err := a.Aggregate(context.Background(), chunks("p1", "p2", "p3", "p4", "p5"))

	var ce *pipeline.CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want CollaboratorError", err)
	}
	if ce.Stage != pipeline.CollaboratorExtract || ce.Index != 3 {
		t.Errorf("CollaboratorError = %+v", ce)
	}
	if pipeline.IsFatal(err) {
		t.Error("truncated extraction should not be fatal")
	}
	if len(out.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(out.Records))
	}
	if client.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want no submissions after the failure", client.RequestCount())
	}
	if out.Pool.Dispatched != 3 || out.Pool.Failed != 1 {
		t.Errorf("Pool = %+v", out.Pool)
	}

	want := []jobs.UnitState{jobs.StateSucceeded, jobs.StateSucceeded, jobs.StateFailed, jobs.StateSkipped, jobs.StateSkipped}
	for i, c := range out.Chunks {
		if c.State != want[i] {
			t.Errorf("chunk %d state = %s, want %s", c.Index, c.State, want[i])
		}
	}
	if out.Chunks[2].Error == "" {
		t.Error("failed chunk should carry its error")
	}
}

func TestAggregate_NoData(t *testing.T) {
	t.Run("first chunk fails", func(t *testing.T) {
		client := pageClient()
		client.ShouldFail = true

		_, err := New(client, Config{}, nil).Aggregate(context.Background(), chunks("p1", "p2"))
		var nd *pipeline.NoDataError
		if !errors.As(err, &nd) {
			t.Fatalf("error = %v, want NoDataError", err)
		}
		if nd.Chunks != 2 || nd.Cause == nil {
			t.Errorf("NoDataError = %+v", nd)
		}
		if !errors.Is(err, pipeline.ErrNoData) || !pipeline.IsFatal(err) {
			t.Error("NoDataError should match ErrNoData and be fatal")
		}
	})

	t.Run("no chunks", func(t *testing.T) {
		client := pageClient()
		_, err := New(client, Config{}, nil).Aggregate(context.Background(), chunks())
		if !errors.Is(err, pipeline.ErrNoData) {
			t.Fatalf("error = %v, want ErrNoData", err)
		}
		if client.RequestCount() != 0 {
			t.Errorf("RequestCount = %d", client.RequestCount())
		}
	})
}

func TestAggregate_NullDate(t *testing.T) {
	client := providers.NewMockClient()
	client.ResponseJSON = json.RawMessage(recordJSON(nil, "01/060"))

	out, err := New(client, Config{}, nil).Aggregate(context.Background(), chunks("text"))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if out.Records[0].Date != "" || out.Records[0].Page != "01/060" {
		t.Errorf("record = %+v", out.Records[0])
	}
}

func TestAggregate_InvalidOutputFails(t *testing.T) {
	client := providers.NewMockClient()
	client.ResponseText = `{"date": 5}`

	_, err := New(client, Config{}, nil).Aggregate(context.Background(), chunks("text"))
	if !errors.Is(err, pipeline.ErrNoData) {
		t.Fatalf("error = %v, want ErrNoData", err)
	}
	var ce *pipeline.CollaboratorError
	if !errors.As(err, &ce) || ce.Index != 1 {
		t.Errorf("cause = %v", err)
	}
}

func TestAggregate_Retries(t *testing.T) {
	client := pageClient()
	client.FailOn = map[int]bool{2: true}

	out, err := New(client, Config{Retries: 1, RetryDelay: time.Millisecond}, nil).
		Aggregate(context.Background(), chunks("p1", "p2", "p3"))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out.Records) != 3 || out.Chunks[1].Attempts != 2 {
		t.Errorf("records = %d, chunk 2 attempts = %d", len(out.Records), out.Chunks[1].Attempts)
	}
}

func TestAggregate_ConcurrentLongestPrefix(t *testing.T) {
	client := providers.NewMockClient()
	client.Latency = 2 * time.Millisecond
	client.Respond = func(n int, req *providers.ChatRequest) (string, error) {
		text := strings.TrimSpace(req.Messages[len(req.Messages)-1].Content)
		if text == "p4" {
			return "", errors.New("model unavailable")
		}
		return recordJSON("2021-11-30", text), nil
	}

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("p%d", i+1)
	}
	out, err := New(client, Config{Concurrency: 3}, nil).Aggregate(context.Background(), chunks(texts...))

	var ce *pipeline.CollaboratorError
	if !errors.As(err, &ce) || ce.Index != 4 {
		t.Fatalf("error = %v, want failure at chunk 4", err)
	}
	if len(out.Records) != 3 {
		t.Fatalf("got %d records, want the 3 before the failure", len(out.Records))
	}
	for i, r := range out.Records {
		if r.Index != i+1 {
			t.Errorf("record order broken: %+v", out.Records)
		}
	}
	for _, c := range out.Chunks[4:] {
		if c.State == jobs.StateSucceeded {
			t.Errorf("chunk %d after the failure reported as succeeded", c.Index)
		}
	}
}

func TestAggregate_RecordsCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), llmcall.FileName)
	rec, err := llmcall.NewRecorder(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	client := pageClient()
	client.FailOn = map[int]bool{2: true}
	_, err = New(client, Config{}, nil, WithRecorder(rec), WithRunID("run-42")).
		Aggregate(context.Background(), chunks("p1", "p2", "p3"))
	if err == nil {
		t.Fatal("expected truncation error")
	}
	rec.Close()

	calls, err := llmcall.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(calls))
	}
	if !calls[0].Success || calls[1].Success {
		t.Errorf("success flags = %v, %v", calls[0].Success, calls[1].Success)
	}
	if calls[0].RunID != "run-42" || calls[1].ChunkIndex != 2 || calls[0].PromptKey != medical.UserPromptKey {
		t.Errorf("calls = %+v", calls)
	}
}

func TestAggregate_PromptOverride(t *testing.T) {
	dir := t.TempDir()
	override := "Chunk {{.Index}}:\n{{.Text}}"
	if err := os.WriteFile(filepath.Join(dir, medical.UserPromptKey+".tmpl"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	resolver := prompts.NewResolver(dir, nil)
	medical.RegisterPrompts(resolver)

	client := providers.NewMockClient()
	client.ResponseJSON = json.RawMessage(recordJSON("2020-01-01", "1"))

	if _, err := New(client, Config{}, nil, WithPrompts(resolver)).Aggregate(context.Background(), chunks("hello")); err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	req := client.Requests()[0]
	if got := req.Messages[1].Content; got != "Chunk 1:\nhello" {
		t.Errorf("user prompt = %q", got)
	}
	if !strings.Contains(req.Messages[0].Content, "YYYY-MM-DD") {
		t.Errorf("embedded system prompt expected, got %q", req.Messages[0].Content)
	}
}
