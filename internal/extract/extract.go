// Package extract submits text chunks to a language model and aggregates one
// structured record per chunk. Submission stops at the first failed chunk;
// records extracted before it are kept.
package extract

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/jackzampolin/medsum/internal/chunk"
	"github.com/jackzampolin/medsum/internal/jobs"
	"github.com/jackzampolin/medsum/internal/llmcall"
	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/prompts"
	"github.com/jackzampolin/medsum/internal/prompts/medical"
	"github.com/jackzampolin/medsum/internal/providers"
	"github.com/jackzampolin/medsum/internal/record"
)

// Config controls model selection, retries and concurrency. The zero value
// submits one chunk at a time with no retries using the client's model.
type Config struct {
	Model       string
	Retries     int
	RetryDelay  time.Duration
	CallTimeout time.Duration
	Concurrency int
}

// ChunkState is the final state of one chunk.
type ChunkState struct {
	Index    int            `json:"index" yaml:"index"`
	State    jobs.UnitState `json:"state" yaml:"state"`
	Attempts int            `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Outcome is the result of aggregating a chunk sequence.
type Outcome struct {
	Records      []record.Record `json:"records" yaml:"records"`
	Chunks       []ChunkState    `json:"chunks" yaml:"chunks"`
	InputTokens  int             `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int             `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64         `json:"cost_usd" yaml:"cost_usd"`
	Pool         jobs.PoolStatus `json:"pool" yaml:"pool"`
}

// Counts tallies chunk states.
func (o *Outcome) Counts() map[jobs.UnitState]int {
	counts := make(map[jobs.UnitState]int, 4)
	for _, c := range o.Chunks {
		counts[c.State]++
	}
	return counts
}

// Aggregator drives the extraction collaborator over a chunk sequence.
type Aggregator struct {
	client   providers.LLMClient
	cfg      Config
	limiter  *providers.RateLimiter
	recorder *llmcall.Recorder
	resolver *prompts.Resolver
	runID    string
	logger   *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRecorder records every call to rec.
func WithRecorder(rec *llmcall.Recorder) Option {
	return func(a *Aggregator) { a.recorder = rec }
}

// WithPrompts resolves the system and user prompts through r, so file
// overrides take effect.
func WithPrompts(r *prompts.Resolver) Option {
	return func(a *Aggregator) { a.resolver = r }
}

// WithRunID tags recorded calls with a run id.
func WithRunID(id string) Option {
	return func(a *Aggregator) { a.runID = id }
}

// New creates an aggregator.
func New(client providers.LLMClient, cfg Config, logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = client.RetryDelayBase()
	}
	a := &Aggregator{
		client:  client,
		cfg:     cfg,
		limiter: providers.NewRateLimiter(client.RequestsPerSecond()),
		logger:  logger.With("stage", "extract", "provider", client.Name()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type promptSet struct {
	system, user         string
	systemHash, userHash string
}

func (a *Aggregator) resolvePrompts() (promptSet, error) {
	ps := promptSet{
		systemHash: prompts.HashText(medical.SystemPrompt()),
	}
	if a.resolver == nil {
		return ps, nil
	}
	sys, err := a.resolver.Resolve(medical.SystemPromptKey)
	if err != nil {
		return ps, err
	}
	user, err := a.resolver.Resolve(medical.UserPromptKey)
	if err != nil {
		return ps, err
	}
	if sys.IsOverride {
		ps.system = sys.Text
	}
	if user.IsOverride {
		ps.user = user.Text
	}
	ps.systemHash, ps.userHash = sys.Hash, user.Hash
	return ps, nil
}

type chunkResult struct {
	rec  record.Record
	chat *providers.ChatResult
}

// Aggregate extracts one record per chunk, in chunk order. A collaborator
// failure stops submission of later chunks and is returned as a
// CollaboratorError alongside the records gathered before it. Zero records
// yields a NoDataError.
func (a *Aggregator) Aggregate(ctx context.Context, chunks iter.Seq[chunk.Chunk]) (*Outcome, error) {
	items := slices.Collect(chunks)

	ps, err := a.resolvePrompts()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve prompts: %w", err)
	}

	pool := jobs.NewPool(jobs.PoolConfig{
		Name:        "extract:" + a.client.Name(),
		Logger:      a.logger,
		Workers:     a.cfg.Concurrency,
		Limiter:     a.limiter,
		Retries:     a.cfg.Retries,
		RetryDelay:  a.cfg.RetryDelay,
		CallTimeout: a.cfg.CallTimeout,
		StopOnError: true,
	})

	a.logger.Info("extraction started", "chunks", len(items), "model", a.cfg.Model)
	start := time.Now()

	results := jobs.Run(ctx, pool, len(items), func(ctx context.Context, index int) (chunkResult, error) {
		return a.extractOne(ctx, items[index-1], ps)
	})

	out := &Outcome{Chunks: make([]ChunkState, len(results)), Pool: pool.Status()}
	for i, r := range results {
		cs := ChunkState{Index: r.Index, State: r.State, Attempts: r.Attempts, Duration: r.Duration}
		if r.Err != nil {
			cs.Error = r.Err.Error()
		}
		out.Chunks[i] = cs
		if r.Value.chat != nil {
			out.InputTokens += r.Value.chat.PromptTokens
			out.OutputTokens += r.Value.chat.CompletionTokens
			out.CostUSD += r.Value.chat.CostUSD
		}
	}

	values, failed := jobs.Prefix(results)
	for _, v := range values {
		out.Records = append(out.Records, v.rec)
	}
	// Chunks that finished after the first failure are not part of the
	// output; report them as skipped.
	if failed != nil {
		for i := failed.Index; i < len(out.Chunks); i++ {
			if out.Chunks[i].State == jobs.StateSucceeded {
				out.Chunks[i].State = jobs.StateSkipped
			}
		}
	}

	counts := out.Counts()
	a.logger.Info("extraction complete",
		"records", len(out.Records),
		"succeeded", counts[jobs.StateSucceeded],
		"failed", counts[jobs.StateFailed],
		"skipped", counts[jobs.StateSkipped],
		"cost_usd", out.CostUSD,
		"duration", time.Since(start),
	)

	var cause error
	if failed != nil {
		if failed.Err == nil {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			failed.Err = fmt.Errorf("chunk %s", failed.State)
		}
		cause = &pipeline.CollaboratorError{
			Stage:    pipeline.CollaboratorExtract,
			Index:    failed.Index,
			Provider: a.client.Name(),
			Err:      failed.Err,
		}
	}

	if len(out.Records) == 0 {
		return out, &pipeline.NoDataError{Chunks: len(items), Cause: cause}
	}
	if cause != nil {
		a.logger.Warn("extraction truncated",
			"failed_chunk", failed.Index,
			"kept_records", len(out.Records),
			"error", failed.Err,
		)
		return out, cause
	}
	return out, nil
}

func (a *Aggregator) extractOne(ctx context.Context, c chunk.Chunk, ps promptSet) (chunkResult, error) {
	req, err := medical.BuildRequest(medical.Input{
		Text:                 c.Text,
		Index:                c.Index,
		SystemPromptOverride: ps.system,
		UserPromptOverride:   ps.user,
	})
	if err != nil {
		return chunkResult{}, jobs.Permanent(err)
	}
	req.Model = a.cfg.Model

	chat, err := a.client.Chat(ctx, req)
	temp := req.Temperature
	a.recorder.Record(chat, llmcall.RecordOptions{
		RunID:       a.runID,
		ChunkIndex:  c.Index,
		PromptKey:   medical.UserPromptKey,
		PromptHash:  ps.userHash,
		Temperature: &temp,
		Err:         err,
	})
	if err != nil {
		return chunkResult{chat: chat}, err
	}
	if chat == nil || !chat.Success {
		msg := "no result"
		if chat != nil {
			msg = chat.ErrorType + ": " + chat.ErrorMessage
		}
		return chunkResult{chat: chat}, fmt.Errorf("extraction failed: %s", msg)
	}

	parsed, err := medical.ParseResult(chat.ParsedJSON)
	if err != nil {
		return chunkResult{chat: chat}, err
	}

	rec := record.Record{
		Index:           c.Index,
		EventType:       parsed.EventType,
		DocumentSummary: parsed.DocumentSummary,
		Evaluation:      parsed.Evaluation,
		Page:            parsed.Page,
	}
	if parsed.Date != nil {
		rec.Date = *parsed.Date
	}
	a.logger.Debug("chunk extracted", "index", c.Index, "date", rec.Date, "event_type", rec.EventType, "attempts", chat.Attempts)
	return chunkResult{rec: rec, chat: chat}, nil
}
