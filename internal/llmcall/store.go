package llmcall

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	RunID     string
	PromptKey string
	Provider  string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

func (f QueryFilter) match(c *Call) bool {
	switch {
	case f.RunID != "" && c.RunID != f.RunID:
		return false
	case f.PromptKey != "" && c.PromptKey != f.PromptKey:
		return false
	case f.Provider != "" && c.Provider != f.Provider:
		return false
	case f.Model != "" && c.Model != f.Model:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	case f.Before != nil && !c.Timestamp.Before(*f.Before):
		return false
	case f.Success != nil && c.Success != *f.Success:
		return false
	}
	return true
}

// Load reads every call from a JSONL call log.
func Load(path string) ([]Call, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var calls []Call
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		calls = append(calls, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return calls, nil
}

// Query returns calls matching filter, newest first.
func Query(calls []Call, filter QueryFilter) []Call {
	var out []Call
	for i := range calls {
		if filter.match(&calls[i]) {
			out = append(out, calls[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out
}

// Summary aggregates usage across calls.
type Summary struct {
	Calls        int     `json:"calls" yaml:"calls"`
	Succeeded    int     `json:"succeeded" yaml:"succeeded"`
	Failed       int     `json:"failed" yaml:"failed"`
	InputTokens  int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int     `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64 `json:"cost_usd" yaml:"cost_usd"`
	AvgLatencyMs int     `json:"avg_latency_ms" yaml:"avg_latency_ms"`
}

// Summarize totals usage across calls.
func Summarize(calls []Call) Summary {
	var s Summary
	var latency int
	for _, c := range calls {
		s.Calls++
		if c.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.InputTokens += c.InputTokens
		s.OutputTokens += c.OutputTokens
		s.CostUSD += c.CostUSD
		latency += c.LatencyMs
	}
	if s.Calls > 0 {
		s.AvgLatencyMs = latency / s.Calls
	}
	return s
}
