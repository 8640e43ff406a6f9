package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MockClientName      = "mock"
	MockOCRProviderName = "mock-ocr"
)

// MockClient is an LLMClient for testing. Structured replies go through the
// same parse/validate/repair path as the real clients.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int          // Fail every request after the Nth (0 = never)
	FailOn       map[int]bool // Fail specific 1-based request numbers
	ResponseText string
	ResponseJSON json.RawMessage

	// Respond, when set, produces the reply for the nth (1-based) request.
	Respond func(n int, req *ChatRequest) (string, error)

	// Rate limiting
	RPS        float64
	Retries    int
	RetryDelay time.Duration

	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
		RPS:          0, // unlimited
		Retries:      0,
		RetryDelay:   time.Millisecond,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestsPerSecond returns the RPS limit for rate limiting.
func (c *MockClient) RequestsPerSecond() float64 {
	return c.RPS
}

// MaxRetries returns the maximum retry attempts.
func (c *MockClient) MaxRetries() int {
	return c.Retries
}

// RetryDelayBase returns the base delay between retries.
func (c *MockClient) RetryDelayBase() time.Duration {
	return c.RetryDelay
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return chatStructured(ctx, req, c.doRequest)
}

func (c *MockClient) doRequest(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	n := int(c.requestCount.Add(1))

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", n),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}
	fail := func(err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = "mock_failure"
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	switch {
	case c.ShouldFail:
		return fail(fmt.Errorf("mock client configured to fail"))
	case c.FailAfter > 0 && n > c.FailAfter:
		return fail(fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	case c.FailOn[n]:
		return fail(fmt.Errorf("mock client configured to fail request %d", n))
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ErrorType = "context_cancelled"
			result.ErrorMessage = ctx.Err().Error()
			result.TotalTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	content := c.ResponseText
	if len(c.ResponseJSON) > 0 {
		content = string(c.ResponseJSON)
	}
	if c.Respond != nil {
		text, err := c.Respond(n, req)
		if err != nil {
			return fail(err)
		}
		content = text
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	completionTokens := len(content) / 4

	result.Success = true
	result.Content = content
	result.PromptTokens = promptTokens
	result.CompletionTokens = completionTokens
	result.TotalTokens = promptTokens + completionTokens
	result.CostUSD = 0.001
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime
	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request received, in arrival order.
func (c *MockClient) Requests() []ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatRequest(nil), c.requests...)
}

// Reset clears the request counter and history.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)

// MockOCRProvider is an OCRProvider for testing.
type MockOCRProvider struct {
	ProviderName string
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int
	FailOn       map[int]bool // Fail specific 1-based request numbers
	ResponseText string

	// Respond, when set, produces the text for the nth (1-based) request.
	Respond func(n int, content []byte, mimeType string) (string, error)

	RPS        float64
	Retries    int
	RetryDelay time.Duration

	requestCount atomic.Int64
}

// NewMockOCRProvider creates a new mock OCR provider.
func NewMockOCRProvider() *MockOCRProvider {
	return &MockOCRProvider{
		ProviderName: MockOCRProviderName,
		ResponseText: "mock OCR text",
		Retries:      0,
		RetryDelay:   time.Millisecond,
	}
}

// Name returns the provider identifier.
func (p *MockOCRProvider) Name() string {
	return p.ProviderName
}

// RequestsPerSecond returns the rate limit.
func (p *MockOCRProvider) RequestsPerSecond() float64 {
	return p.RPS
}

// MaxRetries returns the max retry count.
func (p *MockOCRProvider) MaxRetries() int {
	return p.Retries
}

// RetryDelayBase returns the base retry delay.
func (p *MockOCRProvider) RetryDelayBase() time.Duration {
	return p.RetryDelay
}

// ProcessDocument returns canned text for a document.
func (p *MockOCRProvider) ProcessDocument(ctx context.Context, content []byte, mimeType string) (*OCRResult, error) {
	start := time.Now()
	n := int(p.requestCount.Add(1))

	result := &OCRResult{}
	fail := func(err error) (*OCRResult, error) {
		result.Success = false
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	switch {
	case p.ShouldFail:
		return fail(fmt.Errorf("mock OCR provider configured to fail"))
	case p.FailAfter > 0 && n > p.FailAfter:
		return fail(fmt.Errorf("mock OCR provider failed after %d requests", p.FailAfter))
	case p.FailOn[n]:
		return fail(fmt.Errorf("mock OCR provider configured to fail request %d", n))
	}

	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return fail(ctx.Err())
		}
	}

	text := fmt.Sprintf("%s %d", p.ResponseText, n)
	if p.Respond != nil {
		t, err := p.Respond(n, content, mimeType)
		if err != nil {
			return fail(err)
		}
		text = t
	}

	result.Success = true
	result.Text = text
	result.Pages = 1
	result.CostUSD = 0.001
	result.ExecutionTime = time.Since(start)
	result.Metadata = map[string]any{
		"provider":  p.ProviderName,
		"mime_type": mimeType,
		"bytes":     len(content),
	}
	return result, nil
}

// RequestCount returns the number of requests made.
func (p *MockOCRProvider) RequestCount() int64 {
	return p.requestCount.Load()
}

// Reset resets the request counter.
func (p *MockOCRProvider) Reset() {
	p.requestCount.Store(0)
}

// Verify interface
var _ OCRProvider = (*MockOCRProvider)(nil)
