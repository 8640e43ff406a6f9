package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	OpenAIDefaultModel = "gpt-4o-mini"
)

// Per-million-token list prices (input, output) for models medsum is
// commonly pointed at. Unknown models report zero cost.
var openAIPrices = map[string][2]float64{
	"gpt-4o-mini":   {0.15, 0.60},
	"gpt-4o":        {2.50, 10.00},
	"gpt-4.1-mini":  {0.40, 1.60},
	"gpt-4.1":       {2.00, 8.00},
	"gpt-4-turbo":   {10.00, 30.00},
	"gpt-3.5-turbo": {0.50, 1.50},
}

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // Optional; defaults to the SDK's base URL
	DefaultModel string
	Timeout      time.Duration
	HTTPClient   *http.Client // Optional (tests)

	RPS        float64       // Requests per second (default: 5)
	MaxRetries int           // SDK-level retries after the first attempt; 0 disables
	RetryDelay time.Duration // Base delay for pipeline-level retries (default: 2s)
}

// OpenAIClient implements LLMClient using the official OpenAI Go SDK.
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	rps          float64
	maxRetries   int
	retryDelay   time.Duration
	client       openai.Client
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = OpenAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPS == 0 {
		cfg.RPS = 5.0
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		rps:          cfg.RPS,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// RequestsPerSecond returns the RPS limit for rate limiting.
func (c *OpenAIClient) RequestsPerSecond() float64 {
	return c.rps
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenAIClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay between retries.
func (c *OpenAIClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// Chat sends a chat completion request. Structured output is requested with
// a strict json_schema response format and re-validated locally.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return chatStructured(ctx, req, c.doChat)
}

func (c *OpenAIClient) doChat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		Attempts:  1,
	}
	fail := func(errType string, err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = errType
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat != nil && len(req.ResponseFormat.JSONSchema) > 0 {
		rf, err := openAIResponseFormat(req.ResponseFormat.JSONSchema)
		if err != nil {
			return fail("invalid_schema", err)
		}
		params.ResponseFormat = rf
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return fail("api_error", fmt.Errorf("OpenAI error (status %d): %w", apiErr.StatusCode, err))
		}
		return fail("http_error", fmt.Errorf("OpenAI request failed: %w", err))
	}
	if len(completion.Choices) == 0 {
		return fail("empty_response", fmt.Errorf("no choices in response"))
	}

	msg := completion.Choices[0].Message
	if msg.Refusal != "" {
		return fail("refusal", fmt.Errorf("model refused: %s", msg.Refusal))
	}

	result.Success = true
	result.Content = msg.Content
	result.ModelUsed = completion.Model
	result.PromptTokens = int(completion.Usage.PromptTokens)
	result.CompletionTokens = int(completion.Usage.CompletionTokens)
	result.TotalTokens = int(completion.Usage.TotalTokens)
	result.CostUSD = openAICost(completion.Model, result.PromptTokens, result.CompletionTokens)
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime
	return result, nil
}

// openAIResponseFormat converts the {"name","strict","schema"} wrapper into
// the SDK's json_schema response format.
func openAIResponseFormat(raw json.RawMessage) (openai.ChatCompletionNewParamsResponseFormatUnion, error) {
	var wrapper struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Strict      *bool          `json:"strict"`
		Schema      map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{}, fmt.Errorf("failed to parse response schema: %w", err)
	}
	if wrapper.Schema == nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{}, fmt.Errorf("response schema has no \"schema\" object")
	}
	if wrapper.Name == "" {
		wrapper.Name = "response"
	}

	js := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   wrapper.Name,
		Schema: wrapper.Schema,
		Strict: openai.Bool(wrapper.Strict == nil || *wrapper.Strict),
	}
	if wrapper.Description != "" {
		js.Description = openai.String(wrapper.Description)
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: js},
	}, nil
}

func openAICost(model string, promptTokens, completionTokens int) float64 {
	price, ok := openAIPrices[model]
	if !ok {
		// Dated snapshots such as gpt-4o-mini-2024-07-18 bill like their base model.
		best := ""
		for name := range openAIPrices {
			if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
				best = name
			}
		}
		if best == "" {
			return 0
		}
		price = openAIPrices[best]
	}
	return (float64(promptTokens)*price[0] + float64(completionTokens)*price[1]) / 1e6
}

// Verify interface
var _ LLMClient = (*OpenAIClient)(nil)
