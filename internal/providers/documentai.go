package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	documentai "google.golang.org/api/documentai/v1"
	"google.golang.org/api/option"
)

const (
	DocumentAIName = "documentai"

	// Enterprise Document OCR list price: $1.50 per 1000 pages.
	DocumentAICostPerPage = 0.0015
)

// DocumentAIConfig holds the process-wide settings for Google Cloud Document AI.
// Built once at startup from config and handed to the client; nothing here reads
// the environment directly.
type DocumentAIConfig struct {
	ProjectID       string
	Location        string // e.g., "us", "eu"
	ProcessorID     string
	CredentialsFile string // service account JSON; empty uses application default credentials

	Endpoint   string       // Optional; default https://{location}-documentai.googleapis.com/
	HTTPClient *http.Client // Optional (tests)
	Timeout    time.Duration
	RateLimit  float64 // Requests per second (default: 2.0)
	MaxRetries int
}

// DocumentAIClient implements OCRProvider using Document AI's synchronous process endpoint.
type DocumentAIClient struct {
	processorName string
	rateLimit     float64
	maxRetries    int
	timeout       time.Duration
	svc           *documentai.Service
}

// ProcessorName returns the fully qualified processor resource name.
func (cfg DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, cfg.Location, cfg.ProcessorID)
}

// NewDocumentAIClient creates a new Document AI client.
func NewDocumentAIClient(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIClient, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("documentai: project_id and processor_id are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = fmt.Sprintf("https://%s-documentai.googleapis.com/", cfg.Location)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2.0
	}

	opts := []option.ClientOption{option.WithEndpoint(cfg.Endpoint)}
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := documentai.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create documentai service: %w", err)
	}

	return &DocumentAIClient{
		processorName: cfg.ProcessorName(),
		rateLimit:     cfg.RateLimit,
		maxRetries:    cfg.MaxRetries,
		timeout:       cfg.Timeout,
		svc:           svc,
	}, nil
}

// Name returns the provider identifier.
func (c *DocumentAIClient) Name() string {
	return DocumentAIName
}

// RequestsPerSecond returns the rate limit.
func (c *DocumentAIClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *DocumentAIClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *DocumentAIClient) RetryDelayBase() time.Duration {
	return 2 * time.Second
}

// ProcessDocument runs full OCR and layout parsing on a raw document.
func (c *DocumentAIClient) ProcessDocument(ctx context.Context, content []byte, mimeType string) (*OCRResult, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &documentai.GoogleCloudDocumentaiV1ProcessRequest{
		RawDocument: &documentai.GoogleCloudDocumentaiV1RawDocument{
			Content:  base64.StdEncoding.EncodeToString(content),
			MimeType: mimeType,
		},
	}

	resp, err := c.svc.Projects.Locations.Processors.Process(c.processorName, req).Context(ctx).Do()
	if err != nil {
		err = fmt.Errorf("Document AI process failed: %w", err)
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}
	if resp.Document == nil {
		return &OCRResult{
			Success:       false,
			ErrorMessage:  "no document in Document AI response",
			ExecutionTime: time.Since(start),
		}, fmt.Errorf("no document in Document AI response")
	}

	pages := len(resp.Document.Pages)
	return &OCRResult{
		Success: true,
		Text:    resp.Document.Text,
		Pages:   pages,
		Metadata: map[string]any{
			"processor": c.processorName,
			"mime_type": mimeType,
		},
		CostUSD:       DocumentAICostPerPage * float64(pages),
		ExecutionTime: time.Since(start),
	}, nil
}

// Verify interface
var _ OCRProvider = (*DocumentAIClient)(nil)
