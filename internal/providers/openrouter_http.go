package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

const openRouterMaxDelay = 10 * time.Second

var openRouterHeader = http.Header{
	"Http-Referer": {"https://github.com/jackzampolin/medsum"},
	"X-Title":      {"medsum"},
}

// doRequest posts to OpenRouter, retrying transport failures, retryable
// statuses and transient 200 replies up to maxRetries more times.
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, orReq *openRouterRequest) (*openRouterResponse, error) {
	var orResp *openRouterResponse
	err := retry.Do(
		func() error {
			body, err := postJSON(ctx, c.client, "OpenRouter", c.baseURL+path, c.apiKey, openRouterHeader, orReq)
			if err != nil {
				var statusErr *StatusError
				if errors.As(err, &statusErr) && !statusErr.Retryable() {
					return retry.Unrecoverable(err)
				}
				return err
			}

			var resp openRouterResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
			}
			if err := transientResponseError(&resp); err != nil {
				return err
			}
			orResp = &resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(openRouterMaxDelay),
		retry.MaxJitter(max(c.retryDelay/2, time.Millisecond)),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if int(n) < c.maxRetries {
				injectNonce(orReq, int(n)+1)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return orResp, nil
}

// transientResponseError flags 200 replies that carry an overload error or
// no choices at all.
func transientResponseError(resp *openRouterResponse) error {
	if resp.Error != nil {
		switch fmt.Sprintf("%v", resp.Error.Code) {
		case "overloaded", "rate_limit_exceeded", "503", "502", "500":
			return fmt.Errorf("OpenRouter API error (retryable): %s", resp.Error.Message)
		}
		return nil
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("empty choices in response (model=%s, id=%s)", resp.Model, resp.ID)
	}
	return nil
}

// injectNonce tags the last user message so a resubmitted request is not
// answered from an upstream cache.
func injectNonce(req *openRouterRequest, attempt int) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		req.Messages[i].Content += fmt.Sprintf("\n<!-- retry_%d_id: %s -->", attempt, uuid.New().String()[:16])
		return
	}
}
