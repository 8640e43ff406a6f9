package providers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
)

// IsRateLimited reports whether err carries an HTTP 429 from any provider.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode == http.StatusTooManyRequests
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests
	}
	return strings.Contains(err.Error(), "status 429")
}
