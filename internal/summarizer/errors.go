package summarizer

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

const (
	unknownErrorMessage = "Unknown error"
	maxErrorBodyBytes   = 64 << 10
)

// APIError is a non-2xx reply from a provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// errorMessage reads error.message from a provider error body.
func errorMessage(body []byte) string {
	msg := gjson.GetBytes(body, "error.message")
	if msg.Type != gjson.String || msg.String() == "" {
		return unknownErrorMessage
	}

	return msg.String()
}

// normalizeErrors replaces any non-2xx response with an *APIError before
// the SDK decodes it. Both SDKs share this middleware signature.
func normalizeErrors(
	req *http.Request,
	next func(*http.Request) (*http.Response, error),
) (*http.Response, error) {
	resp, err := next(req)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()

	return nil, &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
	}
}

// providerError returns an *APIError as is, dropping whatever the SDK put
// around it, and wraps every other failure with op.
func providerError(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return fmt.Errorf("%s: %w", op, err)
}
